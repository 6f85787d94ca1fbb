package bvh

import (
	"math/rand"
	"testing"

	"github.com/gekko3d/occlusion/cullrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

func testFrustum() [6]mgl32.Vec4 {
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1.0, 1.0, 100.0)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	return core.ExtractFrustum(proj.Mul4(view))
}

// Traversal never drops an instance the flat per-instance test keeps, and
// never keeps one entirely outside the frustum.
func TestFrustumConservatism(t *testing.T) {
	planes := testFrustum()
	r := rand.New(rand.NewSource(11))

	for round := 0; round < 10; round++ {
		bounds := randomBounds(r, 300)
		tree := Builder{LeafThreshold: 4}.Build(bounds)
		tree.CullAgainstFrustum(planes)

		visible := map[int]bool{}
		for _, idx := range tree.CollectVisible() {
			visible[idx] = true
		}
		for i, b := range bounds {
			flat := core.AABBInFrustum(b, planes)
			if flat && !visible[i] {
				t.Fatalf("round %d: instance %d overlaps the frustum but was culled", round, i)
			}
			if !flat && visible[i] {
				t.Fatalf("round %d: instance %d lies outside the frustum but was kept", round, i)
			}
			if !nodeChainVisible(tree, i) && visible[i] {
				t.Fatalf("round %d: instance %d reported visible under a culled node", round, i)
			}
		}
	}
}

// A leaf straddling the frustum only reports its members that overlap it.
func TestMixedLeafReportsOnlyOverlappingInstances(t *testing.T) {
	bounds := []core.AABB{
		box(-0.5, -0.5, -3, 0.5, 0.5, -2),
		box(-6.5, -0.5, -10.5, -5.5, 0.5, -9.5),
		box(-0.5, -0.5, 9.5, 0.5, 0.5, 10.5), // behind the camera
	}
	for _, threshold := range []int{1, 2, 3} {
		tree := Builder{LeafThreshold: threshold}.Build(bounds)
		tree.CullAgainstFrustum(testFrustum())

		visible := tree.CollectVisible()
		invisible := tree.CollectInvisible()
		if len(visible) != 2 || len(invisible) != 1 || invisible[0] != 2 {
			t.Errorf("threshold %d: visible %v, invisible %v", threshold, visible, invisible)
		}
		for _, idx := range visible {
			if idx == 2 {
				t.Errorf("threshold %d: instance behind the camera reported visible", threshold)
			}
		}
	}
}

func nodeChainVisible(tree *Tree, instance int) bool {
	found := false
	tree.Walk(func(_ int32, n *Node) bool {
		if !n.Visible {
			return false
		}
		if n.IsLeaf() {
			for _, idx := range tree.Indices[n.First : n.First+n.Count] {
				if int(idx) == instance {
					found = true
				}
			}
		}
		return true
	})
	return found
}

func TestCulledSubtreeIsNotVisited(t *testing.T) {
	// Two far clusters: one in front of the camera, one behind it.
	var bounds []core.AABB
	for i := 0; i < 8; i++ {
		x := float32(i)
		bounds = append(bounds, box(x-0.5, -0.5, -10.5, x+0.5, 0.5, -9.5))
	}
	for i := 0; i < 8; i++ {
		x := float32(i)
		bounds = append(bounds, box(x-0.5, -0.5, 49.5, x+0.5, 0.5, 50.5))
	}

	tree := Builder{LeafThreshold: 2}.Build(bounds)
	tree.CullAgainstFrustum(testFrustum())

	// The root splits along Z, so the behind cluster is one child subtree.
	root := tree.Root()
	behind := tree.Nodes[root.Right]
	if behind.Visible {
		t.Fatalf("behind subtree root should be invisible")
	}
	tree.Walk(func(idx int32, n *Node) bool {
		if n.Bounds.Min.Z() > 0 && n.Visible {
			t.Errorf("node %d behind the camera marked visible", idx)
		}
		return true
	})

	invisible := tree.CollectInvisible()
	if len(invisible) != 8 {
		t.Errorf("expected 8 invisible instances, got %d", len(invisible))
	}
	for _, idx := range invisible {
		if idx < 8 {
			t.Errorf("instance %d in front of the camera reported invisible", idx)
		}
	}
}

func TestCullResetsPreviousFlags(t *testing.T) {
	bounds := []core.AABB{box(-1, -1, -11, 1, 1, -9)}
	tree := Builder{}.Build(bounds)

	tree.CullAgainstFrustum(testFrustum())
	if len(tree.CollectVisible()) != 1 {
		t.Fatal("instance should be visible on the first pass")
	}

	// Look the other way.
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1.0, 1.0, 100.0)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0})
	tree.CullAgainstFrustum(core.ExtractFrustum(proj.Mul4(view)))
	if len(tree.CollectVisible()) != 0 {
		t.Error("instance should be culled after turning around")
	}
}
