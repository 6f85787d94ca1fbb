package bvh

import (
	"github.com/gekko3d/occlusion/cullrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// CullAgainstFrustum marks every node's Visible flag. A node that fails the
// plane test is marked invisible together with its whole subtree without
// visiting it. Passing nodes always descend into both children, even when
// they lie fully inside. At a visible leaf each member's own bounds are
// tested too, so an instance outside the frustum never reports visible.
func (t *Tree) CullAgainstFrustum(planes [6]mgl32.Vec4) {
	for i := range t.Nodes {
		t.Nodes[i].Visible = false
	}
	if len(t.visible) != len(t.Bounds) {
		t.visible = make([]bool, len(t.Bounds))
	}
	for i := range t.visible {
		t.visible[i] = false
	}
	if t.Len() == 0 {
		return
	}

	stack := make([]int32, 0, 64)
	stack = append(stack, 0)
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &t.Nodes[idx]
		if !core.AABBInFrustum(n.Bounds, planes) {
			continue
		}
		n.Visible = true
		if n.IsLeaf() {
			for _, idx := range t.Indices[n.First : n.First+n.Count] {
				t.visible[idx] = core.AABBInFrustum(t.Bounds[idx], planes)
			}
			continue
		}
		// Right first so the left subtree is visited first.
		stack = append(stack, n.Right, n.Left)
	}
}

// CollectVisible returns the instances of visible leaves whose own bounds
// passed the frustum test.
func (t *Tree) CollectVisible() []int {
	return t.collect(true)
}

// CollectInvisible returns every instance index not reported by CollectVisible.
func (t *Tree) CollectInvisible() []int {
	return t.collect(false)
}

func (t *Tree) collect(visible bool) []int {
	out := make([]int, 0, t.Len())
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if !n.IsLeaf() || n.Count == 0 {
			continue
		}
		// Skipped subtrees keep the cleared flags.
		for _, idx := range t.Indices[n.First : n.First+n.Count] {
			if t.instanceVisible(idx) == visible {
				out = append(out, int(idx))
			}
		}
	}
	return out
}

func (t *Tree) instanceVisible(idx int32) bool {
	return int(idx) < len(t.visible) && t.visible[idx]
}

// Walk visits nodes depth-first, descending only when fn returns true.
func (t *Tree) Walk(fn func(idx int32, n *Node) bool) {
	var visit func(idx int32)
	visit = func(idx int32) {
		n := &t.Nodes[idx]
		if !fn(idx, n) || n.IsLeaf() {
			return
		}
		visit(n.Left)
		visit(n.Right)
	}
	if len(t.Nodes) > 0 {
		visit(0)
	}
}
