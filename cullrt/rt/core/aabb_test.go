package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestTransformAABBUsesAllCorners(t *testing.T) {
	local := NewAABB(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1})

	p := NewPlacement(mgl32.Vec3{10, 0, 0})
	p.Rotation = mgl32.QuatRotate(mgl32.DegToRad(45), mgl32.Vec3{0, 0, 1})
	world := TransformAABB(p.Matrix(), local)

	// A unit cube rotated 45 degrees about Z spans sqrt(2) in X and Y.
	want := float32(1.41421)
	if !closeEnough(world.Max.X()-10, want, 0.001) || !closeEnough(world.Max.Y(), want, 0.001) {
		t.Errorf("rotated bounds too small: %v -> %v", world.Min, world.Max)
	}
	if !closeEnough(world.Max.Z(), 1, 0.001) || !closeEnough(world.Min.Z(), -1, 0.001) {
		t.Errorf("Z extent should be unchanged, got %v -> %v", world.Min, world.Max)
	}
}

func TestAABBUnionAndContains(t *testing.T) {
	a := NewAABB(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 1, 1})
	b := NewAABB(mgl32.Vec3{5, -2, 0}, mgl32.Vec3{6, 0, 3})

	u := a.Union(b)
	if !u.Contains(a) || !u.Contains(b) {
		t.Fatalf("union %v should contain both inputs", u)
	}
	if u.Min != (mgl32.Vec3{0, -2, 0}) || u.Max != (mgl32.Vec3{6, 1, 3}) {
		t.Errorf("unexpected union %v -> %v", u.Min, u.Max)
	}

	e := EmptyAABB()
	if !e.IsEmpty() {
		t.Error("EmptyAABB should be empty")
	}
	if e.Union(a) != a || a.Union(e) != a {
		t.Error("union with the empty box should be the identity")
	}
	if e.Extent() != (mgl32.Vec3{}) {
		t.Error("empty box extent should be zero")
	}
}

func TestInstancesSnapshot(t *testing.T) {
	local := NewAABB(mgl32.Vec3{-0.5, -0.5, -0.5}, mgl32.Vec3{0.5, 0.5, 0.5})
	mats := []mgl32.Mat4{
		NewPlacement(mgl32.Vec3{0, 0, 0}).Matrix(),
		NewPlacement(mgl32.Vec3{100, 100, 100}).Matrix(),
	}
	inst := Instances(local, mats)
	if len(inst) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(inst))
	}
	if inst[1].Index != 1 {
		t.Errorf("index should follow input order, got %d", inst[1].Index)
	}
	if inst[0].Bounds.Max[0] >= inst[1].Bounds.Min[0] {
		t.Errorf("instance bounds should be separate: %v vs %v", inst[0].Bounds, inst[1].Bounds)
	}
}

func TestPlacementInverse(t *testing.T) {
	p := NewPlacement(mgl32.Vec3{10, 20, 30})
	p.Scale = mgl32.Vec3{2, 2, 2}
	p.Rotation = mgl32.QuatRotate(0.7, mgl32.Vec3{0, 1, 0})

	identity := p.Matrix().Mul4(p.InverseMatrix())
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			want := float32(0)
			if i == j {
				want = 1
			}
			if !closeEnough(identity.At(i, j), want, 0.001) {
				t.Errorf("M*inv(M)[%d,%d] = %f, want %f", i, j, identity.At(i, j), want)
			}
		}
	}
}

func closeEnough(a, b, epsilon float32) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < epsilon
}
