package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func lookDownNegZ() mgl32.Mat4 {
	// Perspective: 90 deg FOV, Aspect 1.0, Near 1, Far 100
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1.0, 1.0, 100.0)
	view := mgl32.LookAtV(
		mgl32.Vec3{0, 0, 0},  // Eye
		mgl32.Vec3{0, 0, -1}, // Center
		mgl32.Vec3{0, 1, 0},  // Up
	)
	return proj.Mul4(view)
}

func TestFrustumCulling(t *testing.T) {
	planes := ExtractFrustum(lookDownNegZ())

	tests := []struct {
		name     string
		aabbMin  mgl32.Vec3
		aabbMax  mgl32.Vec3
		expected bool
	}{
		{"Inside (center)", mgl32.Vec3{-1, -1, -10}, mgl32.Vec3{1, 1, -5}, true},
		{"Outside (Left)", mgl32.Vec3{-20, -1, -10}, mgl32.Vec3{-15, 1, -5}, false},
		{"Outside (Right)", mgl32.Vec3{15, -1, -10}, mgl32.Vec3{20, 1, -5}, false},
		{"Outside (Behind/Near)", mgl32.Vec3{-1, -1, 2}, mgl32.Vec3{1, 1, 5}, false},
		{"Outside (Far)", mgl32.Vec3{-1, -1, -200}, mgl32.Vec3{1, 1, -150}, false},
		// Left edge is at roughly -10 (tan(45)*10)
		{"Intersecting (Left Plane)", mgl32.Vec3{-15, -1, -10}, mgl32.Vec3{-5, 1, -5}, true},
		{"Encompassing (Huge box)", mgl32.Vec3{-1000, -1000, -1000}, mgl32.Vec3{1000, 1000, 1000}, true},
	}

	for _, tc := range tests {
		visible := AABBInFrustum(NewAABB(tc.aabbMin, tc.aabbMax), planes)
		if visible != tc.expected {
			t.Errorf("Test %s failed: expected %v, got %v", tc.name, tc.expected, visible)
			center := tc.aabbMin.Add(tc.aabbMax).Mul(0.5)
			for i, p := range planes {
				t.Logf("  P%d: %v, Dist(Center)=%f", i, p, p.Dot(center.Vec4(1.0)))
			}
		}
	}
}

func TestFrustumOrtho(t *testing.T) {
	proj := mgl32.Ortho(-10, 10, -10, 10, 0, 20)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	planes := ExtractFrustum(proj.Mul4(view))

	if !AABBInFrustum(NewAABB(mgl32.Vec3{-1, -1, -6}, mgl32.Vec3{1, 1, -4}), planes) {
		t.Error("Ortho: AABB should be inside")
	}

	// Near=0 => Z=0. Far=20 => Z=-20, so -25 is beyond far plane.
	if AABBInFrustum(NewAABB(mgl32.Vec3{-1, -1, -26}, mgl32.Vec3{1, 1, -24}), planes) {
		t.Error("Ortho: AABB at -25 should be outside (Far=20 => Z=-20)")
	}
}

func TestEmptyAABBNeverInFrustum(t *testing.T) {
	if AABBInFrustum(EmptyAABB(), ExtractFrustum(lookDownNegZ())) {
		t.Error("empty box must not be reported visible")
	}
}

func TestCameraFrustumMatchesMatrices(t *testing.T) {
	cam := NewCameraState()
	cam.Position = mgl32.Vec3{0, 0, 0}
	cam.LookAt(mgl32.Vec3{0, -10, 0})

	planes := cam.Frustum()
	ahead := NewAABB(mgl32.Vec3{-1, -11, -1}, mgl32.Vec3{1, -9, 1})
	behind := NewAABB(mgl32.Vec3{-1, 9, -1}, mgl32.Vec3{1, 11, 1})

	if !AABBInFrustum(ahead, planes) {
		t.Error("box in front of the camera should be visible")
	}
	if AABBInFrustum(behind, planes) {
		t.Error("box behind the camera should be culled")
	}
}
