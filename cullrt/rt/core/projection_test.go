package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestLinearEyeDepthToNDC01(t *testing.T) {
	near, far := float32(1), float32(100)
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, near, far)

	tests := []struct {
		eye  float32
		want float32
	}{
		{near, 0},
		{far, 1},
		// f/(f-n) * (1 - n/z)
		{2, 100.0 / 99.0 * 0.5},
	}
	for _, tc := range tests {
		got := LinearEyeDepthToNDC01(proj, tc.eye)
		if !closeEnough(got, tc.want, 1e-4) {
			t.Errorf("eye=%v: got %v, want %v", tc.eye, got, tc.want)
		}
	}
}

func TestReversedZToLinearEye(t *testing.T) {
	near, far := float32(0.3), float32(1000)
	if got := ReversedZToLinearEye(1, near, far); !closeEnough(got, near, 1e-4) {
		t.Errorf("d=1 should map to near, got %v", got)
	}
	if got := ReversedZToLinearEye(0, near, far); !closeEnough(got, far, 1e-2) {
		t.Errorf("d=0 should map to far, got %v", got)
	}
}

func TestProjectAABB(t *testing.T) {
	vp := lookDownNegZ()

	box := NewAABB(mgl32.Vec3{-1, -1, -11}, mgl32.Vec3{1, 1, -10})
	r, ok := ProjectAABB(vp, box, 100, 100)
	if !ok {
		t.Fatal("box in front of the camera should project")
	}
	// 90 deg fov: at distance 10 the half-width is 10, so [-1,1] covers 10% of the screen.
	if !closeEnough(r.MinX, 45, 0.01) || !closeEnough(r.MaxX, 55, 0.01) {
		t.Errorf("unexpected x footprint [%v, %v]", r.MinX, r.MaxX)
	}
	if !closeEnough(r.MinY, 45, 0.01) || !closeEnough(r.MaxY, 55, 0.01) {
		t.Errorf("unexpected y footprint [%v, %v]", r.MinY, r.MaxY)
	}
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1.0, 1.0, 100.0)
	if want := LinearEyeDepthToNDC01(proj, 10); !closeEnough(r.MinDepth, want, 1e-4) {
		t.Errorf("nearest depth %v, want %v", r.MinDepth, want)
	}

	x0, y0, x1, y1, ok := r.PixelBounds(100, 100)
	within := func(v, lo, hi int) bool { return v >= lo && v <= hi }
	if !ok || !within(x0, 44, 45) || !within(x1, 54, 55) || !within(y0, 44, 45) || !within(y1, 54, 55) {
		t.Errorf("pixel bounds (%d,%d)-(%d,%d) ok=%v", x0, y0, x1, y1, ok)
	}

	straddling := NewAABB(mgl32.Vec3{-1, -1, -5}, mgl32.Vec3{1, 1, 5})
	if _, ok := ProjectAABB(vp, straddling, 100, 100); ok {
		t.Error("box crossing the eye plane must not project")
	}
}

func TestScreenNDCRoundTrip(t *testing.T) {
	x, y := NDCToScreen(0.25, -0.5, 640, 480)
	nx, ny := ScreenToNDC(x, y, 640, 480)
	if !closeEnough(nx, 0.25, 1e-5) || !closeEnough(ny, -0.5, 1e-5) {
		t.Errorf("round trip gave (%v, %v)", nx, ny)
	}
	// +Y in NDC is the top of the screen.
	_, top := NDCToScreen(0, 1, 640, 480)
	if top != 0 {
		t.Errorf("ndc y=1 should map to row 0, got %v", top)
	}
}
