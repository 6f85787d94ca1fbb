package core

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Corners closer to the eye plane than this (in clip w) are treated as
// crossing it; their projection is meaningless.
const minClipW = 1e-5

// ScreenRect is the screen-space footprint of a projected box in pixels
// (origin at the top-left corner, y down) together with the NDC depth of
// its nearest corner. Depth is in [0,1], smaller is nearer.
type ScreenRect struct {
	MinX, MinY float32
	MaxX, MaxY float32
	MinDepth   float32
}

func (r ScreenRect) Width() float32  { return r.MaxX - r.MinX }
func (r ScreenRect) Height() float32 { return r.MaxY - r.MinY }

// PixelBounds clamps the rect to a width×height screen and returns inclusive
// pixel indices. ok is false when the rect does not touch the screen.
func (r ScreenRect) PixelBounds(width, height int) (x0, y0, x1, y1 int, ok bool) {
	if r.MaxX < 0 || r.MaxY < 0 || r.MinX >= float32(width) || r.MinY >= float32(height) {
		return 0, 0, 0, 0, false
	}
	x0 = clampInt(int(math32.Floor(r.MinX)), 0, width-1)
	y0 = clampInt(int(math32.Floor(r.MinY)), 0, height-1)
	x1 = clampInt(int(math32.Floor(r.MaxX)), 0, width-1)
	y1 = clampInt(int(math32.Floor(r.MaxY)), 0, height-1)
	return x0, y0, x1, y1, true
}

// ProjectAABB projects the 8 corners of b with vp onto a width×height screen.
// ok is false when any corner lies on or behind the eye plane; such boxes
// straddle the camera and must be treated as visible.
func ProjectAABB(vp mgl32.Mat4, b AABB, width, height int) (ScreenRect, bool) {
	if b.IsEmpty() {
		return ScreenRect{}, false
	}
	inf := math32.Inf(1)
	r := ScreenRect{MinX: inf, MinY: inf, MaxX: -inf, MaxY: -inf, MinDepth: inf}
	for _, c := range b.Corners() {
		clip := vp.Mul4x1(c.Vec4(1.0))
		if clip.W() <= minClipW {
			return ScreenRect{}, false
		}
		invW := 1.0 / clip.W()
		sx, sy := NDCToScreen(clip.X()*invW, clip.Y()*invW, width, height)
		r.MinX = min(r.MinX, sx)
		r.MaxX = max(r.MaxX, sx)
		r.MinY = min(r.MinY, sy)
		r.MaxY = max(r.MaxY, sy)
		r.MinDepth = min(r.MinDepth, ClipDepthToNDC01(clip.Z()*invW))
	}
	return r, true
}

// NDCToScreen maps NDC x,y in [-1,1] to continuous pixel coordinates.
func NDCToScreen(ndcX, ndcY float32, width, height int) (float32, float32) {
	return (ndcX*0.5 + 0.5) * float32(width), (0.5 - ndcY*0.5) * float32(height)
}

// ScreenToNDC is the inverse of NDCToScreen.
func ScreenToNDC(x, y float32, width, height int) (float32, float32) {
	return x/float32(width)*2 - 1, 1 - y/float32(height)*2
}

// ClipDepthToNDC01 maps OpenGL NDC depth [-1,1] to [0,1].
func ClipDepthToNDC01(z float32) float32 {
	return z*0.5 + 0.5
}

// LinearEyeDepthToNDC01 converts a positive view-space distance to NDC
// depth in [0,1] under an OpenGL-convention projection.
func LinearEyeDepthToNDC01(proj mgl32.Mat4, eye float32) float32 {
	if eye <= 0 {
		return 0
	}
	// clip.z = P22 * (-eye) + P23, clip.w = eye
	ndc := (-proj.At(2, 2)*eye + proj.At(2, 3)) / eye
	return ClipDepthToNDC01(ndc)
}

// ReversedZToLinearEye linearizes a reversed-Z device depth sample (1 at
// the near plane, 0 at the far plane) into a view-space distance.
func ReversedZToLinearEye(d, near, far float32) float32 {
	return far * near / (near + d*(far-near))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
