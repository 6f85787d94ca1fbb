package core

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	PlaneLeft = iota
	PlaneRight
	PlaneBottom
	PlaneTop
	PlaneNear
	PlaneFar
)

// ExtractFrustum extracts the 6 planes of the frustum from the view-projection matrix.
// Returns planes in order: Left, Right, Bottom, Top, Near, Far.
// Plane is Ax + By + Cz + D = 0 with the normal pointing inside.
func ExtractFrustum(vp mgl32.Mat4) [6]mgl32.Vec4 {
	var planes [6]mgl32.Vec4

	row := func(r int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(r, 0), vp.At(r, 1), vp.At(r, 2), vp.At(r, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	planes[PlaneLeft] = r3.Add(r0)
	planes[PlaneRight] = r3.Sub(r0)
	planes[PlaneBottom] = r3.Add(r1)
	planes[PlaneTop] = r3.Sub(r1)
	// OpenGL-style -1..1 clip depth
	planes[PlaneNear] = r3.Add(r2)
	planes[PlaneFar] = r3.Sub(r2)

	for i := range planes {
		p := planes[i]
		length := math32.Sqrt(p[0]*p[0] + p[1]*p[1] + p[2]*p[2])
		if length > 0 {
			planes[i] = p.Mul(1.0 / length)
		}
	}

	return planes
}

// AABBInFrustum checks if an AABB overlaps the frustum defined by 6 planes.
// For each plane the corner furthest along the normal (the positive vertex)
// is tested; if even that corner is behind the plane, the whole box is outside.
// The test is conservative: boxes near frustum corners may pass without
// intersecting the frustum, boxes that do intersect always pass.
func AABBInFrustum(aabb AABB, planes [6]mgl32.Vec4) bool {
	if aabb.IsEmpty() {
		return false
	}
	for i := 0; i < 6; i++ {
		plane := planes[i]

		var p mgl32.Vec3
		for axis := 0; axis < 3; axis++ {
			if plane[axis] > 0 {
				p[axis] = aabb.Max[axis]
			} else {
				p[axis] = aabb.Min[axis]
			}
		}

		dist := plane[0]*p[0] + plane[1]*p[1] + plane[2]*p[2] + plane[3]
		if dist < 0 {
			return false
		}
	}
	return true
}
