package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Instance is a read-only per-frame snapshot of one mesh instance.
type Instance struct {
	Index     int
	Transform mgl32.Mat4
	Bounds    AABB // world space
}

// Instances snapshots a batch of transforms sharing one local mesh box.
func Instances(local AABB, transforms []mgl32.Mat4) []Instance {
	out := make([]Instance, len(transforms))
	for i, m := range transforms {
		out[i] = Instance{
			Index:     i,
			Transform: m,
			Bounds:    TransformAABB(m, local),
		}
	}
	return out
}

// Placement composes an instance matrix as M = T * R * S.
type Placement struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

func NewPlacement(position mgl32.Vec3) Placement {
	return Placement{
		Position: position,
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

func (p Placement) Matrix() mgl32.Mat4 {
	translate := mgl32.Translate3D(p.Position.X(), p.Position.Y(), p.Position.Z())
	rotate := p.Rotation.Mat4()
	scale := mgl32.Scale3D(p.Scale.X(), p.Scale.Y(), p.Scale.Z())
	return translate.Mul4(rotate).Mul4(scale)
}

// InverseMatrix inverts the components instead of the composed matrix:
// inv(M) = inv(S) * inv(R) * inv(T).
func (p Placement) InverseMatrix() mgl32.Mat4 {
	invScale := mgl32.Scale3D(1.0/p.Scale.X(), 1.0/p.Scale.Y(), 1.0/p.Scale.Z())
	invRotate := p.Rotation.Conjugate().Mat4()
	invTranslate := mgl32.Translate3D(-p.Position.X(), -p.Position.Y(), -p.Position.Z())
	return invScale.Mul4(invRotate).Mul4(invTranslate)
}
