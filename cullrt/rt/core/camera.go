package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// CameraState is a Z-up fly camera with a perspective lens.
type CameraState struct {
	Position mgl32.Vec3
	Yaw      float32
	Pitch    float32
	FovY     float32 // radians
	Aspect   float32
	Near     float32
	Far      float32
}

func NewCameraState() *CameraState {
	return &CameraState{
		Position: mgl32.Vec3{0, 2, 20},
		FovY:     mgl32.DegToRad(60),
		Aspect:   16.0 / 9.0,
		Near:     0.3,
		Far:      1000,
	}
}

func (c *CameraState) GetForward() mgl32.Vec3 {
	// Z-up: Forward in XY plane, Z for pitch
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Pitch)) * math.Sin(float64(c.Yaw))),
		float32(-math.Cos(float64(c.Pitch)) * math.Cos(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
	}
}

func (c *CameraState) GetViewMatrix() mgl32.Mat4 {
	eye := c.Position
	target := eye.Add(c.GetForward())
	up := mgl32.Vec3{0, 0, 1} // Z-up
	return mgl32.LookAtV(eye, target, up)
}

// GetProjectionMatrix returns an OpenGL-convention projection (clip z in
// [-w, w]), which is the convention every depth conversion in this module
// assumes.
func (c *CameraState) GetProjectionMatrix() mgl32.Mat4 {
	return mgl32.Perspective(c.FovY, c.Aspect, c.Near, c.Far)
}

// LookAt points the camera at target by setting yaw and pitch.
func (c *CameraState) LookAt(target mgl32.Vec3) {
	d := target.Sub(c.Position)
	if d.Len() == 0 {
		return
	}
	d = d.Normalize()
	c.Pitch = float32(math.Asin(float64(d.Z())))
	c.Yaw = float32(math.Atan2(float64(d.X()), float64(-d.Y())))
}

// Frustum extracts the frustum planes of the camera's current pose.
func (c *CameraState) Frustum() [6]mgl32.Vec4 {
	return ExtractFrustum(c.GetProjectionMatrix().Mul4(c.GetViewMatrix()))
}
