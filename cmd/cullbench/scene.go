package main

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/occlusion/cullrt/rt/core"
	"github.com/gekko3d/occlusion/cullrt/rt/cull"
	"github.com/gekko3d/occlusion/cullrt/rt/depth"
)

// Scene is an equally spaced grid of unit cubes.
type Scene struct {
	Mesh       cull.MeshInfo
	Transforms []mgl32.Mat4
	Center     mgl32.Vec3
	Radius     float32
}

// GridScene lays n cubes out on a side^3 lattice, x fastest, centred on the
// origin.
func GridScene(n int, spacing float32) *Scene {
	side := int(math.Ceil(math.Cbrt(float64(n))))
	if side < 1 {
		side = 1
	}
	half := float32(side-1) * spacing / 2

	sc := &Scene{
		Mesh: cull.MeshInfo{
			Bounds:     core.NewAABB(mgl32.Vec3{-0.5, -0.5, -0.5}, mgl32.Vec3{0.5, 0.5, 0.5}),
			IndexCount: 36,
		},
		Transforms: make([]mgl32.Mat4, n),
		Radius:     half*float32(math.Sqrt(3)) + 1,
	}
	for i := range sc.Transforms {
		x := i % side
		y := (i / side) % side
		z := i / (side * side)
		pos := mgl32.Vec3{
			float32(x)*spacing - half,
			float32(y)*spacing - half,
			float32(z)*spacing - half,
		}
		sc.Transforms[i] = core.NewPlacement(pos).Matrix()
	}
	return sc
}

// OrbitCamera places the camera on a circle around the scene for frame i of
// n, looking at the centre from slightly above.
func (sc *Scene) OrbitCamera(i, n int, aspect float32) *core.CameraState {
	angle := 2 * math.Pi * float64(i) / float64(n)
	dist := sc.Radius * 1.6
	cam := core.NewCameraState()
	cam.Aspect = aspect
	cam.Near = 0.5
	cam.Far = dist * 4
	cam.Position = sc.Center.Add(mgl32.Vec3{
		dist * float32(math.Cos(angle)),
		dist * float32(math.Sin(angle)),
		dist * 0.35,
	})
	cam.LookAt(sc.Center)
	return cam
}

func cameraFrame(cam *core.CameraState, index uint64, w, h int) cull.Frame {
	return cull.Frame{
		Index:      index,
		View:       cam.GetViewMatrix(),
		Projection: cam.GetProjectionMatrix(),
		Near:       cam.Near,
		Far:        cam.Far,
		Width:      w,
		Height:     h,
	}
}

// Rasterize splats every instance's projected bounding rectangle at its
// nearest depth, a stand-in for the renderer's depth buffer.
func Rasterize(img *depth.Image, viewProj mgl32.Mat4, batch *cull.Batch) {
	img.Fill(1)
	for i := 0; i < batch.Len(); i++ {
		r, ok := core.ProjectAABB(viewProj, batch.WorldBounds(uint32(i)), img.Width, img.Height)
		if !ok {
			continue
		}
		x0, y0, x1, y1, ok := r.PixelBounds(img.Width, img.Height)
		if !ok || r.MinDepth < 0 || r.MinDepth > 1 {
			continue
		}
		img.FillRectMin(x0, y0, x1, y1, r.MinDepth)
	}
}
