package cull

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/gekko3d/occlusion/cullrt/rt/core"
	"github.com/gekko3d/occlusion/cullrt/rt/depth"
	"github.com/gekko3d/occlusion/cullrt/rt/gpu"
)

// Frame is the camera state of the frame being culled.
type Frame struct {
	Index      uint64
	View       mgl32.Mat4
	Projection mgl32.Mat4
	Near       float32
	Far        float32
	Width      int
	Height     int
}

func (f *Frame) ViewProj() mgl32.Mat4 {
	return f.Projection.Mul4(f.View)
}

func (f *Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: screen %dx%d", ErrInvalidFrame, f.Width, f.Height)
	}
	if f.Projection == (mgl32.Mat4{}) {
		return fmt.Errorf("%w: zero projection", ErrInvalidFrame)
	}
	return nil
}

// DepthSource hands out the previous frame's depth. ok is false until a
// capture exists.
type DepthSource interface {
	History() (h *depth.History, ok bool)
}

// DepthSourceFunc adapts a function to DepthSource.
type DepthSourceFunc func() (*depth.History, bool)

func (fn DepthSourceFunc) History() (*depth.History, bool) { return fn() }

// MeshInfo is the shared mesh every instance of a batch draws.
type MeshInfo struct {
	Bounds     core.AABB // local space
	IndexCount uint32
	FirstIndex uint32
	BaseVertex int32
}

// Batch is one indirect draw: a mesh and its instance transforms. The
// transform slice is owned by the caller and may be updated between frames.
type Batch struct {
	ID         uuid.UUID
	Mesh       MeshInfo
	Transforms []mgl32.Mat4
}

func NewBatch(mesh MeshInfo, transforms []mgl32.Mat4) *Batch {
	return &Batch{ID: uuid.New(), Mesh: mesh, Transforms: transforms}
}

func (b *Batch) Len() int { return len(b.Transforms) }

// WorldBounds returns instance i's world AABB.
func (b *Batch) WorldBounds(i uint32) core.AABB {
	return core.TransformAABB(b.Transforms[i], b.Mesh.Bounds)
}

// Env is what a stage receives at Init.
type Env struct {
	Batch      *Batch
	Depth      DepthSource
	Dispatcher *gpu.Dispatcher
	Accel      gpu.Accelerator // optional
	Logger     Logger
}

func (e *Env) logger() Logger {
	if e.Logger == nil {
		return nopLogger{}
	}
	return e.Logger
}

// Result is the output of one culled frame. Indices and Transforms alias
// pipeline buffers and stay valid until the next Cull. Editing them never
// affects later frames.
type Result struct {
	Indices    []uint32
	Transforms []mgl32.Mat4
	Args       gpu.IndirectArgs
	Stats      []StageStats
}
