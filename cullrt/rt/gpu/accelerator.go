package gpu

import (
	"errors"

	"github.com/gekko3d/occlusion/cullrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrFallbackToCPU indicates the accelerator cannot handle this request.
// The caller should transparently run the CPU kernel instead.
var ErrFallbackToCPU = errors.New("gpu: falling back to CPU kernels")

// AcceleratedOp describes kernel types for capability checking.
type AcceleratedOp uint32

const (
	// AccelFrustum is the per-instance frustum visibility kernel.
	AccelFrustum AcceleratedOp = 1 << iota

	// AccelMaxPyramid is the 2x2 max-reduction mip chain.
	AccelMaxPyramid

	// AccelPyramidCull is the hierarchical depth occlusion kernel.
	AccelPyramidCull
)

// FrustumRequest is the input of the frustum visibility kernel.
type FrustumRequest struct {
	Planes     [6]mgl32.Vec4
	Local      core.AABB
	Transforms []mgl32.Mat4
	Candidates []uint32
}

// PyramidCullRequest is the input of the occlusion kernel. Levels holds a
// square max pyramid, level k being (PyramidSize>>k)^2 texels, row-major.
type PyramidCullRequest struct {
	ViewProj      mgl32.Mat4
	Local         core.AABB
	Transforms    []mgl32.Mat4
	Candidates    []uint32
	Width, Height int
	PyramidSize   int
	Levels        [][]float32
}

// Accelerator is an optional hardware path for the culling kernels.
//
// Every method may return ErrFallbackToCPU or any other error; the caller
// then runs the CPU kernel for that frame. Survivors are appended to out,
// which the caller has already reset.
type Accelerator interface {
	// Name returns the accelerator name (e.g., "wgpu").
	Name() string

	// Init acquires device resources. Called once before first use.
	Init() error

	// Close releases device resources.
	Close()

	// CanAccelerate reports whether the given kernel is supported.
	CanAccelerate(op AcceleratedOp) bool

	FrustumCull(req FrustumRequest, out *AppendBuffer) error

	// BuildMaxPyramid fills levels[1:] from levels[0]; levels[k] has
	// (size>>k)^2 texels.
	BuildMaxPyramid(levels [][]float32, size int) error

	PyramidCull(req PyramidCullRequest, out *AppendBuffer) error
}
