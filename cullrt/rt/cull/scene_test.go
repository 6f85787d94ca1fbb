package cull

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/occlusion/cullrt/rt/core"
	"github.com/gekko3d/occlusion/cullrt/rt/depth"
	"github.com/gekko3d/occlusion/cullrt/rt/gpu"
)

const screen = 64

// Instance indices of the test scene.
const (
	instA = 0 // in front of the camera, under the occluder
	instB = 1 // in front of the camera, beside the occluder
	instC = 2 // behind the camera
)

func testFrame(index uint64) Frame {
	return Frame{
		Index:      index,
		View:       mgl32.LookAtV(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}),
		Projection: mgl32.Perspective(mgl32.DegToRad(90), 1, 1, 100),
		Near:       1,
		Far:        100,
		Width:      screen,
		Height:     screen,
	}
}

func placed(pos mgl32.Vec3, scale float32) mgl32.Mat4 {
	p := core.NewPlacement(pos)
	p.Scale = mgl32.Vec3{scale, scale, scale}
	return p.Matrix()
}

// testBatch builds three unit boxes. A's near face sits at eye distance 2,
// which is NDC depth ~0.505.
func testBatch() *Batch {
	return NewBatch(MeshInfo{
		Bounds:     core.NewAABB(mgl32.Vec3{-0.5, -0.5, -0.5}, mgl32.Vec3{0.5, 0.5, 0.5}),
		IndexCount: 36,
		FirstIndex: 6,
		BaseVertex: 2,
	}, []mgl32.Mat4{
		placed(mgl32.Vec3{0, 0, -2.5}, 1),
		placed(mgl32.Vec3{-6, 0, -10}, 1),
		placed(mgl32.Vec3{0, 0, 10}, 1),
	})
}

// moveANear puts A's near face at eye distance 1.05, NDC depth ~0.048.
func moveANear(b *Batch) {
	b.Transforms[instA] = placed(mgl32.Vec3{0, 0, -1.3}, 0.5)
}

// occluderHistory is a static-camera capture with NDC depth 0.1 over the
// centre of the screen, covering A, and nothing elsewhere.
func occluderHistory() *depth.History {
	f := testFrame(0)
	img := depth.NewImageFilled(screen, screen, 1)
	img.FillRectMin(16, 16, 47, 47, 0.1)
	return &depth.History{
		Depth:      img,
		Encoding:   depth.EncodingNDC,
		View:       f.View,
		Projection: f.Projection,
		Near:       f.Near,
		Far:        f.Far,
	}
}

type staticDepth struct {
	h *depth.History
}

func (s *staticDepth) History() (*depth.History, bool) {
	return s.h, s.h != nil
}

type recordLogger struct {
	mu     sync.Mutex
	debug  bool
	errors []string
	warns  []string
	debugs []string
}

func (l *recordLogger) DebugEnabled() bool { return l.debug }
func (l *recordLogger) Debugf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugs = append(l.debugs, fmt.Sprintf(format, args...))
}
func (l *recordLogger) Infof(format string, args ...any) {}
func (l *recordLogger) Warnf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
}
func (l *recordLogger) Errorf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

// cpuOnly declines every request.
type cpuOnly struct {
	calls int
	args  *gpu.IndirectArgs
}

func (a *cpuOnly) Name() string                            { return "cpu-only" }
func (a *cpuOnly) Init() error                             { return nil }
func (a *cpuOnly) Close()                                  {}
func (a *cpuOnly) CanAccelerate(op gpu.AcceleratedOp) bool { return true }
func (a *cpuOnly) FrustumCull(gpu.FrustumRequest, *gpu.AppendBuffer) error {
	a.calls++
	return gpu.ErrFallbackToCPU
}
func (a *cpuOnly) BuildMaxPyramid([][]float32, int) error {
	a.calls++
	return gpu.ErrFallbackToCPU
}
func (a *cpuOnly) PyramidCull(gpu.PyramidCullRequest, *gpu.AppendBuffer) error {
	a.calls++
	return gpu.ErrFallbackToCPU
}
func (a *cpuOnly) SetIndirectArgs(args gpu.IndirectArgs) error {
	a.args = &args
	return nil
}

func newEnv(b *Batch, src DepthSource) Env {
	return Env{
		Batch:      b,
		Depth:      src,
		Dispatcher: gpu.NewDispatcher(2),
		Logger:     &recordLogger{},
	}
}
