package occlusion

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/occlusion/cullrt/rt/core"
	"github.com/gekko3d/occlusion/cullrt/rt/cull"
	"github.com/gekko3d/occlusion/cullrt/rt/depth"
	"github.com/gekko3d/occlusion/cullrt/rt/gpu"
)

func cubeBatch(positions ...mgl32.Vec3) *cull.Batch {
	transforms := make([]mgl32.Mat4, len(positions))
	for i, p := range positions {
		transforms[i] = core.NewPlacement(p).Matrix()
	}
	return cull.NewBatch(cull.MeshInfo{
		Bounds:     core.NewAABB(mgl32.Vec3{-0.5, -0.5, -0.5}, mgl32.Vec3{0.5, 0.5, 0.5}),
		IndexCount: 36,
	}, transforms)
}

func lookDownNegZ(w, h int) cull.Frame {
	return cull.Frame{
		View:       mgl32.LookAtV(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}),
		Projection: mgl32.Perspective(mgl32.DegToRad(90), float32(w)/float32(h), 1, 100),
		Near:       1,
		Far:        100,
		Width:      w,
		Height:     h,
	}
}

type failingAccel struct {
	closed bool
}

func (a *failingAccel) Name() string                         { return "broken" }
func (a *failingAccel) Init() error                          { return errors.New("no adapter") }
func (a *failingAccel) Close()                               { a.closed = true }
func (a *failingAccel) CanAccelerate(gpu.AcceleratedOp) bool { return true }
func (a *failingAccel) FrustumCull(gpu.FrustumRequest, *gpu.AppendBuffer) error {
	panic("used after failed Init")
}
func (a *failingAccel) BuildMaxPyramid([][]float32, int) error {
	panic("used after failed Init")
}
func (a *failingAccel) PyramidCull(gpu.PyramidCullRequest, *gpu.AppendBuffer) error {
	panic("used after failed Init")
}

func TestPipelineBuilderDefaults(t *testing.T) {
	p, err := NewPipelineBuilder().
		UseDepthSource(NewDepthRecorder()).
		Build(cubeBatch(mgl32.Vec3{0, 0, -5}, mgl32.Vec3{0, 0, 5}))
	require.NoError(t, err)
	defer p.Release()

	require.Len(t, p.Stages(), 2)
	assert.Equal(t, "frustum", p.Stages()[0].Name())
	assert.Equal(t, "hiz", p.Stages()[1].Name())

	res, err := p.Cull(context.Background(), lookDownNegZ(32, 32))
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, res.Indices)
	assert.Equal(t, uint32(1), res.Args.InstanceCount)
	assert.Equal(t, uint32(36), res.Args.IndexCount)
}

func TestPipelineBuilderRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Method = "nope"
	_, err := NewPipelineBuilder().UseConfig(cfg).Build(cubeBatch())
	assert.ErrorIs(t, err, cull.ErrInvalidConfig)
}

func TestPipelineBuilderDropsFailingAccelerator(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("test", false, log.New(&buf, "", 0))

	cfg := DefaultConfig()
	cfg.HiZ.SkipFrames = 0
	p, err := NewPipelineBuilder().
		UseConfig(cfg).
		UseLogger(logger).
		UseDepthSource(NewDepthRecorder()).
		UseAccelerator(&failingAccel{}).
		Build(cubeBatch(mgl32.Vec3{0, 0, -5}))
	require.NoError(t, err)

	_, err = p.Cull(context.Background(), lookDownNegZ(16, 16))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "[test] WARN: accelerator broken unavailable")
}

func TestPipelineBuilderUseStages(t *testing.T) {
	p, err := NewPipelineBuilder().
		UseStages(cull.NewBVHStage(1)).
		Build(cubeBatch(mgl32.Vec3{0, 0, -5}, mgl32.Vec3{3, 0, -5}, mgl32.Vec3{0, 0, 5}))
	require.NoError(t, err)

	res, err := p.Cull(context.Background(), lookDownNegZ(32, 32))
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{0, 1}, res.Indices)
}

// A recorder-fed IDW pipeline culls a box hidden behind a wall drawn in the
// previous frame.
func TestRecorderFeedsOcclusion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Method = MethodIDW
	cfg.IDW.SkipFrames = 0

	recorder := NewDepthRecorder()
	p, err := NewPipelineBuilder().
		UseConfig(cfg).
		UseDepthSource(recorder).
		Build(cubeBatch(mgl32.Vec3{0, 0, -20}))
	require.NoError(t, err)

	f := lookDownNegZ(32, 32)
	wall := depth.NewImageFilled(32, 32, core.LinearEyeDepthToNDC01(f.Projection, 5))
	recorder.Capture(wall, depth.EncodingNDC, f)
	wall.Fill(1)

	res, err := p.Cull(context.Background(), f)
	require.NoError(t, err)
	assert.Empty(t, res.Indices)

	recorder.Reset()
	res, err = p.Cull(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, res.Indices)
}
