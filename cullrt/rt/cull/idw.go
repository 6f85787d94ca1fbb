package cull

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/occlusion/cullrt/rt/depth"
	"github.com/gekko3d/occlusion/cullrt/rt/gpu"
)

type IDWConfig struct {
	SkipFrames int
	depth.WarpParams
}

func DefaultIDWConfig() IDWConfig {
	return IDWConfig{SkipFrames: 1, WarpParams: depth.DefaultWarpParams()}
}

// IDWStage warps the previous depth into the current view and culls
// against a max pyramid of the result (the Y-map).
//
// prevView and prevProjection follow the camera of the last active frame.
// Warm-up calls leave them untouched.
type IDWStage struct {
	Config IDWConfig

	env            *Env
	prevView       mgl32.Mat4
	prevProjection mgl32.Mat4
	hasPrev        bool
	updates        int

	ndc    *depth.Image
	warper *depth.Warper
	ymap   *depth.Pyramid
}

func NewIDWStage(cfg IDWConfig) *IDWStage {
	return &IDWStage{Config: cfg}
}

func (s *IDWStage) Name() string    { return "idw" }
func (s *IDWStage) Kind() StageKind { return KindOcclusion }

func (s *IDWStage) Init(env *Env) error {
	if err := validateBatch(env); err != nil {
		return err
	}
	if env.Depth == nil {
		return ErrNoDepthSource
	}
	if s.Config.SkipFrames < 0 {
		return fmt.Errorf("%w: idw skip frames %d", ErrInvalidConfig, s.Config.SkipFrames)
	}
	if err := s.Config.WarpParams.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	s.env = env
	s.warper = depth.NewWarper(s.Config.WarpParams)
	return nil
}

// PrevMatrices returns the camera the next motion pass warps from when the
// history has no pose of its own.
func (s *IDWStage) PrevMatrices() (view, projection mgl32.Mat4) {
	return s.prevView, s.prevProjection
}

// ActiveFrames counts the updates of the previous camera, one per active
// frame.
func (s *IDWStage) ActiveFrames() int { return s.updates }

func (s *IDWStage) Cull(ctx context.Context, f *Frame, candidates []uint32, out *gpu.AppendBuffer) error {
	if s.Config.SkipFrames > 0 {
		s.Config.SkipFrames--
		return passThrough(candidates, out)
	}
	defer s.advance(f)

	if len(candidates) == 0 {
		return nil
	}
	h, ok := s.env.Depth.History()
	if !ok || h == nil || h.Depth == nil {
		s.env.logger().Debugf("idw: no depth history for frame %d", f.Index)
		return passThrough(candidates, out)
	}

	prevView, prevProj := f.View, f.Projection
	switch {
	case h.HasPose():
		prevView, prevProj = h.View, h.Projection
	case s.hasPrev:
		prevView, prevProj = s.prevView, s.prevProjection
	}

	d := s.env.Dispatcher
	if err := historyNDC(d, h, prevProj, f.Near, f.Far, &s.ndc); err != nil {
		return fmt.Errorf("idw: depth conversion: %w", err)
	}
	warped, err := s.warper.Warp(d, s.ndc, prevProj.Mul4(prevView), f.ViewProj(), f.Width, f.Height)
	if err != nil {
		return fmt.Errorf("idw: %w", err)
	}

	if s.ymap == nil || s.ymap.Width != f.Width || s.ymap.Height != f.Height {
		s.ymap = depth.NewPyramid(f.Width, f.Height)
	}
	if err := s.ymap.Build(d, s.env.Accel, warped); err != nil {
		return fmt.Errorf("idw: y-map: %w", err)
	}
	return occlusionCull(s.env, f.ViewProj(), s.ymap, candidates, out)
}

func (s *IDWStage) advance(f *Frame) {
	s.prevView, s.prevProjection = f.View, f.Projection
	s.hasPrev = true
	s.updates++
}

func (s *IDWStage) PredictedDepth() *depth.Image {
	if s.ymap == nil {
		return nil
	}
	return s.ymap.Image()
}

func (s *IDWStage) ReferenceDepth() *depth.Image { return s.ndc }

// Warper exposes the intermediate buffers of the last warp.
func (s *IDWStage) Warper() *depth.Warper { return s.warper }

func (s *IDWStage) Release() {
	s.ndc = nil
	s.warper = nil
	s.ymap = nil
	s.env = nil
}
