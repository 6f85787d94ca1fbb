package cull

import (
	"context"
	"fmt"

	"github.com/gekko3d/occlusion/cullrt/rt/depth"
	"github.com/gekko3d/occlusion/cullrt/rt/gpu"
)

// HiZStage culls against a max pyramid of the previous frame's depth.
//
// The first SkipFrames calls pass candidates through while a depth capture
// becomes available. The counter only counts down.
type HiZStage struct {
	SkipFrames int

	env     *Env
	ndc     *depth.Image
	pyramid *depth.Pyramid
	active  int
}

func NewHiZStage(skipFrames int) *HiZStage {
	return &HiZStage{SkipFrames: skipFrames}
}

func (s *HiZStage) Name() string    { return "hiz" }
func (s *HiZStage) Kind() StageKind { return KindOcclusion }

func (s *HiZStage) Init(env *Env) error {
	if err := validateBatch(env); err != nil {
		return err
	}
	if env.Depth == nil {
		return ErrNoDepthSource
	}
	if s.SkipFrames < 0 {
		return fmt.Errorf("%w: hiz skip frames %d", ErrInvalidConfig, s.SkipFrames)
	}
	s.env = env
	return nil
}

// ActiveFrames counts the calls made after warm-up.
func (s *HiZStage) ActiveFrames() int { return s.active }

func (s *HiZStage) Cull(ctx context.Context, f *Frame, candidates []uint32, out *gpu.AppendBuffer) error {
	if s.SkipFrames > 0 {
		s.SkipFrames--
		return passThrough(candidates, out)
	}
	s.active++
	if len(candidates) == 0 {
		return nil
	}

	h, ok := s.env.Depth.History()
	if !ok || h == nil || h.Depth == nil {
		s.env.logger().Debugf("hiz: no depth history for frame %d", f.Index)
		return passThrough(candidates, out)
	}
	if h.Depth.Width != f.Width || h.Depth.Height != f.Height {
		return fmt.Errorf("hiz: %w: history %dx%d, frame %dx%d",
			depth.ErrSizeMismatch, h.Depth.Width, h.Depth.Height, f.Width, f.Height)
	}

	d := s.env.Dispatcher
	if err := historyNDC(d, h, f.Projection, f.Near, f.Far, &s.ndc); err != nil {
		return fmt.Errorf("hiz: depth conversion: %w", err)
	}
	if s.pyramid == nil || s.pyramid.Width != f.Width || s.pyramid.Height != f.Height {
		s.pyramid = depth.NewPyramid(f.Width, f.Height)
	}
	if err := s.pyramid.Build(d, s.env.Accel, s.ndc); err != nil {
		return fmt.Errorf("hiz: pyramid: %w", err)
	}
	return occlusionCull(s.env, f.ViewProj(), s.pyramid, candidates, out)
}

func (s *HiZStage) PredictedDepth() *depth.Image {
	if s.pyramid == nil {
		return nil
	}
	return s.pyramid.Image()
}

func (s *HiZStage) ReferenceDepth() *depth.Image { return s.ndc }

func (s *HiZStage) Release() {
	s.ndc = nil
	s.pyramid = nil
	s.env = nil
}
