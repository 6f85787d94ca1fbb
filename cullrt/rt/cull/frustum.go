package cull

import (
	"context"
	"errors"

	"github.com/gekko3d/occlusion/cullrt/rt/core"
	"github.com/gekko3d/occlusion/cullrt/rt/gpu"
)

// FrustumStage keeps instances whose world AABB intersects the view
// frustum. It has no history and runs every frame.
type FrustumStage struct {
	env *Env
}

func NewFrustumStage() *FrustumStage {
	return &FrustumStage{}
}

func (s *FrustumStage) Name() string    { return "frustum" }
func (s *FrustumStage) Kind() StageKind { return KindVisibility }

func (s *FrustumStage) Init(env *Env) error {
	if err := validateBatch(env); err != nil {
		return err
	}
	s.env = env
	return nil
}

func (s *FrustumStage) Cull(ctx context.Context, f *Frame, candidates []uint32, out *gpu.AppendBuffer) error {
	if len(candidates) == 0 {
		return nil
	}
	planes := core.ExtractFrustum(f.ViewProj())
	batch := s.env.Batch

	if a := s.env.Accel; a != nil && a.CanAccelerate(gpu.AccelFrustum) {
		err := a.FrustumCull(gpu.FrustumRequest{
			Planes:     planes,
			Local:      batch.Mesh.Bounds,
			Transforms: batch.Transforms,
			Candidates: candidates,
		}, out)
		if err == nil {
			return nil
		}
		if !errors.Is(err, gpu.ErrFallbackToCPU) {
			s.env.logger().Debugf("%s: frustum cull on CPU: %v", a.Name(), err)
		}
		out.Reset()
	}

	return filter(s.env.Dispatcher, candidates, out, func(idx uint32) bool {
		return core.AABBInFrustum(batch.WorldBounds(idx), planes)
	})
}

func (s *FrustumStage) Release() {
	s.env = nil
}
