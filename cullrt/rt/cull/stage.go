package cull

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/occlusion/cullrt/rt/depth"
	"github.com/gekko3d/occlusion/cullrt/rt/gpu"
)

// StageKind fixes where a stage may sit in a pipeline.
type StageKind int

const (
	// KindVisibility stages run first and see every instance.
	KindVisibility StageKind = iota
	// KindOcclusion stages consume the visibility survivors.
	KindOcclusion
)

// Stage is one culling pass. Cull appends the surviving subset of
// candidates to out, which the caller has reset.
type Stage interface {
	Name() string
	Kind() StageKind
	Init(env *Env) error
	Cull(ctx context.Context, f *Frame, candidates []uint32, out *gpu.AppendBuffer) error
	Release()
}

// DepthProducer is implemented by stages that build a depth surface, for
// the diagnostic dumps.
type DepthProducer interface {
	// PredictedDepth is the surface the stage tested against this frame.
	PredictedDepth() *depth.Image
	// ReferenceDepth is the previous frame's captured depth in NDC.
	ReferenceDepth() *depth.Image
}

func passThrough(candidates []uint32, out *gpu.AppendBuffer) error {
	out.Reset()
	return out.AppendAll(candidates)
}

// filter runs keep for every candidate on the dispatcher and appends the
// kept ones.
func filter(d *gpu.Dispatcher, candidates []uint32, out *gpu.AppendBuffer, keep func(idx uint32) bool) error {
	var overflow atomic.Bool
	err := d.Dispatch1D(len(candidates), func(i int) {
		idx := candidates[i]
		if keep(idx) && out.Append(idx) != nil {
			overflow.Store(true)
		}
	})
	if err != nil {
		return err
	}
	if overflow.Load() {
		return gpu.ErrAppendOverflow
	}
	return nil
}

// occlusionCull tests candidates against a max pyramid, on the accelerator
// when it takes the request and on the dispatcher otherwise.
func occlusionCull(env *Env, viewProj mgl32.Mat4, pyr *depth.Pyramid, candidates []uint32, out *gpu.AppendBuffer) error {
	batch := env.Batch
	if a := env.Accel; a != nil && a.CanAccelerate(gpu.AccelPyramidCull) {
		err := a.PyramidCull(gpu.PyramidCullRequest{
			ViewProj:    viewProj,
			Local:       batch.Mesh.Bounds,
			Transforms:  batch.Transforms,
			Candidates:  candidates,
			Width:       pyr.Width,
			Height:      pyr.Height,
			PyramidSize: pyr.Size,
			Levels:      pyr.Levels,
		}, out)
		if err == nil {
			return nil
		}
		if !errors.Is(err, gpu.ErrFallbackToCPU) {
			env.logger().Debugf("%s: pyramid cull on CPU: %v", a.Name(), err)
		}
		out.Reset()
	}
	return filter(env.Dispatcher, candidates, out, func(idx uint32) bool {
		return !pyr.OccludedBox(viewProj, batch.WorldBounds(idx))
	})
}

func validateBatch(env *Env) error {
	if env.Batch == nil || env.Batch.Mesh.Bounds.IsEmpty() {
		return ErrNoMesh
	}
	if env.Batch.Transforms == nil {
		return ErrNoTransforms
	}
	if env.Dispatcher == nil {
		env.Dispatcher = gpu.NewDispatcher(0)
	}
	return nil
}

// historyNDC converts a history to NDC into *dst, reallocating on size
// change. Missing projection or clip planes are taken from the fallbacks.
func historyNDC(d *gpu.Dispatcher, h *depth.History, fallback mgl32.Mat4, near, far float32, dst **depth.Image) error {
	if err := h.Depth.Validate(); err != nil {
		return err
	}
	noProj := h.Projection == (mgl32.Mat4{})
	noClip := h.Near == 0 && h.Far == 0
	if noProj || noClip {
		hc := *h
		if noProj {
			hc.Projection = fallback
		}
		if noClip {
			hc.Near, hc.Far = near, far
		}
		h = &hc
	}
	if *dst == nil || (*dst).Width != h.Depth.Width || (*dst).Height != h.Depth.Height {
		*dst = depth.NewImage(h.Depth.Width, h.Depth.Height)
	}
	return h.NDC(d, *dst)
}
