package cull

import (
	"context"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gekko3d/occlusion/cullrt/rt/gpu"
)

// Diagnostics are debug-only outputs of the pipeline.
type Diagnostics struct {
	PrintCullingInfo bool
	SaveDepth        bool
	DumpDir          string
	TIFFPreview      bool
}

type Options struct {
	// Enabled=false draws every instance.
	Enabled     bool
	Diagnostics Diagnostics
}

// indirectArgsWriter is implemented by accelerators that keep a device-side
// indirect argument buffer.
type indirectArgsWriter interface {
	SetIndirectArgs(args gpu.IndirectArgs) error
}

// Pipeline runs a visibility stage and an optional occlusion stage over one
// batch per frame and produces the compacted draw list.
type Pipeline struct {
	env      Env
	opts     Options
	stages   []Stage
	disabled []bool

	ping, pong *gpu.AppendBuffer
	all        []uint32
	indices    []uint32 // copy of all handed out when culling is off
	matrices   *gpu.MatrixBuffer
	args       gpu.IndirectArgs
	transforms []mgl32.Mat4
	stats      []StageStats
	tracer     trace.Tracer
}

// NewPipeline checks the stage order and initializes every stage. A stage
// failing Init is logged and passes candidates through for the session.
func NewPipeline(env Env, opts Options, stages ...Stage) (*Pipeline, error) {
	if err := validateOrder(stages); err != nil {
		return nil, err
	}
	if env.Batch == nil {
		return nil, ErrNoMesh
	}
	if env.Dispatcher == nil {
		env.Dispatcher = gpu.NewDispatcher(0)
	}
	if env.Logger == nil {
		env.Logger = nopLogger{}
	}

	n := env.Batch.Len()
	p := &Pipeline{
		env:      env,
		opts:     opts,
		stages:   stages,
		disabled: make([]bool, len(stages)),
		ping:     gpu.NewAppendBuffer("cull.ping", n),
		pong:     gpu.NewAppendBuffer("cull.pong", n),
		all:      make([]uint32, n),
		matrices: gpu.NewMatrixBuffer(env.Batch.Transforms),
		args: gpu.IndirectArgs{
			IndexCount: env.Batch.Mesh.IndexCount,
			FirstIndex: env.Batch.Mesh.FirstIndex,
			BaseVertex: env.Batch.Mesh.BaseVertex,
		},
		stats:  make([]StageStats, 0, len(stages)),
		tracer: otel.Tracer("occlusion"),
	}
	for i := range p.all {
		p.all[i] = uint32(i)
	}

	for i, s := range stages {
		if err := s.Init(&p.env); err != nil {
			p.disabled[i] = true
			env.Logger.Errorf("cull: stage %s disabled for batch %s: %v", s.Name(), env.Batch.ID, err)
		}
	}
	if w, ok := env.Accel.(indirectArgsWriter); ok {
		if err := w.SetIndirectArgs(p.args); err != nil {
			env.Logger.Warnf("cull: %s indirect args: %v", env.Accel.Name(), err)
		}
	}
	return p, nil
}

func validateOrder(stages []Stage) error {
	if len(stages) == 0 || len(stages) > 2 {
		return fmt.Errorf("%w: want 1 or 2 stages, got %d", ErrStageOrder, len(stages))
	}
	if stages[0].Kind() != KindVisibility {
		return fmt.Errorf("%w: first stage %s is not a visibility stage", ErrStageOrder, stages[0].Name())
	}
	if len(stages) == 2 && stages[1].Kind() != KindOcclusion {
		return fmt.Errorf("%w: second stage %s is not an occlusion stage", ErrStageOrder, stages[1].Name())
	}
	return nil
}

func (p *Pipeline) Stages() []Stage { return p.stages }

// Disabled reports whether stage i failed Init.
func (p *Pipeline) Disabled(i int) bool { return p.disabled[i] }

func (p *Pipeline) Batch() *Batch { return p.env.Batch }

// Cull runs the stages in order, feeding each stage the survivors of the
// previous one. A failing stage passes its candidates through, so the
// frame is always drawn.
func (p *Pipeline) Cull(ctx context.Context, f Frame) (*Result, error) {
	if p.matrices == nil {
		return nil, ErrReleased
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	batch := p.env.Batch
	log := p.env.Logger

	ctx, span := p.tracer.Start(ctx, "cull.Pipeline.Cull",
		trace.WithAttributes(
			attribute.String("batch", batch.ID.String()),
			attribute.Int64("frame", int64(f.Index)),
			attribute.Int("instances", batch.Len()),
		))
	defer span.End()

	// Transforms may have been replaced since the last frame.
	p.matrices.Matrices = batch.Transforms
	if len(p.all) != batch.Len() {
		p.resize(batch.Len())
	}

	p.stats = p.stats[:0]
	candidates := p.all
	out := p.ping
	out.Reset()
	if p.opts.Enabled {
		for i, s := range p.stages {
			out = p.ping
			if i%2 == 1 {
				out = p.pong
			}
			p.stats = append(p.stats, p.runStage(ctx, i, s, &f, candidates, out))
			candidates = out.Slice()
		}
	}

	final := candidates
	if !p.opts.Enabled || len(p.stages) == 0 {
		p.indices = append(p.indices[:0], final...)
		final = p.indices
		p.args.InstanceCount = uint32(len(final))
	} else {
		p.args.CopyCount(out)
	}
	p.transforms = p.matrices.Gather(p.transforms, final)

	span.SetAttributes(attribute.Int("visible", len(final)))
	if p.opts.Diagnostics.PrintCullingInfo && log.DebugEnabled() {
		for _, st := range p.stats {
			log.Debugf("cull: frame %d batch %s %s", f.Index, batch.ID, st)
		}
	}
	if p.opts.Diagnostics.SaveDepth {
		if err := p.dumpDepth(&f); err != nil {
			log.Warnf("cull: depth dump for frame %d: %v", f.Index, err)
		}
	}

	return &Result{
		Indices:    final,
		Transforms: p.transforms,
		Args:       p.args,
		Stats:      p.stats,
	}, nil
}

func (p *Pipeline) runStage(ctx context.Context, i int, s Stage, f *Frame, candidates []uint32, out *gpu.AppendBuffer) StageStats {
	st := StageStats{Stage: s.Name(), In: len(candidates)}
	_, span := p.tracer.Start(ctx, "cull.Stage."+s.Name(),
		trace.WithAttributes(attribute.Int("in", len(candidates))))
	defer span.End()
	start := time.Now()

	out.Reset()
	switch {
	case p.disabled[i]:
		st.PassThrough = true
	case ctx.Err() != nil:
		st.PassThrough = true
		span.RecordError(ctx.Err())
		span.SetStatus(codes.Error, "context done")
	default:
		if err := s.Cull(ctx, f, candidates, out); err != nil {
			st.PassThrough = true
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			p.env.Logger.Warnf("cull: stage %s failed on frame %d, passing through: %v", s.Name(), f.Index, err)
		}
	}
	if st.PassThrough {
		// Candidates never exceed the buffer capacity.
		_ = passThrough(candidates, out)
	}

	st.Out = int(out.Count())
	st.Duration = time.Since(start)
	span.SetAttributes(attribute.Int("out", st.Out))
	return st
}

func (p *Pipeline) resize(n int) {
	p.ping = gpu.NewAppendBuffer(p.ping.Label(), n)
	p.pong = gpu.NewAppendBuffer(p.pong.Label(), n)
	p.all = make([]uint32, n)
	for i := range p.all {
		p.all[i] = uint32(i)
	}
}

// Args returns the indirect draw record of the last frame.
func (p *Pipeline) Args() gpu.IndirectArgs { return p.args }

// Release frees the pipeline buffers and releases every stage. Cull returns
// ErrReleased afterwards. The accelerator in Env belongs to the caller and
// is not closed.
func (p *Pipeline) Release() {
	for _, s := range p.stages {
		s.Release()
	}
	p.ping, p.pong = nil, nil
	p.all = nil
	p.indices = nil
	p.transforms = nil
	p.matrices = nil
}
