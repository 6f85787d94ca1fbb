package occlusion

import (
	"github.com/gekko3d/occlusion/cullrt/rt/cull"
	"github.com/gekko3d/occlusion/cullrt/rt/gpu"
)

// PipelineBuilder assembles a cull.Pipeline from a Config.
type PipelineBuilder struct {
	cfg    Config
	logger Logger
	source cull.DepthSource
	accel  gpu.Accelerator
	stages []cull.Stage
}

func NewPipelineBuilder() *PipelineBuilder {
	return &PipelineBuilder{cfg: DefaultConfig()}
}

func (b *PipelineBuilder) UseConfig(cfg Config) *PipelineBuilder {
	b.cfg = cfg

	return b
}

func (b *PipelineBuilder) UseLogger(l Logger) *PipelineBuilder {
	b.logger = l

	return b
}

func (b *PipelineBuilder) UseDepthSource(src cull.DepthSource) *PipelineBuilder {
	b.source = src

	return b
}

// UseAccelerator sets an accelerator. Build initializes it; a failing
// accelerator is logged and the pipeline runs on the CPU. The caller owns
// the accelerator and closes it after releasing the pipeline.
func (b *PipelineBuilder) UseAccelerator(a gpu.Accelerator) *PipelineBuilder {
	b.accel = a

	return b
}

// UseStages overrides the stages the configured method would create.
func (b *PipelineBuilder) UseStages(stages ...cull.Stage) *PipelineBuilder {
	b.stages = stages

	return b
}

func (b *PipelineBuilder) Config() Config { return b.cfg }

func (b *PipelineBuilder) Build(batch *cull.Batch) (*cull.Pipeline, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}
	logger := b.logger
	if logger == nil {
		logger = NewNopLogger()
	}
	if b.cfg.Diagnostics.PrintCullingInfo {
		logger.SetDebug(true)
	}

	accel := b.accel
	if accel != nil {
		if err := accel.Init(); err != nil {
			logger.Warnf("accelerator %s unavailable, using CPU kernels: %v", accel.Name(), err)
			accel = nil
		}
	}

	stages := b.stages
	if stages == nil {
		stages = b.cfg.stages()
	}

	env := cull.Env{
		Batch:      batch,
		Depth:      b.source,
		Dispatcher: gpu.NewDispatcher(b.cfg.Workers),
		Accel:      accel,
		Logger:     logger,
	}
	return cull.NewPipeline(env, b.cfg.options(), stages...)
}
