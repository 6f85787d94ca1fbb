package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli"

	"github.com/gekko3d/occlusion"
	"github.com/gekko3d/occlusion/cullrt/rt/cull"
	"github.com/gekko3d/occlusion/cullrt/rt/depth"
	"github.com/gekko3d/occlusion/cullrt/rt/gpu"
)

const gridSpacing = 2.5

// Run culls an orbiting camera over a synthetic grid.
func Run(ctx *cli.Context) error {
	setupLogging(ctx)

	cfg := occlusion.DefaultConfig()
	if path := ctx.String("config"); path != "" {
		var err error
		if cfg, err = occlusion.LoadConfig(path); err != nil {
			return err
		}
	}
	if m := ctx.String("method"); m != "" {
		method, err := occlusion.ParseMethod(m)
		if err != nil {
			return err
		}
		cfg.Method = method
	}

	n, frames := ctx.Int("instances"), ctx.Int("frames")
	w, h := ctx.Int("width"), ctx.Int("height")
	if n < 0 || frames <= 0 || w <= 0 || h <= 0 {
		return errors.New("instances must be >= 0; frames, width and height must be positive")
	}

	sc := GridScene(n, gridSpacing)
	batch := cull.NewBatch(sc.Mesh, sc.Transforms)
	recorder := occlusion.NewDepthRecorder()

	builder := occlusion.NewPipelineBuilder().
		UseConfig(cfg).
		UseLogger(logger.Named("pipeline")).
		UseDepthSource(recorder)
	if ctx.Bool("gpu") {
		accel := gpu.NewWGPUAccelerator()
		defer accel.Close()
		builder.UseAccelerator(accel)
	}

	pipeline, err := builder.Build(batch)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer pipeline.Release()

	logger.Infof("culling %d instances over %d frames at %dx%d with method %s (batch %s)",
		n, frames, w, h, cfg.Method, batch.ID)

	prof := cull.NewProfiler()
	img := depth.NewImage(w, h)
	aspect := float32(w) / float32(h)
	for i := 0; i < frames; i++ {
		f := cameraFrame(sc.OrbitCamera(i, frames, aspect), uint64(i), w, h)

		prof.BeginScope("frame")
		res, err := pipeline.Cull(context.Background(), f)
		prof.EndScope("frame")
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		prof.Record(res.Stats)
		prof.AddCount("drawn", len(res.Indices))

		Rasterize(img, f.ViewProj(), batch)
		recorder.Capture(img, depth.EncodingNDC, f)
	}

	displayCullStats(cfg.Method, n, prof)
	if logger.DebugEnabled() {
		logger.Debugf("profiler\n%s", prof.GetStatsString())
	}
	return nil
}
