package main

import (
	"bytes"
	"fmt"

	"github.com/olekukonko/tablewriter"

	"github.com/gekko3d/occlusion"
	"github.com/gekko3d/occlusion/cullrt/rt/cull"
	"github.com/gekko3d/occlusion/cullrt/rt/depth"
)

func displayCullStats(method occlusion.Method, instances int, prof *cull.Profiler) {
	frames := max(prof.Frames, 1)

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Stage", "In / frame", "Out / frame", "Culled", "Pass-through frames", "Avg time"})
	for _, name := range prof.Order {
		if name == "frame" {
			continue
		}
		in := prof.Counts[name+".in"]
		out := prof.Counts[name+".out"]
		culled := 0.0
		if in > 0 {
			culled = 100 * float64(in-out) / float64(in)
		}
		table.Append([]string{
			name,
			fmt.Sprintf("%d", in/frames),
			fmt.Sprintf("%d", out/frames),
			fmt.Sprintf("%02.1f %%", culled),
			fmt.Sprintf("%d", prof.Counts[name+".pass_through"]),
			prof.Average(name).String(),
		})
	}
	table.SetFooter([]string{
		string(method),
		fmt.Sprintf("%d", instances),
		fmt.Sprintf("%d", prof.Counts["drawn"]/frames),
		"",
		"TOTAL",
		prof.Average("frame").String(),
	})

	table.Render()
	logger.Infof("culling statistics over %d frames\n%s", prof.Frames, buf.String())
}

type evalRow struct {
	name string
	m    depth.Metrics
}

func displayEval(rows []evalRow) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Dump", "MSE", "PSNR", "SSIM"})

	var mse, ssim float64
	for _, r := range rows {
		table.Append([]string{
			r.name,
			fmt.Sprintf("%.6g", r.m.MSE),
			fmt.Sprintf("%.2f dB", r.m.PSNR),
			fmt.Sprintf("%.4f", r.m.SSIM),
		})
		mse += r.m.MSE
		ssim += r.m.SSIM
	}
	if n := float64(len(rows)); n > 0 {
		table.SetFooter([]string{"MEAN", fmt.Sprintf("%.6g", mse/n), "", fmt.Sprintf("%.4f", ssim/n)})
	}

	table.Render()
	logger.Infof("depth prediction accuracy\n%s", buf.String())
}
