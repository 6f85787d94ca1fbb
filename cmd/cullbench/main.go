package main

import (
	"os"

	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "cullbench"
	app.Usage = "benchmark instance culling on a synthetic scene"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable debug logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "run",
			Usage: "orbit a camera around an instance grid and report per-stage culling",
			Description: `
Generate an equally spaced grid of unit cubes, orbit the camera around it and
cull every frame. The depth of each frame is rasterized from the bounding
boxes of every instance, culled or not, and fed back as the next frame's
history.`,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "config, c",
					Usage: "YAML culling config; defaults apply when omitted",
				},
				cli.IntFlag{
					Name:  "instances, n",
					Value: 4096,
					Usage: "number of instances",
				},
				cli.IntFlag{
					Name:  "frames, f",
					Value: 120,
					Usage: "number of frames",
				},
				cli.IntFlag{
					Name:  "width",
					Value: 512,
					Usage: "frame width",
				},
				cli.IntFlag{
					Name:  "height",
					Value: 512,
					Usage: "frame height",
				},
				cli.StringFlag{
					Name:  "method, m",
					Usage: "override the config method (frustum, bvh, hiz, idw)",
				},
				cli.BoolFlag{
					Name:  "gpu",
					Usage: "run kernels on a wgpu compute device when available",
				},
			},
			Action: Run,
		},
		{
			Name:      "eval",
			Usage:     "compare predicted depth dumps against reference dumps",
			ArgsUsage: "dump_dir",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "width",
					Value: 512,
					Usage: "dump width",
				},
				cli.IntFlag{
					Name:  "height",
					Value: 512,
					Usage: "dump height",
				},
			},
			Action: Eval,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}
