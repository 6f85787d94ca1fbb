package main

import (
	"github.com/urfave/cli"

	"github.com/gekko3d/occlusion"
)

var logger = occlusion.NewDefaultLogger("cullbench", false)

func setupLogging(ctx *cli.Context) {
	if ctx.GlobalBool("v") {
		logger.SetDebug(true)
	}
}
