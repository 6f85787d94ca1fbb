package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/urfave/cli"

	"github.com/gekko3d/occlusion/cullrt/rt/depth"
)

// Eval compares every Predict/<name> dump with Reference/<name>.
func Eval(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing dump directory argument")
	}
	rows, err := evalDir(ctx.Args().First(), ctx.Int("width"), ctx.Int("height"))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return errors.New("no matching predicted and reference dumps")
	}
	displayEval(rows)
	return nil
}

func evalDir(dir string, w, h int) ([]evalRow, error) {
	preds, err := filepath.Glob(filepath.Join(dir, depth.PredictDir, "depthData*.bin"))
	if err != nil {
		return nil, err
	}
	sort.Strings(preds)

	var rows []evalRow
	for _, p := range preds {
		name := filepath.Base(p)
		refPath := filepath.Join(dir, depth.ReferenceDir, name)
		if _, err := os.Stat(refPath); err != nil {
			logger.Debugf("no reference for %s", name)
			continue
		}
		pred, err := depth.ReadBinaryFile(p, w, h)
		if err != nil {
			return nil, err
		}
		ref, err := depth.ReadBinaryFile(refPath, w, h)
		if err != nil {
			return nil, err
		}
		m, err := depth.Compare(pred, ref)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		rows = append(rows, evalRow{name: name, m: m})
	}
	return rows, nil
}
