package cull

import (
	"path/filepath"
	"strings"

	"github.com/gekko3d/occlusion/cullrt/rt/depth"
)

// dumpDepth writes the depth surfaces of the occlusion stage. The predicted
// depth of frame i goes to Predict/depthData<i>.bin. The reference is the
// capture of frame i-1 and is written under that index, so files with the
// same name in both directories describe the same frame.
func (p *Pipeline) dumpDepth(f *Frame) error {
	var prod DepthProducer
	for i, s := range p.stages {
		if dp, ok := s.(DepthProducer); ok && !p.disabled[i] {
			prod = dp
		}
	}
	if prod == nil {
		return nil
	}

	root := p.opts.Diagnostics.DumpDir
	if root == "" {
		root = "depth_dumps"
	}
	root = filepath.Join(root, p.env.Batch.ID.String())

	if img := prod.PredictedDepth(); img != nil {
		if err := p.writeDump(filepath.Join(root, depth.PredictDir), int(f.Index), img); err != nil {
			return err
		}
	}
	if img := prod.ReferenceDepth(); img != nil && f.Index > 0 {
		if err := p.writeDump(filepath.Join(root, depth.ReferenceDir), int(f.Index)-1, img); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) writeDump(dir string, frame int, img *depth.Image) error {
	name := depth.DumpName(frame)
	if err := depth.WriteBinaryFile(dir, name, img); err != nil {
		return err
	}
	if !p.opts.Diagnostics.TIFFPreview {
		return nil
	}
	return depth.WriteTIFFFile(filepath.Join(dir, strings.TrimSuffix(name, ".bin")+".tiff"), img)
}
