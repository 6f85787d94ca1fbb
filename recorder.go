package occlusion

import (
	"sync"

	"github.com/gekko3d/occlusion/cullrt/rt/cull"
	"github.com/gekko3d/occlusion/cullrt/rt/depth"
)

// DepthRecorder is a cull.DepthSource fed by the renderer: after drawing a
// frame, Capture stores its depth together with the camera that drew it.
type DepthRecorder struct {
	mu sync.Mutex
	h  *depth.History
}

func NewDepthRecorder() *DepthRecorder {
	return &DepthRecorder{}
}

// Capture records img as the latest depth. The image is cloned, so the
// caller may reuse its buffer.
func (r *DepthRecorder) Capture(img *depth.Image, enc depth.Encoding, f cull.Frame) {
	h := &depth.History{
		Depth:      img.Clone(),
		Encoding:   enc,
		View:       f.View,
		Projection: f.Projection,
		Near:       f.Near,
		Far:        f.Far,
	}
	r.mu.Lock()
	r.h = h
	r.mu.Unlock()
}

func (r *DepthRecorder) History() (*depth.History, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.h, r.h != nil
}

func (r *DepthRecorder) Reset() {
	r.mu.Lock()
	r.h = nil
	r.mu.Unlock()
}
