package depth

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/occlusion/cullrt/rt/gpu"
)

// WarpParams controls the backward search of the depth warp.
type WarpParams struct {
	SeedNum       int     // candidate source points per hole
	MaxBoundIter  int     // search box refinements
	MaxSearchIter int     // fixed-point steps per candidate
	Threshold     float32 // acceptance residual in pixels
}

func DefaultWarpParams() WarpParams {
	return WarpParams{
		SeedNum:       8,
		MaxBoundIter:  3,
		MaxSearchIter: 3,
		Threshold:     0.5,
	}
}

func (p WarpParams) Validate() error {
	if p.SeedNum < 1 || p.MaxBoundIter < 0 || p.MaxSearchIter < 1 || !(p.Threshold > 0) {
		return fmt.Errorf("depth: invalid warp params %+v", p)
	}
	return nil
}

// Warper predicts the current frame's depth from the previous one. Its
// buffers are reused across frames of the same size.
type Warper struct {
	Params  WarpParams
	Motion  *MotionField
	Forward *Image // forward splat, +Inf where no sample landed
	Warped  *Image // predicted current depth in NDC [0,1]

	seeds []mgl32.Vec2
}

func NewWarper(params WarpParams) *Warper {
	return &Warper{Params: params}
}

func (w *Warper) ensure(prevW, prevH, curW, curH int) {
	if w.Motion == nil || w.Motion.Width != prevW || w.Motion.Height != prevH {
		w.Motion = NewMotionField(prevW, prevH)
	}
	if w.Forward == nil || w.Forward.Width != curW || w.Forward.Height != curH {
		w.Forward = NewImage(curW, curH)
		w.Warped = NewImage(curW, curH)
	}
	if len(w.seeds) != w.Params.SeedNum {
		w.seeds = hammersley(w.Params.SeedNum)
	}
}

// Warp runs the motion pass, the motion mips, the forward splat and the
// backward search. prevDepth must already be in NDC.
func (w *Warper) Warp(d *gpu.Dispatcher, prevDepth *Image, prevViewProj, curViewProj mgl32.Mat4, curW, curH int) (*Image, error) {
	if err := w.Params.Validate(); err != nil {
		return nil, err
	}
	w.ensure(prevDepth.Width, prevDepth.Height, curW, curH)

	if err := w.Motion.Predict(d, prevDepth, prevViewProj, curViewProj, curW, curH); err != nil {
		return nil, fmt.Errorf("depth: motion pass: %w", err)
	}
	if err := w.Motion.BuildMips(d); err != nil {
		return nil, err
	}
	if err := w.Motion.Splat(d, w.Forward); err != nil {
		return nil, fmt.Errorf("depth: forward splat: %w", err)
	}

	inf := math32.Inf(1)
	if err := d.Dispatch2D(curW, curH, func(x, y int) {
		i := y*curW + x
		if f := w.Forward.Pix[i]; f != inf {
			w.Warped.Pix[i] = f
			return
		}
		w.Warped.Pix[i] = w.search(float32(x)+0.5, float32(y)+0.5)
	}); err != nil {
		return nil, fmt.Errorf("depth: backward search: %w", err)
	}
	return w.Warped, nil
}

// search finds a previous pixel p with p + m(p) = q and returns its
// predicted depth, or 1 when no candidate converges.
func (w *Warper) search(qx, qy float32) float32 {
	m := w.Motion
	q := mgl32.Vec2{qx, qy}
	t := w.Params.Threshold

	// The solution satisfies p = q - m(p), so p lies in q - [lo, hi] for
	// the motion bounds of any box containing it.
	minP := mgl32.Vec2{0, 0}
	maxP := mgl32.Vec2{float32(m.Width), float32(m.Height)}
	for it := 0; it < w.Params.MaxBoundIter; it++ {
		x0, y0, x1, y1, ok := pixelBox(minP, maxP, m.Width, m.Height)
		if !ok {
			return 1
		}
		lo, hi, ok := m.Bounds(x0, y0, x1, y1)
		if !ok {
			return 1
		}
		minP = mgl32.Vec2{max(minP[0], q[0]-hi[0]-t), max(minP[1], q[1]-hi[1]-t)}
		maxP = mgl32.Vec2{min(maxP[0], q[0]-lo[0]+t), min(maxP[1], q[1]-lo[1]+t)}
		if minP[0] > maxP[0] || minP[1] > maxP[1] {
			return 1
		}
	}

	best := float32(1)
	span := maxP.Sub(minP)
	for _, s := range w.seeds {
		p := mgl32.Vec2{minP[0] + s[0]*span[0], minP[1] + s[1]*span[1]}
		for step := 0; step < w.Params.MaxSearchIter; step++ {
			mp, _, ok := m.Sample(p[0], p[1])
			if !ok {
				break
			}
			p = q.Sub(mp)

			mp, dp, ok := m.Sample(p[0], p[1])
			if !ok {
				break
			}
			if p.Add(mp).Sub(q).Len() < t {
				// The source pixel must hold a surface.
				if m.ValidAt(p[0], p[1]) {
					best = min(best, dp)
				}
				break
			}
		}
	}
	return best
}

// pixelBox converts a continuous box to clamped inclusive pixel bounds.
func pixelBox(minP, maxP mgl32.Vec2, width, height int) (x0, y0, x1, y1 int, ok bool) {
	if maxP[0] < 0 || maxP[1] < 0 || minP[0] >= float32(width) || minP[1] >= float32(height) {
		return 0, 0, 0, 0, false
	}
	x0 = max(int(math32.Floor(minP[0])), 0)
	y0 = max(int(math32.Floor(minP[1])), 0)
	x1 = min(int(math32.Floor(maxP[0])), width-1)
	y1 = min(int(math32.Floor(maxP[1])), height-1)
	return x0, y0, x1, y1, true
}

// hammersley returns n low-discrepancy points in [0,1)^2.
func hammersley(n int) []mgl32.Vec2 {
	pts := make([]mgl32.Vec2, n)
	for i := range pts {
		pts[i] = mgl32.Vec2{(float32(i) + 0.5) / float32(n), radicalInverse(uint32(i))}
	}
	return pts
}

// radicalInverse mirrors the bits of i around the binary point.
func radicalInverse(i uint32) float32 {
	i = (i << 16) | (i >> 16)
	i = ((i & 0x55555555) << 1) | ((i & 0xAAAAAAAA) >> 1)
	i = ((i & 0x33333333) << 2) | ((i & 0xCCCCCCCC) >> 2)
	i = ((i & 0x0F0F0F0F) << 4) | ((i & 0xF0F0F0F0) >> 4)
	i = ((i & 0x00FF00FF) << 8) | ((i & 0xFF00FF00) >> 8)
	return float32(i) * 2.3283064365386963e-10
}
