package depth

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/occlusion/cullrt/rt/core"
	"github.com/gekko3d/occlusion/cullrt/rt/gpu"
)

// Pyramid is a square max-depth mip chain over a Width x Height screen.
// Level 0 is Size x Size with Size = nextPowerOfTwo(max(Width, Height)),
// texel (x, y) holding screen pixel (x, y); level k+1 holds the max of each
// 2x2 block of level k down to a single texel. Texels off the screen hold
// 0 and never win a max against an on-screen texel.
type Pyramid struct {
	Width  int
	Height int
	Size   int
	Levels [][]float32
}

func NewPyramid(width, height int) *Pyramid {
	size := nextPowerOfTwo(max(width, height))
	levels := make([][]float32, log2Ceil(size)+1)
	for k := range levels {
		s := size >> k
		levels[k] = make([]float32, s*s)
	}
	return &Pyramid{Width: width, Height: height, Size: size, Levels: levels}
}

// MipCount returns the number of reduction levels above level 0.
func (p *Pyramid) MipCount() int {
	return len(p.Levels) - 1
}

func (p *Pyramid) LevelSize(k int) int {
	return p.Size >> k
}

func (p *Pyramid) Texel(k, x, y int) float32 {
	return p.Levels[k][y*(p.Size>>k)+x]
}

// Load copies src into level 0. src must match the pyramid's screen size.
func (p *Pyramid) Load(d *gpu.Dispatcher, src *Image) error {
	if src.Width != p.Width || src.Height != p.Height {
		return fmt.Errorf("%w: pyramid %dx%d, image %dx%d", ErrSizeMismatch, p.Width, p.Height, src.Width, src.Height)
	}
	level0 := p.Levels[0]
	return d.Dispatch2D(p.Size, p.Size, func(x, y int) {
		v := float32(0)
		if x < p.Width && y < p.Height {
			v = src.Pix[y*p.Width+x]
		}
		level0[y*p.Size+x] = v
	})
}

// BuildMips fills levels 1..L, one dispatch per level.
func (p *Pyramid) BuildMips(d *gpu.Dispatcher) error {
	for k := 0; k < p.MipCount(); k++ {
		src, dst := p.Levels[k], p.Levels[k+1]
		srcSize := p.Size >> k
		dstSize := srcSize >> 1
		if err := d.Dispatch2D(dstSize, dstSize, func(x, y int) {
			i := (2*y)*srcSize + 2*x
			dst[y*dstSize+x] = max(src[i], src[i+1], src[i+srcSize], src[i+srcSize+1])
		}); err != nil {
			return fmt.Errorf("depth: mip %d: %w", k+1, err)
		}
	}
	return nil
}

// Build loads level 0 and reduces it, on the accelerator when one is given
// and on the dispatcher otherwise or when the accelerator declines.
func (p *Pyramid) Build(d *gpu.Dispatcher, accel gpu.Accelerator, src *Image) error {
	if err := p.Load(d, src); err != nil {
		return err
	}
	if accel != nil && accel.CanAccelerate(gpu.AccelMaxPyramid) {
		if err := accel.BuildMaxPyramid(p.Levels, p.Size); err == nil {
			return nil
		}
	}
	return p.BuildMips(d)
}

// Footprint picks the finest level at which the inclusive pixel rect
// [x0,x1]x[y0,y1] spans at most 2x2 texels and returns the texel range.
func (p *Pyramid) Footprint(x0, y0, x1, y1 int) (k, tx0, ty0, tx1, ty1 int) {
	for k = 0; k < p.MipCount(); k++ {
		if (x1>>k)-(x0>>k) <= 1 && (y1>>k)-(y0>>k) <= 1 {
			break
		}
	}
	return k, x0 >> k, y0 >> k, x1 >> k, y1 >> k
}

// SampleMax returns the conservative farthest depth over the pixel rect
// and the level it was read from.
func (p *Pyramid) SampleMax(x0, y0, x1, y1 int) (float32, int) {
	k, tx0, ty0, tx1, ty1 := p.Footprint(x0, y0, x1, y1)
	v := max(p.Texel(k, tx0, ty0), p.Texel(k, tx1, ty0), p.Texel(k, tx0, ty1), p.Texel(k, tx1, ty1))
	return v, k
}

// Occluded reports whether the projected rect lies entirely behind the
// pyramid. Rects off the screen are never occluded.
func (p *Pyramid) Occluded(r core.ScreenRect) bool {
	x0, y0, x1, y1, ok := r.PixelBounds(p.Width, p.Height)
	if !ok {
		return false
	}
	far, _ := p.SampleMax(x0, y0, x1, y1)
	return r.MinDepth > far
}

// OccludedBox projects a world box and tests it. Boxes crossing the eye
// plane are never occluded.
func (p *Pyramid) OccludedBox(viewProj mgl32.Mat4, b core.AABB) bool {
	r, ok := core.ProjectAABB(viewProj, b, p.Width, p.Height)
	if !ok {
		return false
	}
	return p.Occluded(r)
}

// Image returns level 0 clamped to the screen.
func (p *Pyramid) Image() *Image {
	img := NewImage(p.Width, p.Height)
	for y := 0; y < p.Height; y++ {
		copy(img.Pix[y*p.Width:(y+1)*p.Width], p.Levels[0][y*p.Size:])
	}
	return img
}
