package depth

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/occlusion/cullrt/rt/core"
	"github.com/gekko3d/occlusion/cullrt/rt/gpu"
)

// MotionField holds, for every pixel of the previous frame, the screen
// displacement to its position in the current frame and its predicted
// current NDC depth. Invalid entries have no current-frame position.
type MotionField struct {
	Width  int
	Height int
	DX     []float32
	DY     []float32
	Depth  []float32
	Valid  []bool

	// Mips[k] holds per-texel motion bounds over valid entries; level 0 is
	// per pixel and each level halves (rounding up) down to 1x1.
	Mips []MotionLevel
}

// MotionLevel is one level of the min/max motion chain. A texel without
// any valid entry has Min > Max.
type MotionLevel struct {
	Width  int
	Height int
	Min    []mgl32.Vec2
	Max    []mgl32.Vec2
}

func NewMotionField(width, height int) *MotionField {
	n := width * height
	m := &MotionField{
		Width:  width,
		Height: height,
		DX:     make([]float32, n),
		DY:     make([]float32, n),
		Depth:  make([]float32, n),
		Valid:  make([]bool, n),
	}
	levels := log2Ceil(max(width, height)) + 1
	w, h := width, height
	for k := 0; k < levels; k++ {
		m.Mips = append(m.Mips, MotionLevel{
			Width:  w,
			Height: h,
			Min:    make([]mgl32.Vec2, w*h),
			Max:    make([]mgl32.Vec2, w*h),
		})
		w, h = (w+1)/2, (h+1)/2
	}
	return m
}

// MipCount returns the number of reduction levels above level 0.
func (m *MotionField) MipCount() int {
	return len(m.Mips) - 1
}

// Predict computes the motion of every previous pixel from prevDepth (NDC)
// under inverse(prevViewProj), reprojected with curViewProj onto a
// curWidth x curHeight screen.
func (m *MotionField) Predict(d *gpu.Dispatcher, prevDepth *Image, prevViewProj, curViewProj mgl32.Mat4, curWidth, curHeight int) error {
	if prevDepth.Width != m.Width || prevDepth.Height != m.Height {
		return fmt.Errorf("%w: motion %dx%d, depth %dx%d", ErrSizeMismatch, m.Width, m.Height, prevDepth.Width, prevDepth.Height)
	}
	inv := prevViewProj.Inv()
	if inv == (mgl32.Mat4{}) {
		return fmt.Errorf("depth: previous view-projection is singular")
	}
	cw, ch := float32(curWidth), float32(curHeight)

	return d.Dispatch2D(m.Width, m.Height, func(x, y int) {
		i := y*m.Width + x
		m.Valid[i] = false
		m.DX[i], m.DY[i], m.Depth[i] = 0, 0, 1

		dv := prevDepth.Pix[i]
		// Far plane samples carry no surface.
		if dv >= 1 {
			return
		}
		px, py := float32(x)+0.5, float32(y)+0.5
		nx, ny := core.ScreenToNDC(px, py, m.Width, m.Height)
		world := inv.Mul4x1(mgl32.Vec4{nx, ny, dv*2 - 1, 1})
		if math32.Abs(world.W()) < 1e-12 {
			return
		}
		world = world.Mul(1 / world.W())

		clip := curViewProj.Mul4x1(world)
		if clip.W() <= 1e-5 {
			return
		}
		sx, sy := core.NDCToScreen(clip.X()/clip.W(), clip.Y()/clip.W(), curWidth, curHeight)
		if sx < 0 || sy < 0 || sx >= cw || sy >= ch {
			return
		}
		m.DX[i], m.DY[i] = sx-px, sy-py
		m.Depth[i] = clamp01(core.ClipDepthToNDC01(clip.Z() / clip.W()))
		m.Valid[i] = true
	})
}

// BuildMips fills the min/max motion chain, one dispatch per level.
func (m *MotionField) BuildMips(d *gpu.Dispatcher) error {
	inf := math32.Inf(1)
	empty := func() (mgl32.Vec2, mgl32.Vec2) {
		return mgl32.Vec2{inf, inf}, mgl32.Vec2{-inf, -inf}
	}

	base := m.Mips[0]
	if err := d.Dispatch1D(len(m.Valid), func(i int) {
		if m.Valid[i] {
			v := mgl32.Vec2{m.DX[i], m.DY[i]}
			base.Min[i], base.Max[i] = v, v
		} else {
			base.Min[i], base.Max[i] = empty()
		}
	}); err != nil {
		return err
	}

	for k := 0; k < m.MipCount(); k++ {
		src, dst := m.Mips[k], m.Mips[k+1]
		if err := d.Dispatch2D(dst.Width, dst.Height, func(x, y int) {
			lo, hi := empty()
			for dy := 0; dy < 2; dy++ {
				sy := 2*y + dy
				if sy >= src.Height {
					continue
				}
				for dx := 0; dx < 2; dx++ {
					sx := 2*x + dx
					if sx >= src.Width {
						continue
					}
					j := sy*src.Width + sx
					lo = mgl32.Vec2{min(lo[0], src.Min[j][0]), min(lo[1], src.Min[j][1])}
					hi = mgl32.Vec2{max(hi[0], src.Max[j][0]), max(hi[1], src.Max[j][1])}
				}
			}
			dst.Min[y*dst.Width+x], dst.Max[y*dst.Width+x] = lo, hi
		}); err != nil {
			return fmt.Errorf("depth: motion mip %d: %w", k+1, err)
		}
	}
	return nil
}

// Bounds returns the motion bounds over the inclusive pixel rect, read
// from the finest level where it spans at most 2x2 texels. ok is false when
// the rect holds no valid entry.
func (m *MotionField) Bounds(x0, y0, x1, y1 int) (lo, hi mgl32.Vec2, ok bool) {
	k := 0
	for ; k < m.MipCount(); k++ {
		if (x1>>k)-(x0>>k) <= 1 && (y1>>k)-(y0>>k) <= 1 {
			break
		}
	}
	level := m.Mips[k]
	inf := math32.Inf(1)
	lo, hi = mgl32.Vec2{inf, inf}, mgl32.Vec2{-inf, -inf}
	for ty := y0 >> k; ty <= min(y1>>k, level.Height-1); ty++ {
		for tx := x0 >> k; tx <= min(x1>>k, level.Width-1); tx++ {
			j := ty*level.Width + tx
			lo = mgl32.Vec2{min(lo[0], level.Min[j][0]), min(lo[1], level.Min[j][1])}
			hi = mgl32.Vec2{max(hi[0], level.Max[j][0]), max(hi[1], level.Max[j][1])}
		}
	}
	return lo, hi, lo[0] <= hi[0] && lo[1] <= hi[1]
}

// Sample bilinearly interpolates motion and depth at continuous pixel
// position (px, py) over valid neighbours only.
func (m *MotionField) Sample(px, py float32) (motion mgl32.Vec2, depth float32, ok bool) {
	fx, fy := px-0.5, py-0.5
	x0, y0 := int(math32.Floor(fx)), int(math32.Floor(fy))
	tx, ty := fx-float32(x0), fy-float32(y0)

	var wsum, sx, sy, sd float32
	for j := 0; j < 2; j++ {
		y := y0 + j
		if y < 0 || y >= m.Height {
			continue
		}
		wy := ty
		if j == 0 {
			wy = 1 - ty
		}
		for i := 0; i < 2; i++ {
			x := x0 + i
			if x < 0 || x >= m.Width {
				continue
			}
			idx := y*m.Width + x
			if !m.Valid[idx] {
				continue
			}
			wx := tx
			if i == 0 {
				wx = 1 - tx
			}
			w := wx * wy
			if w <= 0 {
				continue
			}
			wsum += w
			sx += w * m.DX[idx]
			sy += w * m.DY[idx]
			sd += w * m.Depth[idx]
		}
	}
	if wsum <= 0 {
		return mgl32.Vec2{}, 1, false
	}
	return mgl32.Vec2{sx / wsum, sy / wsum}, sd / wsum, true
}

// ValidAt reports whether the pixel containing (px, py) has a valid entry.
func (m *MotionField) ValidAt(px, py float32) bool {
	x, y := int(math32.Floor(px)), int(math32.Floor(py))
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Valid[y*m.Width+x]
}

// Splat forward-warps every valid entry into dst (current screen size),
// keeping the nearest depth per pixel. Pixels receiving no sample are set
// to +Inf.
func (m *MotionField) Splat(d *gpu.Dispatcher, dst *Image) error {
	bits := make([]uint32, len(dst.Pix))
	inf := math.Float32bits(math32.Inf(1))
	for i := range bits {
		bits[i] = inf
	}

	if err := d.Dispatch2D(m.Width, m.Height, func(x, y int) {
		i := y*m.Width + x
		if !m.Valid[i] {
			return
		}
		tx := int(math32.Floor(float32(x) + 0.5 + m.DX[i]))
		ty := int(math32.Floor(float32(y) + 0.5 + m.DY[i]))
		if tx < 0 || ty < 0 || tx >= dst.Width || ty >= dst.Height {
			return
		}
		atomicMinFloat(&bits[ty*dst.Width+tx], m.Depth[i])
	}); err != nil {
		return err
	}

	for i, b := range bits {
		dst.Pix[i] = math.Float32frombits(b)
	}
	return nil
}

// atomicMinFloat stores min(*addr, v) for non-negative floats, whose bit
// patterns order like the values.
func atomicMinFloat(addr *uint32, v float32) {
	nb := math.Float32bits(v)
	for {
		old := atomic.LoadUint32(addr)
		if old <= nb {
			return
		}
		if atomic.CompareAndSwapUint32(addr, old, nb) {
			return
		}
	}
}
