package depth

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/occlusion/cullrt/rt/core"
	"github.com/gekko3d/occlusion/cullrt/rt/gpu"
)

var ErrSizeMismatch = errors.New("depth: image size mismatch")

// Image is a single-channel float image, row-major with row 0 at the top
// of the screen.
type Image struct {
	Width  int
	Height int
	Pix    []float32
}

func NewImage(width, height int) *Image {
	return &Image{Width: width, Height: height, Pix: make([]float32, width*height)}
}

// NewImageFilled allocates an image with every texel set to v.
func NewImageFilled(width, height int, v float32) *Image {
	img := NewImage(width, height)
	img.Fill(v)
	return img
}

func (img *Image) At(x, y int) float32 {
	return img.Pix[y*img.Width+x]
}

func (img *Image) Set(x, y int, v float32) {
	img.Pix[y*img.Width+x] = v
}

func (img *Image) Fill(v float32) {
	for i := range img.Pix {
		img.Pix[i] = v
	}
}

func (img *Image) Clone() *Image {
	return &Image{Width: img.Width, Height: img.Height, Pix: append([]float32(nil), img.Pix...)}
}

// FillRectMin sets every texel of the inclusive rect [x0,x1]x[y0,y1] to
// min(existing, v). Out-of-range parts are ignored.
func (img *Image) FillRectMin(x0, y0, x1, y1 int, v float32) {
	x0, y0 = max(x0, 0), max(y0, 0)
	x1, y1 = min(x1, img.Width-1), min(y1, img.Height-1)
	for y := y0; y <= y1; y++ {
		row := img.Pix[y*img.Width:]
		for x := x0; x <= x1; x++ {
			row[x] = min(row[x], v)
		}
	}
}

func (img *Image) Validate() error {
	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("depth: empty image")
	}
	if len(img.Pix) != img.Width*img.Height {
		return fmt.Errorf("%w: %dx%d with %d texels", ErrSizeMismatch, img.Width, img.Height, len(img.Pix))
	}
	return nil
}

// Encoding describes how a captured depth image stores distance.
type Encoding int

const (
	// EncodingNDC stores NDC depth in [0,1], 0 at the near plane.
	EncodingNDC Encoding = iota
	// EncodingLinearEye stores positive view-space distance.
	EncodingLinearEye
	// EncodingReversedZ stores device depth with 1 at the near plane and 0
	// at the far plane.
	EncodingReversedZ
)

func (e Encoding) String() string {
	switch e {
	case EncodingNDC:
		return "ndc"
	case EncodingLinearEye:
		return "linear"
	case EncodingReversedZ:
		return "reversed-z"
	}
	return fmt.Sprintf("Encoding(%d)", int(e))
}

// ParseEncoding is the inverse of Encoding.String.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "", "ndc":
		return EncodingNDC, nil
	case "linear":
		return EncodingLinearEye, nil
	case "reversed-z":
		return EncodingReversedZ, nil
	}
	return 0, fmt.Errorf("depth: unknown encoding %q", s)
}

// History is the previous frame's depth together with the camera that
// produced it. It is owned by the capture side and never mutated here.
type History struct {
	Depth      *Image
	Encoding   Encoding
	View       mgl32.Mat4
	Projection mgl32.Mat4
	Near       float32
	Far        float32
}

// HasPose reports whether the history carries its own camera matrices.
func (h *History) HasPose() bool {
	return h.View != (mgl32.Mat4{}) && h.Projection != (mgl32.Mat4{})
}

// ToNDC converts one stored sample to NDC depth in [0,1]. Samples that
// cannot be interpreted map to 1 so they never occlude anything.
func (h *History) ToNDC(v float32) float32 {
	switch h.Encoding {
	case EncodingLinearEye:
		if v <= 0 || math32.IsNaN(v) {
			return 1
		}
		return clamp01(core.LinearEyeDepthToNDC01(h.Projection, v))
	case EncodingReversedZ:
		if math32.IsNaN(v) {
			return 1
		}
		eye := core.ReversedZToLinearEye(clamp01(v), h.Near, h.Far)
		return clamp01(core.LinearEyeDepthToNDC01(h.Projection, eye))
	}
	if math32.IsNaN(v) {
		return 1
	}
	return clamp01(v)
}

// NDC writes the history depth converted to NDC [0,1] into dst.
func (h *History) NDC(d *gpu.Dispatcher, dst *Image) error {
	if err := h.Depth.Validate(); err != nil {
		return err
	}
	if dst.Width != h.Depth.Width || dst.Height != h.Depth.Height {
		return fmt.Errorf("%w: history %dx%d, target %dx%d", ErrSizeMismatch,
			h.Depth.Width, h.Depth.Height, dst.Width, dst.Height)
	}
	if (h.Encoding == EncodingLinearEye || h.Encoding == EncodingReversedZ) && h.Projection == (mgl32.Mat4{}) {
		return fmt.Errorf("depth: %s history without a projection", h.Encoding)
	}
	return d.Dispatch1D(len(dst.Pix), func(i int) {
		dst.Pix[i] = h.ToNDC(h.Depth.Pix[i])
	})
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// nextPowerOfTwo returns the smallest power of two >= v (1 for v <= 1).
func nextPowerOfTwo(v int) int {
	p := 1
	for p < v {
		p <<= 1
	}
	return p
}

// log2Ceil returns the number of halvings needed to bring v down to 1.
func log2Ceil(v int) int {
	n := 0
	for s := 1; s < v; s <<= 1 {
		n++
	}
	return n
}
