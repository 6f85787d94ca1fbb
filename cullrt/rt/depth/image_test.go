package depth

import (
	"errors"
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/occlusion/cullrt/rt/gpu"
)

func TestHistoryToNDC(t *testing.T) {
	proj := mgl32.Perspective(mgl32.DegToRad(60), 1, 1, 100)
	tests := []struct {
		name string
		enc  Encoding
		in   float32
		want float32
	}{
		{"ndc passthrough", EncodingNDC, 0.25, 0.25},
		{"ndc clamped", EncodingNDC, 1.5, 1},
		{"ndc nan", EncodingNDC, math32.NaN(), 1},
		{"linear near plane", EncodingLinearEye, 1, 0},
		{"linear far plane", EncodingLinearEye, 100, 1},
		{"linear invalid", EncodingLinearEye, 0, 1},
		{"reversed near plane", EncodingReversedZ, 1, 0},
		{"reversed far plane", EncodingReversedZ, 0, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := &History{Encoding: tc.enc, Projection: proj, Near: 1, Far: 100}
			if got := h.ToNDC(tc.in); math32.Abs(got-tc.want) > 1e-4 {
				t.Errorf("ToNDC(%f) = %f, want %f", tc.in, got, tc.want)
			}
		})
	}
}

// The same surface stored in all three encodings converts to one NDC value.
func TestHistoryEncodingsAgree(t *testing.T) {
	const near, far, eye = 1, 100, 12
	proj := mgl32.Perspective(mgl32.DegToRad(60), 1, near, far)

	ndc := (&History{Encoding: EncodingLinearEye, Projection: proj}).ToNDC(eye)
	rev := float32(near) * (far - eye) / (eye * (far - near))
	fromRev := (&History{Encoding: EncodingReversedZ, Projection: proj, Near: near, Far: far}).ToNDC(rev)
	if math32.Abs(ndc-fromRev) > 1e-4 {
		t.Errorf("linear %f vs reversed-z %f", ndc, fromRev)
	}
}

func TestHistoryNDC(t *testing.T) {
	d := gpu.NewDispatcher(2)
	h := &History{Depth: NewImageFilled(4, 3, 2), Encoding: EncodingNDC}

	dst := NewImage(4, 3)
	if err := h.NDC(d, dst); err != nil {
		t.Fatal(err)
	}
	if dst.At(3, 2) != 1 {
		t.Errorf("out-of-range sample should clamp to 1, got %f", dst.At(3, 2))
	}

	if err := h.NDC(d, NewImage(3, 4)); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("expected ErrSizeMismatch, got %v", err)
	}

	h.Encoding = EncodingLinearEye
	if err := h.NDC(d, dst); err == nil {
		t.Error("linear history without a projection should fail")
	}
}

func TestParseEncoding(t *testing.T) {
	for _, e := range []Encoding{EncodingNDC, EncodingLinearEye, EncodingReversedZ} {
		got, err := ParseEncoding(e.String())
		if err != nil || got != e {
			t.Errorf("ParseEncoding(%q) = %v, %v", e.String(), got, err)
		}
	}
	if _, err := ParseEncoding("log"); err == nil {
		t.Error("expected an error for an unknown encoding")
	}
}

func TestFillRectMinClips(t *testing.T) {
	img := NewImageFilled(4, 4, 1)
	img.FillRectMin(-2, 2, 10, 10, 0.5)
	img.FillRectMin(0, 3, 0, 3, 0.75)
	if img.At(0, 1) != 1 || img.At(3, 3) != 0.5 || img.At(0, 3) != 0.5 {
		t.Errorf("unexpected texels: %v", img.Pix)
	}
	if err := (&Image{Width: 2, Height: 2, Pix: make([]float32, 3)}).Validate(); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("Validate: %v", err)
	}
}
