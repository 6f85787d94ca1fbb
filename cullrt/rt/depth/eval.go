package depth

import (
	"fmt"
	"math"
)

// SSIMWindow is the side of the uniform window used by Compare.
const SSIMWindow = 11

// Metrics compares a predicted depth image against a reference, both in
// NDC [0,1] (data range 1).
type Metrics struct {
	MSE  float64
	PSNR float64 // +Inf for identical images
	SSIM float64
}

func (m Metrics) String() string {
	return fmt.Sprintf("MSE=%.6g PSNR=%.2fdB SSIM=%.4f", m.MSE, m.PSNR, m.SSIM)
}

// Compare computes MSE, PSNR and mean SSIM of two equally sized images.
func Compare(predicted, reference *Image) (Metrics, error) {
	if predicted.Width != reference.Width || predicted.Height != reference.Height {
		return Metrics{}, fmt.Errorf("%w: %dx%d vs %dx%d", ErrSizeMismatch,
			predicted.Width, predicted.Height, reference.Width, reference.Height)
	}
	if len(predicted.Pix) == 0 {
		return Metrics{}, fmt.Errorf("depth: empty images")
	}

	a := toFloat64(predicted.Pix)
	b := toFloat64(reference.Pix)

	var m Metrics
	for i := range a {
		d := a[i] - b[i]
		m.MSE += d * d
	}
	m.MSE /= float64(len(a))
	if m.MSE == 0 {
		m.PSNR = math.Inf(1)
	} else {
		m.PSNR = 10 * math.Log10(1/m.MSE)
	}
	m.SSIM = ssim(a, b, predicted.Width, predicted.Height)
	return m, nil
}

func ssim(a, b []float64, w, h int) float64 {
	const (
		k1 = 0.01
		k2 = 0.03
		c1 = k1 * k1
		c2 = k2 * k2
		c3 = c2 / 2
	)

	ab := make([]float64, len(a))
	aa := make([]float64, len(a))
	bb := make([]float64, len(a))
	for i := range a {
		ab[i] = a[i] * b[i]
		aa[i] = a[i] * a[i]
		bb[i] = b[i] * b[i]
	}

	mu1 := uniformFilter(a, w, h, SSIMWindow)
	mu2 := uniformFilter(b, w, h, SSIMWindow)
	e11 := uniformFilter(aa, w, h, SSIMWindow)
	e22 := uniformFilter(bb, w, h, SSIMWindow)
	e12 := uniformFilter(ab, w, h, SSIMWindow)

	var sum float64
	for i := range a {
		m1, m2 := mu1[i], mu2[i]
		s1 := math.Max(e11[i]-m1*m1, 0)
		s2 := math.Max(e22[i]-m2*m2, 0)
		s12 := e12[i] - m1*m2
		sd1, sd2 := math.Sqrt(s1), math.Sqrt(s2)

		l := (2*m1*m2 + c1) / (m1*m1 + m2*m2 + c1)
		c := (2*sd1*sd2 + c2) / (s1 + s2 + c2)
		s := (s12 + c3) / (sd1*sd2 + c3)
		sum += l * c * s
	}
	return sum / float64(len(a))
}

// uniformFilter is a separable box mean with half-sample symmetric
// ("reflect") borders.
func uniformFilter(src []float64, w, h, size int) []float64 {
	tmp := make([]float64, len(src))
	out := make([]float64, len(src))
	lo := size / 2
	hi := size - lo - 1

	for y := 0; y < h; y++ {
		row := src[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var s float64
			for k := x - lo; k <= x+hi; k++ {
				s += row[mirrorIndex(k, w)]
			}
			tmp[y*w+x] = s / float64(size)
		}
	}
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			var s float64
			for k := y - lo; k <= y+hi; k++ {
				s += tmp[mirrorIndex(k, h)*w+x]
			}
			out[y*w+x] = s / float64(size)
		}
	}
	return out
}

// mirrorIndex maps an out-of-range index as d c b a | a b c d | d c b a.
func mirrorIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}

func toFloat64(src []float32) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = float64(v)
	}
	return out
}
