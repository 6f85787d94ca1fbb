package depth

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/tiff"
)

const (
	PredictDir   = "Predict"
	ReferenceDir = "Reference"
)

// DumpName returns the file name of frame i's depth dump.
func DumpName(frame int) string {
	return fmt.Sprintf("depthData%d.bin", frame)
}

// WriteBinary writes the image as raw little-endian float32 texels, row 0
// first, with no header.
func WriteBinary(w io.Writer, img *Image) error {
	bw := bufio.NewWriter(w)
	var b [4]byte
	for _, v := range img.Pix {
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
		if _, err := bw.Write(b[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadBinary reads a raw dump of a known size.
func ReadBinary(r io.Reader, width, height int) (*Image, error) {
	img := NewImage(width, height)
	if err := binary.Read(bufio.NewReader(r), binary.LittleEndian, img.Pix); err != nil {
		return nil, fmt.Errorf("depth: read %dx%d dump: %w", width, height, err)
	}
	return img, nil
}

// WriteBinaryFile writes a dump to dir/name, creating dir as needed.
func WriteBinaryFile(dir, name string, img *Image) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	if err := WriteBinary(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func ReadBinaryFile(path string, width, height int) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadBinary(f, width, height)
}

// WriteTIFF writes a 16-bit grayscale preview, near surfaces dark. Values
// are clamped to [0,1]; +Inf reads as far.
func WriteTIFF(w io.Writer, img *Image) error {
	gray := image.NewGray16(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			v := img.At(x, y)
			if math.IsNaN(float64(v)) {
				v = 1
			}
			gray.SetGray16(x, y, color.Gray16{Y: uint16(clamp01(v)*65535 + 0.5)})
		}
	}
	return tiff.Encode(w, gray, &tiff.Options{Compression: tiff.Deflate})
}

func WriteTIFFFile(path string, img *Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteTIFF(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
