// Package pattern produces and checks the RGBA8 test image shared between the
// exporter and the importer.
package pattern

import (
	"encoding/hex"
	"fmt"
	"image"
	"io"

	"github.com/zeebo/blake3"
	"golang.org/x/image/bmp"
)

// BytesPerPixel is the size of one RGBA8 pixel.
const BytesPerPixel = 4

// Gradient returns tightly packed RGBA8 pixels where red grows along x, green
// grows along y, blue is 0 and alpha is opaque.
func Gradient(width, height int) []byte {
	if width <= 0 || height <= 0 {
		return nil
	}
	pixels := make([]byte, width*height*BytesPerPixel)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * BytesPerPixel
			pixels[i+0] = byte(x * 255 / width)
			pixels[i+1] = byte(y * 255 / height)
			pixels[i+2] = 0
			pixels[i+3] = 255
		}
	}
	return pixels
}

// Pack copies tightly packed rows into a buffer whose rows are stride bytes
// apart. Padding bytes are zero.
func Pack(pixels []byte, width, height, stride int) ([]byte, error) {
	row := width * BytesPerPixel
	if err := checkGeometry(len(pixels), width, height, row); err != nil {
		return nil, err
	}
	if stride < row {
		return nil, fmt.Errorf("stride %d shorter than row of %d bytes", stride, row)
	}
	out := make([]byte, stride*height)
	for y := 0; y < height; y++ {
		copy(out[y*stride:y*stride+row], pixels[y*row:(y+1)*row])
	}
	return out, nil
}

// Unpack drops row padding from a strided buffer.
func Unpack(strided []byte, width, height, stride int) ([]byte, error) {
	row := width * BytesPerPixel
	if stride < row {
		return nil, fmt.Errorf("stride %d shorter than row of %d bytes", stride, row)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", width, height)
	}
	if need := stride*(height-1) + row; len(strided) < need {
		return nil, fmt.Errorf("buffer holds %d bytes, need %d", len(strided), need)
	}
	out := make([]byte, row*height)
	for y := 0; y < height; y++ {
		copy(out[y*row:(y+1)*row], strided[y*stride:y*stride+row])
	}
	return out, nil
}

func checkGeometry(n, width, height, row int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", width, height)
	}
	if n != row*height {
		return fmt.Errorf("pixel buffer holds %d bytes, want %d for %dx%d", n, row*height, width, height)
	}
	return nil
}

// Digest is the BLAKE3-256 hash of tightly packed pixels.
func Digest(pixels []byte) [32]byte {
	return blake3.Sum256(pixels)
}

// DigestHex returns Digest as lowercase hex.
func DigestHex(pixels []byte) string {
	sum := Digest(pixels)
	return hex.EncodeToString(sum[:])
}

// Mismatch locates the first pixel that differs between two images.
type Mismatch struct {
	X, Y int
	Want [BytesPerPixel]byte
	Got  [BytesPerPixel]byte
	// Reason is set when the buffers cannot be compared pixel by pixel.
	Reason string
}

func (m *Mismatch) String() string {
	if m.Reason != "" {
		return m.Reason
	}
	return fmt.Sprintf("pixel (%d,%d): want rgba%v, got rgba%v", m.X, m.Y, m.Want, m.Got)
}

// Compare returns nil when want and got hold the same width x height pixels.
func Compare(want, got []byte, width, height int) *Mismatch {
	size := width * height * BytesPerPixel
	if len(want) != size || len(got) != size {
		return &Mismatch{X: -1, Y: -1, Reason: fmt.Sprintf("size mismatch: want %d bytes, got %d, expected %d", len(want), len(got), size)}
	}
	for i := 0; i < size; i += BytesPerPixel {
		if [BytesPerPixel]byte(want[i:i+BytesPerPixel]) == [BytesPerPixel]byte(got[i:i+BytesPerPixel]) {
			continue
		}
		p := i / BytesPerPixel
		return &Mismatch{
			X:    p % width,
			Y:    p / width,
			Want: [BytesPerPixel]byte(want[i : i+BytesPerPixel]),
			Got:  [BytesPerPixel]byte(got[i : i+BytesPerPixel]),
		}
	}
	return nil
}

// WriteSnapshot encodes tightly packed RGBA8 pixels as a BMP image.
func WriteSnapshot(w io.Writer, pixels []byte, width, height int) error {
	if err := checkGeometry(len(pixels), width, height, width*BytesPerPixel); err != nil {
		return err
	}
	img := &image.NRGBA{
		Pix:    pixels,
		Stride: width * BytesPerPixel,
		Rect:   image.Rect(0, 0, width, height),
	}
	if err := bmp.Encode(w, img); err != nil {
		return fmt.Errorf("encode bmp: %w", err)
	}
	return nil
}
