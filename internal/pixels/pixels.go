// Package pixels converts host image tensors (float32 in [0,1]) to and from
// 8-bit images and PNG data URIs.
package pixels

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
)

// MaxValues caps the number of float values in one tensor or image.
const MaxValues = 1 << 28

// volume multiplies dims, failing on a non-positive dimension or once the
// product passes MaxValues.
func volume(dims ...int) (int, error) {
	total := 1
	for _, d := range dims {
		if d <= 0 {
			return 0, fmt.Errorf("dimensions %v include a non-positive value", dims)
		}
		if d > MaxValues/total {
			return 0, fmt.Errorf("dimensions %v exceed %d values", dims, MaxValues)
		}
		total *= d
	}
	return total, nil
}

// Image is a single H×W×C float image in row-major HWC order.
type Image struct {
	Height   int
	Width    int
	Channels int
	Data     []float32
}

// Tensor is the wire form of a host image batch.
type Tensor struct {
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// NewImage validates dimensions and wraps data without copying.
func NewImage(height, width, channels int, data []float32) (Image, error) {
	if height <= 0 || width <= 0 {
		return Image{}, fmt.Errorf("image dimensions must be positive, got %dx%d", height, width)
	}
	if channels < 1 || channels > 4 {
		return Image{}, fmt.Errorf("unsupported channel count %d", channels)
	}
	size, err := volume(height, width, channels)
	if err != nil {
		return Image{}, err
	}
	if len(data) != size {
		return Image{}, fmt.Errorf("image data has %d values, want %d", len(data), size)
	}
	return Image{Height: height, Width: width, Channels: channels, Data: data}, nil
}

// Split iterates the tensor along its first axis the way the host does:
// a rank-4 B×H×W×C batch yields B color images, a rank-3 tensor yields
// its leading-axis slices as H×W grayscale images.
func (t Tensor) Split() ([]Image, error) {
	total, err := volume(t.Shape...)
	if err != nil {
		return nil, fmt.Errorf("tensor shape: %w", err)
	}
	if len(t.Data) != total {
		return nil, fmt.Errorf("tensor data has %d values, shape %v needs %d", len(t.Data), t.Shape, total)
	}

	var h, w, c int
	switch len(t.Shape) {
	case 4:
		h, w, c = t.Shape[1], t.Shape[2], t.Shape[3]
	case 3:
		h, w, c = t.Shape[1], t.Shape[2], 1
	default:
		return nil, fmt.Errorf("tensor must be rank 3 or 4, got shape %v", t.Shape)
	}

	n := t.Shape[0]
	size := h * w * c
	images := make([]Image, 0, n)
	for i := 0; i < n; i++ {
		img, err := NewImage(h, w, c, t.Data[i*size:(i+1)*size])
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		images = append(images, img)
	}
	return images, nil
}

// to8 clamps to [0,1], scales by 255 in float32 and truncates toward zero.
func to8(v float32) uint8 {
	if math.IsNaN(float64(v)) || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v * 255)
}

// ToRGB converts the image to an opaque 8-bit image. Grayscale is replicated
// across RGB; a fourth channel is treated as alpha and dropped.
func (img Image) ToRGB() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			base := (y*img.Width + x) * img.Channels
			var r, g, b uint8
			switch img.Channels {
			case 1, 2:
				r = to8(img.Data[base])
				g, b = r, r
			default:
				r = to8(img.Data[base])
				g = to8(img.Data[base+1])
				b = to8(img.Data[base+2])
			}
			out.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return out
}

// EncodePNG writes the image as an RGB PNG.
func (img Image) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img.ToRGB()); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL returns the image as data:image/png;base64,<data>.
func (img Image) DataURL() (string, error) {
	raw, err := img.EncodePNG()
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw), nil
}

// FromImage converts any decoded image to a 3-channel float Image.
func FromImage(src image.Image) Image {
	bounds := src.Bounds()
	h, w := bounds.Dy(), bounds.Dx()
	data := make([]float32, 0, h*w*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			data = append(data, float32(c.R)/255, float32(c.G)/255, float32(c.B)/255)
		}
	}
	return Image{Height: h, Width: w, Channels: 3, Data: data}
}
