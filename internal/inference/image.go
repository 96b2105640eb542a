package inference

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
)

// Image is one channel-first 8-bit image (C×H×W).
type Image struct {
	Channels int
	Height   int
	Width    int
	Pix      []uint8
}

// ToUint8 maps an N×C×H×W tensor from dynamic range [lo, hi] onto [0, 255],
// clipping out-of-range values and truncating toward zero.
func ToUint8(t *Tensor, drange [2]float64) ([]Image, error) {
	if len(t.Shape) != 4 {
		return nil, fmt.Errorf("expected NCHW tensor, got shape %v", t.Shape)
	}
	if drange[1] == drange[0] {
		return nil, fmt.Errorf("empty dynamic range %v", drange)
	}
	n, c, h, w := t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3]
	if len(t.Data) != n*c*h*w {
		return nil, fmt.Errorf("tensor data length %d does not match shape %v", len(t.Data), t.Shape)
	}

	scale := float32(255 / (drange[1] - drange[0]))
	bias := float32(0.5) - float32(drange[0])*scale

	per := c * h * w
	images := make([]Image, n)
	for i := range images {
		src := t.Data[i*per : (i+1)*per]
		pix := make([]uint8, per)
		for j, v := range src {
			pix[j] = clipUint8(v*scale + bias)
		}
		images[i] = Image{Channels: c, Height: h, Width: w, Pix: pix}
	}
	return images, nil
}

func clipUint8(v float32) uint8 {
	switch {
	case math.IsNaN(float64(v)), v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}

// ToImage converts the channel-first buffer to an image.Image.
// 1-channel buffers become grayscale, 3-channel RGB, 4-channel RGBA.
func (m Image) ToImage() (image.Image, error) {
	plane := m.Height * m.Width
	if len(m.Pix) != m.Channels*plane {
		return nil, fmt.Errorf("pixel buffer length %d does not match %dx%dx%d", len(m.Pix), m.Channels, m.Height, m.Width)
	}
	rect := image.Rect(0, 0, m.Width, m.Height)

	switch m.Channels {
	case 1:
		img := image.NewGray(rect)
		copy(img.Pix, m.Pix)
		return img, nil
	case 3, 4:
		img := image.NewNRGBA(rect)
		for y := 0; y < m.Height; y++ {
			for x := 0; x < m.Width; x++ {
				k := y*m.Width + x
				a := uint8(255)
				if m.Channels == 4 {
					a = m.Pix[3*plane+k]
				}
				img.SetNRGBA(x, y, color.NRGBA{R: m.Pix[k], G: m.Pix[plane+k], B: m.Pix[2*plane+k], A: a})
			}
		}
		return img, nil
	}
	return nil, fmt.Errorf("unsupported channel count %d", m.Channels)
}

// WritePNG encodes the image to path, replacing any existing file.
func WritePNG(path string, m Image) error {
	img, err := m.ToImage()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
