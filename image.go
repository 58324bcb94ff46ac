package h263

import (
	"encoding/binary"
	"image"
	"image/color"
)

// RGB555Image is an image.Image over a bottom-up RGB555 buffer as written by Convert.
type RGB555Image struct {
	Pix    []byte
	Stride int
	Rect   image.Rectangle
}

// NewRGB555Image allocates a packed bottom-up image of width x height.
func NewRGB555Image(width, height int) *RGB555Image {
	return &RGB555Image{
		Pix:    make([]byte, 2*width*height),
		Stride: 2 * width,
		Rect:   image.Rect(0, 0, width, height),
	}
}

// ColorModel implements image.Image.
func (m *RGB555Image) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds implements image.Image.
func (m *RGB555Image) Bounds() image.Rectangle {
	return m.Rect
}

// At implements image.Image.
func (m *RGB555Image) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}.In(m.Rect)) {
		return color.RGBA{}
	}

	row := m.Rect.Max.Y - 1 - y
	v := binary.LittleEndian.Uint16(m.Pix[row*m.Stride+2*(x-m.Rect.Min.X):])

	return color.RGBA{
		R: expand5(v >> 10),
		G: expand5(v >> 5),
		B: expand5(v),
		A: 0xff,
	}
}

// ConvertOptions returns options that make Convert fill m.
func (m *RGB555Image) ConvertOptions() ConvertOptions {
	return ConvertOptions{
		Format: PixelRGB555,
		Width:  m.Rect.Dx(),
		Height: m.Rect.Dy(),
		Stride: m.Stride,
	}
}

func expand5(v uint16) uint8 {
	v &= 31
	return uint8(v<<3 | v>>2)
}
