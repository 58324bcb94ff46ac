package h263

import (
	"image"
)

// PictureKind is the coding kind of a completed picture.
type PictureKind int

const (
	PictureIntra PictureKind = iota
	PictureInter
	PictureB
)

func (k PictureKind) String() string {
	switch k {
	case PictureIntra:
		return "I"
	case PictureInter:
		return "P"
	case PictureB:
		return "B"
	}

	return "unknown"
}

// Plane represents one picture plane.
// Stride is the distance in bytes between two rows and is never smaller than Width;
// a session keeps the stride of its largest geometry when the picture shrinks.
type Plane struct {
	Width  int
	Height int
	Stride int
	Data   []byte
}

// Row returns the visible samples of row y.
func (p *Plane) Row(y int) []byte {
	off := y * p.Stride
	return p.Data[off : off+p.Width]
}

// Fill sets every visible sample to v.
func (p *Plane) Fill(v byte) {
	for y := 0; y < p.Height; y++ {
		row := p.Row(y)
		for i := range row {
			row[i] = v
		}
	}
}

// Picture represents a decoded picture.
// The sizes of the planes are always rounded up to the nearest macroblock (16px).
type Picture struct {
	Kind        PictureKind
	TemporalRef int

	Width  int
	Height int

	Y  Plane
	Cb Plane
	Cr Plane

	// Color is false for pictures that only carry meaningful luma
	// (gray fill after a geometry mismatch).
	Color bool

	valid bool

	imYCbCr image.YCbCr
}

// YCbCr returns picture as image.YCbCr.
func (p *Picture) YCbCr() *image.YCbCr {
	p.imYCbCr = image.YCbCr{
		Y:              p.Y.Data,
		Cb:             p.Cb.Data,
		Cr:             p.Cr.Data,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		YStride:        p.Y.Stride,
		CStride:        p.Cb.Stride,
		Rect:           image.Rect(0, 0, p.Width, p.Height),
	}

	return &p.imYCbCr
}

// SameGeometry reports whether both pictures share display and plane sizes.
func (p *Picture) SameGeometry(o *Picture) bool {
	return p.Width == o.Width && p.Height == o.Height &&
		p.Y.Width == o.Y.Width && p.Y.Height == o.Y.Height
}

// newPicture allocates a picture able to hold capW x capH luma samples.
func newPicture(capW, capH int) *Picture {
	lumaSize := capW * capH
	chromaSize := (capW >> 1) * (capH >> 1)
	frameSize := lumaSize + 2*chromaSize

	base := make([]byte, frameSize)

	p := &Picture{}
	p.Y.Stride = capW
	p.Y.Data = base[0:lumaSize:lumaSize]

	p.Cb.Stride = capW >> 1
	p.Cb.Data = base[lumaSize : lumaSize+chromaSize : lumaSize+chromaSize]

	p.Cr.Stride = capW >> 1
	p.Cr.Data = base[lumaSize+chromaSize : frameSize : frameSize]

	return p
}

// setGeometry resizes the visible area, the caller guarantees it fits the capacity.
func (p *Picture) setGeometry(width, height, lumaWidth, lumaHeight int) {
	p.Width = width
	p.Height = height

	p.Y.Width = lumaWidth
	p.Y.Height = lumaHeight

	p.Cb.Width = lumaWidth >> 1
	p.Cb.Height = lumaHeight >> 1

	p.Cr.Width = lumaWidth >> 1
	p.Cr.Height = lumaHeight >> 1
}

// fillGray sets all samples to mid-gray.
func (p *Picture) fillGray() {
	p.Y.Fill(128)
	p.Cb.Fill(128)
	p.Cr.Fill(128)
}

// copyMacroblockFrom copies the co-located macroblock of src (zero motion).
func (p *Picture) copyMacroblockFrom(src *Picture, mbCol, mbRow int) {
	copyRect(&p.Y, &src.Y, mbCol<<4, mbRow<<4, 16)
	copyRect(&p.Cb, &src.Cb, mbCol<<3, mbRow<<3, 8)
	copyRect(&p.Cr, &src.Cr, mbCol<<3, mbRow<<3, 8)
}

// fillMacroblock sets the samples of one macroblock to v.
func (p *Picture) fillMacroblock(mbCol, mbRow int, v byte) {
	fillRect(&p.Y, mbCol<<4, mbRow<<4, 16, v)
	fillRect(&p.Cb, mbCol<<3, mbRow<<3, 8, v)
	fillRect(&p.Cr, mbCol<<3, mbRow<<3, 8, v)
}

func copyRect(d, s *Plane, x, y, size int) {
	di := y*d.Stride + x
	si := y*s.Stride + x
	for n := 0; n < size; n++ {
		copy(d.Data[di:di+size], s.Data[si:si+size])
		di += d.Stride
		si += s.Stride
	}
}

func fillRect(d *Plane, x, y, size int, v byte) {
	di := y*d.Stride + x
	for n := 0; n < size; n++ {
		row := d.Data[di : di+size]
		for i := range row {
			row[i] = v
		}
		di += d.Stride
	}
}
