package h263

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// PixelFormat is a Convert target format.
type PixelFormat int

const (
	// PixelRGB555 is 16 bit little endian x1r5g5b5.
	PixelRGB555 PixelFormat = iota
	// PixelYUY2 is packed 4:2:2, Y0 U Y1 V.
	PixelYUY2
	// PixelYVU9 is planar 4:1:0: the Y plane, then V, then U at a quarter of the width and height.
	PixelYVU9
)

func (f PixelFormat) String() string {
	switch f {
	case PixelRGB555:
		return "RGB555"
	case PixelYUY2:
		return "YUY2"
	case PixelYVU9:
		return "YVU9"
	}

	return "unknown"
}

// ConvertOptions controls Convert.
type ConvertOptions struct {
	Format PixelFormat

	// Width and Height of the output, 0 keeps the picture size. Only RGB555
	// output can be scaled.
	Width  int
	Height int

	// Stride is the byte distance between output rows of RGB555 and YUY2,
	// 0 packs the rows.
	Stride int

	// Dirty limits RGB555 output at picture size to the 8x8 blocks the map
	// flags as changed, the rest of dst is left untouched.
	Dirty *MacroblockMap
}

// BufferSize returns the number of bytes Convert needs for opt and a picture of width x height.
func (opt ConvertOptions) BufferSize(width, height int) int {
	w, h := opt.Width, opt.Height
	if w == 0 || h == 0 {
		w, h = width, height
	}

	switch opt.Format {
	case PixelYVU9:
		cw, ch := (w+3)/4, (h+3)/4
		return w*h + 2*cw*ch
	}

	stride := opt.Stride
	if stride == 0 {
		stride = 2 * w
	}

	return stride*(h-1) + 2*w
}

// Convert writes picture p to dst in the format and size of opt.
// Output rows are written bottom-up: the first row of dst holds the last picture row.
func (t *Tables) Convert(p *Picture, dst []byte, opt ConvertOptions) error {
	w, h := p.Width, p.Height
	dw, dh := opt.Width, opt.Height
	if dw == 0 || dh == 0 {
		dw, dh = w, h
	}

	if dw <= 0 || dh <= 0 || dw > 4*MaxDimension || dh > 4*MaxDimension {
		return errors.Wrapf(ErrUnsupportedConversion, "%s %dx%d", opt.Format, dw, dh)
	}

	scaled := dw != w || dh != h

	if opt.Format != PixelRGB555 && (scaled || opt.Dirty != nil) {
		return errors.Wrapf(ErrUnsupportedConversion, "%s %dx%d from %dx%d", opt.Format, dw, dh, w, h)
	}
	if opt.Dirty != nil && scaled {
		return errors.Wrap(ErrUnsupportedConversion, "selective update of scaled output")
	}

	stride := opt.Stride
	if stride == 0 {
		stride = 2 * dw
	}
	if opt.Format != PixelYVU9 && stride < 2*dw {
		return errors.Wrapf(ErrUnsupportedConversion, "stride %d for width %d", stride, dw)
	}

	if need := opt.BufferSize(w, h); len(dst) < need {
		return errors.Wrapf(ErrShortBuffer, "%d bytes, need %d", len(dst), need)
	}

	switch opt.Format {
	case PixelYUY2:
		convertYUY2(p, dst, stride)
		return nil
	case PixelYVU9:
		convertYVU9(p, dst)
		return nil
	case PixelRGB555:
	default:
		return errors.Wrapf(ErrUnsupportedConversion, "format %d", opt.Format)
	}

	switch {
	case opt.Dirty != nil:
		t.convertRGB555Dirty(p, dst, stride, opt.Dirty)
	case !scaled:
		t.convertRGB555Rect(p, dst, stride, 0, 0, w, h)
	case dw == 2*w && dh == 2*h && w%2 == 0 && h%2 == 0:
		t.scaleRGB555Double(p, dst, stride)
	case 2*dw == 3*w && 2*dh == 3*h && w%4 == 0 && dw%2 == 0 && dh%2 == 0:
		t.scaleRGB555OneAndHalf(p, dst, stride)
	default:
		t.scaleRGB555(p, dst, stride, dw, dh)
	}

	return nil
}

// chromaRows returns the chroma rows for luma row y, gray when the picture
// carries no color.
func chromaRows(p *Picture, y int) (cb, cr []byte) {
	if !p.Color {
		return nil, nil
	}

	off := (y >> 1) * p.Cb.Stride

	return p.Cb.Data[off:], p.Cr.Data[off:]
}

// putRGB555Row converts one row of luma and half width chroma.
func (t *Tables) putRGB555Row(out []byte, y, cb, cr []byte, x0, x1 int) {
	o := 2 * x0
	for x := x0; x < x1; x++ {
		ci := 16<<5 | 16
		if cb != nil {
			ci = int(cb[x>>1]>>3)<<5 | int(cr[x>>1]>>3)
		}
		binary.LittleEndian.PutUint16(out[o:], t.rgb555[ci][y[x]>>2])
		o += 2
	}
}

// convertRGB555Rect converts the picture area [x0,x1) x [y0,y1). A chroma
// pair is looked up once and serves both luma samples that share it.
func (t *Tables) convertRGB555Rect(p *Picture, dst []byte, stride, x0, y0, x1, y1 int) {
	h := p.Height

	for y := y0; y < y1; y++ {
		row := p.Y.Data[y*p.Y.Stride:]
		cb, cr := chromaRows(p, y)
		out := dst[(h-1-y)*stride:]

		x := x0
		if x&1 == 1 {
			t.putRGB555Row(out, row, cb, cr, x, x+1)
			x++
		}

		o := 2 * x
		for ; x+1 < x1; x += 2 {
			ci := 16<<5 | 16
			if cb != nil {
				ci = int(cb[x>>1]>>3)<<5 | int(cr[x>>1]>>3)
			}
			lut := &t.rgb555[ci]
			binary.LittleEndian.PutUint16(out[o:], lut[row[x]>>2])
			binary.LittleEndian.PutUint16(out[o+2:], lut[row[x+1]>>2])
			o += 4
		}

		if x < x1 {
			t.putRGB555Row(out, row, cb, cr, x, x1)
		}
	}
}

func (t *Tables) convertRGB555Dirty(p *Picture, dst []byte, stride int, m *MacroblockMap) {
	bw := min(2*m.Cols, (p.Width+7)>>3)
	bh := min(2*m.Rows, (p.Height+7)>>3)

	for by := 0; by < bh; by++ {
		for bx := 0; bx < bw; bx++ {
			if !m.BlockDirty(bx, by) {
				continue
			}
			x0, y0 := bx<<3, by<<3
			t.convertRGB555Rect(p, dst, stride, x0, y0, min(x0+8, p.Width), min(y0+8, p.Height))
		}
	}
}

func convertYUY2(p *Picture, dst []byte, stride int) {
	w, h := p.Width, p.Height

	for y := 0; y < h; y++ {
		row := p.Y.Data[y*p.Y.Stride:]
		cb, cr := chromaRows(p, y)
		out := dst[(h-1-y)*stride:]

		for x := 0; x < w; x += 2 {
			u, v := byte(128), byte(128)
			if cb != nil {
				u, v = cb[x>>1], cr[x>>1]
			}
			o := 2 * x
			out[o] = row[x]
			out[o+1] = u
			if x+1 < w {
				out[o+2] = row[x+1]
				out[o+3] = v
			}
		}
	}
}

// convertYVU9 writes the contiguous Y, V, U planes, chroma decimated to one
// sample per 4x4 luma block.
func convertYVU9(p *Picture, dst []byte) {
	w, h := p.Width, p.Height
	cw, ch := (w+3)/4, (h+3)/4

	for y := 0; y < h; y++ {
		copy(dst[(h-1-y)*w:(h-y)*w], p.Y.Data[y*p.Y.Stride:y*p.Y.Stride+w])
	}

	vPlane := dst[w*h:]
	uPlane := dst[w*h+cw*ch:]

	for j := 0; j < ch; j++ {
		sy := 2 * j
		vo := (ch - 1 - j) * cw
		for i := 0; i < cw; i++ {
			u, v := byte(128), byte(128)
			if p.Color {
				si := sy*p.Cb.Stride + 2*i
				u, v = p.Cb.Data[si], p.Cr.Data[si]
			}
			vPlane[vo+i] = v
			uPlane[vo+i] = u
		}
	}
}

func (t *Tables) initColor() {
	for ci := 0; ci < 1024; ci++ {
		d := (ci>>5)<<3 + 4 - 128 // Cb
		e := (ci&31)<<3 + 4 - 128 // Cr

		for l := 0; l < 64; l++ {
			c := 298 * (l<<2 + 2 - 16)

			r := clamp((c + 409*e + 128) >> 8)
			g := clamp((c - 100*d - 208*e + 128) >> 8)
			b := clamp((c + 516*d + 128) >> 8)

			t.rgb555[ci][l] = uint16(r>>3)<<10 | uint16(g>>3)<<5 | uint16(b>>3)
		}
	}
}

// RGB555 returns the RGB555 value of a YCbCr sample.
func (t *Tables) RGB555(y, cb, cr byte) uint16 {
	return t.rgb555[int(cb>>3)<<5|int(cr>>3)][y>>2]
}
