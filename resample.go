package h263

// Bilinear resampling in 16.16 fixed point. Output sample i of a line
// scaled from n to m samples sits at i*n/m source samples; its right (or
// lower) neighbor is clamped to the last source sample. Rows are scaled
// horizontally first, then vertically.

const (
	phaseHalf  = 32768
	phaseThird = 21845 // 1/3
	phaseTwo   = 43690 // 2/3
)

func lerp(a, b, f int) int {
	return (a*(65536-f) + b*f + 32768) >> 16
}

// position returns the source index and fraction of output sample i.
func position(i, n, m int) (int, int) {
	pos := int64(i) * int64(n) * 65536 / int64(m)
	return int(pos >> 16), int(pos & 0xffff)
}

func scaleLine(out, in []byte, n, m int) {
	for i := 0; i < m; i++ {
		k, f := position(i, n, m)
		out[i] = byte(lerp(int(in[k]), int(in[min(k+1, n-1)]), f))
	}
}

func mixLines(out, a, b []byte, f int) {
	if f == 0 {
		copy(out, a)
		return
	}

	for i := range out {
		out[i] = byte(lerp(int(a[i]), int(b[i]), f))
	}
}

// resamplePlane scales a w x h plane to dw x dh.
func resamplePlane(data []byte, stride, w, h, dw, dh int) []byte {
	tmp := make([]byte, dw*h)
	for y := 0; y < h; y++ {
		scaleLine(tmp[y*dw:(y+1)*dw], data[y*stride:], w, dw)
	}

	out := make([]byte, dw*dh)
	for y := 0; y < dh; y++ {
		k, f := position(y, h, dh)
		k1 := min(k+1, h-1)
		mixLines(out[y*dw:(y+1)*dw], tmp[k*dw:(k+1)*dw], tmp[k1*dw:(k1+1)*dw], f)
	}

	return out
}

// scaleRGB555 is the arbitrary ratio path: every plane is resampled in
// full, then converted.
func (t *Tables) scaleRGB555(p *Picture, dst []byte, stride, dw, dh int) {
	w, h := p.Width, p.Height
	cw, ch := (w+1)/2, (h+1)/2
	cdw, cdh := (dw+1)/2, (dh+1)/2

	y := resamplePlane(p.Y.Data, p.Y.Stride, w, h, dw, dh)

	var cb, cr []byte
	if p.Color {
		cb = resamplePlane(p.Cb.Data, p.Cb.Stride, cw, ch, cdw, cdh)
		cr = resamplePlane(p.Cr.Data, p.Cr.Stride, cw, ch, cdw, cdh)
	}

	for oy := 0; oy < dh; oy++ {
		var cbRow, crRow []byte
		if cb != nil {
			off := (oy >> 1) * cdw
			cbRow, crRow = cb[off:], cr[off:]
		}
		t.putRGB555Row(dst[(dh-1-oy)*stride:], y[oy*dw:], cbRow, crRow, 0, dw)
	}
}

// lineScaler produces scaled source lines on demand and keeps the last two.
type lineScaler struct {
	data   []byte
	stride int
	n      int
	h      int
	scale  func(out, in []byte, n int)

	rows [2][]byte
	idx  [2]int
}

func newLineScaler(data []byte, stride, n, h, m int, scale func(out, in []byte, n int)) *lineScaler {
	return &lineScaler{
		data:   data,
		stride: stride,
		n:      n,
		h:      h,
		scale:  scale,
		rows:   [2][]byte{make([]byte, m), make([]byte, m)},
		idx:    [2]int{-1, -1},
	}
}

func (l *lineScaler) line(y int) []byte {
	y = min(y, l.h-1)
	for i := 0; i < 2; i++ {
		if l.idx[i] == y {
			return l.rows[i]
		}
	}

	// Replace the older line
	slot := 0
	if l.idx[0] > l.idx[1] {
		slot = 1
	}
	l.scale(l.rows[slot], l.data[y*l.stride:], l.n)
	l.idx[slot] = y

	return l.rows[slot]
}

func doubleLine(out, in []byte, n int) {
	for k := 0; k < n; k++ {
		a := int(in[k])
		b := int(in[min(k+1, n-1)])
		out[2*k] = byte(a)
		out[2*k+1] = byte((a + b + 1) >> 1)
	}
}

func oneAndHalfLine(out, in []byte, n int) {
	for k := 0; k < n/2; k++ {
		a := int(in[2*k])
		b := int(in[2*k+1])
		c := int(in[min(2*k+2, n-1)])
		out[3*k] = byte(a)
		out[3*k+1] = byte(lerp(a, b, phaseTwo))
		out[3*k+2] = byte(lerp(b, c, phaseThird))
	}
}

// doublePhase and oneAndHalfPhase return the source line and fraction of output line i.
func doublePhase(i int) (int, int) {
	return i >> 1, (i & 1) * phaseHalf
}

func oneAndHalfPhase(i int) (int, int) {
	k := i / 3
	switch i % 3 {
	case 1:
		return 2 * k, phaseTwo
	case 2:
		return 2*k + 1, phaseThird
	}

	return 2 * k, 0
}

// scaleRGB555Fused scales and converts one output row at a time.
func (t *Tables) scaleRGB555Fused(p *Picture, dst []byte, stride, dw, dh int,
	line func(out, in []byte, n int), phase func(i int) (int, int)) {
	w, h := p.Width, p.Height
	cw, ch := w/2, h/2
	cdw := dw / 2

	ys := newLineScaler(p.Y.Data, p.Y.Stride, w, h, dw, line)
	yRow := make([]byte, dw)

	var cbs, crs *lineScaler
	var cbRow, crRow []byte
	if p.Color {
		cbs = newLineScaler(p.Cb.Data, p.Cb.Stride, cw, ch, cdw, line)
		crs = newLineScaler(p.Cr.Data, p.Cr.Stride, cw, ch, cdw, line)
		cbRow = make([]byte, cdw)
		crRow = make([]byte, cdw)
	}

	lastChroma := -1
	for oy := 0; oy < dh; oy++ {
		k, f := phase(oy)
		mixLines(yRow, ys.line(k), ys.line(k+1), f)

		if cy := oy >> 1; cbs != nil && cy != lastChroma {
			k, f := phase(cy)
			mixLines(cbRow, cbs.line(k), cbs.line(k+1), f)
			mixLines(crRow, crs.line(k), crs.line(k+1), f)
			lastChroma = cy
		}

		t.putRGB555Row(dst[(dh-1-oy)*stride:], yRow, cbRow, crRow, 0, dw)
	}
}

// scaleRGB555Double is the fused path for exact 2x output.
func (t *Tables) scaleRGB555Double(p *Picture, dst []byte, stride int) {
	t.scaleRGB555Fused(p, dst, stride, 2*p.Width, 2*p.Height, doubleLine, doublePhase)
}

// scaleRGB555OneAndHalf is the fused path for exact 1.5x output.
func (t *Tables) scaleRGB555OneAndHalf(p *Picture, dst []byte, stride int) {
	t.scaleRGB555Fused(p, dst, stride, 3*p.Width/2, 3*p.Height/2, oneAndHalfLine, oneAndHalfPhase)
}
