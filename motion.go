package h263

// MotionCompensator forms motion compensated predictions. Decode calls it
// before summing coded residuals onto the prediction.
type MotionCompensator interface {
	// Predict writes the forward prediction of the macroblock at p.Col, p.Row
	// into dst, reading from ref.
	Predict(dst, ref *Picture, p *Prediction)
	// PredictB writes the B prediction of a PB macroblock into dst: forward from
	// ref using p.MV, backward from next (the P picture of the same unit) using
	// p.Backward.
	PredictB(dst, ref, next *Picture, p *Prediction)
}

// Remote vector slots of a luma block for overlapped motion compensation.
const (
	RemoteAbove = iota
	RemoteBelow
	RemoteLeft
	RemoteRight
)

// Prediction describes one macroblock prediction.
type Prediction struct {
	Col int
	Row int

	// MV holds one vector (MV[0]) or four luma block vectors when FourV is set,
	// in half-sample units.
	MV       [4]MotionVector
	Backward [4]MotionVector
	FourV    bool

	// Overlap enables overlapped block motion compensation with the vectors
	// of the neighboring blocks in Remote.
	Overlap bool
	Remote  [4][4]MotionVector

	// FullPel selects integer sample vectors, LoopFilter the 1-2-1 filter.
	FullPel    bool
	LoopFilter bool
}

// DefaultMotion is the built-in MotionCompensator. Reference samples
// outside the picture are taken from the nearest edge sample.
type DefaultMotion struct{}

var _ MotionCompensator = DefaultMotion{}

// Predict implements MotionCompensator.
func (DefaultMotion) Predict(dst, ref *Picture, p *Prediction) {
	x := p.Col << 4
	y := p.Row << 4

	var blk [64]byte

	for b := 0; b < 4; b++ {
		mv := p.MV[0]
		if p.FourV {
			mv = p.MV[b]
		}
		if p.FullPel {
			mv.X, mv.Y = mv.X*2, mv.Y*2
		}

		bx := x + (b&1)<<3
		by := y + (b>>1)<<3

		if p.Overlap && !p.FullPel {
			overlapBlock(&ref.Y, bx, by, mv, &p.Remote[b], blk[:])
		} else {
			predictBlock(&ref.Y, bx, by, 8, 8, mv, blk[:], 8)
			if p.LoopFilter {
				loopFilter(&blk)
			}
		}

		storeBlock(&dst.Y, bx, by, blk[:])
	}

	cmv := chromaVector(p)
	cx := p.Col << 3
	cy := p.Row << 3

	predictBlock(&ref.Cb, cx, cy, 8, 8, cmv, blk[:], 8)
	if p.LoopFilter {
		loopFilter(&blk)
	}
	storeBlock(&dst.Cb, cx, cy, blk[:])

	predictBlock(&ref.Cr, cx, cy, 8, 8, cmv, blk[:], 8)
	if p.LoopFilter {
		loopFilter(&blk)
	}
	storeBlock(&dst.Cr, cx, cy, blk[:])
}

// PredictB implements MotionCompensator.
func (DefaultMotion) PredictB(dst, ref, next *Picture, p *Prediction) {
	x := p.Col << 4
	y := p.Row << 4

	var fwd, bwd [64]byte

	for b := 0; b < 4; b++ {
		mvf, mvb := p.MV[0], p.Backward[0]
		if p.FourV {
			mvf, mvb = p.MV[b], p.Backward[b]
		}

		bx := x + (b&1)<<3
		by := y + (b>>1)<<3

		predictBlock(&ref.Y, bx, by, 8, 8, mvf, fwd[:], 8)
		predictBlock(&next.Y, bx, by, 8, 8, mvb, bwd[:], 8)
		bidirectional(&fwd, &bwd, bx, by, x, y, 16, mvb)

		storeBlock(&dst.Y, bx, by, fwd[:])
	}

	fp := *p
	bp := *p
	bp.MV = p.Backward
	cmvf := chromaVector(&fp)
	cmvb := chromaVector(&bp)
	cx := p.Col << 3
	cy := p.Row << 3

	predictBlock(&ref.Cb, cx, cy, 8, 8, cmvf, fwd[:], 8)
	predictBlock(&next.Cb, cx, cy, 8, 8, cmvb, bwd[:], 8)
	bidirectional(&fwd, &bwd, cx, cy, cx, cy, 8, cmvb)
	storeBlock(&dst.Cb, cx, cy, fwd[:])

	predictBlock(&ref.Cr, cx, cy, 8, 8, cmvf, fwd[:], 8)
	predictBlock(&next.Cr, cx, cy, 8, 8, cmvb, bwd[:], 8)
	bidirectional(&fwd, &bwd, cx, cy, cx, cy, 8, cmvb)
	storeBlock(&dst.Cr, cx, cy, fwd[:])
}

// bidirectional averages the backward prediction into fwd for the samples
// whose backward reference lies inside the co-located P macroblock.
func bidirectional(fwd, bwd *[64]byte, bx, by, mbx, mby, size int, mvb MotionVector) {
	for j := 0; j < 8; j++ {
		ry := by + j + mvb.Y>>1
		if ry < mby || ry >= mby+size {
			continue
		}
		for i := 0; i < 8; i++ {
			rx := bx + i + mvb.X>>1
			if rx < mbx || rx >= mbx+size {
				continue
			}
			n := j*8 + i
			fwd[n] = byte((int(fwd[n]) + int(bwd[n])) >> 1)
		}
	}
}

// chromaVector derives the chroma vector of a macroblock.
func chromaVector(p *Prediction) MotionVector {
	if p.FullPel {
		// Integer luma vectors, chroma is halved and truncated
		return MotionVector{X: (p.MV[0].X / 2) * 2, Y: (p.MV[0].Y / 2) * 2}
	}

	if !p.FourV {
		return MotionVector{X: chroma1V(p.MV[0].X), Y: chroma1V(p.MV[0].Y)}
	}

	var sx, sy int
	for b := 0; b < 4; b++ {
		sx += p.MV[b].X
		sy += p.MV[b].Y
	}

	return MotionVector{X: chroma4V(sx), Y: chroma4V(sy)}
}

func chroma1V(v int) int {
	a := abs(v)
	c := 2 * (a / 4)
	if a%4 != 0 {
		c++
	}
	if v < 0 {
		return -c
	}

	return c
}

// chroma4V maps the sum of four luma vectors (sixteenths of a chroma sample
// in half units) to a half sample chroma vector.
func chroma4V(sum int) int {
	a := abs(sum)
	c := 2 * (a / 16)
	switch f := a % 16; {
	case f >= 14:
		c += 2
	case f >= 3:
		c++
	}
	if sum < 0 {
		return -c
	}

	return c
}

// predictBlock copies a w x h block from s at (x, y) displaced by mv into out
// with half sample interpolation.
func predictBlock(s *Plane, x, y, w, h int, mv MotionVector, out []byte, outStride int) {
	ix := x + mv.X>>1
	iy := y + mv.Y>>1
	oddH := mv.X&1 == 1
	oddV := mv.Y&1 == 1

	inside := ix >= 0 && iy >= 0 && ix+w+1 <= s.Width && iy+h+1 <= s.Height
	if !inside {
		predictBlockClamped(s, ix, iy, w, h, oddH, oddV, out, outStride)
		return
	}

	width := s.Stride
	si := iy*width + ix
	di := 0
	scan := width - w

	switch {
	case oddH && oddV:
		for j := 0; j < h; j++ {
			for i := 0; i < w; i++ {
				a := int(s.Data[si]) + int(s.Data[si+1])
				b := int(s.Data[si+width]) + int(s.Data[si+width+1])
				out[di+i] = byte((a + b + 2) >> 2)
				si++
			}
			si += scan
			di += outStride
		}
	case oddH:
		for j := 0; j < h; j++ {
			for i := 0; i < w; i++ {
				out[di+i] = byte((int(s.Data[si]) + int(s.Data[si+1]) + 1) >> 1)
				si++
			}
			si += scan
			di += outStride
		}
	case oddV:
		for j := 0; j < h; j++ {
			for i := 0; i < w; i++ {
				out[di+i] = byte((int(s.Data[si]) + int(s.Data[si+width]) + 1) >> 1)
				si++
			}
			si += scan
			di += outStride
		}
	default:
		for j := 0; j < h; j++ {
			copy(out[di:di+w], s.Data[si:si+w])
			si += width
			di += outStride
		}
	}
}

func predictBlockClamped(s *Plane, ix, iy, w, h int, oddH, oddV bool, out []byte, outStride int) {
	dx, dy := 0, 0
	if oddH {
		dx = 1
	}
	if oddV {
		dy = 1
	}

	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			a := s.sample(ix+i, iy+j)
			var v int
			switch {
			case oddH && oddV:
				v = (a + s.sample(ix+i+dx, iy+j) + s.sample(ix+i, iy+j+dy) + s.sample(ix+i+dx, iy+j+dy) + 2) >> 2
			case oddH:
				v = (a + s.sample(ix+i+dx, iy+j) + 1) >> 1
			case oddV:
				v = (a + s.sample(ix+i, iy+j+dy) + 1) >> 1
			default:
				v = a
			}
			out[j*outStride+i] = byte(v)
		}
	}
}

// sample returns the sample at x, y with coordinates clamped to the plane.
func (p *Plane) sample(x, y int) int {
	if x < 0 {
		x = 0
	} else if x >= p.Width {
		x = p.Width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= p.Height {
		y = p.Height - 1
	}

	return int(p.Data[y*p.Stride+x])
}

func storeBlock(d *Plane, x, y int, blk []byte) {
	di := y*d.Stride + x
	for j := 0; j < 64; j += 8 {
		copy(d.Data[di:di+8], blk[j:j+8])
		di += d.Stride
	}
}

// Overlapped motion compensation weights for the current, the vertical
// and the horizontal neighbor vector.
var (
	obmcCurrent = [64]uint8{
		4, 5, 5, 5, 5, 5, 5, 4,
		5, 5, 5, 5, 5, 5, 5, 5,
		5, 5, 6, 6, 6, 6, 5, 5,
		5, 5, 6, 6, 6, 6, 5, 5,
		5, 5, 6, 6, 6, 6, 5, 5,
		5, 5, 6, 6, 6, 6, 5, 5,
		5, 5, 5, 5, 5, 5, 5, 5,
		4, 5, 5, 5, 5, 5, 5, 4,
	}
	obmcVertical = [64]uint8{
		2, 2, 2, 2, 2, 2, 2, 2,
		1, 1, 2, 2, 2, 2, 1, 1,
		1, 1, 1, 1, 1, 1, 1, 1,
		1, 1, 1, 1, 1, 1, 1, 1,
		1, 1, 1, 1, 1, 1, 1, 1,
		1, 1, 1, 1, 1, 1, 1, 1,
		1, 1, 2, 2, 2, 2, 1, 1,
		2, 2, 2, 2, 2, 2, 2, 2,
	}
	obmcHorizontal = [64]uint8{
		2, 1, 1, 1, 1, 1, 1, 2,
		2, 2, 1, 1, 1, 1, 2, 2,
		2, 2, 1, 1, 1, 1, 2, 2,
		2, 2, 1, 1, 1, 1, 2, 2,
		2, 2, 1, 1, 1, 1, 2, 2,
		2, 2, 1, 1, 1, 1, 2, 2,
		2, 2, 1, 1, 1, 1, 2, 2,
		2, 1, 1, 1, 1, 1, 1, 2,
	}
)

func overlapBlock(s *Plane, x, y int, mv MotionVector, remote *[4]MotionVector, out []byte) {
	var q, above, below, left, right [64]byte

	predictBlock(s, x, y, 8, 8, mv, q[:], 8)
	predictBlock(s, x, y, 8, 8, remote[RemoteAbove], above[:], 8)
	predictBlock(s, x, y, 8, 8, remote[RemoteBelow], below[:], 8)
	predictBlock(s, x, y, 8, 8, remote[RemoteLeft], left[:], 8)
	predictBlock(s, x, y, 8, 8, remote[RemoteRight], right[:], 8)

	for j := 0; j < 8; j++ {
		r := &above
		if j >= 4 {
			r = &below
		}
		for i := 0; i < 8; i++ {
			h := &left
			if i >= 4 {
				h = &right
			}
			n := j*8 + i
			v := int(q[n])*int(obmcCurrent[n]) +
				int(r[n])*int(obmcVertical[n]) +
				int(h[n])*int(obmcHorizontal[n])
			out[n] = byte((v + 4) >> 3)
		}
	}
}

// loopFilter applies the separable 1-2-1 filter, samples on the block edge
// are left unfiltered in that direction.
func loopFilter(blk *[64]byte) {
	var tmp [64]int

	for j := 0; j < 8; j++ {
		row := j * 8
		tmp[row] = 4 * int(blk[row])
		tmp[row+7] = 4 * int(blk[row+7])
		for i := 1; i < 7; i++ {
			tmp[row+i] = int(blk[row+i-1]) + 2*int(blk[row+i]) + int(blk[row+i+1])
		}
	}

	for i := 0; i < 8; i++ {
		blk[i] = byte((4*tmp[i] + 8) >> 4)
		blk[56+i] = byte((4*tmp[56+i] + 8) >> 4)
		for j := 1; j < 7; j++ {
			n := j*8 + i
			blk[n] = byte((tmp[n-8] + 2*tmp[n] + tmp[n+8] + 8) >> 4)
		}
	}
}
