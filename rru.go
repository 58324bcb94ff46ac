package h263

// rruVector derives the vector of a 16x16 quadrant from the vector of its
// 32x32 unit: doubled, odd values pulled one half sample towards zero.
func rruVector(v int) int {
	d := 2 * v
	if v&1 != 0 {
		if v > 0 {
			d--
		} else {
			d++
		}
	}

	return d
}

// upsampleResidual interpolates an 8x8 residual to 16x16. Inner samples use
// the 9:3:3:1 weights of their four nearest source samples, samples on the
// block border fall back to 3:1 weights along the border.
func upsampleResidual(in *[64]int16, out *[256]int16) {
	var h [8][16]int32

	for j := 0; j < 8; j++ {
		row := in[j*8 : j*8+8]
		h[j][0] = 4 * int32(row[0])
		h[j][15] = 4 * int32(row[7])
		for i := 0; i < 7; i++ {
			a := int32(row[i])
			b := int32(row[i+1])
			h[j][2*i+1] = 3*a + b
			h[j][2*i+2] = a + 3*b
		}
	}

	for x := 0; x < 16; x++ {
		out[x] = int16((4*h[0][x] + 8) >> 4)
		out[15*16+x] = int16((4*h[7][x] + 8) >> 4)
		for j := 0; j < 7; j++ {
			a := h[j][x]
			b := h[j+1][x]
			out[(2*j+1)*16+x] = int16((3*a + b + 8) >> 4)
			out[(2*j+2)*16+x] = int16((a + 3*b + 8) >> 4)
		}
	}
}

// addResidual sums a size x size window of a 16 wide residual onto the
// plane at x, y, or writes it over zero with intra.
func (t *Tables) addResidual(p *Plane, x, y, size int, res []int16, intra bool) {
	di := y*p.Stride + x
	for j := 0; j < size; j++ {
		d := p.Data[di : di+size]
		r := res[j*16 : j*16+size]
		for i := range d {
			base := 0
			if !intra {
				base = int(d[i])
			}
			d[i] = t.clip[base+int(r[i])+clipOffset]
		}
		di += p.Stride
	}
}

// decodeRRU reconstructs a 32x32 reduced-resolution unit as four 16x16
// quadrants. Quadrants outside the picture are skipped.
func (s *Session) decodeRRU(mb *MacroblockDescr) (int, error) {
	t := s.tables
	quant := clampQuant(mb.Quant)
	intra := mb.Type.IsIntra()

	var res [6][256]int16
	var coded [6]bool

	if mb.Type != MBSkip {
		for b := 0; b < 6; b++ {
			if !intra && !mb.Coded(b) {
				continue
			}
			var half [64]int16
			t.Reconstruct16(&mb.Blocks[b], quant, intra, &half)
			upsampleResidual(&half, &res[b])
			coded[b] = true
		}
	}

	dst := s.newOut
	cost := 0

	for q := 0; q < 4; q++ {
		col := 2*mb.Col + q&1
		row := 2*mb.Row + q>>1
		if col >= s.geom.MBCols || row >= s.geom.MBRows {
			continue
		}

		switch {
		case intra:
		case s.mismatch:
			dst.fillMacroblock(col, row, 128)
		case mb.Type == MBSkip:
			dst.copyMacroblockFrom(s.oldOut, col, row)
		default:
			v := mb.MV[0]
			if mb.Type.hasFourVectors() {
				v = mb.MV[q]
			}
			pred := Prediction{
				Col: col,
				Row: row,
				MV:  [4]MotionVector{{X: rruVector(v.X), Y: rruVector(v.Y)}},
			}
			s.motion.Predict(dst, s.oldOut, &pred)
		}

		if coded[q] {
			t.addResidual(&dst.Y, col<<4, row<<4, 16, res[q][:], intra)
		}

		cx := (q & 1) << 3
		cy := (q >> 1) << 3
		if coded[4] {
			t.addResidual(&dst.Cb, col<<3, row<<3, 8, res[4][cy*16+cx:], intra)
		}
		if coded[5] {
			t.addResidual(&dst.Cr, col<<3, row<<3, 8, res[5][cy*16+cx:], intra)
		}

		if mb.Type != MBSkip || s.mismatch {
			s.mbmap.markMacroblock(col, row)
		}
		s.mbmap.set(col, row, mb.Type, quant)
		s.mbDone[row*s.geom.MBCols+col] = true
		s.mvField[row*s.geom.MBCols+col] = mvEntry{}

		cost += 4
	}

	s.stats.Macroblocks[mb.Type]++

	return cost, nil
}
