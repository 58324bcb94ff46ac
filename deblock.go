package h263

const rampOffset = 160

// deblocker holds the edge correction table of the current quantizer.
type deblocker struct {
	quant int
	ramp  [2*rampOffset + 1]int
}

// upDownRamp passes small differences, tapers between S and 2S and
// suppresses larger ones, which are taken to be real edges.
func upDownRamp(x, s int) int {
	a := abs(x)
	v := a - 2*max(0, a-s)
	if v < 0 {
		v = 0
	}
	if x < 0 {
		return -v
	}

	return v
}

func (d *deblocker) setQuant(t *Tables, quant int) {
	quant = clampQuant(quant)
	if d.quant == quant {
		return
	}

	s := t.strength[quant]
	for i := range d.ramp {
		d.ramp[i] = upDownRamp(i-rampOffset, s)
	}
	d.quant = quant
}

// filterEdge corrects B and C, the two samples straddling an edge, from
// the four samples A, B, C, D at index, index+step, ...
func (d *deblocker) filterEdge(data []byte, b, step int) {
	a := int(data[b-step])
	bv := int(data[b])
	c := int(data[b+step])
	dv := int(data[b+2*step])

	diff := (a - 4*bv + 4*c - dv) / 8
	d1 := d.ramp[diff+rampOffset]

	data[b] = clamp(bv + d1)
	data[b+step] = clamp(c - d1)
}

// edgeQuant selects the quantizer for an edge between macroblocks p (A, B
// side) and q (C, D side). It returns false when both are skipped.
func edgeQuant(m *MacroblockMap, pi, qi int) (int, bool) {
	switch {
	case m.Types[qi] != MBSkip:
		return int(m.Quants[qi]), true
	case m.Types[pi] != MBSkip:
		return int(m.Quants[pi]), true
	}

	return 0, false
}

// filterPicture runs the deblocking filter over all 8x8 block edges of p:
// horizontal edges first, then vertical edges.
func (d *deblocker) filterPicture(t *Tables, p *Picture, m *MacroblockMap) {
	d.filterPlane(t, &p.Y, m, 16, true)
	d.filterPlane(t, &p.Cb, m, 8, false)
	d.filterPlane(t, &p.Cr, m, 8, false)
}

func (d *deblocker) filterPlane(t *Tables, pl *Plane, m *MacroblockMap, mbSize int, luma bool) {
	stride := pl.Stride

	// Horizontal edges
	for y := 8; y < pl.Height; y += 8 {
		rowP := (y - 1) / mbSize
		rowQ := y / mbSize
		for x := 0; x < pl.Width; x += 8 {
			col := x / mbSize
			qnt, ok := edgeQuant(m, rowP*m.Cols+col, rowQ*m.Cols+col)
			if !ok {
				continue
			}
			d.setQuant(t, qnt)

			base := (y-1)*stride + x
			for i := 0; i < 8; i++ {
				d.filterEdge(pl.Data, base+i, stride)
			}

			if luma {
				m.markBlock(x>>3, (y-1)>>3)
				m.markBlock(x>>3, y>>3)
			}
		}
	}

	// Vertical edges
	for x := 8; x < pl.Width; x += 8 {
		colP := (x - 1) / mbSize
		colQ := x / mbSize
		for y := 0; y < pl.Height; y += 8 {
			row := y / mbSize
			qnt, ok := edgeQuant(m, row*m.Cols+colP, row*m.Cols+colQ)
			if !ok {
				continue
			}
			d.setQuant(t, qnt)

			base := y*stride + x - 1
			for i := 0; i < 8; i++ {
				d.filterEdge(pl.Data, base+i*stride, 1)
			}

			if luma {
				m.markBlock((x-1)>>3, y>>3)
				m.markBlock(x>>3, y>>3)
			}
		}
	}
}

// rruCoded reports whether any macroblock of the 32x32 unit at ux, uy is coded.
func rruCoded(m *MacroblockMap, ux, uy int) bool {
	for j := 0; j < 2; j++ {
		row := 2*uy + j
		if row >= m.Rows {
			break
		}
		for i := 0; i < 2; i++ {
			col := 2*ux + i
			if col >= m.Cols {
				break
			}
			if m.Types[row*m.Cols+col] != MBSkip {
				return true
			}
		}
	}

	return false
}

// filterPictureRRU blends the samples straddling every 32x32 unit boundary
// (16x16 in chroma) where at least one side is coded.
func filterPictureRRU(p *Picture, m *MacroblockMap) {
	filterPlaneRRU(&p.Y, m, 32, true)
	filterPlaneRRU(&p.Cb, m, 16, false)
	filterPlaneRRU(&p.Cr, m, 16, false)
}

func blend(data []byte, a, b int) {
	av := int(data[a])
	bv := int(data[b])
	data[a] = byte((3*av + bv + 2) >> 2)
	data[b] = byte((av + 3*bv + 2) >> 2)
}

func filterPlaneRRU(pl *Plane, m *MacroblockMap, unit int, luma bool) {
	stride := pl.Stride

	for y := unit; y < pl.Height; y += unit {
		for x := 0; x < pl.Width; x += unit {
			ux := x / unit
			if !rruCoded(m, ux, y/unit-1) && !rruCoded(m, ux, y/unit) {
				continue
			}
			end := min(x+unit, pl.Width)
			for i := x; i < end; i++ {
				blend(pl.Data, (y-1)*stride+i, y*stride+i)
			}
			if luma {
				for bx := x >> 3; bx < end>>3; bx++ {
					m.markBlock(bx, (y-1)>>3)
					m.markBlock(bx, y>>3)
				}
			}
		}
	}

	for x := unit; x < pl.Width; x += unit {
		for y := 0; y < pl.Height; y += unit {
			uy := y / unit
			if !rruCoded(m, x/unit-1, uy) && !rruCoded(m, x/unit, uy) {
				continue
			}
			end := min(y+unit, pl.Height)
			for j := y; j < end; j++ {
				blend(pl.Data, j*stride+x-1, j*stride+x)
			}
			if luma {
				for by := y >> 3; by < end>>3; by++ {
					m.markBlock((x-1)>>3, by)
					m.markBlock(x>>3, by)
				}
			}
		}
	}
}
