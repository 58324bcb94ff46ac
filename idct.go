package h263

// blockCoeffs is the sparse, dequantized form of a Block: raster positions
// with their reconstruction levels, in scan order.
type blockCoeffs struct {
	pos [64]uint8
	val [64]int32
	n   int
}

// Coefficient patterns with a closed-form inverse transform.
const (
	caseEmpty = iota
	caseDC
	caseDCHorizontal
	caseDCVertical
	caseDCBoth
	caseGeneral
)

// gather dequantizes the symbols of b into c. With intraDC the first symbol
// carries the fixed length INTRA DC index instead of a run/level pair.
func (t *Tables) gather(b *Block, levels *[256]int16, intraDC bool, scan *[64]uint8, c *blockCoeffs) {
	c.n = 0

	n := b.Count
	if n > 64 {
		n = 64
	}

	z := -1
	i := 0
	if intraDC && n > 0 {
		c.pos[0] = 0
		c.val[0] = int32(t.IntraDCLevel(int(b.Symbols[0].Level)))
		c.n = 1
		z = 0
		i = 1
	}

	for ; i < n; i++ {
		s := b.Symbols[i]
		z += int(s.Run) + 1
		if z > 63 {
			break
		}

		c.pos[c.n] = scan[z]
		c.val[c.n] = int32(levels[levelIndex(int(s.Level))])
		c.n++
	}
}

func classify(c *blockCoeffs) int {
	if c.n == 0 {
		return caseEmpty
	}

	var dc, h, v bool
	for k := 0; k < c.n; k++ {
		switch c.pos[k] {
		case 0:
			dc = true
		case 1:
			h = true
		case 8:
			v = true
		default:
			return caseGeneral
		}
	}

	switch {
	case h && v:
		return caseDCBoth
	case h:
		return caseDCHorizontal
	case v:
		return caseDCVertical
	case dc:
		return caseDC
	}

	return caseEmpty
}

func descale(acc int64) int32 {
	r := acc >> 18
	return int32((r + 32) >> 6)
}

// transform runs the general inverse transform of sparse coefficients.
// Each coefficient adds its amplitude-scaled basis row, then one even/odd
// butterfly per column resolves the vertical direction.
func (t *Tables) transform(c *blockCoeffs, out *[64]int32) {
	var rows [8][8]int32
	var used uint8

	for k := 0; k < c.n; k++ {
		p := c.pos[k]
		v := p >> 3
		b := &t.basis[p&7]
		r := &rows[v]
		val := c.val[k]
		for x := 0; x < 8; x++ {
			r[x] += val * b[x]
		}
		used |= 1 << v
	}

	t.butterfly(&rows, used, out)
}

func (t *Tables) transformDense(coeffs *[64]int32, out *[64]int32) {
	var rows [8][8]int32
	var used uint8

	for p := 0; p < 64; p++ {
		val := coeffs[p]
		if val == 0 {
			continue
		}
		v := p >> 3
		b := &t.basis[p&7]
		r := &rows[v]
		for x := 0; x < 8; x++ {
			r[x] += val * b[x]
		}
		used |= 1 << v
	}

	t.butterfly(&rows, used, out)
}

func (t *Tables) butterfly(rows *[8][8]int32, used uint8, out *[64]int32) {
	for x := 0; x < 8; x++ {
		for y := 0; y < 4; y++ {
			var e, o int64
			for v := 0; v < 8; v += 2 {
				if used&(1<<v) != 0 {
					e += int64(rows[v][x]) * int64(t.basis[v][y])
				}
			}
			for v := 1; v < 8; v += 2 {
				if used&(1<<v) != 0 {
					o += int64(rows[v][x]) * int64(t.basis[v][y])
				}
			}

			out[y*8+x] = descale(e + o)
			out[(7-y)*8+x] = descale(e - o)
		}
	}
}

// fastTransform evaluates the closed forms for coefficients limited to the
// DC, first horizontal and first vertical positions.
func (t *Tables) fastTransform(c *blockCoeffs, kind int, out *[64]int32) {
	var dc, h, v int64
	for k := 0; k < c.n; k++ {
		switch c.pos[k] {
		case 0:
			dc += int64(c.val[k])
		case 1:
			h += int64(c.val[k])
		case 8:
			v += int64(c.val[k])
		}
	}

	c0 := int64(idctCos[0])

	switch kind {
	case caseDCHorizontal:
		for x := 0; x < 8; x++ {
			val := descale((dc*c0 + h*int64(t.basis[1][x])) * c0)
			for y := 0; y < 64; y += 8 {
				out[y+x] = val
			}
		}
	case caseDCVertical:
		e := dc * c0 * c0
		for y := 0; y < 4; y++ {
			o := v * c0 * int64(t.basis[1][y])
			top := descale(e + o)
			bottom := descale(e - o)
			for x := 0; x < 8; x++ {
				out[y*8+x] = top
				out[(7-y)*8+x] = bottom
			}
		}
	case caseDCBoth:
		for x := 0; x < 8; x++ {
			e := (dc*c0 + h*int64(t.basis[1][x])) * c0
			for y := 0; y < 4; y++ {
				o := v * c0 * int64(t.basis[1][y])
				out[y*8+x] = descale(e + o)
				out[(7-y)*8+x] = descale(e - o)
			}
		}
	}
}

func (t *Tables) dcValue(c *blockCoeffs) int {
	var dc int64
	for k := 0; k < c.n; k++ {
		dc += int64(c.val[k])
	}
	c0 := int64(idctCos[0])

	return int(descale(dc * c0 * c0))
}

// reconstruct writes (or with add, sums onto the prediction already in
// dest) the inverse transform of c.
func (t *Tables) reconstruct(c *blockCoeffs, dest []byte, index, stride int, add bool) {
	scan := stride - 8

	kind := classify(c)
	switch kind {
	case caseEmpty:
		if !add {
			t.copyValueToDest(0, dest, index, scan)
		}
		return
	case caseDC:
		if add {
			t.addValueToDest(t.dcValue(c), dest, index, scan)
		} else {
			t.copyValueToDest(t.dcValue(c), dest, index, scan)
		}
		return
	}

	var block [64]int32
	if kind == caseGeneral {
		t.transform(c, &block)
	} else {
		t.fastTransform(c, kind, &block)
	}

	if add {
		t.addBlockToDest(&block, dest, index, scan)
	} else {
		t.copyBlockToDest(&block, dest, index, scan)
	}
}

// Reconstruct sums the inverse transform of an INTER block onto the
// prediction at dest[index] and clips to [0,255].
func (t *Tables) Reconstruct(b *Block, quant int, dest []byte, index, stride int) {
	var c blockCoeffs
	t.gather(b, &t.recon[clampQuant(quant)], false, &t.scan[ScanZigZag], &c)
	t.reconstruct(&c, dest, index, stride, true)
}

// ReconstructIntra writes an INTRA block whose first symbol is the fixed
// length DC index.
func (t *Tables) ReconstructIntra(b *Block, quant int, dest []byte, index, stride int) {
	var c blockCoeffs
	t.gather(b, &t.recon[clampQuant(quant)], true, &t.scan[ScanZigZag], &c)
	t.reconstruct(&c, dest, index, stride, false)
}

// ReconstructDense transforms a full raster coefficient block.
func (t *Tables) ReconstructDense(coeffs *[64]int32, dest []byte, index, stride int, add bool) {
	var block [64]int32
	t.transformDense(coeffs, &block)

	if add {
		t.addBlockToDest(&block, dest, index, stride-8)
	} else {
		t.copyBlockToDest(&block, dest, index, stride-8)
	}
}

// Reconstruct16 produces the unclipped residual used by reduced-resolution
// update. With intraDC the first symbol is the INTRA DC index.
func (t *Tables) Reconstruct16(b *Block, quant int, intraDC bool, out *[64]int16) {
	var c blockCoeffs
	t.gather(b, &t.recon[clampQuant(quant)], intraDC, &t.scan[ScanZigZag], &c)

	var block [64]int32
	switch kind := classify(&c); kind {
	case caseEmpty:
	case caseDC:
		v := int32(t.dcValue(&c))
		for i := range block {
			block[i] = v
		}
	case caseGeneral:
		t.transform(&c, &block)
	default:
		t.fastTransform(&c, kind, &block)
	}

	for i, v := range block {
		out[i] = int16(saturate(int(v), 32767))
	}
}

func (t *Tables) copyBlockToDest(block *[64]int32, dest []byte, index, scan int) {
	for n := 0; n < 64; n += 8 {
		for x := 0; x < 8; x++ {
			dest[index+x] = t.clip[int(block[n+x])+clipOffset]
		}

		index += scan + 8
	}
}

func (t *Tables) addBlockToDest(block *[64]int32, dest []byte, index, scan int) {
	for n := 0; n < 64; n += 8 {
		for x := 0; x < 8; x++ {
			dest[index+x] = t.clip[int(dest[index+x])+int(block[n+x])+clipOffset]
		}

		index += scan + 8
	}
}

func (t *Tables) copyValueToDest(value int, dest []byte, index, scan int) {
	val := t.clip[value+clipOffset]
	for n := 0; n < 64; n += 8 {
		d := dest[index : index+8]
		for x := range d {
			d[x] = val
		}

		index += scan + 8
	}
}

func (t *Tables) addValueToDest(value int, dest []byte, index, scan int) {
	for n := 0; n < 64; n += 8 {
		for x := 0; x < 8; x++ {
			dest[index+x] = t.clip[int(dest[index+x])+value+clipOffset]
		}

		index += scan + 8
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func clamp(n int) byte {
	if n > 255 {
		n = 255
	} else if n < 0 {
		n = 0
	}

	return byte(n)
}
