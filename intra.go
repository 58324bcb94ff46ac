package h263

// AdvancedIntra reconstructs advanced intra coded macroblocks, predicting
// the DC and first row or column of each block from its reconstructed
// neighbors. It caches the bottom blocks of every macroblock column and the
// right blocks of the macroblock to the left.
type AdvancedIntra struct {
	above []intraCache
	left  intraCache
}

type intraCache struct {
	// blocks holds row 0 (above cache) or column 0 (left cache) of the
	// reconstructed coefficients of the luma blocks at the edge, Cb and Cr.
	blocks [4][8]int32
	valid  bool
}

// NewAdvancedIntra returns a predictor for rows of mbCols macroblocks.
func NewAdvancedIntra(mbCols int) *AdvancedIntra {
	return &AdvancedIntra{above: make([]intraCache, mbCols)}
}

// resize grows the column cache.
func (a *AdvancedIntra) resize(mbCols int) {
	if mbCols > cap(a.above) {
		a.above = make([]intraCache, mbCols)
	}
	a.above = a.above[:mbCols]
}

// StartPicture invalidates all cached neighbors.
func (a *AdvancedIntra) StartPicture() {
	for i := range a.above {
		a.above[i].valid = false
	}
	a.left.valid = false
}

// StartRow invalidates the left neighbor.
func (a *AdvancedIntra) StartRow() {
	a.left.valid = false
}

// Invalidate marks the macroblock at col as not intra coded.
func (a *AdvancedIntra) Invalidate(col int) {
	if col >= 0 && col < len(a.above) {
		a.above[col].valid = false
	}
	a.left.valid = false
}

// aboveSlot and leftSlot map a block to its slot in the neighbor caches,
// -1 when the neighbor is inside the same macroblock.
var (
	aboveSource = [6]int{2, 3, 0, 1, 4, 5} // block providing the above neighbor
	leftSource  = [6]int{1, 0, 3, 2, 4, 5} // block providing the left neighbor
	aboveSlot   = [6]int{0, 1, -1, -1, 2, 3}
	leftSlot    = [6]int{0, 2, 1, 3, 2, 3}
	leftInside  = [6]bool{false, true, false, true, false, false}
	storeAbove  = [6]int{-1, -1, 0, 1, 2, 3}
	storeLeft   = [6]int{-1, 0, -1, 1, 2, 3}
)

// Reconstruct decodes the six blocks of an intra macroblock into dst.
func (a *AdvancedIntra) Reconstruct(t *Tables, mb *MacroblockDescr, dst *Picture) {
	mode := mb.IntraMode
	if mode < IntraPredictDC || mode > IntraPredictHorizontal {
		mode = IntraPredictDC
	}

	var scan *[64]uint8
	switch mode {
	case IntraPredictVertical:
		scan = &t.scan[ScanAlternateHorizontal]
	case IntraPredictHorizontal:
		scan = &t.scan[ScanAlternateVertical]
	default:
		scan = &t.scan[ScanZigZag]
	}

	levels := &t.aic[clampQuant(mb.Quant)]

	var above *intraCache
	if mb.Col >= 0 && mb.Col < len(a.above) {
		above = &a.above[mb.Col]
	}

	var cur [6][64]int32
	var sparse blockCoeffs

	for b := 0; b < 6; b++ {
		coeffs := &cur[b]
		t.gather(&mb.Blocks[b], levels, false, scan, &sparse)
		for k := 0; k < sparse.n; k++ {
			coeffs[sparse.pos[k]] = sparse.val[k]
		}

		var up, left *[8]int32
		var upRow, leftCol [8]int32

		if aboveSlot[b] < 0 {
			src := &cur[aboveSource[b]]
			copy(upRow[:], src[0:8])
			up = &upRow
		} else if above != nil && above.valid {
			up = &above.blocks[aboveSlot[b]]
		}

		if leftInside[b] {
			src := &cur[leftSource[b]]
			for k := 0; k < 8; k++ {
				leftCol[k] = src[k*8]
			}
			left = &leftCol
		} else if a.left.valid {
			left = &a.left.blocks[leftSlot[b]]
		}

		predictIntra(coeffs, mode, up, left)

		plane, index, stride := blockTarget(dst, mb.Col, mb.Row, b)
		t.ReconstructDense(coeffs, plane.Data, index, stride, false)
	}

	if above != nil {
		for b := 0; b < 6; b++ {
			if s := storeAbove[b]; s >= 0 {
				copy(above.blocks[s][:], cur[b][0:8])
			}
		}
		above.valid = true
	}

	for b := 0; b < 6; b++ {
		if s := storeLeft[b]; s >= 0 {
			for k := 0; k < 8; k++ {
				a.left.blocks[s][k] = cur[b][k*8]
			}
		}
	}
	a.left.valid = true
}

// predictIntra adds the prediction from the neighbors to the residual
// coefficients and clips the result.
func predictIntra(c *[64]int32, mode int, up, left *[8]int32) {
	switch {
	case mode == IntraPredictVertical && up != nil:
		for k := 0; k < 8; k++ {
			c[k] += up[k]
		}
	case mode == IntraPredictHorizontal && left != nil:
		for k := 0; k < 8; k++ {
			c[k*8] += left[k]
		}
	default:
		var dc int32
		switch {
		case up != nil && left != nil:
			dc = (up[0] + left[0] + 1) >> 1
		case up != nil:
			dc = up[0]
		case left != nil:
			dc = left[0]
		default:
			dc = 1024
		}
		c[0] += dc
	}

	if c[0] < 0 {
		c[0] = 0
	} else if c[0] > 2047 {
		c[0] = 2047
	}

	for k := 1; k < 64; k++ {
		if c[k] < -2048 {
			c[k] = -2048
		} else if c[k] > 2047 {
			c[k] = 2047
		}
	}
}

// blockTarget returns the plane and sample offset of block b of a macroblock.
func blockTarget(p *Picture, col, row, b int) (*Plane, int, int) {
	switch b {
	case 4:
		return &p.Cb, (row<<3)*p.Cb.Stride + col<<3, p.Cb.Stride
	case 5:
		return &p.Cr, (row<<3)*p.Cr.Stride + col<<3, p.Cr.Stride
	}

	x := col<<4 + (b&1)<<3
	y := row<<4 + (b>>1)<<3

	return &p.Y, y*p.Y.Stride + x, p.Y.Stride
}
