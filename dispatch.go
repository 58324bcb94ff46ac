package h263

import (
	"github.com/pkg/errors"
)

// gridSize returns the macroblock grid GOB descriptors of the current
// picture refer to, 32x32 units in reduced-resolution update mode.
func (s *Session) gridSize() (cols, rows int) {
	if s.hdr.RRU {
		return s.geom.RRUCols(), s.geom.RRURows()
	}

	return s.geom.MBCols, s.geom.MBRows
}

// startGOB places the macroblocks of a freshly read GOB on the grid.
func (s *Session) startGOB() {
	g := &s.gob
	for i := range s.mbs {
		s.mbs[i].Col, s.mbs[i].Row = g.position(i)
	}

	if !s.hdr.RRU && s.hdr.AP {
		cols, rows := s.gridSize()
		for i := range s.mbs {
			mb := &s.mbs[i]
			if mb.Col < cols && mb.Row < rows {
				s.storeVectors(mb)
			}
		}
	}

	s.gobActive = true
	s.cp.Reset()
	s.stats.GOBs++
}

// decodeGOB reconstructs the macroblocks of the active GOB in raster order.
// It returns false with the checkpoint set when the work budget ran out.
func (s *Session) decodeGOB() bool {
	start := 0
	if s.cp.Active {
		start = s.cp.Index
		s.cp.Active = false
	} else {
		s.cp.Reset()
	}

	cols, rows := s.gridSize()

	for i := start; i < len(s.mbs); i++ {
		mb := &s.mbs[i]

		if mb.Col < 0 || mb.Col >= cols || mb.Row < 0 || mb.Row >= rows {
			s.abortGOB(i, errors.Wrapf(ErrInvalidGOB, "gob %d: macroblock %d at %d,%d", s.gob.Number, i, mb.Col, mb.Row))
			return true
		}

		if i == 0 || mb.Col == s.gob.FirstCol {
			s.aic.StartRow()
		}

		cost, err := s.decodeMacroblock(mb)
		if err != nil {
			s.abortGOB(i, err)
			return true
		}

		s.cp.Work += cost
		s.cp.Index = i + 1
		s.cp.MBNum = mb.Row*s.gob.RowStride + mb.Col
		s.cp.Col = mb.Col

		s.callWork += cost
		s.stats.Work += cost

		if s.budget > 0 && s.callWork >= s.budget && i+1 < len(s.mbs) {
			s.cp.Active = true
			return false
		}
	}

	s.cp.Reset()

	return true
}

// abortGOB conceals the macroblocks of the active GOB from index from on.
func (s *Session) abortGOB(from int, err error) {
	s.log.Warn("gob aborted", "gob", s.gob.Number, "macroblock", from, "err", err)
	s.stats.GOBsAborted++
	s.stats.GOBsConcealed++

	cols, rows := s.gridSize()
	for i := from; i < len(s.mbs); i++ {
		mb := &s.mbs[i]
		if mb.Col < 0 || mb.Col >= cols || mb.Row < 0 || mb.Row >= rows {
			continue
		}
		s.concealUnit(mb.Col, mb.Row)
	}

	s.cp.Reset()
}

func isH261Type(t MacroblockType) bool {
	return t >= MBH261Inter && t <= MBH261Intra
}

// decodeMacroblock reconstructs one macroblock and returns its work cost.
func (s *Session) decodeMacroblock(mb *MacroblockDescr) (int, error) {
	if mb.Type >= mbTypeCount || (mb.Type != MBSkip && isH261Type(mb.Type) != s.hdr.H261) {
		return 0, errors.Wrapf(ErrUnknownMacroblockType, "type %d at %d,%d", mb.Type, mb.Col, mb.Row)
	}
	if s.hdr.RRU {
		return s.decodeRRU(mb)
	}

	col, row := mb.Col, mb.Row
	quant := clampQuant(mb.Quant)
	t := s.tables
	dst := s.newOut

	cost := 0

	switch {
	case mb.Type == MBSkip:
		if s.mismatch {
			dst.fillMacroblock(col, row, 128)
			s.mbmap.markMacroblock(col, row)
		} else {
			dst.copyMacroblockFrom(s.oldOut, col, row)
		}
		s.aic.Invalidate(col)
		cost = 1

	case mb.Type.isInter():
		pred := s.prediction(mb)
		if s.mismatch {
			dst.fillMacroblock(col, row, 128)
		} else {
			s.motion.Predict(dst, s.oldOut, &pred)
		}

		cost = 1
		if pred.Overlap {
			cost += 2
		}

		for b := 0; b < 6; b++ {
			if !mb.Coded(b) {
				continue
			}
			plane, index, stride := blockTarget(dst, col, row, b)
			t.Reconstruct(&mb.Blocks[b], quant, plane.Data, index, stride)
			cost++
		}

		s.aic.Invalidate(col)
		s.mbmap.markMacroblock(col, row)

	default:
		if s.hdr.AIC && !s.hdr.H261 {
			s.aic.Reconstruct(t, mb, dst)
		} else {
			for b := 0; b < 6; b++ {
				plane, index, stride := blockTarget(dst, col, row, b)
				t.ReconstructIntra(&mb.Blocks[b], quant, plane.Data, index, stride)
			}
		}

		cost = 6
		s.mbmap.markMacroblock(col, row)
	}

	if s.hdr.PB {
		if mb.Type == MBSkip {
			s.bOut.copyMacroblockFrom(dst, col, row)
		} else {
			cost += s.decodeB(mb, quant)
		}
	}

	s.storeVectors(mb)
	s.mbmap.set(col, row, mb.Type, quant)
	s.mbDone[row*s.geom.MBCols+col] = true
	s.stats.Macroblocks[mb.Type]++

	return cost, nil
}

// decodeB reconstructs the B part of a PB macroblock.
func (s *Session) decodeB(mb *MacroblockDescr, quant int) int {
	col, row := mb.Col, mb.Row

	pred := Prediction{
		Col:      col,
		Row:      row,
		MV:       mb.MVF,
		Backward: mb.MVB,
		FourV:    mb.Type.hasFourVectors(),
	}

	if s.mismatch {
		s.bOut.fillMacroblock(col, row, 128)
	} else {
		s.motion.PredictB(s.bOut, s.oldOut, s.newOut, &pred)
	}

	bquant := mb.BQuant
	if bquant == 0 {
		bquant = (5 + s.hdr.DBQuant) * quant / 4
	}
	bquant = clampQuant(bquant)

	cost := 1
	for b := 0; b < 6; b++ {
		if !mb.CodedB(b) {
			continue
		}
		plane, index, stride := blockTarget(s.bOut, col, row, b)
		s.tables.Reconstruct(&mb.Blocks[6+b], bquant, plane.Data, index, stride)
		cost++
	}

	return cost
}

// prediction builds the motion compensation request of an inter macroblock.
func (s *Session) prediction(mb *MacroblockDescr) Prediction {
	p := Prediction{
		Col:   mb.Col,
		Row:   mb.Row,
		MV:    mb.MV,
		FourV: mb.Type.hasFourVectors(),
	}

	switch mb.Type {
	case MBH261Inter:
		p.FullPel = true
		p.MV = [4]MotionVector{}
	case MBH261InterMC:
		p.FullPel = true
	case MBH261InterMCFilter:
		p.FullPel = true
		p.LoopFilter = true
	}

	if s.hdr.AP && !p.FullPel {
		p.Overlap = true
		s.remoteVectors(mb, &p)
	}

	return p
}

// storeVectors records the vectors of mb for its neighbors.
func (s *Session) storeVectors(mb *MacroblockDescr) {
	e := &s.mvField[mb.Row*s.geom.MBCols+mb.Col]

	switch {
	case mb.Type == MBSkip:
		*e = mvEntry{inter: true}
	case mb.Type.isInter():
		e.inter = true
		for k := 0; k < 4; k++ {
			if mb.Type.hasFourVectors() {
				e.mv[k] = mb.MV[k]
			} else {
				e.mv[k] = mb.MV[0]
			}
		}
	default:
		*e = mvEntry{}
	}
}

// neighbor returns vector k of the macroblock at col, row, or cur when that
// macroblock is outside the picture or intra coded.
func (s *Session) neighbor(col, row, k int, cur MotionVector) MotionVector {
	if col < 0 || row < 0 || col >= s.geom.MBCols || row >= s.geom.MBRows {
		return cur
	}

	e := &s.mvField[row*s.geom.MBCols+col]
	if !e.inter {
		return cur
	}

	return e.mv[k]
}

// remoteVectors fills the overlapped compensation vectors of the four luma blocks.
func (s *Session) remoteVectors(mb *MacroblockDescr, p *Prediction) {
	var cur [4]MotionVector
	for k := 0; k < 4; k++ {
		if p.FourV {
			cur[k] = p.MV[k]
		} else {
			cur[k] = p.MV[0]
		}
	}

	col, row := mb.Col, mb.Row

	p.Remote[0] = [4]MotionVector{
		RemoteAbove: s.neighbor(col, row-1, 2, cur[0]),
		RemoteBelow: cur[2],
		RemoteLeft:  s.neighbor(col-1, row, 1, cur[0]),
		RemoteRight: cur[1],
	}
	p.Remote[1] = [4]MotionVector{
		RemoteAbove: s.neighbor(col, row-1, 3, cur[1]),
		RemoteBelow: cur[3],
		RemoteLeft:  cur[0],
		RemoteRight: s.neighbor(col+1, row, 0, cur[1]),
	}
	p.Remote[2] = [4]MotionVector{
		RemoteAbove: cur[0],
		RemoteBelow: cur[2],
		RemoteLeft:  s.neighbor(col-1, row, 3, cur[2]),
		RemoteRight: cur[3],
	}
	p.Remote[3] = [4]MotionVector{
		RemoteAbove: cur[1],
		RemoteBelow: cur[3],
		RemoteLeft:  cur[2],
		RemoteRight: s.neighbor(col+1, row, 2, cur[3]),
	}
}

// ConcealGob repeats the reference picture at zero motion over the
// macroblocks of gob, or fills them with gray when the reference does not
// match the picture size. Concealed macroblocks are recorded as skipped.
func (s *Session) ConcealGob(gob GobDescr) error {
	if s.closed {
		return ErrClosed
	}
	if !s.inPicture {
		return ErrNoPicture
	}

	cols, rows := s.gridSize()
	for i := 0; i < gob.Count; i++ {
		col, row := gob.position(i)
		if col < 0 || col >= cols || row < 0 || row >= rows {
			return errors.Wrapf(ErrInvalidGOB, "gob %d: macroblock %d at %d,%d", gob.Number, i, col, row)
		}
	}

	for i := 0; i < gob.Count; i++ {
		col, row := gob.position(i)
		s.concealUnit(col, row)
	}

	s.stats.GOBsConcealed++
	s.log.Debug("gob concealed", "gob", gob.Number, "picture", s.hdr.TemporalRef)

	return nil
}

// concealUnit conceals one grid position, four macroblocks in reduced-resolution update mode.
func (s *Session) concealUnit(col, row int) {
	if !s.hdr.RRU {
		s.concealMacroblock(col, row)
		return
	}

	for q := 0; q < 4; q++ {
		c := 2*col + q&1
		r := 2*row + q>>1
		if c < s.geom.MBCols && r < s.geom.MBRows {
			s.concealMacroblock(c, r)
		}
	}
}

func (s *Session) concealMacroblock(col, row int) {
	dst := s.newOut

	if s.mismatch || !s.oldOut.valid || !s.oldOut.SameGeometry(dst) {
		dst.fillMacroblock(col, row, 128)
		s.mbmap.markMacroblock(col, row)
	} else {
		dst.copyMacroblockFrom(s.oldOut, col, row)
	}

	if s.hdr.PB {
		s.bOut.copyMacroblockFrom(dst, col, row)
	}

	i := row*s.geom.MBCols + col
	s.mbmap.set(col, row, MBSkip, 0)
	s.mbDone[i] = true
	s.mvField[i] = mvEntry{inter: true}
	s.aic.Invalidate(col)
}
