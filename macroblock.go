package h263

// MacroblockType is the coding type of a macroblock.
type MacroblockType uint8

const (
	MBSkip MacroblockType = iota
	MBInter
	MBInterQ
	MBInter4V
	MBInter4VQ
	MBIntra
	MBIntraQ

	// H.261 variants.
	MBH261Inter
	MBH261InterMC
	MBH261InterMCFilter
	MBH261Intra

	mbTypeCount
)

func (t MacroblockType) String() string {
	switch t {
	case MBSkip:
		return "SKIP"
	case MBInter:
		return "INTER"
	case MBInterQ:
		return "INTER_Q"
	case MBInter4V:
		return "INTER4V"
	case MBInter4VQ:
		return "INTER4V_Q"
	case MBIntra:
		return "INTRA"
	case MBIntraQ:
		return "INTRA_Q"
	case MBH261Inter:
		return "H261_INTER"
	case MBH261InterMC:
		return "H261_INTER_MC"
	case MBH261InterMCFilter:
		return "H261_INTER_MC_FIL"
	case MBH261Intra:
		return "H261_INTRA"
	}

	return "unknown"
}

// IsIntra reports whether the macroblock is coded without prediction.
func (t MacroblockType) IsIntra() bool {
	return t == MBIntra || t == MBIntraQ || t == MBH261Intra
}

func (t MacroblockType) isInter() bool {
	switch t {
	case MBInter, MBInterQ, MBInter4V, MBInter4VQ,
		MBH261Inter, MBH261InterMC, MBH261InterMCFilter:
		return true
	}

	return false
}

func (t MacroblockType) hasFourVectors() bool {
	return t == MBInter4V || t == MBInter4VQ
}

// Symbol is one run/level pair: Run coefficients are skipped in scan order,
// Level is the quantized amplitude index (or the INTRA DC index).
type Symbol struct {
	Run   uint8
	Level int16
}

// Block is the ordered symbol list of one 8x8 block.
type Block struct {
	Symbols [64]Symbol
	Count   int
}

// Add appends a symbol, it returns false when the block is full.
func (b *Block) Add(run, level int) bool {
	if b.Count >= len(b.Symbols) {
		return false
	}
	b.Symbols[b.Count] = Symbol{Run: uint8(run), Level: int16(level)}
	b.Count++

	return true
}

// Reset clears the block.
func (b *Block) Reset() {
	b.Count = 0
}

// MotionVector is a displacement in half-sample units.
type MotionVector struct {
	X int
	Y int
}

// Advanced intra prediction modes.
const (
	IntraPredictDC = iota
	IntraPredictVertical
	IntraPredictHorizontal
)

// MacroblockDescr describes one coded macroblock.
// Blocks 0-3 are the luma blocks in raster order, 4 is Cb and 5 is Cr,
// 6-11 carry the B part of a PB macroblock.
// Bit (0x20 >> b) of CBP and CBPB marks block b as coded.
type MacroblockDescr struct {
	Col  int
	Row  int
	Type MacroblockType

	Quant  int
	BQuant int

	MV  [4]MotionVector
	CBP uint8

	PB   bool
	CBPB uint8
	MVF  [4]MotionVector
	MVB  [4]MotionVector

	IntraMode int

	Blocks [12]Block
}

// Reset clears m for reuse at position col, row.
func (m *MacroblockDescr) Reset(col, row int) {
	m.Col = col
	m.Row = row
	m.Type = MBSkip
	m.Quant = 0
	m.BQuant = 0
	m.MV = [4]MotionVector{}
	m.CBP = 0
	m.PB = false
	m.CBPB = 0
	m.MVF = [4]MotionVector{}
	m.MVB = [4]MotionVector{}
	m.IntraMode = 0
	for i := range m.Blocks {
		m.Blocks[i].Count = 0
	}
}

// Coded reports whether block b (0-5) carries coefficients.
func (m *MacroblockDescr) Coded(b int) bool {
	return m.CBP&(0x20>>b) != 0
}

// CodedB reports whether B block b (0-5) carries coefficients.
func (m *MacroblockDescr) CodedB(b int) bool {
	return m.CBPB&(0x20>>b) != 0
}

// GobDescr locates a GOB in the macroblock grid.
type GobDescr struct {
	Number    int
	FirstRow  int
	FirstCol  int
	MBPerRow  int
	RowStride int
	Count     int
}

// position returns the grid column and row of the i-th macroblock of the GOB.
func (g *GobDescr) position(i int) (col, row int) {
	per := g.MBPerRow
	if per <= 0 {
		per = 1
	}

	return g.FirstCol + i%per, g.FirstRow + i/per
}

// Checkpoint is the resume cursor of a partially decoded GOB.
type Checkpoint struct {
	Index  int
	MBNum  int
	Col    int
	Work   int
	Active bool
}

// Reset clears the checkpoint.
func (c *Checkpoint) Reset() {
	*c = Checkpoint{}
}
