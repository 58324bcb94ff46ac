package h263

// MacroblockMap records per macroblock type and quantizer of the last
// decoded picture and which 8x8 luma blocks changed since the map was last
// cleared.
type MacroblockMap struct {
	Cols int
	Rows int

	Types  []MacroblockType
	Quants []uint8

	// Dirty has one entry per 8x8 luma block, 2*Cols entries per row.
	Dirty []bool
}

func (m *MacroblockMap) resize(cols, rows int) {
	n := cols * rows
	if n > cap(m.Types) {
		m.Types = make([]MacroblockType, n)
		m.Quants = make([]uint8, n)
		m.Dirty = make([]bool, 4*n)
	}

	m.Cols = cols
	m.Rows = rows
	m.Types = m.Types[:n]
	m.Quants = m.Quants[:n]
	m.Dirty = m.Dirty[:4*n]
}

// Type returns the type of the macroblock at col, row.
func (m *MacroblockMap) Type(col, row int) MacroblockType {
	return m.Types[row*m.Cols+col]
}

// Quant returns the quantizer of the macroblock at col, row.
func (m *MacroblockMap) Quant(col, row int) int {
	return int(m.Quants[row*m.Cols+col])
}

// BlockDirty reports whether the 8x8 luma block at bx, by changed.
func (m *MacroblockMap) BlockDirty(bx, by int) bool {
	return m.Dirty[by*2*m.Cols+bx]
}

func (m *MacroblockMap) set(col, row int, t MacroblockType, quant int) {
	i := row*m.Cols + col
	m.Types[i] = t
	m.Quants[i] = uint8(clampQuant(quant))
}

// markMacroblock flags the four luma blocks of a macroblock.
func (m *MacroblockMap) markMacroblock(col, row int) {
	w := 2 * m.Cols
	i := (2*row)*w + 2*col
	m.Dirty[i] = true
	m.Dirty[i+1] = true
	m.Dirty[i+w] = true
	m.Dirty[i+w+1] = true
}

func (m *MacroblockMap) markBlock(bx, by int) {
	m.Dirty[by*2*m.Cols+bx] = true
}

// MarkAll flags every block.
func (m *MacroblockMap) MarkAll() {
	for i := range m.Dirty {
		m.Dirty[i] = true
	}
}

// ClearDirty resets the dirty flags.
func (m *MacroblockMap) ClearDirty() {
	for i := range m.Dirty {
		m.Dirty[i] = false
	}
}

// Clone returns a deep copy of the map.
func (m *MacroblockMap) Clone() *MacroblockMap {
	c := &MacroblockMap{
		Cols:   m.Cols,
		Rows:   m.Rows,
		Types:  append([]MacroblockType(nil), m.Types...),
		Quants: append([]uint8(nil), m.Quants...),
		Dirty:  append([]bool(nil), m.Dirty...),
	}

	return c
}

func (m *MacroblockMap) reset() {
	for i := range m.Types {
		m.Types[i] = MBSkip
		m.Quants[i] = 0
	}
}
