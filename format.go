package h263

import (
	"github.com/pkg/errors"
)

// MaxDimension is the largest accepted picture width or height.
var MaxDimension = 2048

// SourceFormat is the standard picture resolution announced in a picture header.
type SourceFormat int

const (
	FormatForbidden SourceFormat = iota
	FormatSQCIF
	FormatQCIF
	FormatCIF
	Format4CIF
	Format16CIF
	FormatCustom
)

func (f SourceFormat) String() string {
	switch f {
	case FormatSQCIF:
		return "SQCIF"
	case FormatQCIF:
		return "QCIF"
	case FormatCIF:
		return "CIF"
	case Format4CIF:
		return "4CIF"
	case Format16CIF:
		return "16CIF"
	case FormatCustom:
		return "custom"
	}

	return "forbidden"
}

// Size returns the display size of a standard format.
func (f SourceFormat) Size() (width, height int, ok bool) {
	switch f {
	case FormatSQCIF:
		return 128, 96, true
	case FormatQCIF:
		return 176, 144, true
	case FormatCIF:
		return 352, 288, true
	case Format4CIF:
		return 704, 576, true
	case Format16CIF:
		return 1408, 1152, true
	}

	return 0, 0, false
}

// Geometry describes the macroblock layout of a picture size.
type Geometry struct {
	Width  int
	Height int

	LumaWidth  int
	LumaHeight int

	MBCols int
	MBRows int

	// GOBs is the number of GOBs, MBRowsPerGOB the macroblock rows in each (H.263 layout).
	GOBs         int
	MBRowsPerGOB int
}

// NewGeometry computes the layout for a display size, dimensions are rounded up
// to 16 pixel multiples.
func NewGeometry(width, height int) (Geometry, error) {
	if width <= 0 || height <= 0 || width > MaxDimension || height > MaxDimension {
		return Geometry{}, errors.Wrapf(ErrInvalidFormat, "size %dx%d", width, height)
	}

	g := Geometry{Width: width, Height: height}
	g.MBCols = (width + 15) >> 4
	g.MBRows = (height + 15) >> 4
	g.LumaWidth = g.MBCols << 4
	g.LumaHeight = g.MBRows << 4

	switch {
	case g.LumaHeight <= 400:
		g.MBRowsPerGOB = 1
	case g.LumaHeight <= 800:
		g.MBRowsPerGOB = 2
	default:
		g.MBRowsPerGOB = 4
	}
	g.GOBs = (g.MBRows + g.MBRowsPerGOB - 1) / g.MBRowsPerGOB

	return g, nil
}

// FormatGeometry is NewGeometry for a standard source format.
func FormatGeometry(f SourceFormat) (Geometry, error) {
	w, h, ok := f.Size()
	if !ok {
		return Geometry{}, errors.Wrapf(ErrInvalidFormat, "format %s", f)
	}

	return NewGeometry(w, h)
}

// MBCount returns the number of macroblocks in the picture.
func (g Geometry) MBCount() int {
	return g.MBCols * g.MBRows
}

// GOB returns the descriptor of GOB n in the H.263 layout.
func (g Geometry) GOB(n int) GobDescr {
	firstRow := n * g.MBRowsPerGOB
	rows := g.MBRowsPerGOB
	if firstRow+rows > g.MBRows {
		rows = g.MBRows - firstRow
	}

	return GobDescr{
		Number:    n,
		FirstRow:  firstRow,
		FirstCol:  0,
		MBPerRow:  g.MBCols,
		RowStride: g.MBCols,
		Count:     rows * g.MBCols,
	}
}

// H261GOBs returns the number of H.261 GOBs (11x3 macroblocks each) for QCIF and CIF.
func (g Geometry) H261GOBs() int {
	return (g.MBCols / 11) * (g.MBRows / 3)
}

// H261GOB returns the descriptor of H.261 GOB n (0 based). CIF places two GOBs
// side by side in each band of three macroblock rows.
func (g Geometry) H261GOB(n int) GobDescr {
	perBand := g.MBCols / 11
	if perBand == 0 {
		perBand = 1
	}

	return GobDescr{
		Number:    n,
		FirstRow:  (n / perBand) * 3,
		FirstCol:  (n % perBand) * 11,
		MBPerRow:  11,
		RowStride: g.MBCols,
		Count:     33,
	}
}

// RRUCols returns the number of 32x32 reduced-resolution units per row.
func (g Geometry) RRUCols() int {
	return (g.LumaWidth + 31) >> 5
}

// RRURows returns the number of 32x32 reduced-resolution unit rows.
func (g Geometry) RRURows() int {
	return (g.LumaHeight + 31) >> 5
}

// RRUGOB returns the descriptor of GOB n in reduced-resolution update mode:
// one row of 32x32 units.
func (g Geometry) RRUGOB(n int) GobDescr {
	cols := g.RRUCols()

	return GobDescr{
		Number:    n,
		FirstRow:  n,
		FirstCol:  0,
		MBPerRow:  cols,
		RowStride: cols,
		Count:     cols,
	}
}
