package h263

// Tables holds the read-only lookup tables shared by every session: scan
// orders, reconstruction levels, the IDCT basis, the saturation table and the
// RGB555 color table. Build them once with InitTables and hand the same
// instance to any number of sessions.
type Tables struct {
	scan  [3][64]uint8
	recon [32][256]int16
	aic   [32][256]int16

	basis [8][8]int32

	clip [clipSize]uint8

	rgb555 [1024][64]uint16

	strength [32]int
}

// Scan orders used by the advanced intra mode.
const (
	ScanZigZag = iota
	ScanAlternateHorizontal
	ScanAlternateVertical
)

const (
	levelOffset = 128

	// clipOffset covers the worst case IDCT output (64 coefficients at the
	// reconstruction limit) below zero, the table extends the same amount above 255.
	clipOffset = 1<<15 + 64
	clipSize   = 2*clipOffset + 256

	reconMax = 2047
)

// InitTables builds all lookup tables.
func InitTables() *Tables {
	t := &Tables{}

	t.initScans()
	t.initRecon()
	t.initBasis()
	t.initClip()
	t.initColor()

	for q := 1; q < 32; q++ {
		t.strength[q] = int(deblockStrength[q])
	}

	return t
}

func (t *Tables) initScans() {
	copy(t.scan[ScanZigZag][:], videoZigZag)
	copy(t.scan[ScanAlternateVertical][:], alternateVerticalScan)

	// Alternate horizontal is the transpose of alternate vertical
	for i, r := range alternateVerticalScan {
		t.scan[ScanAlternateHorizontal][i] = (r&7)<<3 | r>>3
	}
}

func (t *Tables) initRecon() {
	for q := 1; q < 32; q++ {
		for l := -127; l <= 127; l++ {
			t.recon[q][l+levelOffset] = int16(dequant(q, l))
			t.aic[q][l+levelOffset] = int16(saturate(2*q*l, reconMax))
		}

		// Index 0 (level -128) is not a legal amplitude, keep it at the negative limit
		t.recon[q][0] = -reconMax
		t.aic[q][0] = -reconMax
	}
}

func dequant(q, l int) int {
	if l == 0 {
		return 0
	}

	a := abs(l)
	rec := q * (2*a + 1)
	if q&1 == 0 {
		rec--
	}
	rec = saturate(rec, reconMax)

	if l < 0 {
		return -rec
	}

	return rec
}

func saturate(v, limit int) int {
	if v > limit {
		return limit
	} else if v < -limit {
		return -limit
	}

	return v
}

func (t *Tables) initBasis() {
	// basis[u][x] = 4096 * C(u)/2 * cos((2x+1)uπ/16)
	for u := 0; u < 8; u++ {
		for x := 0; x < 8; x++ {
			if u == 0 {
				t.basis[u][x] = idctCos[0]
				continue
			}

			m := ((2*x + 1) * u) % 32
			switch {
			case m <= 8:
				t.basis[u][x] = idctCos[m]
			case m <= 16:
				t.basis[u][x] = -idctCos[16-m]
			case m <= 24:
				t.basis[u][x] = -idctCos[m-16]
			default:
				t.basis[u][x] = idctCos[32-m]
			}
		}
	}
}

func (t *Tables) initClip() {
	for i := range t.clip {
		t.clip[i] = clamp(i - clipOffset)
	}
}

// ReconLevel returns the reconstructed coefficient for a quantized
// amplitude index at the given quantizer.
func (t *Tables) ReconLevel(quant, level int) int {
	return int(t.recon[clampQuant(quant)][levelIndex(level)])
}

// IntraDCLevel returns the reconstructed INTRA DC coefficient for a fixed
// length DC index. Index 255 stands for a DC level of 128.
func (t *Tables) IntraDCLevel(index int) int {
	if index == 255 {
		return 1024
	}
	if index < 1 {
		index = 1
	} else if index > 254 {
		index = 254
	}

	return index << 3
}

// Scan returns one of the three scan orders (ScanZigZag,
// ScanAlternateHorizontal, ScanAlternateVertical) as raster positions.
func (t *Tables) Scan(order int) [64]uint8 {
	return t.scan[order]
}

func levelIndex(level int) int {
	if level < -127 {
		level = -127
	} else if level > 127 {
		level = 127
	}

	return level + levelOffset
}

func clampQuant(q int) int {
	if q < 1 {
		return 1
	} else if q > 31 {
		return 31
	}

	return q
}

// idctCos[k] = round(4096 * cos(kπ/16) / 2), idctCos[0] carries the C(0) = 1/√2 factor.
var idctCos = [9]int32{1448, 2009, 1892, 1703, 1448, 1138, 784, 400, 0}

var videoZigZag = []byte{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

var alternateVerticalScan = []byte{
	0, 8, 16, 24, 1, 9, 2, 10,
	17, 25, 32, 40, 48, 56, 57, 49,
	41, 33, 26, 18, 3, 11, 4, 12,
	19, 27, 34, 42, 50, 58, 35, 43,
	51, 59, 20, 28, 5, 13, 6, 14,
	21, 29, 36, 44, 52, 60, 37, 45,
	53, 61, 22, 30, 7, 15, 23, 31,
	38, 46, 54, 62, 39, 47, 55, 63,
}

// Deblocking filter strength per quantizer.
var deblockStrength = [32]uint8{
	0, 1, 1, 2, 2, 3, 3, 4, 4, 4, 5, 5, 6, 6, 7, 7,
	7, 8, 8, 8, 9, 9, 9, 10, 10, 10, 11, 11, 11, 12, 12, 12,
}
