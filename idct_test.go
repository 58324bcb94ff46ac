package h263

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

var tables = InitTables()

func TestReconLevel(t *testing.T) {
	for q := 1; q < 32; q++ {
		require.Zero(t, tables.ReconLevel(q, 0))

		for l := -127; l < 127; l++ {
			a, b := tables.ReconLevel(q, l), tables.ReconLevel(q, l+1)
			if a > b {
				t.Fatalf("q %d: level %d reconstructs to %d, level %d to %d", q, l, a, l+1, b)
			}
		}
		for l := 1; l <= 127; l++ {
			if tables.ReconLevel(q, -l) != -tables.ReconLevel(q, l) {
				t.Errorf("q %d level %d: got %d, want %d", q, l, tables.ReconLevel(q, -l), -tables.ReconLevel(q, l))
			}
		}
	}

	require.Equal(t, 3, tables.ReconLevel(1, 1))
	require.Equal(t, 5, tables.ReconLevel(2, 1))
	require.Equal(t, -2047, tables.ReconLevel(31, -127))
	require.Equal(t, tables.ReconLevel(31, 127), tables.ReconLevel(31, 1000))
}

func TestIntraDCLevel(t *testing.T) {
	require.Equal(t, 8, tables.IntraDCLevel(1))
	require.Equal(t, 128, tables.IntraDCLevel(16))
	require.Equal(t, 2032, tables.IntraDCLevel(254))
	require.Equal(t, 1024, tables.IntraDCLevel(255))
}

func TestScans(t *testing.T) {
	for order := ScanZigZag; order <= ScanAlternateVertical; order++ {
		var seen [64]bool
		for _, p := range tables.Scan(order) {
			require.False(t, seen[p], "order %d position %d", order, p)
			seen[p] = true
		}
	}

	h := tables.Scan(ScanAlternateHorizontal)
	require.Equal(t, []uint8{0, 1, 2, 3, 8, 9, 16, 17}, h[:8])
}

func randomCoeffs(r *rand.Rand, positions []uint8) blockCoeffs {
	var c blockCoeffs
	for _, p := range positions {
		if r.Intn(4) == 0 && p != 0 {
			continue
		}
		c.pos[c.n] = p
		c.val[c.n] = int32(r.Intn(4095) - 2047)
		c.n++
	}

	return c
}

func TestFastTransform(t *testing.T) {
	r := rand.New(rand.NewSource(1))

	for i := 0; i < 2000; i++ {
		var positions []uint8
		switch i % 4 {
		case 0:
			positions = []uint8{0}
		case 1:
			positions = []uint8{0, 1}
		case 2:
			positions = []uint8{0, 8}
		default:
			positions = []uint8{0, 1, 8}
		}

		c := randomCoeffs(r, positions)
		kind := classify(&c)
		require.NotEqual(t, caseGeneral, kind)

		var want, got [64]int32
		tables.transform(&c, &want)

		if kind == caseDC {
			v := int32(tables.dcValue(&c))
			for k := range got {
				got[k] = v
			}
		} else {
			tables.fastTransform(&c, kind, &got)
		}

		require.Equal(t, want, got, "coefficients %v", c.val[:c.n])
	}
}

func TestReconstructPaths(t *testing.T) {
	r := rand.New(rand.NewSource(2))

	for i := 0; i < 500; i++ {
		var b Block
		b.Add(0, r.Intn(255)-127)
		if i%2 == 0 {
			b.Add(0, r.Intn(255)-127)
		}
		if i%3 == 0 {
			b.Add(r.Intn(3), r.Intn(255)-127)
		}
		quant := 1 + r.Intn(31)

		pred := make([]byte, 16*8)
		r.Read(pred)

		fast := append([]byte(nil), pred...)
		tables.Reconstruct(&b, quant, fast, 4, 16)

		// The same coefficients through the dense transform
		var c blockCoeffs
		tables.gather(&b, &tables.recon[quant], false, &tables.scan[ScanZigZag], &c)
		var dense [64]int32
		for k := 0; k < c.n; k++ {
			dense[c.pos[k]] = c.val[k]
		}
		slow := append([]byte(nil), pred...)
		tables.ReconstructDense(&dense, slow, 4, 16, true)

		require.Equal(t, slow, fast)
	}
}

func TestReconstructDeterministic(t *testing.T) {
	var b Block
	for k := 0; k < 20; k++ {
		b.Add(k%3, 9-k)
	}

	first := make([]byte, 64)
	tables.ReconstructIntra(&b, 7, first, 0, 8)

	for i := 0; i < 10; i++ {
		again := make([]byte, 64)
		tables.ReconstructIntra(&b, 7, again, 0, 8)
		require.Equal(t, first, again)
	}
}

func TestReconstructBounds(t *testing.T) {
	var b Block
	for k := 0; k < 64; k++ {
		b.Add(0, 127)
	}

	dest := make([]byte, 64)
	for i := range dest {
		dest[i] = 200
	}
	tables.Reconstruct(&b, 31, dest, 0, 8)

	// Symbols beyond position 63 are ignored
	b.Count = 64
	b.Symbols[10].Run = 60
	tables.Reconstruct(&b, 31, dest, 0, 8)
}

func TestReconstruct16(t *testing.T) {
	var b Block
	b.Add(0, 50)
	b.Add(0, -3)
	b.Add(4, 2)

	var out [64]int16
	tables.Reconstruct16(&b, 6, true, &out)

	dest := make([]byte, 64)
	tables.ReconstructIntra(&b, 6, dest, 0, 8)

	for i, v := range out {
		require.Equal(t, clamp(int(v)), dest[i], "sample %d", i)
	}
}

func BenchmarkReconstruct(b *testing.B) {
	var blk Block
	blk.Add(0, 12)
	blk.Add(1, -4)
	blk.Add(0, 3)
	blk.Add(5, 1)

	dest := make([]byte, 176*16)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		tables.Reconstruct(&blk, 10, dest, 16, 176)
	}
}

func BenchmarkReconstructDC(b *testing.B) {
	var blk Block
	blk.Add(0, 100)

	dest := make([]byte, 176*16)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		tables.ReconstructIntra(&blk, 10, dest, 16, 176)
	}
}
