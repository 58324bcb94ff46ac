package h263

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// dcIndex is the INTRA DC index used for block b of the macroblock at col, row.
func dcIndex(col, row, b int) int {
	return 1 + (col*7+row*13+b*29)%254
}

func intraMB(quant int, dc func(b int) int) MacroblockDescr {
	mb := MacroblockDescr{Type: MBIntra, Quant: quant, CBP: 0x3f}
	for b := 0; b < 6; b++ {
		mb.Blocks[b].Add(0, dc(b))
	}

	return mb
}

func interMB(quant int, mv MotionVector, cbp uint8, level int) MacroblockDescr {
	mb := MacroblockDescr{Type: MBInter, Quant: quant, CBP: cbp}
	mb.MV[0] = mv
	for b := 0; b < 6; b++ {
		if mb.Coded(b) {
			mb.Blocks[b].Add(0, level)
			mb.Blocks[b].Add(2, -level)
		}
	}

	return mb
}

// writePicture writes a complete picture in the H.263 GOB layout of geom.
func writePicture(w *StreamWriter, hdr PictureHeader, geom Geometry, mb func(col, row int) MacroblockDescr) {
	w.WritePicture(&hdr)
	for n := 0; n < geom.GOBs; n++ {
		writeGOB(w, geom.GOB(n), mb)
	}
	w.WriteEnd()
}

func writeGOB(w *StreamWriter, gob GobDescr, mb func(col, row int) MacroblockDescr) {
	mbs := make([]MacroblockDescr, gob.Count)
	for i := range mbs {
		col, row := gob.position(i)
		mbs[i] = mb(col, row)
	}
	w.WriteGOB(&gob, mbs)
}

func qcif(t testing.TB) Geometry {
	geom, err := FormatGeometry(FormatQCIF)
	require.NoError(t, err)

	return geom
}

// intraStream is one QCIF INTRA picture with DC only blocks.
func intraStream(t testing.TB, tr int) []byte {
	w := NewStreamWriter()
	hdr := PictureHeader{TemporalRef: tr, Format: FormatQCIF, Type: PictureTypeIntra, Quant: 16}
	writePicture(w, hdr, qcif(t), func(col, row int) MacroblockDescr {
		return intraMB(16, func(b int) int { return dcIndex(col, row, b) })
	})

	return w.Bytes()
}

// mixedStream is one QCIF INTER picture using every H.263 macroblock kind.
func mixedStream(t testing.TB, tr int, ap bool) []byte {
	r := rand.New(rand.NewSource(int64(tr)))

	w := NewStreamWriter()
	hdr := PictureHeader{TemporalRef: tr, Format: FormatQCIF, Type: PictureTypeInter, Quant: 10, AP: ap}
	writePicture(w, hdr, qcif(t), func(col, row int) MacroblockDescr {
		mv := MotionVector{X: r.Intn(15) - 7, Y: r.Intn(15) - 7}
		switch (col + 3*row) % 5 {
		case 0:
			return MacroblockDescr{Type: MBSkip}
		case 1:
			return intraMB(12, func(b int) int { return dcIndex(row, col, b) })
		case 2:
			mb := interMB(10, mv, 0x2a, 3)
			mb.Type = MBInter4V
			for k := 1; k < 4; k++ {
				mb.MV[k] = MotionVector{X: mv.X + k, Y: mv.Y - k}
			}
			return mb
		}
		return interMB(10, mv, 0x3f, 2)
	})

	return w.Bytes()
}

func clonePicture(p *Picture) *Picture {
	c := *p
	c.Y.Data = append([]byte(nil), p.Y.Data...)
	c.Cb.Data = append([]byte(nil), p.Cb.Data...)
	c.Cr.Data = append([]byte(nil), p.Cr.Data...)

	return &c
}

// decodeAll decodes data and resumes until no call completes a picture,
// returning copies of the completed pictures.
func decodeAll(t testing.TB, s *Session, data []byte) []*Picture {
	var out []*Picture

	res, err := s.Decode(data)
	for {
		require.NoError(t, err)
		if res.Completed {
			out = append(out, clonePicture(res.Picture))
		}
		if !res.Completed && !res.Suspended {
			return out
		}
		res, err = s.Decode(nil)
	}
}

func requireSamePlanes(t testing.TB, want, got *Picture) {
	t.Helper()

	for y := 0; y < want.Y.Height; y++ {
		require.Equal(t, want.Y.Row(y), got.Y.Row(y), "Y row %d", y)
	}
	for y := 0; y < want.Cb.Height; y++ {
		require.Equal(t, want.Cb.Row(y), got.Cb.Row(y), "Cb row %d", y)
		require.Equal(t, want.Cr.Row(y), got.Cr.Row(y), "Cr row %d", y)
	}
}

func newTestPicture(w, h int) *Picture {
	lw, lh := (w+15)&^15, (h+15)&^15
	p := newPicture(lw, lh)
	p.setGeometry(w, h, lw, lh)
	p.Color = true

	return p
}

func randomPicture(w, h int, seed int64) *Picture {
	r := rand.New(rand.NewSource(seed))
	p := newTestPicture(w, h)
	r.Read(p.Y.Data)
	r.Read(p.Cb.Data)
	r.Read(p.Cr.Data)

	return p
}
