package h263

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openQCIF(t testing.TB, budget int) *Session {
	s, err := Open(nil, Config{Format: FormatQCIF, WorkBudget: budget})
	require.NoError(t, err)

	return s
}

func TestIntraDC(t *testing.T) {
	s := openQCIF(t, 0)
	defer s.Close()

	res, err := s.Decode(intraStream(t, 1))
	require.NoError(t, err)
	require.True(t, res.Completed)
	require.False(t, res.Failed)

	p := res.Picture
	require.Equal(t, PictureIntra, p.Kind)
	require.Equal(t, 176, p.Width)
	require.Equal(t, 144, p.Height)

	geom := s.Geometry()
	for row := 0; row < geom.MBRows; row++ {
		for col := 0; col < geom.MBCols; col++ {
			for b := 0; b < 6; b++ {
				plane, index, stride := blockTarget(p, col, row, b)
				want := byte(dcIndex(col, row, b))
				for j := 0; j < 8; j++ {
					for i := 0; i < 8; i++ {
						if got := plane.Data[index+j*stride+i]; got != want {
							t.Fatalf("mb %d,%d block %d: got %d, want %d", col, row, b, got, want)
						}
					}
				}
			}
		}
	}

	stats := res.Stats
	require.Equal(t, 1, stats.Pictures)
	require.Equal(t, 99, stats.Macroblocks[MBIntra])
	require.Equal(t, 9, stats.GOBs)
	require.Zero(t, stats.MacroblocksConcealed)
}

func TestCheckpointResume(t *testing.T) {
	data := append(intraStream(t, 1), mixedStream(t, 2, false)...)
	data = append(data, mixedStream(t, 3, true)...)

	ref := openQCIF(t, 0)
	defer ref.Close()
	want := decodeAll(t, ref, data)
	require.Len(t, want, 3)

	for _, budget := range []int{1, 7, 40, 250} {
		s := openQCIF(t, budget)

		suspended := 0
		var got []*Picture

		res, err := s.Decode(data)
		for {
			require.NoError(t, err)
			if res.Completed {
				got = append(got, clonePicture(res.Picture))
			}
			if res.Suspended && res.Checkpoint.Active {
				// Suspended inside a GOB
				suspended++
				require.Positive(t, res.Checkpoint.Index)
			}
			if !res.Completed && !res.Suspended {
				break
			}
			res, err = s.Decode(nil)
		}

		require.Len(t, got, 3, "budget %d", budget)
		require.Positive(t, suspended, "budget %d", budget)
		for i := range want {
			requireSamePlanes(t, want[i], got[i])
		}
		require.Equal(t, ref.Stats().Work, s.Stats().Work, "budget %d", budget)

		s.Close()
	}
}

func TestPBOrdering(t *testing.T) {
	s := openQCIF(t, 0)
	defer s.Close()

	geom := qcif(t)
	w := NewStreamWriter()
	hdr := PictureHeader{TemporalRef: 4, Format: FormatQCIF, Type: PictureTypeInter, PB: true, TRB: 2, Quant: 8}
	writePicture(w, hdr, geom, func(col, row int) MacroblockDescr {
		return MacroblockDescr{Type: MBInter, Quant: 8, PB: true}
	})

	intra := decodeAll(t, s, intraStream(t, 1))
	require.Len(t, intra, 1)

	res, err := s.Decode(w.Bytes())
	require.NoError(t, err)
	require.True(t, res.Completed)
	require.Equal(t, PictureB, res.Picture.Kind)
	require.Equal(t, 3, res.Picture.TemporalRef)
	require.True(t, s.Pending())
	requireSamePlanes(t, intra[0], res.Picture)

	res, err = s.Decode(nil)
	require.NoError(t, err)
	require.True(t, res.Completed)
	require.Equal(t, PictureInter, res.Picture.Kind)
	require.Equal(t, 4, res.Picture.TemporalRef)
	require.False(t, s.Pending())
	requireSamePlanes(t, intra[0], res.Picture)

	res, err = s.Decode(nil)
	require.NoError(t, err)
	require.False(t, res.Completed)
	require.Equal(t, 1, res.Stats.BPictures)
}

func TestPBMismatchFailed(t *testing.T) {
	s := openQCIF(t, 0)
	defer s.Close()

	w := NewStreamWriter()
	hdr := PictureHeader{TemporalRef: 4, Format: FormatQCIF, Type: PictureTypeInter, PB: true, TRB: 2, Quant: 8}
	writePicture(w, hdr, qcif(t), func(col, row int) MacroblockDescr {
		return MacroblockDescr{Type: MBInter, Quant: 8, PB: true}
	})

	// Without a reference both pictures of the unit are gray fills
	res, err := s.Decode(w.Bytes())
	require.NoError(t, err)
	require.True(t, res.Completed)
	require.Equal(t, PictureB, res.Picture.Kind)
	require.True(t, res.Failed)

	res, err = s.Decode(nil)
	require.NoError(t, err)
	require.True(t, res.Completed)
	require.Equal(t, PictureInter, res.Picture.Kind)
	require.True(t, res.Failed)
	require.Equal(t, 1, res.Stats.FailedPictures)
}

func TestConcealGob(t *testing.T) {
	s := openQCIF(t, 0)
	defer s.Close()

	ref := decodeAll(t, s, intraStream(t, 1))
	require.Len(t, ref, 1)

	err := s.ConcealGob(qcif(t).GOB(0))
	require.ErrorIs(t, err, ErrNoPicture)

	w := NewStreamWriter()
	w.WritePicture(&PictureHeader{TemporalRef: 2, Format: FormatQCIF, Type: PictureTypeInter, Quant: 8})

	res, err := s.Decode(w.Bytes())
	require.NoError(t, err)
	require.False(t, res.Completed)

	s.newOut.Y.Fill(0)
	gob := qcif(t).GOB(4)
	require.NoError(t, s.ConcealGob(gob))

	for y := gob.FirstRow << 4; y < (gob.FirstRow+1)<<4; y++ {
		require.Equal(t, ref[0].Y.Row(y), s.newOut.Y.Row(y), "row %d", y)
	}
	require.Equal(t, make([]byte, 176), s.newOut.Y.Row(0))

	bad := gob
	bad.FirstRow = 9
	require.ErrorIs(t, s.ConcealGob(bad), ErrInvalidGOB)

	res, err = s.FinishPicture()
	require.NoError(t, err)
	require.True(t, res.Completed)
	require.False(t, res.Failed)
	requireSamePlanes(t, ref[0], res.Picture)
	require.Equal(t, 88, res.Stats.MacroblocksConcealed)
	require.Equal(t, 1, res.Stats.GOBsConcealed)
}

func TestConcealGobMismatch(t *testing.T) {
	s := openQCIF(t, 0)
	defer s.Close()

	w := NewStreamWriter()
	w.WritePicture(&PictureHeader{TemporalRef: 1, Format: FormatQCIF, Type: PictureTypeInter, Quant: 8})

	res, err := s.Decode(w.Bytes())
	require.NoError(t, err)
	require.False(t, res.Completed)

	s.newOut.Y.Fill(0)
	s.newOut.Cb.Fill(0)
	s.newOut.Cr.Fill(0)
	require.NoError(t, s.ConcealGob(qcif(t).GOB(0)))

	for y := 0; y < 16; y++ {
		for _, v := range s.newOut.Y.Row(y) {
			require.EqualValues(t, 128, v)
		}
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 88; x++ {
			require.EqualValues(t, 128, s.newOut.Cb.Row(y)[x])
			require.EqualValues(t, 128, s.newOut.Cr.Row(y)[x])
		}
	}

	res, err = s.FinishPicture()
	require.NoError(t, err)
	require.True(t, res.Completed)
	require.True(t, res.Failed)
	require.False(t, res.Picture.Color)
	require.Equal(t, 1, res.Stats.GeometryMismatches)
	require.Equal(t, 1, res.Stats.FailedPictures)
}

func TestUnknownMacroblockType(t *testing.T) {
	s := openQCIF(t, 0)
	defer s.Close()

	ref := decodeAll(t, s, intraStream(t, 1))
	require.Len(t, ref, 1)

	w := NewStreamWriter()
	hdr := PictureHeader{TemporalRef: 2, Format: FormatQCIF, Type: PictureTypeInter, Quant: 8}
	writePicture(w, hdr, qcif(t), func(col, row int) MacroblockDescr {
		if row == 2 && col == 3 {
			return MacroblockDescr{Type: MBH261InterMC}
		}
		return interMB(8, MotionVector{}, 0x20, 5)
	})

	res, err := s.Decode(w.Bytes())
	require.NoError(t, err)
	require.True(t, res.Completed)
	require.Equal(t, 1, res.Stats.GOBsAborted)
	require.Equal(t, 99-11+3, res.Stats.Macroblocks[MBInter])

	// The rest of the GOB repeats the reference
	for y := 32; y < 48; y++ {
		require.Equal(t, ref[0].Y.Row(y)[48:], res.Picture.Y.Row(y)[48:], "row %d", y)
	}
}

func TestTruncatedPicture(t *testing.T) {
	s := openQCIF(t, 0)
	defer s.Close()

	decodeAll(t, s, intraStream(t, 1))

	w := NewStreamWriter()
	hdr := PictureHeader{TemporalRef: 2, Format: FormatQCIF, Type: PictureTypeInter, Quant: 8}
	w.WritePicture(&hdr)
	writeGOB(w, qcif(t).GOB(0), func(col, row int) MacroblockDescr {
		return interMB(8, MotionVector{X: 1}, 0x3f, 1)
	})
	data := w.Bytes()

	// Deliver the picture in two parts split inside the GOB unit
	res, err := s.Decode(data[:len(data)-5])
	require.NoError(t, err)
	require.False(t, res.Completed)

	res, err = s.Decode(data[len(data)-5:])
	require.NoError(t, err)
	require.False(t, res.Completed)
	require.Equal(t, 11, res.Stats.Macroblocks[MBInter])

	res, err = s.FinishPicture()
	require.NoError(t, err)
	require.True(t, res.Completed)
	require.Equal(t, 88, res.Stats.MacroblocksConcealed)

	m := s.MacroblockMap()
	require.Equal(t, MBInter, m.Type(0, 0))
	require.Equal(t, MBSkip, m.Type(0, 1))
	require.True(t, m.BlockDirty(0, 0))
	require.False(t, m.BlockDirty(0, 2))
}

func TestResize(t *testing.T) {
	s := openQCIF(t, 0)
	defer s.Close()

	decodeAll(t, s, intraStream(t, 1))

	geom, err := NewGeometry(200, 120)
	require.NoError(t, err)

	w := NewStreamWriter()
	hdr := PictureHeader{TemporalRef: 2, Format: FormatCustom, Width: 200, Height: 120, Type: PictureTypeInter, Quant: 8}
	writePicture(w, hdr, geom, func(col, row int) MacroblockDescr {
		return MacroblockDescr{Type: MBSkip}
	})

	res, err := s.Decode(w.Bytes())
	require.NoError(t, err)
	require.True(t, res.Completed)
	require.True(t, res.Failed)
	require.Equal(t, 200, res.Picture.Width)
	require.Equal(t, 208, res.Picture.Y.Width)
	require.Equal(t, 13, s.Geometry().MBCols)
	require.Equal(t, 1, res.Stats.GeometryMismatches)

	for _, v := range res.Picture.Y.Row(0) {
		require.EqualValues(t, 128, v)
	}

	hdr.Width = MaxDimension + 16
	w.Reset()
	w.WritePicture(&hdr)
	_, err = s.Decode(w.Bytes())
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestAdvancedIntraPicture(t *testing.T) {
	s := openQCIF(t, 0)
	defer s.Close()

	w := NewStreamWriter()
	hdr := PictureHeader{TemporalRef: 1, Format: FormatQCIF, Type: PictureTypeIntra, AIC: true, Quant: 8}
	writePicture(w, hdr, qcif(t), func(col, row int) MacroblockDescr {
		mb := MacroblockDescr{Type: MBIntra, Quant: 8, IntraMode: (col + row) % 3}
		if col == 0 && row == 0 {
			mb.CBP = 0x20
			mb.Blocks[0].Add(0, 4)
		}
		return mb
	})

	res, err := s.Decode(w.Bytes())
	require.NoError(t, err)
	require.True(t, res.Completed)

	for y := 0; y < 144; y++ {
		for x, v := range res.Picture.Y.Row(y) {
			if v != 136 {
				t.Fatalf("Y %d,%d: got %d, want 136", x, y, v)
			}
		}
	}
	for y := 0; y < 72; y++ {
		for _, v := range res.Picture.Cb.Row(y) {
			require.EqualValues(t, 128, v)
		}
	}
}

func TestH261Picture(t *testing.T) {
	s := openQCIF(t, 0)
	defer s.Close()

	geom := qcif(t)
	w := NewStreamWriter()

	write := func(tr int, typ PictureType, mb func(col, row int) MacroblockDescr) {
		w.WritePicture(&PictureHeader{TemporalRef: tr, Format: FormatQCIF, Type: typ, H261: true, Quant: 8})
		for n := 0; n < geom.H261GOBs(); n++ {
			writeGOB(w, geom.H261GOB(n), mb)
		}
		w.WriteEnd()
	}

	write(1, PictureTypeIntra, func(col, row int) MacroblockDescr {
		mb := intraMB(8, func(b int) int { return 64 })
		mb.Type = MBH261Intra
		return mb
	})
	write(2, PictureTypeInter, func(col, row int) MacroblockDescr {
		mb := MacroblockDescr{Type: MBH261InterMCFilter, Quant: 8}
		mb.MV[0] = MotionVector{X: 3, Y: -2}
		return mb
	})

	got := decodeAll(t, s, w.Bytes())
	require.Len(t, got, 2)

	for _, p := range got {
		for y := 0; y < 144; y++ {
			for _, v := range p.Y.Row(y) {
				require.EqualValues(t, 64, v)
			}
		}
	}
	require.Equal(t, 99, s.Stats().Macroblocks[MBH261InterMCFilter])
	require.Zero(t, s.Stats().MacroblocksConcealed)
}

func TestReducedResolution(t *testing.T) {
	s := openQCIF(t, 0)
	defer s.Close()

	geom := qcif(t)
	w := NewStreamWriter()

	write := func(tr int, typ PictureType, mb func(col, row int) MacroblockDescr) {
		w.WritePicture(&PictureHeader{TemporalRef: tr, Format: FormatQCIF, Type: typ, RRU: true, Quant: 8})
		for n := 0; n < geom.RRURows(); n++ {
			writeGOB(w, geom.RRUGOB(n), mb)
		}
		w.WriteEnd()
	}

	write(1, PictureTypeIntra, func(col, row int) MacroblockDescr {
		return intraMB(8, func(b int) int { return 90 })
	})
	write(2, PictureTypeInter, func(col, row int) MacroblockDescr {
		mb := MacroblockDescr{Type: MBInter, Quant: 8}
		mb.MV[0] = MotionVector{X: 1, Y: -3}
		return mb
	})

	got := decodeAll(t, s, w.Bytes())
	require.Len(t, got, 2)

	for _, p := range got {
		for y := 0; y < 144; y++ {
			for _, v := range p.Y.Row(y) {
				require.EqualValues(t, 90, v)
			}
		}
		for y := 0; y < 72; y++ {
			for _, v := range p.Cr.Row(y) {
				require.EqualValues(t, 90, v)
			}
		}
	}
	require.Zero(t, s.Stats().MacroblocksConcealed)
}

func TestClosed(t *testing.T) {
	s := openQCIF(t, 0)
	require.NoError(t, s.Close())
	require.ErrorIs(t, s.Close(), ErrClosed)

	_, err := s.Decode(nil)
	require.ErrorIs(t, err, ErrClosed)
	_, err = s.FinishPicture()
	require.ErrorIs(t, err, ErrClosed)
	_, err = s.DecodeRTPFragment([]byte{0, 0, 0, 0}, true)
	require.ErrorIs(t, err, ErrClosed)
}

func TestOpenInvalidFormat(t *testing.T) {
	_, err := Open(nil, Config{Format: FormatForbidden})
	require.ErrorIs(t, err, ErrInvalidFormat)

	_, err = Open(nil, Config{Format: FormatCustom, Width: 0, Height: 64})
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func BenchmarkDecodeIntra(b *testing.B) {
	data := intraStream(b, 1)
	s := openQCIF(b, 0)
	defer s.Close()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := s.Decode(data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeInter(b *testing.B) {
	data := mixedStream(b, 2, true)
	s := openQCIF(b, 0)
	defer s.Close()

	decodeAll(b, s, intraStream(b, 1))

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := s.Decode(data); err != nil {
			b.Fatal(err)
		}
	}
}
