package h263

import (
	"io"

	"github.com/pkg/errors"
)

// PictureType is the coding type announced in a picture header.
type PictureType int

const (
	PictureTypeIntra PictureType = iota
	PictureTypeInter
)

// PictureHeader holds the picture layer fields the reconstruction needs.
type PictureHeader struct {
	TemporalRef int
	Format      SourceFormat
	// Width and Height are used with FormatCustom.
	Width  int
	Height int
	Type   PictureType

	UMV        bool // unrestricted motion vectors
	AP         bool // advanced prediction (four vectors, overlapped compensation)
	PB         bool // PB-frames
	AIC        bool // advanced intra coding
	Deblocking bool
	RRU        bool // reduced-resolution update
	H261       bool

	Quant   int
	TRB     int
	DBQuant int
}

// EntropyDecoder turns buffered bitstream data into picture headers and
// GOB descriptors. Both methods must return ErrNeedMoreData without
// consuming anything when the buffered data ends inside a unit.
type EntropyDecoder interface {
	// PictureHeader reads the next picture header.
	PictureHeader(b *Buffer) (PictureHeader, error)
	// NextGOB reads the next GOB of the current picture into gob and appends
	// its macroblocks to mbs. It returns io.EOF at the end of the picture.
	NextGOB(b *Buffer, hdr *PictureHeader, gob *GobDescr, mbs []MacroblockDescr) ([]MacroblockDescr, error)
}

// Descriptor stream start codes.
const (
	startPicture    = 0x20
	startGOB        = 0x21
	startPictureEnd = 0x22

	maxGOBCount = 1 << 14
)

// Picture header flag bits.
const (
	flagUMV = 1 << (7 - iota)
	flagAP
	flagPB
	flagAIC
	flagDeblocking
	flagRRU
	flagH261
)

// StreamDecoder is an EntropyDecoder for the descriptor stream written by
// StreamWriter: start code delimited units carrying picture headers, GOB
// descriptors and their macroblocks.
type StreamDecoder struct{}

var _ EntropyDecoder = StreamDecoder{}

// unit locates the next complete unit. It returns the code and the payload
// end in bits, the buffer is left at the payload start.
func unit(b *Buffer) (code, end int, err error) {
	b.Mark()

	code = b.nextStartCode()
	if code == -1 {
		b.Restore()
		return 0, 0, ErrNeedMoreData
	}

	if !b.has(24) {
		b.Restore()
		return 0, 0, ErrNeedMoreData
	}
	size := b.read(24)

	if !b.has(size << 3) {
		b.Restore()
		return 0, 0, ErrNeedMoreData
	}

	return code, b.bitIndex + size<<3, nil
}

// PictureHeader implements EntropyDecoder.
func (StreamDecoder) PictureHeader(b *Buffer) (PictureHeader, error) {
	for {
		code, end, err := unit(b)
		if err != nil {
			return PictureHeader{}, err
		}

		if code != startPicture {
			// Stray unit of a picture we never saw the header of
			b.bitIndex = end
			continue
		}

		hdr, err := readPictureHeader(b, end)
		if err != nil {
			b.bitIndex = end
			return PictureHeader{}, err
		}
		b.bitIndex = end

		return hdr, nil
	}
}

func readPictureHeader(b *Buffer, end int) (PictureHeader, error) {
	var hdr PictureHeader

	if end-b.bitIndex < 28 {
		return hdr, errors.Wrap(ErrInvalidStream, "short picture header")
	}

	hdr.TemporalRef = b.read(8)
	hdr.Format = SourceFormat(b.read(3))
	hdr.Type = PictureType(b.read(2))

	flags := b.read(8)
	hdr.UMV = flags&flagUMV != 0
	hdr.AP = flags&flagAP != 0
	hdr.PB = flags&flagPB != 0
	hdr.AIC = flags&flagAIC != 0
	hdr.Deblocking = flags&flagDeblocking != 0
	hdr.RRU = flags&flagRRU != 0
	hdr.H261 = flags&flagH261 != 0

	if hdr.Format == FormatCustom {
		hdr.Width = b.read(16)
		hdr.Height = b.read(16)
	}

	hdr.Quant = b.read(5)
	hdr.TRB = b.read(3)
	hdr.DBQuant = b.read(2)

	if b.bitIndex > end {
		return hdr, errors.Wrap(ErrInvalidStream, "picture header overrun")
	}

	switch {
	case hdr.Format == FormatForbidden || hdr.Format > FormatCustom:
		return hdr, errors.Wrapf(ErrInvalidFormat, "source format %d", hdr.Format)
	case hdr.Type > PictureTypeInter:
		return hdr, errors.Wrapf(ErrInvalidStream, "picture type %d", hdr.Type)
	}

	return hdr, nil
}

// NextGOB implements EntropyDecoder.
func (StreamDecoder) NextGOB(b *Buffer, hdr *PictureHeader, gob *GobDescr, mbs []MacroblockDescr) ([]MacroblockDescr, error) {
	for {
		code, end, err := unit(b)
		if err != nil {
			return mbs, err
		}

		switch code {
		case startPicture:
			// Next picture starts, leave its header for PictureHeader
			b.Restore()
			return mbs, io.EOF
		case startPictureEnd:
			b.bitIndex = end
			return mbs, io.EOF
		case startGOB:
			mbs, err = readGOB(b, end, gob, mbs)
			b.bitIndex = end
			return mbs, err
		}

		b.bitIndex = end
	}
}

func readGOB(b *Buffer, end int, gob *GobDescr, mbs []MacroblockDescr) ([]MacroblockDescr, error) {
	gob.Number = b.read(8)
	gob.FirstRow = b.read(8)
	gob.FirstCol = b.read(8)
	gob.MBPerRow = b.read(8)
	gob.RowStride = b.read(8)
	gob.Count = b.read(16)

	if gob.Count > maxGOBCount || gob.MBPerRow == 0 {
		return mbs, errors.Wrapf(ErrInvalidStream, "gob %d: %d macroblocks, %d per row", gob.Number, gob.Count, gob.MBPerRow)
	}

	for i := 0; i < gob.Count; i++ {
		if b.bitIndex >= end {
			return mbs, errors.Wrapf(ErrInvalidStream, "gob %d: truncated at macroblock %d", gob.Number, i)
		}

		mbs = append(mbs, MacroblockDescr{})
		mb := &mbs[len(mbs)-1]
		readMacroblock(b, mb)
	}

	if b.bitIndex > end {
		return mbs, errors.Wrapf(ErrInvalidStream, "gob %d: overrun", gob.Number)
	}

	return mbs, nil
}

func readMacroblock(b *Buffer, mb *MacroblockDescr) {
	mb.Type = MacroblockType(b.read(4))
	mb.Quant = b.read(5)
	mb.BQuant = b.read(5)
	mb.IntraMode = b.read(2)
	mb.PB = b.read1() == 1
	mb.CBP = uint8(b.read(6))
	mb.CBPB = uint8(b.read(6))

	n := 1
	if mb.Type.hasFourVectors() {
		n = 4
	}

	readVectors(b, mb.MV[:n])
	if mb.PB {
		readVectors(b, mb.MVF[:n])
		readVectors(b, mb.MVB[:n])
	}

	blocks := 6
	if mb.PB {
		blocks = 12
	}
	for i := 0; i < blocks; i++ {
		blk := &mb.Blocks[i]
		blk.Count = b.read(7)
		if blk.Count > 64 {
			blk.Count = 64
		}
		for k := 0; k < blk.Count; k++ {
			blk.Symbols[k].Run = uint8(b.read(6))
			blk.Symbols[k].Level = int16(b.readSigned(12))
		}
	}
}

func readVectors(b *Buffer, mv []MotionVector) {
	for i := range mv {
		mv[i].X = b.readSigned(16)
		mv[i].Y = b.readSigned(16)
	}
}

// StreamWriter serializes picture headers and GOBs into the descriptor
// stream read by StreamDecoder.
type StreamWriter struct {
	out []byte
	w   bitWriter
}

// NewStreamWriter returns an empty writer.
func NewStreamWriter() *StreamWriter {
	return &StreamWriter{}
}

// Bytes returns the serialized stream.
func (s *StreamWriter) Bytes() []byte {
	return s.out
}

// Reset empties the writer.
func (s *StreamWriter) Reset() {
	s.out = s.out[:0]
}

func (s *StreamWriter) flushUnit(code int) {
	payload := s.w.bytes()
	size := len(payload)

	s.out = append(s.out, 0x00, 0x00, 0x01, byte(code),
		byte(size>>16), byte(size>>8), byte(size))
	s.out = append(s.out, payload...)

	s.w.reset()
}

// WritePicture writes a picture header unit.
func (s *StreamWriter) WritePicture(hdr *PictureHeader) {
	w := &s.w

	w.write(hdr.TemporalRef, 8)
	w.write(int(hdr.Format), 3)
	w.write(int(hdr.Type), 2)

	flags := 0
	for _, f := range []struct {
		on  bool
		bit int
	}{
		{hdr.UMV, flagUMV}, {hdr.AP, flagAP}, {hdr.PB, flagPB}, {hdr.AIC, flagAIC},
		{hdr.Deblocking, flagDeblocking}, {hdr.RRU, flagRRU}, {hdr.H261, flagH261},
	} {
		if f.on {
			flags |= f.bit
		}
	}
	w.write(flags, 8)

	if hdr.Format == FormatCustom {
		w.write(hdr.Width, 16)
		w.write(hdr.Height, 16)
	}

	w.write(hdr.Quant, 5)
	w.write(hdr.TRB, 3)
	w.write(hdr.DBQuant, 2)

	s.flushUnit(startPicture)
}

// WriteGOB writes a GOB unit with its macroblocks.
func (s *StreamWriter) WriteGOB(gob *GobDescr, mbs []MacroblockDescr) {
	w := &s.w

	w.write(gob.Number, 8)
	w.write(gob.FirstRow, 8)
	w.write(gob.FirstCol, 8)
	w.write(gob.MBPerRow, 8)
	w.write(gob.RowStride, 8)
	w.write(len(mbs), 16)

	for i := range mbs {
		writeMacroblock(w, &mbs[i])
	}

	s.flushUnit(startGOB)
}

// WriteEnd writes the end of picture unit.
func (s *StreamWriter) WriteEnd() {
	s.flushUnit(startPictureEnd)
}

func writeMacroblock(w *bitWriter, mb *MacroblockDescr) {
	w.write(int(mb.Type), 4)
	w.write(mb.Quant, 5)
	w.write(mb.BQuant, 5)
	w.write(mb.IntraMode, 2)
	if mb.PB {
		w.write(1, 1)
	} else {
		w.write(0, 1)
	}
	w.write(int(mb.CBP), 6)
	w.write(int(mb.CBPB), 6)

	n := 1
	if mb.Type.hasFourVectors() {
		n = 4
	}

	writeVectors(w, mb.MV[:n])
	if mb.PB {
		writeVectors(w, mb.MVF[:n])
		writeVectors(w, mb.MVB[:n])
	}

	blocks := 6
	if mb.PB {
		blocks = 12
	}
	for i := 0; i < blocks; i++ {
		blk := &mb.Blocks[i]
		count := min(blk.Count, 64)
		w.write(count, 7)
		for k := 0; k < count; k++ {
			w.write(int(blk.Symbols[k].Run), 6)
			w.write(int(blk.Symbols[k].Level), 12)
		}
	}
}

func writeVectors(w *bitWriter, mv []MotionVector) {
	for i := range mv {
		w.write(mv[i].X, 16)
		w.write(mv[i].Y, 16)
	}
}

// bitWriter packs MSB first bit fields, the last byte is zero padded.
type bitWriter struct {
	buf []byte
	acc uint64
	n   int
}

func (w *bitWriter) write(v, count int) {
	w.acc = w.acc<<count | uint64(v)&(1<<count-1)
	w.n += count
	for w.n >= 8 {
		w.n -= 8
		w.buf = append(w.buf, byte(w.acc>>w.n))
	}
}

func (w *bitWriter) bytes() []byte {
	if w.n > 0 {
		w.buf = append(w.buf, byte(w.acc<<(8-w.n)))
		w.n = 0
	}
	w.acc = 0

	return w.buf
}

func (w *bitWriter) reset() {
	w.buf = w.buf[:0]
	w.acc = 0
	w.n = 0
}
