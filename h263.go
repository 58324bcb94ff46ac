// Package h263 implements the reconstruction core of an H.261/H.263 video decoder.
//
// The package turns per-macroblock residual and motion descriptors into YCbCr pictures and
// converts those pictures to display formats. Entropy decoding is a collaborator behind the
// EntropyDecoder interface; the package ships StreamDecoder, which reads a start code delimited
// descriptor stream written by StreamWriter.
//
// A Session owns four pictures whose roles rotate by pointer swap:
// the picture being built, the latest reference, the previous output and the B picture of a PB unit.
// Pictures returned by Decode stay valid until the next call that decodes data.
//
// Decoding is cooperative. With a work budget set, Decode returns a suspended Result once the
// budget is spent and the next call resumes the GOB exactly where it stopped:
//
//	s, err := h263.Open(h263.InitTables(), h263.Config{Format: h263.FormatQCIF, WorkBudget: 200})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	res, err := s.Decode(data)
//	for err == nil && res.Suspended {
//	    res, err = s.Decode(nil)
//	}
//
// RTP payloads are accepted with DecodeRTPFragment (payload header plus data) or DecodeRTP (a parsed
// github.com/pion/rtp packet). Both RFC 2190 mode A and RFC 2429 payload headers are supported.
//
// Completed pictures convert to RGB555, YUY2 or YVU9 with Convert. RGB555 output may be scaled by 2,
// by 1.5 or to arbitrary dimensions with bilinear interpolation, and may be limited to the 8x8 blocks the
// macroblock map flags as changed.
package h263

import (
	"github.com/pkg/errors"
)

var (
	// ErrInvalidFormat is returned for unsupported source formats and picture sizes.
	ErrInvalidFormat = errors.New("invalid source format")
	// ErrClosed is returned by a closed or unusable session.
	ErrClosed = errors.New("session closed")
	// ErrInvalidHandle is returned for a registry handle that is unknown or stale.
	ErrInvalidHandle = errors.New("invalid handle")
	// ErrUnknownMacroblockType aborts the current GOB.
	ErrUnknownMacroblockType = errors.New("unknown macroblock type")
	// ErrInvalidGOB reports a GOB whose macroblocks lie outside the picture.
	ErrInvalidGOB = errors.New("invalid GOB")
	// ErrGeometryMismatch reports a reference picture with a different size than the current one.
	ErrGeometryMismatch = errors.New("reference geometry mismatch")
	// ErrNeedMoreData is returned by an EntropyDecoder when the buffered data ends inside a unit.
	ErrNeedMoreData = errors.New("need more data")
	// ErrInvalidStream reports a malformed descriptor stream unit.
	ErrInvalidStream = errors.New("invalid stream")
	// ErrInvalidPayload reports a short or malformed RTP payload header.
	ErrInvalidPayload = errors.New("invalid RTP payload")
	// ErrNoPicture is returned when an operation needs a picture in progress.
	ErrNoPicture = errors.New("no picture in progress")
	// ErrUnsupportedConversion is returned for a target format and size Convert can not produce.
	ErrUnsupportedConversion = errors.New("unsupported conversion")
	// ErrShortBuffer is returned when the Convert destination is too small.
	ErrShortBuffer = errors.New("short buffer")
)
