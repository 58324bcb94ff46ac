package h263

import (
	"github.com/pion/rtp"
	"github.com/pkg/errors"
)

// PayloadFormat selects the RTP payload header.
type PayloadFormat int

const (
	// PayloadRFC2190 is the 4 byte mode A header of RFC 2190.
	PayloadRFC2190 PayloadFormat = iota
	// PayloadRFC2429 is the 2 byte header of RFC 2429 (H.263+).
	PayloadRFC2429
)

const (
	modeAHeaderSize   = 4
	rfc2429HeaderSize = 2
)

// ModeAHeader is the RFC 2190 mode A payload header.
type ModeAHeader struct {
	SBIT int
	EBIT int
	SRC  int
	I    bool
	U    bool
	S    bool
	A    bool
	DBQ  int
	TRB  int
	TR   int
}

// ParseModeA parses an RFC 2190 mode A header. Mode B and C payloads are rejected.
func ParseModeA(p []byte) (ModeAHeader, error) {
	var h ModeAHeader
	if len(p) < modeAHeaderSize {
		return h, errors.Wrapf(ErrInvalidPayload, "mode A: %d bytes", len(p))
	}
	if p[0]&0x80 != 0 {
		return h, errors.Wrap(ErrInvalidPayload, "mode B/C payload")
	}

	h.SBIT = int(p[0]>>3) & 7
	h.EBIT = int(p[0]) & 7
	h.SRC = int(p[1] >> 5)
	h.I = p[1]&0x10 != 0
	h.U = p[1]&0x08 != 0
	h.S = p[1]&0x04 != 0
	h.A = p[1]&0x02 != 0
	h.DBQ = int(p[2]>>3) & 3
	h.TRB = int(p[2]) & 7
	h.TR = int(p[3])

	return h, nil
}

// RFC2429Header is the RFC 2429 payload header.
type RFC2429Header struct {
	P     bool
	V     bool
	PLEN  int
	PEBIT int
}

// ParseRFC2429 parses an RFC 2429 header.
func ParseRFC2429(p []byte) (RFC2429Header, error) {
	var h RFC2429Header
	if len(p) < rfc2429HeaderSize {
		return h, errors.Wrapf(ErrInvalidPayload, "RFC 2429: %d bytes", len(p))
	}

	h.P = p[0]&0x04 != 0
	h.V = p[0]&0x02 != 0
	h.PLEN = int(p[0]&0x01)<<5 | int(p[1]>>3)
	h.PEBIT = int(p[1]) & 7

	return h, nil
}

// rtpState reassembles payloads into the bitstream buffer.
type rtpState struct {
	format PayloadFormat

	// carry holds data ending in a partial byte until the next payload completes it.
	carry []byte
	ebit  int

	flush bool

	seq     uint16
	haveSeq bool
	ts      uint32
	haveTS  bool
}

func (r *rtpState) reset() {
	r.carry = r.carry[:0]
	r.ebit = 0
	r.flush = false
}

// depacketize strips the payload header. It returns the bitstream bytes
// that are complete and whether the data ends inside a byte. A marker
// completes a trailing partial byte with zero bits.
func (r *rtpState) depacketize(payload []byte, marker bool) ([]byte, bool, error) {
	switch r.format {
	case PayloadRFC2429:
		h, err := ParseRFC2429(payload)
		if err != nil {
			return nil, false, err
		}

		data := payload[rfc2429HeaderSize:]
		skip := h.PLEN
		if h.V {
			skip++
		}
		if len(data) < skip {
			return nil, false, errors.Wrapf(ErrInvalidPayload, "RFC 2429: %d bytes, header needs %d", len(data), skip)
		}
		data = data[skip:]

		r.carry = r.carry[:0]
		if h.P {
			// The two zero bytes of the start code are not transmitted
			r.carry = append(r.carry, 0x00, 0x00)
		}
		r.carry = append(r.carry, data...)

		return r.carry, false, nil
	}

	h, err := ParseModeA(payload)
	if err != nil {
		return nil, false, err
	}
	data := payload[modeAHeaderSize:]

	switch {
	case r.ebit == 0:
		r.carry = r.carry[:0]
	case h.SBIT != 0 && len(r.carry) > 0 && len(data) > 0:
		// Merge the partial bytes of both payloads
		last := len(r.carry) - 1
		r.carry[last] = r.carry[last]&(0xff<<r.ebit) | data[0]&(0xff>>h.SBIT)
		data = data[1:]
	case len(r.carry) > 0:
		// The payload completing the held byte never arrived
		r.carry = r.carry[:len(r.carry)-1]
	}

	r.carry = append(r.carry, data...)
	r.ebit = h.EBIT

	if h.EBIT != 0 {
		if !marker {
			return nil, true, nil
		}

		if n := len(r.carry); n > 0 {
			r.carry[n-1] &= 0xff << h.EBIT
		}
		r.ebit = 0
	}

	return r.carry, false, nil
}

// DecodeRTPFragment decodes one RTP payload including its payload header.
// A set marker ends the picture: what did not arrive is concealed.
// Payloads ending inside a byte are held until the next payload completes them.
func (s *Session) DecodeRTPFragment(payload []byte, marker bool) (Result, error) {
	if s.closed {
		return Result{}, ErrClosed
	}

	s.stats.Packets++

	data, more, err := s.rtp.depacketize(payload, marker)
	if err != nil {
		s.log.Warn("rtp payload rejected", "err", err)
		return s.result(), err
	}

	if more {
		if s.Pending() {
			return s.takePending(), nil
		}
		return s.result(), nil
	}

	s.rtp.flush = marker

	return s.Decode(data)
}

// DecodeRTP decodes a parsed RTP packet. A sequence number gap counts the
// missing packets as lost, a timestamp change completes the picture in
// progress before the packet is decoded. Completing it decodes all data
// received for it, even beyond the work budget.
func (s *Session) DecodeRTP(pkt *rtp.Packet) (Result, error) {
	if s.closed {
		return Result{}, ErrClosed
	}

	r := &s.rtp

	if r.haveSeq {
		gap := pkt.SequenceNumber - r.seq - 1
		if gap != 0 && gap < 0x8000 {
			s.stats.LostPackets += int(gap)
			s.log.Debug("rtp packets lost", "count", gap, "seq", pkt.SequenceNumber)
		}
	}
	r.seq = pkt.SequenceNumber
	r.haveSeq = true

	changed := r.haveTS && pkt.Timestamp != r.ts
	r.ts = pkt.Timestamp
	r.haveTS = true

	if !changed {
		return s.DecodeRTPFragment(pkt.Payload, pkt.Marker)
	}

	if !s.inPicture {
		if !s.Pending() {
			// Leftovers of a picture whose header never arrived
			s.buf.Reset()
		}
		r.reset()

		return s.DecodeRTPFragment(pkt.Payload, pkt.Marker)
	}

	// Everything that arrived for the old picture is decoded before the
	// rest is concealed. Nothing is queued while a picture is in progress.
	fin, err := s.drain()
	if err == nil && !fin.Completed {
		fin, err = s.FinishPicture()
	}
	s.buf.Reset()
	r.reset()
	if err != nil {
		return fin, err
	}

	// A completed picture goes to the front of the queue, a pending one
	// taken by the call is put back there
	res, err := s.DecodeRTPFragment(pkt.Payload, pkt.Marker)
	if res.Completed {
		s.enqueueAt(0, res)
	}
	fin.Stats = s.stats

	return fin, err
}
