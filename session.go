package h263

import (
	"io"
	"log/slog"

	"github.com/pkg/errors"
)

// Config configures a Session.
type Config struct {
	// Format selects the initial picture size, Width and Height are used with FormatCustom.
	Format SourceFormat
	Width  int
	Height int

	// Deblocking runs the deblocking filter on every picture, not only on
	// pictures that announce it.
	Deblocking bool

	// WorkBudget bounds the reconstruction work per call, 0 is unlimited.
	WorkBudget int

	// RTPFormat selects the payload header of DecodeRTPFragment and DecodeRTP.
	RTPFormat PayloadFormat

	// Entropy defaults to StreamDecoder, Motion to DefaultMotion.
	Entropy EntropyDecoder
	Motion  MotionCompensator

	// Logger defaults to a logger that discards everything.
	Logger *slog.Logger
}

// Stats counts decoding events of a session.
type Stats struct {
	Pictures       int
	BPictures      int
	FailedPictures int

	Macroblocks          [mbTypeCount]int
	MacroblocksConcealed int

	GOBs          int
	GOBsAborted   int
	GOBsConcealed int

	GeometryMismatches int

	Packets     int
	LostPackets int

	Work int
}

// Result is the outcome of a decode call.
type Result struct {
	// Completed is set when Picture holds a finished picture.
	Completed bool
	Picture   *Picture
	// Failed marks a completed picture that could only be partially reconstructed.
	Failed bool

	// Suspended is set when the work budget ran out, Checkpoint tells where
	// the next call resumes.
	Suspended  bool
	Checkpoint Checkpoint

	Stats Stats
}

// mvEntry keeps the vectors of a macroblock for overlapped compensation of its neighbors.
type mvEntry struct {
	mv    [4]MotionVector
	inter bool
}

// Session decodes one video stream.
type Session struct {
	tables  *Tables
	entropy EntropyDecoder
	motion  MotionCompensator
	log     *slog.Logger

	buf *Buffer

	geom Geometry
	capW int
	capH int

	pictures   [4]*Picture
	newOut     *Picture
	oldOut     *Picture
	prevOldOut *Picture
	bOut       *Picture

	hdr       PictureHeader
	inPicture bool
	mismatch  bool
	failed    bool

	gob       GobDescr
	gobActive bool
	mbs       []MacroblockDescr
	cp        Checkpoint

	budget   int
	callWork int

	// queue holds completed pictures returned by the following calls.
	queue []Result

	mbmap   MacroblockMap
	mbDone  []bool
	mvField []mvEntry

	aic        *AdvancedIntra
	deblock    deblocker
	deblocking bool

	rtp rtpState

	stats  Stats
	closed bool
}

// Open creates a session. A nil t builds the tables.
func Open(t *Tables, cfg Config) (*Session, error) {
	if t == nil {
		t = InitTables()
	}

	var geom Geometry
	var err error
	if cfg.Format == FormatCustom {
		geom, err = NewGeometry(cfg.Width, cfg.Height)
	} else {
		geom, err = FormatGeometry(cfg.Format)
	}
	if err != nil {
		return nil, err
	}

	s := &Session{
		tables:     t,
		entropy:    cfg.Entropy,
		motion:     cfg.Motion,
		log:        cfg.Logger,
		budget:     max(cfg.WorkBudget, 0),
		deblocking: cfg.Deblocking,
	}

	if s.entropy == nil {
		s.entropy = StreamDecoder{}
	}
	if s.motion == nil {
		s.motion = DefaultMotion{}
	}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}

	s.rtp.format = cfg.RTPFormat
	s.buf = NewBuffer()
	s.aic = NewAdvancedIntra(geom.MBCols)

	s.allocate(geom)

	s.log.Debug("session open", "width", geom.Width, "height", geom.Height, "budget", s.budget)

	return s, nil
}

// Close releases the pictures. Further calls return ErrClosed.
func (s *Session) Close() error {
	if s.closed {
		return ErrClosed
	}

	s.closed = true
	s.pictures = [4]*Picture{}
	s.newOut, s.oldOut, s.prevOldOut, s.bOut = nil, nil, nil, nil
	s.queue = nil
	s.mbs = nil
	s.buf.Reset()

	return nil
}

// SetWorkBudget sets the work budget per call, 0 is unlimited.
func (s *Session) SetWorkBudget(budget int) {
	s.budget = max(budget, 0)
}

// SetDeblocking forces the deblocking filter on or leaves it to the picture header.
func (s *Session) SetDeblocking(enabled bool) {
	s.deblocking = enabled
}

// SetLogger sets the logger, nil discards log output.
func (s *Session) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	s.log = l
}

// Geometry returns the geometry of the current picture size.
func (s *Session) Geometry() Geometry {
	return s.geom
}

// Stats returns the decoding counters.
func (s *Session) Stats() Stats {
	return s.stats
}

// MacroblockMap returns the type, quantizer and dirty map of the last decoded picture.
// The map is owned by the session and changes with the next decoded picture.
func (s *Session) MacroblockMap() *MacroblockMap {
	return &s.mbmap
}

// Pending reports whether a completed picture, such as the P picture of a
// PB unit, waits to be returned by the next call.
func (s *Session) Pending() bool {
	return len(s.queue) > 0
}

// allocate (re)creates the pictures when geom exceeds the capacity and sizes the scratch.
func (s *Session) allocate(geom Geometry) {
	if geom.LumaWidth > s.capW || geom.LumaHeight > s.capH || s.pictures[0] == nil {
		s.capW = max(s.capW, geom.LumaWidth)
		s.capH = max(s.capH, geom.LumaHeight)

		for i := range s.pictures {
			s.pictures[i] = newPicture(s.capW, s.capH)
			s.pictures[i].setGeometry(geom.Width, geom.Height, geom.LumaWidth, geom.LumaHeight)
			s.pictures[i].fillGray()
		}

		s.newOut = s.pictures[0]
		s.oldOut = s.pictures[1]
		s.prevOldOut = s.pictures[2]
		s.bOut = s.pictures[3]

		s.queue = s.queue[:0]

		s.log.Debug("pictures allocated", "width", s.capW, "height", s.capH)
	}

	s.geom = geom
	s.mbmap.resize(geom.MBCols, geom.MBRows)

	n := geom.MBCount()
	if n > cap(s.mbDone) {
		s.mbDone = make([]bool, n)
		s.mvField = make([]mvEntry, n)
	}
	s.mbDone = s.mbDone[:n]
	s.mvField = s.mvField[:n]

	s.aic.resize(geom.MBCols)
}

// pictureGeometry returns the geometry announced by a picture header.
func pictureGeometry(hdr *PictureHeader) (Geometry, error) {
	if hdr.H261 && hdr.Format != FormatQCIF && hdr.Format != FormatCIF {
		return Geometry{}, errors.Wrapf(ErrInvalidFormat, "H.261 %s", hdr.Format)
	}

	if hdr.Format == FormatCustom {
		return NewGeometry(hdr.Width, hdr.Height)
	}

	return FormatGeometry(hdr.Format)
}

// Decode appends data to the bitstream buffer and reconstructs as much as
// the buffered data and the work budget allow.
//
// After a PB unit the call following the B picture returns the P picture;
// data passed with that call is only buffered.
func (s *Session) Decode(data []byte) (Result, error) {
	if s.closed {
		return Result{}, ErrClosed
	}

	if len(data) > 0 {
		s.buf.Write(data)
	}

	if s.Pending() {
		return s.takePending(), nil
	}

	res, err := s.run()
	if s.rtp.flush && (err != nil || !res.Suspended) {
		s.rtp.flush = false
		if err == nil {
			return s.endOfPicture(res)
		}
	}

	return res, err
}

func (s *Session) takePending() Result {
	res := s.queue[0]
	copy(s.queue, s.queue[1:])
	s.queue[len(s.queue)-1] = Result{}
	s.queue = s.queue[:len(s.queue)-1]

	res.Stats = s.stats

	return res
}

// enqueueAt inserts a completed result into the queue at position i.
func (s *Session) enqueueAt(i int, res Result) {
	i = min(i, len(s.queue))
	s.queue = append(s.queue, Result{})
	copy(s.queue[i+1:], s.queue[i:])
	s.queue[i] = res
}

// endOfPicture completes the picture in progress after the transport
// signalled its end.
func (s *Session) endOfPicture(res Result) (Result, error) {
	if !s.inPicture {
		return res, nil
	}

	return s.FinishPicture()
}

// drain decodes everything buffered for the picture in progress regardless
// of the work budget.
func (s *Session) drain() (Result, error) {
	budget := s.budget
	s.budget = 0
	defer func() { s.budget = budget }()

	return s.run()
}

func (s *Session) result() Result {
	return Result{Stats: s.stats}
}

func (s *Session) suspended() Result {
	return Result{Suspended: true, Checkpoint: s.cp, Stats: s.stats}
}

func (s *Session) run() (Result, error) {
	s.callWork = 0

	for {
		if !s.inPicture {
			hdr, err := s.entropy.PictureHeader(s.buf)
			if err != nil {
				if errors.Is(err, ErrNeedMoreData) {
					return s.result(), nil
				}
				s.log.Warn("picture header rejected", "err", err)

				return s.result(), err
			}

			if err := s.beginPicture(&hdr); err != nil {
				s.log.Warn("picture rejected", "err", err)

				return s.result(), err
			}
		}

		if !s.gobActive {
			if s.budget > 0 && s.callWork >= s.budget {
				return s.suspended(), nil
			}

			mbs, err := s.entropy.NextGOB(s.buf, &s.hdr, &s.gob, s.mbs[:0])
			s.mbs = mbs

			switch {
			case err == io.EOF:
				return s.finishPicture(), nil
			case errors.Is(err, ErrNeedMoreData):
				return s.result(), nil
			case err != nil:
				// Macroblocks of a rejected GOB are concealed when the picture completes
				s.log.Warn("gob rejected", "err", err)
				s.stats.GOBsAborted++

				continue
			}

			s.startGOB()
		}

		if !s.decodeGOB() {
			return s.suspended(), nil
		}
		s.gobActive = false
	}
}

// beginPicture checks the picture size against capacity and references
// and resets the per picture state.
func (s *Session) beginPicture(hdr *PictureHeader) error {
	geom, err := pictureGeometry(hdr)
	if err != nil {
		return err
	}

	if geom.LumaWidth > s.capW || geom.LumaHeight > s.capH {
		s.log.Debug("resize", "width", geom.Width, "height", geom.Height)
	}
	s.allocate(geom)

	kind := PictureIntra
	if hdr.Type == PictureTypeInter {
		kind = PictureInter
	}

	s.newOut.setGeometry(geom.Width, geom.Height, geom.LumaWidth, geom.LumaHeight)
	s.newOut.Kind = kind
	s.newOut.TemporalRef = hdr.TemporalRef
	s.newOut.Color = true
	s.newOut.valid = false

	s.mismatch = hdr.Type == PictureTypeInter && (!s.oldOut.valid || !s.oldOut.SameGeometry(s.newOut))
	if s.mismatch {
		s.stats.GeometryMismatches++
		s.newOut.Color = false
		s.log.Warn("reference geometry mismatch", "err", ErrGeometryMismatch,
			"width", geom.Width, "height", geom.Height, "reference", s.oldOut.valid)
	}

	if hdr.PB {
		s.bOut.setGeometry(geom.Width, geom.Height, geom.LumaWidth, geom.LumaHeight)
		s.bOut.Kind = PictureB
		s.bOut.TemporalRef = (s.oldOut.TemporalRef + hdr.TRB) & 0xff
		s.bOut.Color = !s.mismatch
		s.bOut.valid = false
	}

	s.mbmap.reset()
	s.mbmap.ClearDirty()
	for i := range s.mbDone {
		s.mbDone[i] = false
		s.mvField[i] = mvEntry{}
	}
	s.aic.StartPicture()

	s.hdr = *hdr
	s.inPicture = true
	s.gobActive = false
	s.failed = s.mismatch
	s.cp.Reset()

	return nil
}

// finishPicture conceals what was not reconstructed, filters the picture
// and rotates the buffer roles.
func (s *Session) finishPicture() Result {
	cols := s.geom.MBCols

	concealed := 0
	for i, done := range s.mbDone {
		if !done {
			s.concealMacroblock(i%cols, i/cols)
			concealed++
		}
	}
	if concealed > 0 {
		s.stats.MacroblocksConcealed += concealed
		s.log.Debug("macroblocks concealed", "count", concealed, "picture", s.hdr.TemporalRef)
	}

	if s.hdr.RRU {
		filterPictureRRU(s.newOut, &s.mbmap)
	} else if s.hdr.Deblocking || s.deblocking {
		s.deblock.filterPicture(s.tables, s.newOut, &s.mbmap)
	}

	s.newOut.valid = true
	s.stats.Pictures++
	if s.failed {
		s.stats.FailedPictures++
	}

	done := s.newOut
	s.newOut, s.prevOldOut, s.oldOut = s.prevOldOut, s.oldOut, done

	s.inPicture = false
	s.gobActive = false
	s.cp.Reset()

	res := Result{Completed: true, Failed: s.failed, Picture: done}

	if s.hdr.PB {
		s.bOut.valid = true
		s.stats.BPictures++
		s.mbmap.MarkAll()

		res.Picture = s.bOut
		s.queue = append(s.queue, Result{Completed: true, Failed: s.failed, Picture: done})
	}

	res.Stats = s.stats

	return res
}

// FinishPicture completes the picture in progress, concealing every
// macroblock that was not reconstructed. Buffered data that was not decoded
// yet is dropped.
func (s *Session) FinishPicture() (Result, error) {
	if s.closed {
		return Result{}, ErrClosed
	}

	s.buf.Reset()

	if !s.inPicture {
		return s.result(), nil
	}

	if s.gobActive {
		s.stats.GOBsConcealed++
	}
	s.gobActive = false

	return s.finishPicture(), nil
}
