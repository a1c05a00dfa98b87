package smf

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mewkiz/smf/internal/bits"
)

// A Decoder decodes a Standard MIDI File from input chunks of any size. Bytes
// are consumed as they arrive; fields split across chunk boundaries are
// resumed when the next chunk is supplied, so memory use does not depend on
// the size of the input.
//
// A Decoder must not be used concurrently.
type Decoder struct {
	// Receiver of decoded events.
	h Handler
	// Diagnostics logger.
	log zerolog.Logger
	// Dispatch meta, system exclusive and escape events to h.
	metaEvents bool

	// Current decode state.
	state State
	// File header.
	hdr Header
	// Current track header.
	track TrackHeader
	// Stream offset of the first byte of the current track body.
	trackStart int64
	// Absolute tick of the latest event of the current track.
	tick uint64
	// Event under construction.
	ev Event
	// Running status of the current track, if hasRunning is set.
	running    uint8
	hasRunning bool
	// Number of tracks that have ended.
	ntracks int
	// Number of bytes consumed.
	off int64
	// Partial field data.
	tmp scratch
	// Fatal decode error; once set the decoder may not be resumed.
	err error
}

// An Option configures a Decoder.
type Option func(dec *Decoder)

// WithLogger sets the logger used for decoder diagnostics. Events and chunk
// headers are logged at debug level, fatal errors at error level.
func WithLogger(log zerolog.Logger) Option {
	return func(dec *Decoder) {
		dec.log = log
	}
}

// WithMetaEvents enables dispatch of meta, system exclusive and escape events.
// Their payload is skipped; the event is handed to the Handler once its last
// payload byte has been consumed, with Length set to the payload length.
func WithMetaEvents() Option {
	return func(dec *Decoder) {
		dec.metaEvents = true
	}
}

// NewDecoder returns a new decoder which hands decoded events to h. A nil h
// discards all events.
func NewDecoder(h Handler, opts ...Option) *Decoder {
	if h == nil {
		h = HandlerFuncs{}
	}
	dec := &Decoder{
		h:   h,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(dec)
	}
	return dec
}

// Decode consumes the entire input chunk buf, handing each event completed
// within it to the Handler. Running out of input in the middle of a field is
// not an error; decoding resumes with the next call.
//
// Once Decode has returned an error, the decoder is done and every subsequent
// call returns the same error. Input supplied after the last track has ended
// is ignored.
func (dec *Decoder) Decode(buf []byte) error {
	_, err := dec.decode(buf)
	return err
}

// Write implements io.Writer by decoding p, which allows the use of io.Copy to
// feed a decoder.
func (dec *Decoder) Write(p []byte) (n int, err error) {
	return dec.decode(p)
}

// decode drives the state machine over buf and returns the number of bytes
// consumed.
func (dec *Decoder) decode(buf []byte) (int, error) {
	if dec.err != nil {
		return 0, dec.err
	}
	total := 0
	for total < len(buf) {
		n, err := dec.step(buf[total:])
		total += n
		dec.off += int64(n)
		if err != nil {
			dec.err = err
			return total, err
		}
	}
	return total, nil
}

// step consumes as many bytes of buf as the current state allows, which may be
// none when the state resolves without input. buf is never empty.
func (dec *Decoder) step(buf []byte) (int, error) {
	switch dec.state {
	case StateHeader:
		return dec.decodeHeader(buf)
	case StateTrackHeader:
		return dec.decodeTrackHeader(buf)
	case StateEventDelta:
		return dec.decodeEventDelta(buf)
	case StateEventStatus:
		return dec.decodeEventStatus(buf)
	case StateEventParam1:
		return dec.decodeEventParam1(buf)
	case StateEventParam2:
		return dec.decodeEventParam2(buf)
	case StateEventNonChannel:
		return dec.decodeEventNonChannel(buf)
	case StateEventDrop:
		return dec.decodeEventDrop(buf)
	case StateComplete:
		return len(buf), nil
	}
	panic(fmt.Sprintf("smf.Decoder.step: invalid decode state %v", dec.state))
}

// decodeHeader gathers and validates the file header chunk.
func (dec *Decoder) decodeHeader(buf []byte) (int, error) {
	f := dec.tmp.fieldBuf()
	n, done := f.Fill(HeaderLen, buf)
	if !done {
		return n, nil
	}
	hdr, ok := parseHeader(f.Bytes())
	if !ok {
		return n, dec.errorf(n-HeaderLen, ErrInvalidHeader, "expected signature %q, got %q", HeaderMagic, f.Bytes()[:4])
	}
	dec.tmp.reset()
	dec.hdr = hdr
	dec.log.Debug().
		Uint16("format", hdr.Format).
		Uint16("tracks", hdr.NTracks).
		Stringer("division", hdr.Division).
		Msg("file header")
	if hdr.Length != 6 {
		dec.log.Warn().Uint32("length", hdr.Length).Msg("unexpected file header length")
	}
	if hdr.NTracks == 0 {
		dec.state = StateComplete
		return n, dec.complete(n - 1)
	}
	dec.state = StateTrackHeader
	return n, nil
}

// decodeTrackHeader gathers and validates a track chunk header, and resets
// the per-track state.
func (dec *Decoder) decodeTrackHeader(buf []byte) (int, error) {
	f := dec.tmp.fieldBuf()
	n, done := f.Fill(TrackHeaderLen, buf)
	if !done {
		return n, nil
	}
	track, ok := parseTrackHeader(f.Bytes())
	if !ok {
		return n, dec.errorf(n-TrackHeaderLen, ErrInvalidTrackHeader, "expected signature %q, got %q", TrackMagic, f.Bytes()[:4])
	}
	dec.tmp.reset()
	dec.track = track
	dec.trackStart = dec.off + int64(n)
	dec.tick = 0
	dec.running, dec.hasRunning = 0, false
	dec.log.Debug().
		Int("track", dec.ntracks).
		Uint32("length", track.Length).
		Msg("track header")
	dec.state = StateEventDelta
	return n, nil
}

// decodeEventDelta reads the delta-time of the next event.
func (dec *Decoder) decodeEventDelta(buf []byte) (int, error) {
	v := dec.tmp.vlq()
	n, done, err := v.Read(buf)
	if err != nil {
		return n, dec.errorf(n-1, err, "delta-time longer than %d bytes", bits.MaxVarintLen)
	}
	if !done {
		return n, nil
	}
	dec.tick += uint64(v.Value)
	dec.ev = Event{
		Track: dec.ntracks,
		Delta: v.Value,
		Tick:  dec.tick,
	}
	dec.tmp.reset()
	dec.state = StateEventStatus
	return n, nil
}

// decodeEventStatus resolves the status of the event, either from an explicit
// status byte or from the running status of the track. A data byte is left
// unconsumed for the first parameter.
func (dec *Decoder) decodeEventStatus(buf []byte) (int, error) {
	status, n := buf[0], 1
	if status < 0x80 {
		if !dec.hasRunning {
			return 0, dec.errorf(0, ErrNoRunningStatus, "data byte 0x%02X before any channel event of track %d", status, dec.ntracks)
		}
		status, n = dec.running, 0
	}
	dec.ev.Status = status
	switch {
	case isChannelStatus(status):
		dec.running, dec.hasRunning = status, true
		dec.state = StateEventParam1
	case isNonChannelStatus(status):
		dec.state = StateEventNonChannel
	default:
		return 0, dec.errorf(0, ErrUnsupportedStatus, "status 0x%02X", status)
	}
	return n, nil
}

// decodeEventParam1 reads the first data byte of a channel event. Program
// change and channel pressure events are complete after it.
func (dec *Decoder) decodeEventParam1(buf []byte) (int, error) {
	b := buf[0]
	if b&0x80 != 0 {
		return 0, dec.errorf(0, ErrInvalidData, "param1 0x%02X of %v event", b, dec.ev.Type())
	}
	dec.ev.Param1 = b
	if hasOneParam(dec.ev.Status) {
		dec.state = StateEventDelta
		return 1, dec.dispatch(0)
	}
	dec.state = StateEventParam2
	return 1, nil
}

// decodeEventParam2 reads the second data byte of a channel event.
func (dec *Decoder) decodeEventParam2(buf []byte) (int, error) {
	b := buf[0]
	if b&0x80 != 0 {
		return 0, dec.errorf(0, ErrInvalidData, "param2 0x%02X of %v event", b, dec.ev.Type())
	}
	dec.ev.Param2 = b
	dec.state = StateEventDelta
	return 1, dec.dispatch(0)
}

// decodeEventNonChannel reads the meta type, if any, and the payload length of
// a meta, system exclusive or escape event.
func (dec *Decoder) decodeEventNonChannel(buf []byte) (int, error) {
	n := 0
	if dec.ev.Status == MetaPrefix {
		typ := buf[0]
		if typ > maxMetaType {
			return 0, dec.errorf(0, ErrInvalidMetaType, "meta type 0x%02X not in range 0x00-0x7F", typ)
		}
		dec.ev.Status = typ
		dec.ev.Meta = true
		n = 1
	}
	v := dec.tmp.vlq()
	m, done, err := v.Read(buf[n:])
	n += m
	if err != nil {
		return n, dec.errorf(n-1, err, "payload length longer than %d bytes", bits.MaxVarintLen)
	}
	if !done {
		return n, nil
	}
	length := v.Value
	dec.tmp.reset()
	dec.ev.Length = length
	if dec.ev.Meta && dec.ev.MetaType() == MetaEndOfTrack {
		if length != 0 {
			return n, dec.errorf(n-1, ErrInvalidEndOfTrack, "expected length 0, got %d", length)
		}
		return n, dec.endTrack(n - 1)
	}
	if length == 0 {
		dec.state = StateEventDelta
		return n, dec.dispatchNonChannel(n - 1)
	}
	*dec.tmp.drop() = length
	dec.state = StateEventDrop
	return n, nil
}

// decodeEventDrop skips the payload of a meta, system exclusive or escape
// event.
func (dec *Decoder) decodeEventDrop(buf []byte) (int, error) {
	left := dec.tmp.drop()
	n := len(buf)
	if uint64(n) > uint64(*left) {
		n = int(*left)
	}
	*left -= uint32(n)
	if *left > 0 {
		return n, nil
	}
	dec.tmp.reset()
	dec.state = StateEventDelta
	if n == 0 {
		return 0, nil
	}
	return n, dec.dispatchNonChannel(n - 1)
}

// endTrack finishes the current track after its end-of-track meta event, the
// last byte of which is at buf position pos.
func (dec *Decoder) endTrack(pos int) error {
	if err := dec.dispatchNonChannel(pos); err != nil {
		return err
	}
	if got := dec.off + int64(pos) + 1 - dec.trackStart; got != int64(dec.track.Length) {
		dec.log.Warn().
			Int("track", dec.ntracks).
			Uint32("declared", dec.track.Length).
			Int64("actual", got).
			Msg("track length mismatch")
	}
	dec.ntracks++
	if dec.ntracks == int(dec.hdr.NTracks) {
		dec.state = StateComplete
		return dec.complete(pos)
	}
	dec.state = StateTrackHeader
	return nil
}

// dispatch hands the event under construction to the handler.
func (dec *Decoder) dispatch(pos int) error {
	ev := &dec.ev
	dec.log.Debug().
		Int("track", ev.Track).
		Uint32("delta", ev.Delta).
		Uint8("status", ev.Status).
		Uint8("param1", ev.Param1).
		Uint8("param2", ev.Param2).
		Bool("meta", ev.Meta).
		Msg("event")
	if err := dec.h.HandleEvent(dec, ev); err != nil {
		return dec.errorf(pos, err, "event handler failed")
	}
	return nil
}

// dispatchNonChannel hands a meta, system exclusive or escape event to the
// handler if enabled.
func (dec *Decoder) dispatchNonChannel(pos int) error {
	if !dec.metaEvents {
		return nil
	}
	return dec.dispatch(pos)
}

// complete notifies the handler that all tracks have been decoded.
func (dec *Decoder) complete(pos int) error {
	dec.log.Debug().
		Int("tracks", dec.ntracks).
		Int64("offset", dec.off+int64(pos)+1).
		Msg("complete")
	if err := dec.h.HandleComplete(dec); err != nil {
		return dec.errorf(pos, err, "complete handler failed")
	}
	return nil
}

// errorf returns a fatal decode error for the byte at buf position pos of the
// current step.
func (dec *Decoder) errorf(pos int, cause error, format string, args ...interface{}) error {
	e := &Error{
		Offset: dec.off + int64(pos),
		State:  dec.state,
		Err:    cause,
		Msg:    fmt.Sprintf(format, args...),
	}
	dec.log.Error().
		Int64("offset", e.Offset).
		Stringer("state", e.State).
		Err(cause).
		Msg(e.Msg)
	return errors.WithStack(e)
}

// State returns the current decode state.
func (dec *Decoder) State() State {
	return dec.state
}

// Header returns the file header. It is the zero Header until the header chunk
// has been decoded.
func (dec *Decoder) Header() Header {
	return dec.hdr
}

// TrackHeader returns the header of the track being decoded.
func (dec *Decoder) TrackHeader() TrackHeader {
	return dec.track
}

// TracksDone returns the number of tracks that have ended.
func (dec *Decoder) TracksDone() int {
	return dec.ntracks
}

// Offset returns the number of bytes consumed.
func (dec *Decoder) Offset() int64 {
	return dec.off
}

// Done reports whether every track declared by the file header has been
// decoded without error.
func (dec *Decoder) Done() bool {
	return dec.state == StateComplete && dec.err == nil
}

// Err returns the fatal decode error, if any.
func (dec *Decoder) Err() error {
	return dec.err
}
