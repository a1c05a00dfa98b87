package smf

import (
	"encoding/binary"
	"testing"

	"github.com/kylelemons/godebug/pretty"
	"github.com/pkg/errors"

	"github.com/mewkiz/smf/internal/bits"
)

// smfHeader returns a file header chunk.
func smfHeader(format, ntracks, division uint16) []byte {
	b := []byte("MThd\x00\x00\x00\x06")
	b = binary.BigEndian.AppendUint16(b, format)
	b = binary.BigEndian.AppendUint16(b, ntracks)
	return binary.BigEndian.AppendUint16(b, division)
}

// smfTrack returns a track chunk holding body.
func smfTrack(body ...byte) []byte {
	b := binary.BigEndian.AppendUint32([]byte(TrackMagic), uint32(len(body)))
	return append(b, body...)
}

// smfFile returns a file holding the given tracks.
func smfFile(tracks ...[]byte) []byte {
	b := smfHeader(1, uint16(len(tracks)), 480)
	for _, track := range tracks {
		b = append(b, track...)
	}
	return b
}

// recorder is a Handler which records copies of all events.
type recorder struct {
	events    []Event
	completed int
}

func (r *recorder) HandleEvent(dec *Decoder, ev *Event) error {
	r.events = append(r.events, *ev)
	return nil
}

func (r *recorder) HandleComplete(dec *Decoder) error {
	r.completed++
	return nil
}

// decodeChunks decodes data in chunks of the given size.
func decodeChunks(dec *Decoder, data []byte, chunk int) error {
	for len(data) > 0 {
		n := chunk
		if n > len(data) {
			n = len(data)
		}
		if err := dec.Decode(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

var (
	track0 = smfTrack(
		0x00, 0xFF, 0x51, 0x03, 0x07, 0xA1, 0x20, // tempo
		0x00, 0x90, 0x3C, 0x40, // note on
		0x60, 0x3E, 0x40, // note on, running status
		0x81, 0x00, 0x80, 0x3C, 0x00, // note off
		0x00, 0xC0, 0x05, // program change
		0x00, 0xF0, 0x03, 0x43, 0x12, 0xF7, // sysex
		0x00, 0x07, // program change, running status
		0x83, 0x60, 0x80, 0x3E, 0x00, // note off
		0x00, 0xFF, 0x2F, 0x00, // end of track
	)
	track1 = smfTrack(
		0x00, 0xB1, 0x07, 0x64, // control change
		0x10, 0xE1, 0x00, 0x40, // pitch bend
		0x00, 0xD1, 0x20, // channel pressure
		0x00, 0xFF, 0x2F, 0x00, // end of track
	)
	golden = smfFile(track0, track1)

	goldenEvents = []Event{
		{Track: 0, Delta: 0, Tick: 0, Status: 0x90, Param1: 0x3C, Param2: 0x40},
		{Track: 0, Delta: 96, Tick: 96, Status: 0x90, Param1: 0x3E, Param2: 0x40},
		{Track: 0, Delta: 128, Tick: 224, Status: 0x80, Param1: 0x3C, Param2: 0x00},
		{Track: 0, Delta: 0, Tick: 224, Status: 0xC0, Param1: 0x05},
		{Track: 0, Delta: 0, Tick: 224, Status: 0xC0, Param1: 0x07},
		{Track: 0, Delta: 480, Tick: 704, Status: 0x80, Param1: 0x3E, Param2: 0x00},
		{Track: 1, Delta: 0, Tick: 0, Status: 0xB1, Param1: 0x07, Param2: 0x64},
		{Track: 1, Delta: 16, Tick: 16, Status: 0xE1, Param1: 0x00, Param2: 0x40},
		{Track: 1, Delta: 0, Tick: 16, Status: 0xD1, Param1: 0x20},
	}
)

func TestDecodeChunkSizes(t *testing.T) {
	for chunk := 1; chunk <= len(golden); chunk++ {
		r := new(recorder)
		dec := NewDecoder(r)
		if err := decodeChunks(dec, golden, chunk); err != nil {
			t.Errorf("chunk=%d: unable to decode; %v", chunk, err)
			continue
		}
		if diff := pretty.Compare(goldenEvents, r.events); diff != "" {
			t.Errorf("chunk=%d: event mismatch (-want +got):\n%s", chunk, diff)
		}
		if r.completed != 1 {
			t.Errorf("chunk=%d: expected 1 completion, got %d", chunk, r.completed)
		}
		if !dec.Done() || dec.State() != StateComplete {
			t.Errorf("chunk=%d: expected decoder done, got state %v", chunk, dec.State())
		}
		if dec.Offset() != int64(len(golden)) {
			t.Errorf("chunk=%d: expected %d bytes consumed, got %d", chunk, len(golden), dec.Offset())
		}
		if dec.TracksDone() != 2 {
			t.Errorf("chunk=%d: expected 2 tracks done, got %d", chunk, dec.TracksDone())
		}
	}
}

func TestDecodeHeader(t *testing.T) {
	dec := NewDecoder(nil)
	data := append(smfHeader(0, 1, 96), smfTrack(0x00, 0xFF, 0x2F, 0x00)...)
	if err := dec.Decode(data[:HeaderLen+3]); err != nil {
		t.Fatal(err)
	}
	want := Header{Length: 6, Format: 0, NTracks: 1, Division: 96}
	if got := dec.Header(); got != want {
		t.Fatalf("header mismatch; expected %+v, got %+v", want, got)
	}
	if dec.State() != StateTrackHeader {
		t.Fatalf("expected state %v, got %v", StateTrackHeader, dec.State())
	}
	if err := dec.Decode(data[HeaderLen+3:]); err != nil {
		t.Fatal(err)
	}
	if got := dec.TrackHeader(); got.Length != 4 {
		t.Fatalf("track length mismatch; expected 4, got %d", got.Length)
	}
}

func TestDecodeTrailingInput(t *testing.T) {
	r := new(recorder)
	dec := NewDecoder(r)
	data := append(append([]byte{}, golden...), 0xDE, 0xAD, 0xBE, 0xEF)
	if err := dec.Decode(data); err != nil {
		t.Fatal(err)
	}
	if err := dec.Decode([]byte("MThd")); err != nil {
		t.Fatalf("expected input after completion to be ignored, got %v", err)
	}
	if r.completed != 1 || len(r.events) != len(goldenEvents) {
		t.Fatalf("expected %d events and 1 completion, got %d events and %d completions", len(goldenEvents), len(r.events), r.completed)
	}
}

func TestDecodeMetaEvents(t *testing.T) {
	want := []Event{
		{Track: 0, Status: 0x51, Meta: true, Length: 3},
		goldenEvents[0],
		goldenEvents[1],
		goldenEvents[2],
		goldenEvents[3],
		{Track: 0, Tick: 224, Status: SysEx, Length: 3},
		goldenEvents[4],
		goldenEvents[5],
		{Track: 0, Tick: 704, Status: 0x2F, Meta: true},
		goldenEvents[6],
		goldenEvents[7],
		goldenEvents[8],
		{Track: 1, Tick: 16, Status: 0x2F, Meta: true},
	}
	for _, chunk := range []int{1, 2, 3, 7, len(golden)} {
		r := new(recorder)
		dec := NewDecoder(r, WithMetaEvents())
		if err := decodeChunks(dec, golden, chunk); err != nil {
			t.Errorf("chunk=%d: unable to decode; %v", chunk, err)
			continue
		}
		if diff := pretty.Compare(want, r.events); diff != "" {
			t.Errorf("chunk=%d: event mismatch (-want +got):\n%s", chunk, diff)
		}
	}
}

func TestDecodeRunningStatus(t *testing.T) {
	data := smfFile(smfTrack(
		0x00, 0x92, 0x40, 0x7F,
		0x0A, 0x43, 0x7F,
		0x0A, 0x40, 0x00,
		0x00, 0xFF, 0x2F, 0x00,
	))
	r := new(recorder)
	if err := NewDecoder(r).Decode(data); err != nil {
		t.Fatal(err)
	}
	if len(r.events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(r.events))
	}
	for i, ev := range r.events {
		if ev.Status != 0x92 {
			t.Errorf("event %d: status mismatch; expected 0x92, got 0x%02X", i, ev.Status)
		}
	}
	if !r.events[2].IsNoteOff() {
		t.Errorf("expected note on with velocity 0 to be a note off")
	}
}

func TestDecodeEndOfTrackOnly(t *testing.T) {
	data := smfFile(smfTrack(0x00, 0xFF, 0x2F, 0x00))
	for chunk := 1; chunk <= len(data); chunk++ {
		r := new(recorder)
		dec := NewDecoder(r)
		if err := decodeChunks(dec, data, chunk); err != nil {
			t.Fatalf("chunk=%d: unable to decode; %v", chunk, err)
		}
		if r.completed != 1 {
			t.Fatalf("chunk=%d: expected 1 completion, got %d", chunk, r.completed)
		}
		if len(r.events) != 0 {
			t.Fatalf("chunk=%d: expected no events, got %d", chunk, len(r.events))
		}
	}
}

func TestDecodeZeroTracks(t *testing.T) {
	r := new(recorder)
	dec := NewDecoder(r)
	if err := dec.Decode(smfHeader(0, 0, 96)); err != nil {
		t.Fatal(err)
	}
	if !dec.Done() || r.completed != 1 {
		t.Fatalf("expected completion after a header declaring no tracks, got state %v and %d completions", dec.State(), r.completed)
	}
}

func TestDecodeSkipPayload(t *testing.T) {
	for _, length := range []int{0, 1, 2, 127, 128, 300, 16384} {
		for _, status := range []byte{SysEx, Escape} {
			body := bits.AppendVarint([]byte{0x00, status}, uint32(length))
			for i := 0; i < length; i++ {
				// Payload bytes resembling events must not be decoded.
				body = append(body, []byte{0x90, 0xFF, 0x2F, 0x00}[i%4])
			}
			body = append(body, 0x05, 0x91, 0x3C, 0x40, 0x00, 0xFF, 0x2F, 0x00)
			data := smfFile(smfTrack(body...))
			want := []Event{{Delta: 5, Tick: 5, Status: 0x91, Param1: 0x3C, Param2: 0x40}}
			for _, chunk := range []int{1, 2, 3, 5, 64, len(data)} {
				r := new(recorder)
				if err := decodeChunks(NewDecoder(r), data, chunk); err != nil {
					t.Errorf("length=%d, status=0x%02X, chunk=%d: unable to decode; %v", length, status, chunk, err)
					continue
				}
				if diff := pretty.Compare(want, r.events); diff != "" {
					t.Errorf("length=%d, status=0x%02X, chunk=%d: event mismatch (-want +got):\n%s", length, status, chunk, diff)
				}
				if r.completed != 1 {
					t.Errorf("length=%d, status=0x%02X, chunk=%d: expected 1 completion, got %d", length, status, chunk, r.completed)
				}
			}
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	golden := []struct {
		name   string
		data   []byte
		want   error
		offset int64
		state  State
	}{
		{
			name:   "header magic",
			data:   append([]byte("RIFF\x00\x00\x00\x06\x00\x01\x00\x01\x01\xE0"), smfTrack(0x00, 0xFF, 0x2F, 0x00)...),
			want:   ErrInvalidHeader,
			offset: 0,
			state:  StateHeader,
		},
		{
			name:   "track header magic",
			data:   append(smfHeader(1, 2, 480), []byte("MThd\x00\x00\x00\x04\x00\xFF\x2F\x00")...),
			want:   ErrInvalidTrackHeader,
			offset: 14,
			state:  StateTrackHeader,
		},
		{
			name:   "second track header magic",
			data:   append(smfFile(smfTrack(0x00, 0xFF, 0x2F, 0x00), smfTrack(0x00, 0xFF, 0x2F, 0x00))[:26], []byte("Mtrk\x00\x00\x00\x04\x00\xFF\x2F\x00")...),
			want:   ErrInvalidTrackHeader,
			offset: 26,
			state:  StateTrackHeader,
		},
		{
			name:   "no running status",
			data:   smfFile(smfTrack(0x00, 0x3C, 0x40, 0x00, 0xFF, 0x2F, 0x00)),
			want:   ErrNoRunningStatus,
			offset: 23,
			state:  StateEventStatus,
		},
		{
			name:   "running status reset per track",
			data:   smfFile(smfTrack(0x00, 0x90, 0x3C, 0x40, 0x00, 0xFF, 0x2F, 0x00), smfTrack(0x00, 0x3C, 0x00, 0x00, 0xFF, 0x2F, 0x00)),
			want:   ErrNoRunningStatus,
			offset: 14 + 8 + 8 + 8 + 1,
			state:  StateEventStatus,
		},
		{
			name:   "unsupported status",
			data:   smfFile(smfTrack(0x00, 0xF1, 0x00, 0x00, 0xFF, 0x2F, 0x00)),
			want:   ErrUnsupportedStatus,
			offset: 23,
			state:  StateEventStatus,
		},
		{
			name:   "invalid meta type",
			data:   smfFile(smfTrack(0x00, 0xFF, 0x80, 0x00, 0x00, 0xFF, 0x2F, 0x00)),
			want:   ErrInvalidMetaType,
			offset: 24,
			state:  StateEventNonChannel,
		},
		{
			name:   "end of track length",
			data:   smfFile(smfTrack(0x00, 0xFF, 0x2F, 0x01, 0x7F)),
			want:   ErrInvalidEndOfTrack,
			offset: 25,
			state:  StateEventNonChannel,
		},
		{
			name:   "delta-time overflow",
			data:   smfFile(smfTrack(0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0xFF, 0x2F, 0x00)),
			want:   ErrVarintOverflow,
			offset: 25,
			state:  StateEventDelta,
		},
		{
			name:   "payload length overflow",
			data:   smfFile(smfTrack(0x00, 0xF0, 0x80, 0x80, 0x80, 0x80, 0x00)),
			want:   ErrVarintOverflow,
			offset: 27,
			state:  StateEventNonChannel,
		},
		{
			name:   "invalid param1",
			data:   smfFile(smfTrack(0x00, 0x90, 0x90, 0x40, 0x00, 0xFF, 0x2F, 0x00)),
			want:   ErrInvalidData,
			offset: 24,
			state:  StateEventParam1,
		},
		{
			name:   "invalid param2",
			data:   smfFile(smfTrack(0x00, 0xB0, 0x07, 0xFF, 0x2F, 0x00)),
			want:   ErrInvalidData,
			offset: 25,
			state:  StateEventParam2,
		},
	}
	for _, g := range golden {
		for _, chunk := range []int{1, 5, len(g.data)} {
			r := new(recorder)
			dec := NewDecoder(r)
			err := decodeChunks(dec, g.data, chunk)
			if !errors.Is(err, g.want) {
				t.Errorf("%s, chunk=%d: error mismatch; expected %v, got %v", g.name, chunk, g.want, err)
				continue
			}
			var e *Error
			if !errors.As(err, &e) {
				t.Errorf("%s, chunk=%d: expected *Error, got %T", g.name, chunk, err)
				continue
			}
			if e.Offset != g.offset || e.State != g.state {
				t.Errorf("%s, chunk=%d: expected offset %d in state %v, got offset %d in state %v", g.name, chunk, g.offset, g.state, e.Offset, e.State)
			}
			if r.completed != 0 {
				t.Errorf("%s, chunk=%d: unexpected completion", g.name, chunk)
			}
			if dec.Done() {
				t.Errorf("%s, chunk=%d: decoder done after fatal error", g.name, chunk)
			}
		}
	}
}

func TestDecodeInvalidHeaderBeforeTracks(t *testing.T) {
	data := append([]byte("MThx\x00\x00\x00\x06\x00\x00\x00\x01\x00\x60"), smfTrack(0x00, 0x90, 0x3C, 0x40, 0x00, 0xFF, 0x2F, 0x00)...)
	r := new(recorder)
	dec := NewDecoder(r)
	if err := dec.Decode(data); !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("expected ErrInvalidHeader, got %v", err)
	}
	if len(r.events) != 0 || dec.TracksDone() != 0 {
		t.Fatalf("expected no track to be processed, got %d events and %d tracks", len(r.events), dec.TracksDone())
	}
	if dec.Offset() != HeaderLen {
		t.Fatalf("expected decoding to stop after the header, got offset %d", dec.Offset())
	}
}

func TestDecodeStickyError(t *testing.T) {
	dec := NewDecoder(nil)
	data := smfFile(smfTrack(0x00, 0xFF, 0x2F, 0x01, 0x7F))
	err := dec.Decode(data)
	if err == nil {
		t.Fatal("expected error")
	}
	off := dec.Offset()
	if err2 := dec.Decode(golden); err2 != err {
		t.Fatalf("expected the same error on resume, got %v", err2)
	}
	if dec.Offset() != off {
		t.Fatalf("expected no input consumed after error; offset moved from %d to %d", off, dec.Offset())
	}
	if dec.Err() != err {
		t.Fatalf("expected Err to return the fatal error")
	}
}

func TestDecodeHandlerError(t *testing.T) {
	errStop := errors.New("stop")
	var n int
	h := HandlerFuncs{
		Event: func(dec *Decoder, ev *Event) error {
			n++
			if n == 3 {
				return errStop
			}
			return nil
		},
	}
	dec := NewDecoder(h)
	err := dec.Decode(golden)
	if !errors.Is(err, errStop) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if n != 3 {
		t.Fatalf("expected decoding to stop at the third event, got %d events", n)
	}

	errDone := errors.New("done")
	h = HandlerFuncs{
		Complete: func(dec *Decoder) error {
			return errDone
		},
	}
	if err := NewDecoder(h).Decode(golden); !errors.Is(err, errDone) {
		t.Fatalf("expected complete handler error, got %v", err)
	}
}

func TestDecoderWrite(t *testing.T) {
	r := new(recorder)
	dec := NewDecoder(r)
	n, err := dec.Write(golden)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(golden) {
		t.Fatalf("expected %d bytes written, got %d", len(golden), n)
	}
	if diff := pretty.Compare(goldenEvents, r.events); diff != "" {
		t.Fatalf("event mismatch (-want +got):\n%s", diff)
	}
}

func TestScratchActivate(t *testing.T) {
	var s scratch
	s.fieldBuf().Fill(4, []byte("MTrk"))
	v := s.vlq()
	if v.Len != 0 || v.Value != 0 {
		t.Fatalf("expected fresh varint accumulator, got %+v", *v)
	}
	v.Read([]byte{0x81})
	if left := s.drop(); *left != 0 {
		t.Fatalf("expected fresh drop counter, got %d", *left)
	}
	if f := s.fieldBuf(); f.Len() != 0 {
		t.Fatalf("expected fresh field accumulator, got %d bytes", f.Len())
	}
}

func TestDecodeVarintOverflowCause(t *testing.T) {
	data := smfFile(smfTrack(0x00, 0xFF, 0x01, 0x80, 0x80, 0x80, 0x80, 0x00))
	err := NewDecoder(nil).Decode(data)
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if !errors.Is(e.Err, bits.ErrVarintOverflow) {
		t.Fatalf("expected cause %v, got %v", bits.ErrVarintOverflow, e.Err)
	}
}

func TestScratchReset(t *testing.T) {
	var s scratch
	s.vlq().Read([]byte{0x81, 0x82})
	s.reset()
	if s.kind != scratchNone || s.varint != (bits.Varint{}) || s.field.Len() != 0 || s.left != 0 {
		t.Fatalf("expected cleared scratch, got %+v", s)
	}
	*s.drop() = 7
	s.reset()
	if s.kind != scratchNone || s.left != 0 {
		t.Fatalf("expected cleared drop counter, got %+v", s)
	}
}
