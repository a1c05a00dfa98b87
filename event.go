package smf

import "fmt"

// Status bytes of non-channel events.
const (
	// SysEx starts a system exclusive event: a length-prefixed opaque payload.
	SysEx = 0xF0
	// Escape starts an escape event: a length-prefixed opaque payload.
	Escape = 0xF7
	// MetaPrefix starts a meta event, followed by the meta type, a length and a
	// payload.
	MetaPrefix = 0xFF
)

// An Event is a decoded track event. Events handed to a Handler are owned by
// the Decoder and only valid for the duration of the callback.
type Event struct {
	// Index of the track containing the event, starting at 0.
	Track int
	// Ticks since the previous event of the same track.
	Delta uint32
	// Ticks since the start of the track, including the delta-times of events
	// that were skipped.
	Tick uint64
	// Effective status byte after running status substitution. For meta events
	// this is the meta type.
	Status uint8
	// Data bytes of channel events. Param2 is zero for channel events with a
	// single data byte.
	Param1, Param2 uint8
	// Meta is true for meta events.
	Meta bool
	// Payload length of meta and system exclusive events.
	Length uint32
}

// IsChannel reports whether ev is a channel event.
func (ev *Event) IsChannel() bool {
	return !ev.Meta && isChannelStatus(ev.Status)
}

// Type returns the channel event type of ev, or 0 if ev is not a channel
// event.
func (ev *Event) Type() Type {
	if !ev.IsChannel() {
		return 0
	}
	return Type(ev.Status & 0xF0)
}

// Channel returns the zero-based MIDI channel of a channel event.
func (ev *Event) Channel() uint8 {
	return ev.Status & 0x0F
}

// MetaType returns the meta type of a meta event.
func (ev *Event) MetaType() MetaType {
	return MetaType(ev.Status)
}

// IsNoteOn reports whether ev starts a note. A note-on with velocity 0 is a
// note-off.
func (ev *Event) IsNoteOn() bool {
	return ev.Type() == NoteOn && ev.Param2 != 0
}

// IsNoteOff reports whether ev ends a note.
func (ev *Event) IsNoteOff() bool {
	switch ev.Type() {
	case NoteOff:
		return true
	case NoteOn:
		return ev.Param2 == 0
	}
	return false
}

func (ev *Event) String() string {
	switch {
	case ev.Meta:
		return fmt.Sprintf("track %d, delta %d: meta %v, length %d", ev.Track, ev.Delta, ev.MetaType(), ev.Length)
	case ev.IsChannel():
		return fmt.Sprintf("track %d, delta %d: %v, channel %d, param1 0x%02X, param2 0x%02X", ev.Track, ev.Delta, ev.Type(), ev.Channel(), ev.Param1, ev.Param2)
	}
	return fmt.Sprintf("track %d, delta %d: sysex 0x%02X, length %d", ev.Track, ev.Delta, ev.Status, ev.Length)
}

// Type is the high nibble of a channel event status byte.
type Type uint8

// Channel event types.
const (
	NoteOff         Type = 0x80
	NoteOn          Type = 0x90
	KeyPressure     Type = 0xA0
	ControlChange   Type = 0xB0
	ProgramChange   Type = 0xC0
	ChannelPressure Type = 0xD0
	PitchBend       Type = 0xE0
)

// typeName is a map from Type to name.
var typeName = map[Type]string{
	NoteOff:         "note off",
	NoteOn:          "note on",
	KeyPressure:     "key pressure",
	ControlChange:   "control change",
	ProgramChange:   "program change",
	ChannelPressure: "channel pressure",
	PitchBend:       "pitch bend",
}

func (t Type) String() string {
	if s, ok := typeName[t]; ok {
		return s
	}
	return fmt.Sprintf("<unknown event type 0x%02X>", uint8(t))
}

// isChannelStatus reports whether status is the status byte of a channel
// event.
func isChannelStatus(status uint8) bool {
	return status >= 0x80 && status <= 0xEF
}

// hasOneParam reports whether the channel event of the given status carries a
// single data byte; program change and channel pressure do.
func hasOneParam(status uint8) bool {
	return status >= 0xC0 && status <= 0xDF
}

// isNonChannelStatus reports whether status starts a meta, system exclusive or
// escape event.
func isNonChannelStatus(status uint8) bool {
	return status == MetaPrefix || status == SysEx || status == Escape
}

// MetaType identifies the kind of a meta event.
type MetaType uint8

// Meta event types.
const (
	MetaSequenceNumber    MetaType = 0x00
	MetaText              MetaType = 0x01
	MetaCopyright         MetaType = 0x02
	MetaTrackName         MetaType = 0x03
	MetaInstrumentName    MetaType = 0x04
	MetaLyric             MetaType = 0x05
	MetaMarker            MetaType = 0x06
	MetaCuePoint          MetaType = 0x07
	MetaChannelPrefix     MetaType = 0x20
	MetaPortPrefix        MetaType = 0x21
	MetaEndOfTrack        MetaType = 0x2F
	MetaTempo             MetaType = 0x51
	MetaSMPTEOffset       MetaType = 0x54
	MetaTimeSignature     MetaType = 0x58
	MetaKeySignature      MetaType = 0x59
	MetaSequencerSpecific MetaType = 0x7F

	// maxMetaType is the largest valid meta type.
	maxMetaType = 0x7F
)

// metaTypeName is a map from MetaType to name.
var metaTypeName = map[MetaType]string{
	MetaSequenceNumber:    "sequence number",
	MetaText:              "text",
	MetaCopyright:         "copyright",
	MetaTrackName:         "track name",
	MetaInstrumentName:    "instrument name",
	MetaLyric:             "lyric",
	MetaMarker:            "marker",
	MetaCuePoint:          "cue point",
	MetaChannelPrefix:     "channel prefix",
	MetaPortPrefix:        "port prefix",
	MetaEndOfTrack:        "end of track",
	MetaTempo:             "tempo",
	MetaSMPTEOffset:       "SMPTE offset",
	MetaTimeSignature:     "time signature",
	MetaKeySignature:      "key signature",
	MetaSequencerSpecific: "sequencer specific",
}

func (t MetaType) String() string {
	if s, ok := metaTypeName[t]; ok {
		return s
	}
	return fmt.Sprintf("<meta type 0x%02X>", uint8(t))
}
