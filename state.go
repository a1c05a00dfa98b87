package smf

import (
	"fmt"

	"github.com/mewkiz/smf/internal/bits"
)

// State is the decode state of a Decoder.
type State uint8

// Decode states, in stream order. StateComplete is terminal.
const (
	// File header chunk.
	StateHeader State = iota
	// Track chunk header.
	StateTrackHeader
	// Delta-time of the next event.
	StateEventDelta
	// Status byte of the event, or running status.
	StateEventStatus
	// First data byte of a channel event.
	StateEventParam1
	// Second data byte of a channel event.
	StateEventParam2
	// Meta type and payload length of a meta, system exclusive or escape event.
	StateEventNonChannel
	// Payload of a meta, system exclusive or escape event, which is skipped.
	StateEventDrop
	// All tracks decoded; remaining input is ignored.
	StateComplete
)

// stateName is a map from State to name.
var stateName = map[State]string{
	StateHeader:          "header",
	StateTrackHeader:     "track header",
	StateEventDelta:      "event delta",
	StateEventStatus:     "event status",
	StateEventParam1:     "event param1",
	StateEventParam2:     "event param2",
	StateEventNonChannel: "event non-channel",
	StateEventDrop:       "event drop",
	StateComplete:        "complete",
}

func (s State) String() string {
	if name, ok := stateName[s]; ok {
		return name
	}
	return fmt.Sprintf("<invalid state %d>", uint8(s))
}

// scratchKind identifies the active interpretation of a scratch accumulator.
type scratchKind uint8

const (
	scratchNone scratchKind = iota
	// Partial fixed-size field; StateHeader and StateTrackHeader.
	scratchField
	// Partial variable-length quantity; StateEventDelta and
	// StateEventNonChannel.
	scratchVarint
	// Remaining payload bytes to skip; StateEventDrop.
	scratchDrop
)

// scratch holds partial field data while decoding is paused between input
// chunks. Exactly one interpretation is active at a time; requesting another
// discards whatever the previous one held.
type scratch struct {
	kind   scratchKind
	field  bits.Field
	varint bits.Varint
	left   uint32
}

// reset clears the accumulator; called whenever a field completes.
func (s *scratch) reset() {
	s.kind = scratchNone
	s.field.Reset()
	s.varint.Reset()
	s.left = 0
}

// activate switches s to the given interpretation, clearing stale data of any
// other.
func (s *scratch) activate(kind scratchKind) {
	if s.kind != kind {
		s.reset()
		s.kind = kind
	}
}

// fieldBuf returns the fixed-size field accumulator.
func (s *scratch) fieldBuf() *bits.Field {
	s.activate(scratchField)
	return &s.field
}

// vlq returns the variable-length quantity accumulator.
func (s *scratch) vlq() *bits.Varint {
	s.activate(scratchVarint)
	return &s.varint
}

// drop returns the counter of payload bytes left to skip.
func (s *scratch) drop() *uint32 {
	s.activate(scratchDrop)
	return &s.left
}
