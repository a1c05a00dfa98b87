package smf

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/mewkiz/smf/internal/bits"
)

// Fatal decode errors. Use errors.Is to classify the error returned by
// Decoder.Decode.
var (
	ErrInvalidHeader      = errors.New("invalid file header")
	ErrInvalidTrackHeader = errors.New("invalid track header")
	ErrUnsupportedStatus  = errors.New("unsupported status byte")
	ErrInvalidData        = errors.New("invalid data byte")
	ErrInvalidMetaType    = errors.New("invalid meta type")
	ErrNoRunningStatus    = errors.New("running status not available")
	ErrInvalidEndOfTrack  = errors.New("invalid end of track")
)

// ErrVarintOverflow is the cause of delta-times and payload lengths longer than
// 4 bytes.
var ErrVarintOverflow = bits.ErrVarintOverflow

// An Error describes a fatal decode error. The Decoder can not be resumed
// after an Error.
type Error struct {
	// Offset in bytes from the start of the stream of the offending field.
	Offset int64
	// Decode state at the time of the error.
	State State
	// Underlying error; one of the Err* values, io.ErrUnexpectedEOF, or an
	// error returned by a Handler.
	Err error
	// Details of the error.
	Msg string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("smf.Decoder: %v (offset %d, state %v)", e.Err, e.Offset, e.State)
	}
	return fmt.Sprintf("smf.Decoder: %v; %s (offset %d, state %v)", e.Err, e.Msg, e.Offset, e.State)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}
