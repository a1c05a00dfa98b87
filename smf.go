// Package smf implements an incremental decoder for Standard MIDI Files. [1]
//
// The basic structure of a Standard MIDI File is:
//   - The file header chunk "MThd", specifying the format, the number of
//     tracks and the time division.
//   - One track chunk "MTrk" per track, each holding a sequence of events and
//     terminated by an end-of-track meta event.
//
// A Decoder consumes the file in chunks of any size, as produced by a blocking
// read loop, a non-blocking socket or a single in-memory buffer, and hands
// every decoded channel event to a Handler as soon as its last byte arrives.
// The payloads of meta, system exclusive and escape events are skipped, not
// buffered.
//
// [1]: https://www.midi.org/specifications/file-format-specifications/standard-midi-files
package smf

import (
	"io"
	"os"

	"github.com/mewkiz/pkg/errutil"
	"github.com/pkg/errors"
)

// BufferSize is the size of the input chunks read by Parse.
const BufferSize = 4096

// ParseFile decodes the provided Standard MIDI File, handing decoded events to
// h.
func ParseFile(path string, h Handler, opts ...Option) error {
	f, err := os.Open(path)
	if err != nil {
		return errutil.Err(err)
	}
	defer f.Close()
	return Parse(f, h, opts...)
}

// Parse decodes a Standard MIDI File from r in chunks of BufferSize bytes,
// handing decoded events to h. Use ParseBuffer to control the chunk size, and
// a Decoder directly to drive decoding from other sources.
func Parse(r io.Reader, h Handler, opts ...Option) error {
	return ParseBuffer(r, make([]byte, BufferSize), h, opts...)
}

// ParseBuffer decodes a Standard MIDI File from r, using buf to hold each input
// chunk, and hands decoded events to h. Reading stops once the last track has
// ended. An *Error wrapping io.ErrUnexpectedEOF is returned if r ends before
// that.
func ParseBuffer(r io.Reader, buf []byte, h Handler, opts ...Option) error {
	if len(buf) == 0 {
		return errors.New("smf.ParseBuffer: empty buffer")
	}
	dec := NewDecoder(h, opts...)
	for !dec.Done() {
		n, err := r.Read(buf)
		if n > 0 {
			if err := dec.Decode(buf[:n]); err != nil {
				return err
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return errutil.Err(err)
		}
	}
	if !dec.Done() {
		return errors.WithStack(&Error{
			Offset: dec.Offset(),
			State:  dec.State(),
			Err:    io.ErrUnexpectedEOF,
			Msg:    "stream ended before the last track",
		})
	}
	return nil
}
