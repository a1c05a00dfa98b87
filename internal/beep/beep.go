// Package beep encodes the notes of a single MIDI channel as a C array of
// packed tone commands, suitable for playback by a square-wave beeper.
//
// Each note on or note off event is packed into a 32-bit little-endian word:
//
//	bit  0- 6: duty cycle (note velocity)
//	bit     7: 1 for note on, 0 for note off
//	bit  8-15: frequency in Hz, low 8 bits
//	bit 16-19: frequency in Hz, high 4 bits
//	bit 20-23: delay in milliseconds, low 4 bits
//	bit 24-31: delay in milliseconds, high 8 bits
//
// The delay is the time elapsed since the previous command of the same track.
package beep

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/icza/bitio"
	"github.com/mewkiz/pkg/errutil"
	"github.com/mewkiz/smf"
	"github.com/mewkiz/smf/note"
	"github.com/pkg/errors"
)

// Output framing of the generated C source.
const (
	// Prefix starts the C array declaration.
	Prefix = "uint32_t midi_data[] = {"
	// Suffix terminates the C array declaration.
	Suffix = "};"
)

// Field limits of a packed command.
const (
	// MaxFreq is the largest representable frequency in Hz.
	MaxFreq = 0xFFF
	// MaxDelay is the largest representable delay in milliseconds.
	MaxDelay = 0xFFF
	// MaxDuty is the largest representable duty cycle.
	MaxDuty = 0x7F
)

// DefaultTempo is the tempo in microseconds per quarter note assumed by MIDI
// files without a tempo meta event (120 BPM).
const DefaultTempo = 500000

// An Encoder writes the note events of one channel as packed commands. It
// implements smf.Handler.
type Encoder struct {
	// Underlying io.Writer to the output source file.
	w io.Writer
	// Zero-based MIDI channel to encode.
	channel uint8
	// Tempo in microseconds per quarter note.
	tempo uint32
	// Track and absolute tick of the previously encoded command.
	track int
	last  uint64
	// Number of commands written.
	n int
}

// NewEncoder returns a new encoder of the given channel which writes to w. The
// array prefix is written immediately. A tempo of 0 selects DefaultTempo.
func NewEncoder(w io.Writer, channel uint8, tempo uint32) (*Encoder, error) {
	if channel > 15 {
		return nil, errors.Errorf("beep.NewEncoder: invalid MIDI channel %d", channel)
	}
	if tempo == 0 {
		tempo = DefaultTempo
	}
	if _, err := io.WriteString(w, Prefix); err != nil {
		return nil, errutil.Err(err)
	}
	return &Encoder{w: w, channel: channel, tempo: tempo, track: -1}, nil
}

// HandleEvent encodes ev if it is a note on or note off of the encoder's
// channel; other events are ignored.
func (enc *Encoder) HandleEvent(dec *smf.Decoder, ev *smf.Event) error {
	if ev.Channel() != enc.channel {
		return nil
	}
	on := ev.IsNoteOn()
	if !on && !ev.IsNoteOff() {
		return nil
	}
	if ev.Track != enc.track {
		enc.track = ev.Track
		enc.last = 0
	}
	delay := enc.millis(dec.Header().Division, ev.Tick-enc.last)
	enc.last = ev.Tick
	word, err := Pack(on, ev.Param2, note.Freq(ev.Param1), delay)
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err := fmt.Fprintf(enc.w, "0x%x,", word); err != nil {
		return errutil.Err(err)
	}
	enc.n++
	return nil
}

// HandleComplete is a no-op; the array is terminated by Close.
func (enc *Encoder) HandleComplete(dec *smf.Decoder) error {
	return nil
}

// Close terminates the array declaration. It does not close the underlying
// io.Writer.
func (enc *Encoder) Close() error {
	if _, err := io.WriteString(enc.w, Suffix); err != nil {
		return errutil.Err(err)
	}
	return nil
}

// Count returns the number of commands written.
func (enc *Encoder) Count() int {
	return enc.n
}

// millis converts a duration of ticks to milliseconds, clamped to MaxDelay.
//
//	ms = ticks * tempo / (ticksPerQuarter * 1000)
//	ms = ticks * 1000 / (fps * ticksPerFrame)
func (enc *Encoder) millis(div smf.Division, ticks uint64) uint16 {
	var ms uint64
	if tpq := div.TicksPerQuarter(); tpq != 0 {
		ms = ticks * uint64(enc.tempo) / (uint64(tpq) * 1000)
	} else if fps, tpf := div.SMPTE(); fps != 0 && tpf != 0 {
		ms = ticks * 1000 / (uint64(fps) * uint64(tpf))
	}
	if ms > MaxDelay {
		return MaxDelay
	}
	return uint16(ms)
}

// Pack returns the packed command of a note event. Frequency and delay are
// clamped to MaxFreq and MaxDelay, and duty is truncated to 7 bits.
func Pack(on bool, duty uint8, freq, delay uint16) (uint32, error) {
	if freq > MaxFreq {
		freq = MaxFreq
	}
	if delay > MaxDelay {
		delay = MaxDelay
	}
	buf := new(bytes.Buffer)
	bw := bitio.NewWriter(buf)
	// Bits are written most significant first within each byte.
	fields := []struct {
		x uint64
		n uint8
	}{
		{x: boolBit(on), n: 1},
		{x: uint64(duty & MaxDuty), n: 7},
		{x: uint64(freq & 0xFF), n: 8},
		{x: uint64(delay & 0x0F), n: 4},
		{x: uint64(freq >> 8), n: 4},
		{x: uint64(delay >> 4), n: 8},
	}
	for _, f := range fields {
		if err := bw.WriteBits(f.x, f.n); err != nil {
			return 0, errutil.Err(err)
		}
	}
	if err := bw.Close(); err != nil {
		return 0, errutil.Err(err)
	}
	return binary.LittleEndian.Uint32(buf.Bytes()), nil
}

// Unpack is the inverse of Pack.
func Unpack(word uint32) (on bool, duty uint8, freq, delay uint16) {
	on = word&0x80 != 0
	duty = uint8(word & MaxDuty)
	freq = uint16(word>>8&0xFF) | uint16(word>>16&0x0F)<<8
	delay = uint16(word>>20&0x0F) | uint16(word>>24&0xFF)<<4
	return on, duty, freq, delay
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
