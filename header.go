package smf

import (
	"fmt"

	"github.com/mewkiz/smf/internal/bits"
)

// Chunk signatures.
const (
	// HeaderMagic is the signature of the file header chunk.
	HeaderMagic = "MThd"
	// TrackMagic is the signature of a track chunk.
	TrackMagic = "MTrk"
)

// Chunk header sizes in bytes.
const (
	// HeaderLen is the size of the file header chunk, including the chunk
	// signature and length.
	HeaderLen = 14
	// TrackHeaderLen is the size of a track chunk header.
	TrackHeaderLen = 8
)

// A Header is the file header chunk, which describes the layout and timing of
// the tracks that follow.
type Header struct {
	// Declared length of the header body; always 6 in conforming files.
	Length uint32
	// File format:
	//    0: a single multi-channel track.
	//    1: one or more simultaneous tracks.
	//    2: one or more sequentially independent tracks.
	Format uint16
	// Number of track chunks in the file.
	NTracks uint16
	// Meaning of the delta-times.
	Division Division
}

// parseHeader parses the file header chunk from b, which holds exactly
// HeaderLen bytes. It reports false if the chunk signature is invalid.
//
// Header format (pseudo code):
//
//	type MThd struct {
//	   magic    [4]byte // "MThd"
//	   length   uint32  // 6
//	   format   uint16
//	   ntracks  uint16
//	   division uint16
//	}
//
// ref: https://www.midi.org/specifications/file-format-specifications/standard-midi-files
func parseHeader(b []byte) (hdr Header, ok bool) {
	length, ok := parseChunkHeader(b, HeaderMagic)
	if !ok {
		return Header{}, false
	}
	hdr = Header{
		Length:   length,
		Format:   bits.Uint16(b[8:]),
		NTracks:  bits.Uint16(b[10:]),
		Division: Division(bits.Uint16(b[12:])),
	}
	return hdr, true
}

// A TrackHeader is the header of a track chunk.
type TrackHeader struct {
	// Declared length in bytes of the track body. The end of a track is
	// determined by its end-of-track meta event, not by this length.
	Length uint32
}

// parseTrackHeader parses a track chunk header from b, which holds exactly
// TrackHeaderLen bytes. It reports false if the chunk signature is invalid.
//
// Track header format (pseudo code):
//
//	type MTrk struct {
//	   magic  [4]byte // "MTrk"
//	   length uint32
//	}
func parseTrackHeader(b []byte) (hdr TrackHeader, ok bool) {
	length, ok := parseChunkHeader(b, TrackMagic)
	if !ok {
		return TrackHeader{}, false
	}
	return TrackHeader{Length: length}, true
}

// parseChunkHeader validates the 4-byte signature at the start of b against
// magic and returns the big-endian chunk length that follows it.
func parseChunkHeader(b []byte, magic string) (length uint32, ok bool) {
	if string(b[:4]) != magic {
		return 0, false
	}
	return bits.Uint32(b[4:]), true
}

// Division specifies the meaning of delta-times. If the high bit is clear it
// holds the number of ticks per quarter note, otherwise an SMPTE frame rate
// and the number of ticks per frame.
type Division uint16

// TicksPerQuarter returns the number of ticks per quarter note, or 0 if d
// specifies SMPTE based timing.
func (d Division) TicksPerQuarter() uint16 {
	if d&0x8000 != 0 {
		return 0
	}
	return uint16(d)
}

// SMPTE returns the number of frames per second and ticks per frame, or 0, 0
// if d specifies ticks per quarter note.
func (d Division) SMPTE() (fps, ticksPerFrame uint8) {
	if d&0x8000 == 0 {
		return 0, 0
	}
	// The frame rate is stored as a negative two's complement 8-bit integer.
	fps = uint8(-int8(d >> 8))
	return fps, uint8(d)
}

func (d Division) String() string {
	if tpq := d.TicksPerQuarter(); tpq != 0 {
		return fmt.Sprintf("%d ticks per quarter note", tpq)
	}
	if fps, tpf := d.SMPTE(); fps != 0 {
		return fmt.Sprintf("%d frames per second, %d ticks per frame", fps, tpf)
	}
	return fmt.Sprintf("<invalid division 0x%04X>", uint16(d))
}
