// Package synth renders the notes of a MIDI file as a mono square-wave mix.
package synth

import (
	"io"
	"math"
	"sort"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/pkg/errutil"
	"github.com/mewkiz/smf"
	"github.com/mewkiz/smf/note"
	"github.com/pkg/errors"
)

// Defaults of Options.
const (
	DefaultSampleRate = 44100
	DefaultTempo      = 500000
	DefaultAmplitude  = 0.2
)

// BitDepth is the sample size in bits of rendered audio.
const BitDepth = 16

// A Note is a sounding note, from its note on to its note off.
type Note struct {
	// Index of the track containing the note.
	Track int
	// Zero-based MIDI channel.
	Channel uint8
	// Note number and note on velocity.
	Key, Velocity uint8
	// Absolute ticks of the note on and note off events.
	Start, End uint64
}

// noteKey identifies a sounding note.
type noteKey struct {
	track        int
	channel, key uint8
}

// A Renderer collects the notes of a MIDI file. It implements smf.Handler.
type Renderer struct {
	// Channels to collect; all channels if empty.
	channels map[uint8]bool
	// Collected notes, in note on order.
	notes []Note
	// Index into notes of each sounding note.
	active map[noteKey]int
	// Division of the decoded file.
	div smf.Division
	// Largest tick seen in any track.
	end uint64
}

// NewRenderer returns a new renderer which collects the notes of the given
// zero-based channels, or of all channels if none are given.
func NewRenderer(channels ...uint8) *Renderer {
	r := &Renderer{active: make(map[noteKey]int)}
	if len(channels) > 0 {
		r.channels = make(map[uint8]bool)
		for _, ch := range channels {
			r.channels[ch] = true
		}
	}
	return r
}

// HandleEvent records note on and note off events. A note on of a key which
// is already sounding ends the previous note.
func (r *Renderer) HandleEvent(dec *smf.Decoder, ev *smf.Event) error {
	r.div = dec.Header().Division
	if ev.Tick > r.end {
		r.end = ev.Tick
	}
	on := ev.IsNoteOn()
	if !on && !ev.IsNoteOff() {
		return nil
	}
	if r.channels != nil && !r.channels[ev.Channel()] {
		return nil
	}
	k := noteKey{track: ev.Track, channel: ev.Channel(), key: ev.Param1}
	if i, ok := r.active[k]; ok {
		r.notes[i].End = ev.Tick
		delete(r.active, k)
	}
	if on {
		r.active[k] = len(r.notes)
		r.notes = append(r.notes, Note{
			Track:    ev.Track,
			Channel:  ev.Channel(),
			Key:      ev.Param1,
			Velocity: ev.Param2,
			Start:    ev.Tick,
		})
	}
	return nil
}

// HandleComplete ends the notes still sounding at the last tick of the file.
func (r *Renderer) HandleComplete(dec *smf.Decoder) error {
	r.div = dec.Header().Division
	for k, i := range r.active {
		r.notes[i].End = r.end
		delete(r.active, k)
	}
	return nil
}

// Notes returns the collected notes, sorted by start tick.
func (r *Renderer) Notes() []Note {
	notes := make([]Note, len(r.notes))
	copy(notes, r.notes)
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].Start < notes[j].Start
	})
	return notes
}

// Options specifies the output format of Render.
type Options struct {
	// Samples per second.
	SampleRate int
	// Tempo in microseconds per quarter note; ignored for SMPTE division.
	Tempo uint32
	// Peak amplitude of a single note at full velocity, as a fraction of full
	// scale.
	Amplitude float64
}

// withDefaults returns opts with zero fields replaced by their defaults.
func (opts Options) withDefaults() Options {
	if opts.SampleRate == 0 {
		opts.SampleRate = DefaultSampleRate
	}
	if opts.Tempo == 0 {
		opts.Tempo = DefaultTempo
	}
	if opts.Amplitude == 0 {
		opts.Amplitude = DefaultAmplitude
	}
	return opts
}

// Seconds returns the time in seconds of the given tick.
//
//	seconds = tick * tempo / (ticksPerQuarter * 1e6)
//	seconds = tick / (fps * ticksPerFrame)
func Seconds(div smf.Division, tempo uint32, tick uint64) (float64, error) {
	if tpq := div.TicksPerQuarter(); tpq != 0 {
		return float64(tick) * float64(tempo) / (float64(tpq) * 1e6), nil
	}
	if fps, tpf := div.SMPTE(); fps != 0 && tpf != 0 {
		return float64(tick) / (float64(fps) * float64(tpf)), nil
	}
	return 0, errors.Errorf("synth.Seconds: invalid division 0x%04X", uint16(div))
}

// Samples returns the rendered mix of the collected notes as 16-bit samples.
func (r *Renderer) Samples(opts Options) ([]int, error) {
	opts = opts.withDefaults()
	rate := float64(opts.SampleRate)
	end, err := Seconds(r.div, opts.Tempo, r.end)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	// At least one sample, so that the WAV header is always written.
	mix := make([]float64, int(end*rate)+1)
	for _, n := range r.notes {
		start, err := Seconds(r.div, opts.Tempo, n.Start)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		stop, err := Seconds(r.div, opts.Tempo, n.End)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		freq := note.FreqFloat(n.Key)
		amp := opts.Amplitude * float64(n.Velocity) / 127
		first, last := int(start*rate), int(stop*rate)
		if last > len(mix) {
			last = len(mix)
		}
		for i := first; i < last; i++ {
			_, frac := math.Modf(float64(i-first) * freq / rate)
			if frac < 0.5 {
				mix[i] += amp
			} else {
				mix[i] -= amp
			}
		}
	}
	const fullScale = 1<<(BitDepth-1) - 1
	samples := make([]int, len(mix))
	for i, v := range mix {
		v = math.Max(-1, math.Min(1, v))
		samples[i] = int(math.Round(v * fullScale))
	}
	return samples, nil
}

// Render writes the rendered mix of the collected notes to w as a mono 16-bit
// PCM WAV file.
func (r *Renderer) Render(w io.WriteSeeker, opts Options) error {
	opts = opts.withDefaults()
	samples, err := r.Samples(opts)
	if err != nil {
		return errors.WithStack(err)
	}
	const nchannels = 1
	enc := wav.NewEncoder(w, opts.SampleRate, BitDepth, nchannels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: nchannels,
			SampleRate:  opts.SampleRate,
		},
		Data:           samples,
		SourceBitDepth: BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return errutil.Err(err)
	}
	if err := enc.Close(); err != nil {
		return errutil.Err(err)
	}
	return nil
}
