// Package config loads the TOML configuration of the command line tools.
//
// Example configuration file:
//
//	buffer_size = 4096
//
//	[beep]
//	channel = 1
//	tempo = 500000
//
//	[wav]
//	sample_rate = 44100
//	tempo = 500000
//	amplitude = 0.2
//	channels = [0, 1, 9]
package config

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/mewkiz/smf"
	"github.com/mewkiz/smf/internal/beep"
	"github.com/mewkiz/smf/internal/synth"
)

// Config is the configuration of the command line tools.
type Config struct {
	// Size in bytes of the chunks read from MIDI files.
	BufferSize int `toml:"buffer_size"`
	// Beep encoder settings of smf2beep.
	Beep Beep `toml:"beep"`
	// Renderer settings of smf2wav.
	WAV WAV `toml:"wav"`
}

// Beep holds the settings of the beep encoder.
type Beep struct {
	// Zero-based MIDI channel to encode.
	Channel uint8 `toml:"channel"`
	// Tempo in microseconds per quarter note.
	Tempo uint32 `toml:"tempo"`
}

// WAV holds the settings of the square-wave renderer.
type WAV struct {
	SampleRate int     `toml:"sample_rate"`
	Tempo      uint32  `toml:"tempo"`
	Amplitude  float64 `toml:"amplitude"`
	// Zero-based MIDI channels to render; all channels if empty.
	Channels []uint8 `toml:"channels"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		BufferSize: smf.BufferSize,
		Beep: Beep{
			Channel: 1,
			Tempo:   beep.DefaultTempo,
		},
		WAV: WAV{
			SampleRate: synth.DefaultSampleRate,
			Tempo:      synth.DefaultTempo,
			Amplitude:  synth.DefaultAmplitude,
		},
	}
}

// Load returns the default configuration overridden by the keys present in
// the given TOML file. An empty path returns the default configuration.
// Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, errors.Wrapf(err, "unable to parse config file %q", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		var keys []string
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return Config{}, errors.Errorf("unknown keys in config file %q: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "invalid config file %q", path)
	}
	return cfg, nil
}

// Validate reports an error if a setting is out of range.
func (cfg Config) Validate() error {
	if cfg.BufferSize <= 0 {
		return errors.Errorf("buffer_size must be positive; got %d", cfg.BufferSize)
	}
	if cfg.Beep.Channel > 15 {
		return errors.Errorf("beep.channel must be in [0, 15]; got %d", cfg.Beep.Channel)
	}
	if cfg.Beep.Tempo == 0 {
		return errors.New("beep.tempo must be positive")
	}
	if cfg.WAV.SampleRate <= 0 {
		return errors.Errorf("wav.sample_rate must be positive; got %d", cfg.WAV.SampleRate)
	}
	if cfg.WAV.Tempo == 0 {
		return errors.New("wav.tempo must be positive")
	}
	if cfg.WAV.Amplitude <= 0 || cfg.WAV.Amplitude > 1 {
		return errors.Errorf("wav.amplitude must be in (0, 1]; got %g", cfg.WAV.Amplitude)
	}
	for _, ch := range cfg.WAV.Channels {
		if ch > 15 {
			return errors.Errorf("wav.channels must be in [0, 15]; got %d", ch)
		}
	}
	return nil
}

// Options returns the renderer options of the configuration.
func (w WAV) Options() synth.Options {
	return synth.Options{
		SampleRate: w.SampleRate,
		Tempo:      w.Tempo,
		Amplitude:  w.Amplitude,
	}
}
