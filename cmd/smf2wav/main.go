// smf2wav is a tool which renders Standard MIDI Files to WAV files, playing
// every note as a square wave.
package main

import (
	"fmt"
	"os"

	"github.com/mewkiz/pkg/osutil"
	"github.com/mewkiz/pkg/pathutil"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/mewkiz/smf"
	"github.com/mewkiz/smf/internal/config"
	"github.com/mewkiz/smf/internal/synth"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: smf2wav [OPTION]... FILE...")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Flags:")
	pflag.PrintDefaults()
}

func main() {
	// Parse command line arguments.
	var (
		// force overwrite WAV file if already present.
		force bool
		// sampleRate overrides the sample rate of the config file.
		sampleRate int
		// channels overrides the rendered channels of the config file.
		channels []uint
		// configPath specifies an optional TOML config file.
		configPath string
		// verbose enables debug logging of the decoder.
		verbose bool
	)
	pflag.BoolVarP(&force, "force", "f", false, "force overwrite")
	pflag.IntVarP(&sampleRate, "rate", "r", 0, "sample rate in Hz (default from config)")
	pflag.UintSliceVarP(&channels, "channels", "C", nil, "comma-separated zero-based MIDI channels to render (default all)")
	pflag.StringVarP(&configPath, "config", "c", "", "TOML config file")
	pflag.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	pflag.Usage = usage
	pflag.Parse()
	if pflag.NArg() < 1 {
		pflag.Usage()
		os.Exit(1)
	}
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Msgf("%+v", err)
	}
	if sampleRate > 0 {
		cfg.WAV.SampleRate = sampleRate
	}
	if len(channels) > 0 {
		cfg.WAV.Channels = cfg.WAV.Channels[:0]
		for _, ch := range channels {
			if ch > 15 {
				log.Fatal().Msgf("invalid MIDI channel %d", ch)
			}
			cfg.WAV.Channels = append(cfg.WAV.Channels, uint8(ch))
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Msgf("%+v", err)
	}
	for _, midPath := range pflag.Args() {
		if err := smf2wav(midPath, cfg, force); err != nil {
			log.Fatal().Msgf("%+v", err)
		}
	}
}

// smf2wav renders the given MIDI file to a WAV file.
func smf2wav(midPath string, cfg config.Config, force bool) error {
	wavPath := pathutil.TrimExt(midPath) + ".wav"
	if !force && osutil.Exists(wavPath) {
		return errors.Errorf("WAV file %q already present; use -f flag to force overwrite", wavPath)
	}
	r, err := os.Open(midPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer r.Close()

	// Collect notes.
	renderer := synth.NewRenderer(cfg.WAV.Channels...)
	logger := log.Logger.With().Str("file", midPath).Logger()
	buf := make([]byte, cfg.BufferSize)
	if err := smf.ParseBuffer(r, buf, renderer, smf.WithLogger(logger), smf.WithMetaEvents()); err != nil {
		return errors.WithStack(err)
	}

	// Render WAV file.
	w, err := os.Create(wavPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer w.Close()
	if err := renderer.Render(w, cfg.WAV.Options()); err != nil {
		return errors.WithStack(err)
	}
	if err := w.Close(); err != nil {
		return errors.WithStack(err)
	}
	logger.Info().Str("output", wavPath).Int("notes", len(renderer.Notes())).Msg("rendered")
	return nil
}
