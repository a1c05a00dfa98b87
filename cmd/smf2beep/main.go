// smf2beep is a tool which converts the notes of one channel of a Standard
// MIDI File to a C array of packed beeper commands.
//
// Usage:
//
//	smf2beep [OPTION]... FILE...
//
// The array of FILE is written to FILE with its extension replaced by ".h".
package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/mewkiz/pkg/osutil"
	"github.com/mewkiz/pkg/pathutil"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/mewkiz/smf"
	"github.com/mewkiz/smf/internal/beep"
	"github.com/mewkiz/smf/internal/config"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: smf2beep [OPTION]... FILE...")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Flags:")
	pflag.PrintDefaults()
}

func main() {
	// Parse command line arguments.
	var (
		// force overwrite header file if already present.
		force bool
		// channel overrides the channel of the config file.
		channel int
		// configPath specifies an optional TOML config file.
		configPath string
		// verbose enables debug logging of the decoder.
		verbose bool
	)
	pflag.BoolVarP(&force, "force", "f", false, "force overwrite")
	pflag.IntVarP(&channel, "channel", "C", -1, "zero-based MIDI channel to convert (default from config)")
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
	if channel > 15 {
		log.Fatal().Msgf("invalid MIDI channel %d", channel)
	}
	if channel >= 0 {
		cfg.Beep.Channel = uint8(channel)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Msgf("%+v", err)
	}
	for _, midPath := range pflag.Args() {
		if err := smf2beep(midPath, cfg, force); err != nil {
			log.Fatal().Msgf("%+v", err)
		}
	}
}

// smf2beep converts the given MIDI file to a C header file.
func smf2beep(midPath string, cfg config.Config, force bool) error {
	hPath := pathutil.TrimExt(midPath) + ".h"
	if !force && osutil.Exists(hPath) {
		return errors.Errorf("header file %q already present; use -f flag to force overwrite", hPath)
	}
	r, err := os.Open(midPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer r.Close()

	// Convert to memory; the header file is only created once the whole MIDI
	// file has been decoded.
	out := new(bytes.Buffer)
	enc, err := beep.NewEncoder(out, cfg.Beep.Channel, cfg.Beep.Tempo)
	if err != nil {
		return errors.WithStack(err)
	}
	logger := log.Logger.With().Str("file", midPath).Logger()
	buf := make([]byte, cfg.BufferSize)
	if err := smf.ParseBuffer(r, buf, enc, smf.WithLogger(logger)); err != nil {
		return errors.WithStack(err)
	}
	if err := enc.Close(); err != nil {
		return errors.WithStack(err)
	}
	if err := os.WriteFile(hPath, out.Bytes(), 0o644); err != nil {
		return errors.WithStack(err)
	}
	logger.Info().Str("output", hPath).Int("commands", enc.Count()).Msgf("converted channel %d", cfg.Beep.Channel)
	return nil
}
