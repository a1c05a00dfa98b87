// smfdump is a tool which prints the events of Standard MIDI Files.
//
// Usage:
//
//	smfdump [OPTION]... FILE...
//
// By default only note on and note off events are printed, together with the
// note name and frequency.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/gookit/color"
	"github.com/kylelemons/godebug/pretty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/mewkiz/smf"
	"github.com/mewkiz/smf/internal/config"
	"github.com/mewkiz/smf/note"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: smfdump [OPTION]... FILE...")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Flags:")
	pflag.PrintDefaults()
}

func main() {
	// Parse command line arguments.
	var (
		// all prints every channel event, not only notes.
		all bool
		// meta prints meta and system exclusive events.
		meta bool
		// header pretty-prints the file header.
		header bool
		// verbose enables debug logging of the decoder.
		verbose bool
		// bufferSize overrides the read buffer size of the config file.
		bufferSize int
		// configPath specifies an optional TOML config file.
		configPath string
	)
	pflag.BoolVarP(&all, "all", "a", false, "print all channel events")
	pflag.BoolVarP(&meta, "meta", "m", false, "print meta and system exclusive events")
	pflag.BoolVarP(&header, "header", "H", false, "print file header")
	pflag.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	pflag.IntVarP(&bufferSize, "buffer-size", "b", 0, "read buffer size in bytes (default from config)")
	pflag.StringVarP(&configPath, "config", "c", "", "TOML config file")
	pflag.Usage = usage
	pflag.Parse()
	if pflag.NArg() < 1 {
		pflag.Usage()
		os.Exit(1)
	}
	initLogger(verbose)
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		color.Enable = false
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Msgf("%+v", err)
	}
	if bufferSize > 0 {
		cfg.BufferSize = bufferSize
	}
	d := &dumper{w: os.Stdout, all: all, header: header}
	for _, path := range pflag.Args() {
		if err := d.dump(path, cfg.BufferSize, meta); err != nil {
			log.Fatal().Msgf("%+v", err)
		}
	}
}

// initLogger directs decoder diagnostics to standard error.
func initLogger(verbose bool) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	output := zerolog.ConsoleWriter{Out: os.Stderr, NoColor: !term.IsTerminal(int(os.Stderr.Fd()))}
	log.Logger = zerolog.New(output).Level(level).With().Timestamp().Logger()
}

// dumper prints decoded events. It implements smf.Handler.
type dumper struct {
	w      io.Writer
	all    bool
	header bool
	// printed is set once the header of the current file has been printed.
	printed bool
}

// dump prints the events of the given MIDI file.
func (d *dumper) dump(path string, bufferSize int, meta bool) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	d.printed = false
	opts := []smf.Option{smf.WithLogger(log.Logger.With().Str("file", path).Logger())}
	if meta {
		opts = append(opts, smf.WithMetaEvents())
	}
	buf := make([]byte, bufferSize)
	if err := smf.ParseBuffer(f, buf, d, opts...); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func (d *dumper) HandleEvent(dec *smf.Decoder, ev *smf.Event) error {
	if err := d.printHeader(dec); err != nil {
		return errors.WithStack(err)
	}
	var line string
	switch {
	case ev.IsNoteOn():
		line = color.Green.Sprint(formatNote(ev))
	case ev.IsNoteOff():
		line = color.Gray.Sprint(formatNote(ev))
	case ev.IsChannel():
		if !d.all {
			return nil
		}
		line = ev.String()
	default:
		line = color.Cyan.Sprint(ev.String())
	}
	_, err := fmt.Fprintln(d.w, line)
	return errors.WithStack(err)
}

func (d *dumper) HandleComplete(dec *smf.Decoder) error {
	if err := d.printHeader(dec); err != nil {
		return errors.WithStack(err)
	}
	_, err := fmt.Fprintf(d.w, "%d tracks decoded (%v)\n", dec.TracksDone(), dec.Header().Division)
	return errors.WithStack(err)
}

// printHeader prints the file header once per file, if enabled.
func (d *dumper) printHeader(dec *smf.Decoder) error {
	if !d.header || d.printed {
		return nil
	}
	d.printed = true
	_, err := fmt.Fprintln(d.w, pretty.Sprint(dec.Header()))
	return err
}

// formatNote returns a description of a note on or note off event, including
// the note name and frequency.
func formatNote(ev *smf.Event) string {
	kind := "note on"
	if ev.IsNoteOff() {
		kind = "note off"
	}
	return fmt.Sprintf("track %d, delta %d, tick %d: %s, channel %d, key %s (%d Hz), velocity %d",
		ev.Track, ev.Delta, ev.Tick, kind, ev.Channel(), note.Name(ev.Param1), note.Freq(ev.Param1), ev.Param2)
}
