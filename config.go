package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const dbEnvVar = "CLICKTRACK_DB"

type config struct {
	// input
	path  string
	id    string
	list  bool
	store bool
	db    string

	// timeline
	countIn        int
	measureSeconds float64
	maxMeasures    int
	maxDuration    float64

	// outputs
	timeline    bool
	jsonOut     bool
	frames      string
	frameFormat string
	fps         int
	resolution  string
	width       int
	height      int
	click       string
	midi        string
	clickVoice  string

	logLevel string
}

func parseFlags(args []string, stderr io.Writer) (*config, error) {
	c := &config{}

	fs := flag.NewFlagSet("clicktrack", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: clicktrack [flags] <file>\n")
		fmt.Fprintf(stderr, "       clicktrack [flags] -id ID\n")
		fmt.Fprintf(stderr, "       clicktrack -list\n")
		fs.PrintDefaults()
	}

	// input / library
	fs.StringVar(&c.id, "id", "", "load the tab with this id from the library instead of a file")
	fs.BoolVar(&c.list, "list", false, "list tabs stored in the library")
	fs.BoolVar(&c.store, "store", false, "store the input file in the library")
	fs.StringVar(&c.db, "db", envOr(dbEnvVar, "clicktrack.db"), "path to the tab library database (env "+dbEnvVar+")")

	// timeline
	fs.IntVar(&c.countIn, "count-in", 0, "number of 4/4 count-in measures")
	fs.Float64Var(&c.measureSeconds, "measure-seconds", 0, "fixed seconds per measure (0 follows the tab's tempo)")
	fs.IntVar(&c.maxMeasures, "max-measures", DefaultMaxPlayedMeasures, "reject tabs that expand to more played measures")
	fs.Float64Var(&c.maxDuration, "max-duration", DefaultMaxDuration, "reject timelines longer than this many seconds")

	// outputs
	fs.BoolVar(&c.timeline, "timeline", false, "print the played timeline")
	fs.BoolVar(&c.jsonOut, "json", false, "print the played timeline as JSON")
	fs.StringVar(&c.frames, "frames", "", "write the per-frame display plan to this path")
	fs.StringVar(&c.frameFormat, "frame-format", "yaml", "frame plan format: yaml|json")
	fs.IntVar(&c.fps, "fps", DefaultFPS, "frames per second of the frame plan")
	fs.StringVar(&c.resolution, "resolution", fmt.Sprintf("%dx%d", DefaultWidth, DefaultHeight), "frame size as WIDTHxHEIGHT")
	fs.StringVar(&c.click, "click", "", "write a WAV click track to this path")
	fs.StringVar(&c.midi, "midi", "", "write a MIDI click track to this path")
	fs.StringVar(&c.clickVoice, "click-voice", DefaultClickVoice.Name, "MIDI click sound: "+strings.Join(ClickVoiceNames(), "|"))

	fs.StringVar(&c.logLevel, "log-level", "info", "log level: debug|info|warn|error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch {
	case c.list:
	case c.id != "":
		if fs.NArg() != 0 {
			return nil, fmt.Errorf("-id takes no file argument")
		}
	case fs.NArg() == 1:
		c.path = fs.Arg(0)
	default:
		fs.Usage()
		return nil, fmt.Errorf("expected exactly one file")
	}

	if c.store && c.path == "" {
		return nil, fmt.Errorf("-store needs a file argument")
	}

	width, height, err := parseResolution(c.resolution)
	if err != nil {
		return nil, err
	}
	c.width, c.height = width, height

	if c.fps < 1 {
		return nil, fmt.Errorf("invalid -fps %d", c.fps)
	}
	if c.countIn < 0 {
		c.countIn = 0
	}

	return c, nil
}

// parseResolution reads a WIDTHxHEIGHT frame size.
func parseResolution(s string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid resolution %q, expected WIDTHxHEIGHT", s)
	}

	width, err := strconv.Atoi(w)
	if err != nil || width < 1 {
		return 0, 0, fmt.Errorf("invalid resolution width %q", w)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height < 1 {
		return 0, 0, fmt.Errorf("invalid resolution height %q", h)
	}

	return width, height, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c *config) exportOptions() ExportOptions {
	return ExportOptions{
		CountIn:         c.countIn,
		MeasureDuration: c.measureSeconds,
		FPS:             c.fps,
		Width:           c.width,
		Height:          c.height,
		Filename:        c.path,
		MaxMeasures:     c.maxMeasures,
		MaxDuration:     c.maxDuration,
	}
}
