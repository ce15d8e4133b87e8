package main

import (
	"fmt"
	"path/filepath"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// ExportOptions are the request parameters of one practice-video export.
type ExportOptions struct {
	CountIn         int
	MeasureDuration float64 // seconds per measure, zero to follow the tab
	FPS             int
	Width           int
	Height          int
	Filename        string // original upload name, used for the title
	MaxMeasures     int
	MaxDuration     float64
}

const (
	DefaultFPS    = 30
	DefaultWidth  = 1920
	DefaultHeight = 1080
)

func (o ExportOptions) fps() int {
	if o.FPS < 1 {
		return DefaultFPS
	}
	return o.FPS
}

func (o ExportOptions) resolution() (int, int) {
	if o.Width < 1 || o.Height < 1 {
		return DefaultWidth, DefaultHeight
	}
	return o.Width, o.Height
}

// Synthesize runs the whole pipeline for one export: measure extraction,
// repeat expansion and timeline synthesis.
func Synthesize(song *RawSong, opts ExportOptions, logger *charmlog.Logger) (*Timeline, error) {
	logger = loggerOrDiscard(logger)

	measures := ExtractMeasures(song, logger)
	if len(measures) == 0 {
		return nil, fmt.Errorf("%w: tab has no measures", ErrEmptyTimeline)
	}

	played, err := ExpandRepeats(measures, ExpandLimits{MaxMeasures: opts.MaxMeasures})
	if err != nil {
		return nil, fmt.Errorf("failed to expand repeats: %w", err)
	}

	timeline, err := BuildTimeline(measures, played, TimelineOptions{
		BaseTempo:       song.BaseTempo(),
		CountIn:         opts.CountIn,
		MeasureDuration: opts.MeasureDuration,
		MaxDuration:     opts.MaxDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build timeline: %w", err)
	}

	logger.Info("synthesized timeline",
		"measures", len(measures),
		"played", len(played),
		"count_in", timeline.CountInMeasures(),
		"tempo", song.BaseTempo(),
		"duration", fmt.Sprintf("%.1fs", timeline.TotalDuration()))

	return timeline, nil
}

// exportTitle picks the title shown on every frame: the uploaded file name
// without its extension, else the song title, else "Metronome".
func exportTitle(filename, songTitle string) string {
	if filename != "" {
		base := filepath.Base(filename)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	if songTitle != "" {
		return songTitle
	}
	return "Metronome"
}

// ExportSummary is the machine-readable result of one export.
type ExportSummary struct {
	Title           string         `json:"title" yaml:"title"`
	BaseTempo       int            `json:"base_tempo" yaml:"base_tempo"`
	CountIn         int            `json:"count_in" yaml:"count_in"`
	CountInDuration float64        `json:"count_in_duration" yaml:"count_in_duration"`
	Duration        float64        `json:"duration" yaml:"duration"`
	TotalMeasures   int            `json:"total_measures" yaml:"total_measures"`
	Measures        []TimedMeasure `json:"measures" yaml:"measures"`
}

// Summary reports the timeline the way an export result does: total
// duration and total measures, count-in included.
func (t *Timeline) Summary(title string) ExportSummary {
	return ExportSummary{
		Title:           title,
		BaseTempo:       t.baseTempo,
		CountIn:         t.countIn,
		CountInDuration: t.CountInDuration(),
		Duration:        t.total,
		TotalMeasures:   len(t.entries) + t.countIn,
		Measures:        t.entries,
	}
}
