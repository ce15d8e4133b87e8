package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"gitlab.com/gomidi/midi/v2/smf"
)

// TabSource is implemented by every tab format the timeline can be built
// from. RawSong is the only place format-specific "may be absent" handling
// happens; everything after it works on resolved values.
type TabSource interface {
	RawSong() (*RawSong, error)
	Metadata() map[string]string
}

// OpenTabSource parses data according to the extension of name.
func OpenTabSource(name string, data []byte) (TabSource, error) {
	ext := strings.ToLower(filepath.Ext(name))

	switch ext {
	case ".chart":
		chart, err := ParseChartFile(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("error parsing chart file: %w", err)
		}
		chart.Filename = name
		return chart, nil
	case ".mid", ".midi":
		midiFile, err := smf.ReadFrom(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("error reading MIDI file: %w", err)
		}
		return &MidiFile{SMF: midiFile}, nil
	case ".song":
		score, err := ReadToneLibSong(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("error reading ToneLib song: %w", err)
		}
		return score, nil
	case ".sng":
		pkg, err := ReadSngPackage(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("error reading song package: %w", err)
		}
		return pkg, nil
	case ".json":
		doc, err := ParseTabDocument(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("error parsing tab document: %w", err)
		}
		return doc, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// formatOf names the source format of a file for storage.
func formatOf(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".chart":
		return "chart"
	case ".mid", ".midi":
		return "midi"
	case ".song":
		return "tonelib"
	case ".sng":
		return "sng"
	case ".json":
		return "json"
	}
	return ""
}
