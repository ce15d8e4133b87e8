package main

import (
	"encoding/json"
	"fmt"
	"io"
)

// TabDocument is the parsed-tab payload produced by the upload service: song
// info plus one entry per measure. Entries may be sparse; missing measures
// are plain measures that keep the running tempo and meter.
type TabDocument struct {
	SongInfo     TabSongInfo  `json:"song_info"`
	MeasureCount int          `json:"measure_count"`
	Measures     []TabMeasure `json:"measures"`
	Version      string       `json:"version,omitempty"`
}

type TabSongInfo struct {
	Title     string `json:"title"`
	Subtitle  string `json:"subtitle,omitempty"`
	Artist    string `json:"artist"`
	Album     string `json:"album,omitempty"`
	Tempo     int    `json:"tempo"`
	TempoName string `json:"tempo_name,omitempty"`
}

type TabMeasure struct {
	Number            int            `json:"number"`
	SectionName       string         `json:"section_name"`
	TempoBPM          *int           `json:"tempo_bpm,omitempty"`
	TimeSignature     *TimeSignature `json:"time_signature,omitempty"`
	RepeatOpen        bool           `json:"repeat_open"`
	RepeatClose       int            `json:"repeat_close"`
	RepeatAlternative int            `json:"repeat_alternative"`
	DoubleBar         bool           `json:"double_bar"`
}

func ParseTabDocument(r io.Reader) (*TabDocument, error) {
	var doc TabDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return &doc, nil
}

// RawSong places every measure entry at its number. Entries without a number
// follow the previous entry.
func (d *TabDocument) RawSong() (*RawSong, error) {
	count := d.MeasureCount
	next := 1
	for _, m := range d.Measures {
		number := m.Number
		if number < 1 {
			number = next
		}
		if number > count {
			count = number
		}
		next = number + 1
	}
	if count > maxGridMeasures {
		return nil, fmt.Errorf("%w: %d measures", ErrMalformedMeasure, count)
	}

	song := &RawSong{
		Title:   d.SongInfo.Title,
		Artist:  d.SongInfo.Artist,
		Tempo:   d.SongInfo.Tempo,
		Headers: make([]RawMeasureHeader, count),
	}
	sections := RawTrack{Name: "sections", Measures: make([][]RawBeat, count)}

	next = 1
	for _, m := range d.Measures {
		number := m.Number
		if number < 1 {
			number = next
		}
		next = number + 1

		song.Headers[number-1] = RawMeasureHeader{
			Tempo:             m.TempoBPM,
			TimeSignature:     m.TimeSignature,
			RepeatOpen:        m.RepeatOpen,
			RepeatClose:       m.RepeatClose,
			RepeatAlternative: m.RepeatAlternative,
			DoubleBar:         m.DoubleBar,
		}
		if m.SectionName != "" {
			sections.Measures[number-1] = []RawBeat{{Text: m.SectionName}}
		}
	}

	song.Tracks = []RawTrack{sections}
	return song, nil
}

func (d *TabDocument) Metadata() map[string]string {
	result := make(map[string]string)
	if d.SongInfo.Title != "" {
		result["name"] = d.SongInfo.Title
	}
	if d.SongInfo.Artist != "" {
		result["artist"] = d.SongInfo.Artist
	}
	if d.SongInfo.Album != "" {
		result["album"] = d.SongInfo.Album
	}
	if d.Version != "" {
		result["version"] = d.Version
	}
	return result
}
