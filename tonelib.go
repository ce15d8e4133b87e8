package main

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// toneLibScoreFile is the score entry inside a ToneLib .song archive
const toneLibScoreFile = "the_song.dat"

// ToneLib Score XML structure, limited to what the timeline needs
type ToneLibScore struct {
	XMLName  xml.Name        `xml:"Score"`
	Info     ToneLibInfo     `xml:"info"`
	BarIndex ToneLibBarIndex `xml:"BarIndex"`
	Tracks   ToneLibTracks   `xml:"Tracks"`
}

// Song metadata
type ToneLibInfo struct {
	Name        string `xml:"name"`
	Artist      string `xml:"artist"`
	Album       string `xml:"album"`
	Author      string `xml:"author"`
	Transcriber string `xml:"transcriber"`
}

// Bar index for tempo, time signature and section labels
type ToneLibBarIndex struct {
	Bars []ToneLibBar `xml:"Bar"`
}

type ToneLibBar struct {
	ID       int                   `xml:"id,attr"`
	Tempo    int                   `xml:"tempo,attr,omitempty"`
	TimeSign *ToneLibTimeSignature `xml:"time_sign,omitempty"`
	Label    *ToneLibLabel         `xml:"label,omitempty"`
}

type ToneLibTimeSignature struct {
	Numerator int `xml:"numerator,attr"`
	Duration  int `xml:"duration,attr"` // note value of the beat, 4 for quarter notes
}

type ToneLibLabel struct {
	Letter string `xml:"letter,attr"`
	Text   string `xml:"text,attr"`
}

type ToneLibTracks struct {
	Tracks []ToneLibTrack `xml:"Track"`
}

type ToneLibTrack struct {
	Name string `xml:"name,attr"`
	ID   int    `xml:"id,attr"`
}

// ReadToneLibSong opens a .song archive and decodes its score.
func ReadToneLibSong(r io.ReaderAt, size int64) (*ToneLibScore, error) {
	archive, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	for _, file := range archive.File {
		if file.Name != toneLibScoreFile {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", toneLibScoreFile, err)
		}
		defer rc.Close()

		return ParseToneLibScore(rc)
	}

	return nil, fmt.Errorf("%w: %s not found in archive", ErrUnsupportedFormat, toneLibScoreFile)
}

// ParseToneLibScore decodes the_song.dat XML.
func ParseToneLibScore(r io.Reader) (*ToneLibScore, error) {
	var score ToneLibScore
	if err := xml.NewDecoder(r).Decode(&score); err != nil {
		return nil, fmt.Errorf("failed to decode XML: %w", err)
	}
	return &score, nil
}

// RawSong turns the bar index into measure headers. A tempo of zero means the
// bar keeps the previous tempo.
func (s *ToneLibScore) RawSong() (*RawSong, error) {
	bars := make([]ToneLibBar, len(s.BarIndex.Bars))
	copy(bars, s.BarIndex.Bars)
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].ID < bars[j].ID })

	song := &RawSong{
		Title:  s.Info.Name,
		Artist: s.Info.Artist,
		Tempo:  DefaultTempoBPM,
	}
	if len(bars) > 0 && bars[0].Tempo > 0 {
		song.Tempo = bars[0].Tempo
	}

	labels := RawTrack{Name: "labels"}

	for _, bar := range bars {
		header := RawMeasureHeader{}
		if bar.Tempo > 0 {
			tempo := bar.Tempo
			header.Tempo = &tempo
		}
		if bar.TimeSign != nil {
			header.TimeSignature = &TimeSignature{
				Numerator:   bar.TimeSign.Numerator,
				Denominator: bar.TimeSign.Duration,
			}
		}

		var beats []RawBeat
		if bar.Label != nil {
			text := strings.TrimSpace(bar.Label.Text)
			if text == "" {
				text = strings.TrimSpace(bar.Label.Letter)
			}
			beats = []RawBeat{{Text: text}}
		}

		song.Headers = append(song.Headers, header)
		labels.Measures = append(labels.Measures, beats)
	}

	song.Tracks = []RawTrack{labels}
	return song, nil
}

func (s *ToneLibScore) Metadata() map[string]string {
	result := make(map[string]string)
	if s.Info.Name != "" {
		result["name"] = s.Info.Name
	}
	if s.Info.Artist != "" {
		result["artist"] = s.Info.Artist
	}
	if s.Info.Album != "" {
		result["album"] = s.Info.Album
	}
	if s.Info.Transcriber != "" {
		result["transcriber"] = s.Info.Transcriber
	}
	return result
}
