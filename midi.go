package main

import (
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2/smf"
)

// SMF wrapper so we can implement the interface
type MidiFile struct {
	*smf.SMF
}

func (m *MidiFile) Metadata() map[string]string {
	result := make(map[string]string)

	if len(m.Tracks) > 0 {
		trackName := getTrackName(m.Tracks[0])
		if trackName != "" {
			result["name"] = trackName
		}
	}

	return result
}

// RawSong reads the tempo map, time signatures and section markers of every
// track and cuts the file into measures.
func (m *MidiFile) RawSong() (*RawSong, error) {
	ticksPerQuarter, ok := m.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported time format, expected MetricTicks", ErrUnsupportedFormat)
	}

	grid := &tickGrid{TicksPerQuarter: int(ticksPerQuarter)}

	for _, track := range m.Tracks {
		var currentTime uint32

		for _, event := range track {
			currentTime += event.Delta
			if currentTime > grid.EndTick {
				grid.EndTick = currentTime
			}

			msg := event.Message
			var bpm float64
			var num, denom, clocksPerClick, dsqpq uint8
			var text string

			switch {
			case msg.GetMetaTempo(&bpm):
				grid.Tempos = append(grid.Tempos, TempoEvent{Tick: currentTime, BPM: bpm})
			case msg.GetMetaTimeSig(&num, &denom, &clocksPerClick, &dsqpq):
				grid.TimeSigs = append(grid.TimeSigs, TimeSigEvent{
					Tick:        currentTime,
					Numerator:   int(num),
					Denominator: int(denom),
				})
			case msg.GetMetaMarker(&text):
				if name := strings.TrimSpace(text); name != "" {
					grid.Sections = append(grid.Sections, TextEvent{Tick: currentTime, Text: name})
				}
			case msg.GetMetaText(&text):
				if name, ok := chartSectionName(text); ok {
					grid.Sections = append(grid.Sections, TextEvent{Tick: currentTime, Text: name})
				}
			}
		}
	}

	song := grid.rawSong()
	song.Title = m.Metadata()["name"]
	return song, nil
}

func getTrackName(track smf.Track) string {
	for _, event := range track {
		msg := event.Message

		var trackName string
		if msg.GetMetaTrackName(&trackName) {
			return trackName
		}
	}
	return ""
}
