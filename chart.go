package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ChartFile is a .chart song: metadata, the sync track (tempo and time
// signature map) and global events. Note tracks are only scanned for their
// extent, which decides how many measures the song has.
type ChartFile struct {
	Song      SongSection      `json:"song"`
	SyncTrack SyncTrackSection `json:"syncTrack"`
	Events    EventsSection    `json:"events"`
	LastTick  uint32           `json:"lastTick"`
	Filename  string           `json:"filename"`
}

type SongSection struct {
	Name       string `json:"name,omitempty"`
	Artist     string `json:"artist,omitempty"`
	Charter    string `json:"charter,omitempty"`
	Album      string `json:"album,omitempty"`
	Year       string `json:"year,omitempty"`
	Genre      string `json:"genre,omitempty"`
	Offset     int    `json:"offset"`
	Resolution int    `json:"resolution"`
}

type SyncTrackSection struct {
	BPMEvents     []BPMEvent     `json:"bpmEvents"`
	TimeSigEvents []ChartTimeSig `json:"timeSigEvents"`
}

type BPMEvent struct {
	Tick uint32 `json:"tick"`
	BPM  uint32 `json:"bpm"` // BPM * 1000
}

type ChartTimeSig struct {
	Tick        uint32 `json:"tick"`
	Numerator   uint8  `json:"numerator"`
	Denominator uint8  `json:"denominator"` // stored as log2 of actual denominator
}

type EventsSection struct {
	GlobalEvents []GlobalEvent `json:"globalEvents"`
}

type GlobalEvent struct {
	Tick uint32 `json:"tick"`
	Text string `json:"text"`
}

func ParseChartFile(reader io.Reader) (*ChartFile, error) {
	chart := &ChartFile{}

	scanner := bufio.NewScanner(reader)
	var currentSection string
	var inSection bool
	var sections int

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, "\ufeff")

		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection = line[1 : len(line)-1]
			if strings.TrimSpace(currentSection) == "" {
				return nil, fmt.Errorf("empty section name at line: %s", line)
			}
			sections++
			inSection = false
			continue
		}

		if line == "{" {
			inSection = true
			continue
		}

		if line == "}" {
			inSection = false
			currentSection = ""
			continue
		}

		if !inSection || currentSection == "" {
			continue
		}

		if err := parseSectionLine(chart, currentSection, line); err != nil {
			return nil, fmt.Errorf("error parsing line '%s' in section '%s': %w", line, currentSection, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading chart file: %w", err)
	}

	if sections == 0 {
		return nil, fmt.Errorf("%w: no chart sections found", ErrMalformedMeasure)
	}

	return chart, nil
}

func parseSectionLine(chart *ChartFile, section, line string) error {
	switch section {
	case "Song":
		parseSongLine(chart, line)
		return nil
	case "SyncTrack":
		return parseSyncTrackLine(chart, line)
	case "Events":
		return parseEventsLine(chart, line)
	default:
		return parseTrackLine(chart, line)
	}
}

func parseSongLine(chart *ChartFile, line string) {
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return
	}

	key := strings.TrimSpace(parts[0])
	value := unquote(strings.TrimSpace(parts[1]))

	switch key {
	case "Name":
		chart.Song.Name = value
	case "Artist":
		chart.Song.Artist = value
	case "Charter":
		chart.Song.Charter = value
	case "Album":
		chart.Song.Album = value
	case "Year":
		chart.Song.Year = strings.TrimSpace(strings.TrimPrefix(value, ","))
	case "Genre":
		chart.Song.Genre = value
	case "Offset":
		if val, err := strconv.Atoi(value); err == nil {
			chart.Song.Offset = val
		}
	case "Resolution":
		if val, err := strconv.Atoi(value); err == nil {
			chart.Song.Resolution = val
		}
	}
}

// splitTickLine splits "<tick> = <fields...>".
func splitTickLine(line string) (uint32, []string, error) {
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return 0, nil, nil
	}

	tickStr := strings.TrimSpace(parts[0])
	tick, err := strconv.ParseUint(tickStr, 10, 32)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid tick value '%s': %w", tickStr, err)
	}

	return uint32(tick), strings.Fields(strings.TrimSpace(parts[1])), nil
}

func parseSyncTrackLine(chart *ChartFile, line string) error {
	tick, fields, err := splitTickLine(line)
	if err != nil || len(fields) < 2 {
		return err
	}
	chart.extend(tick)

	switch fields[0] {
	case "B":
		if bpm, err := strconv.ParseUint(fields[1], 10, 32); err == nil {
			chart.SyncTrack.BPMEvents = append(chart.SyncTrack.BPMEvents, BPMEvent{
				Tick: tick,
				BPM:  uint32(bpm),
			})
		}
	case "TS":
		if num, err := strconv.ParseUint(fields[1], 10, 8); err == nil {
			timeSig := ChartTimeSig{
				Tick:        tick,
				Numerator:   uint8(num),
				Denominator: 2, // Default is x/4, stored as log2(4) = 2
			}
			if len(fields) >= 3 {
				if denom, err := strconv.ParseUint(fields[2], 10, 8); err == nil {
					timeSig.Denominator = uint8(denom)
				}
			}
			chart.SyncTrack.TimeSigEvents = append(chart.SyncTrack.TimeSigEvents, timeSig)
		}
	}

	return nil
}

func parseEventsLine(chart *ChartFile, line string) error {
	tick, fields, err := splitTickLine(line)
	if err != nil || len(fields) < 2 || fields[0] != "E" {
		return err
	}
	chart.extend(tick)

	chart.Events.GlobalEvents = append(chart.Events.GlobalEvents, GlobalEvent{
		Tick: tick,
		Text: unquote(strings.Join(fields[1:], " ")),
	})

	return nil
}

// parseTrackLine only tracks how far the notes of an instrument track reach.
func parseTrackLine(chart *ChartFile, line string) error {
	tick, fields, err := splitTickLine(line)
	if err != nil || len(fields) < 2 {
		return err
	}

	end := tick
	if fields[0] == "N" && len(fields) >= 3 {
		if sustain, err := strconv.ParseUint(fields[2], 10, 32); err == nil {
			end += uint32(sustain)
		}
	}
	chart.extend(end)

	return nil
}

func (c *ChartFile) extend(tick uint32) {
	if tick > c.LastTick {
		c.LastTick = tick
	}
}

func unquote(value string) string {
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		return value[1 : len(value)-1]
	}
	return value
}

// chartSectionName extracts the name of a "section Verse 1" style event.
func chartSectionName(text string) (string, bool) {
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(strings.TrimPrefix(text, "["), "]")

	if name, ok := strings.CutPrefix(text, "section "); ok {
		return strings.TrimSpace(name), true
	}
	if name, ok := strings.CutPrefix(text, "prc_"); ok {
		return strings.ReplaceAll(name, "_", " "), true
	}
	return "", false
}

// RawSong cuts the chart into measures along its sync track.
func (c *ChartFile) RawSong() (*RawSong, error) {
	if c.Song.Resolution <= 0 {
		return nil, fmt.Errorf("%w: chart resolution %d", ErrMalformedMeasure, c.Song.Resolution)
	}

	grid := &tickGrid{
		TicksPerQuarter: c.Song.Resolution,
		EndTick:         c.LastTick + 1,
	}

	for _, event := range c.SyncTrack.BPMEvents {
		grid.Tempos = append(grid.Tempos, TempoEvent{Tick: event.Tick, BPM: float64(event.BPM) / 1000.0})
	}
	for _, event := range c.SyncTrack.TimeSigEvents {
		denominator := 4
		if event.Denominator < 8 {
			denominator = 1 << event.Denominator
		}
		grid.TimeSigs = append(grid.TimeSigs, TimeSigEvent{
			Tick:        event.Tick,
			Numerator:   int(event.Numerator),
			Denominator: denominator,
		})
	}
	for _, event := range c.Events.GlobalEvents {
		if event.Text == "end" {
			grid.EndTick = event.Tick
			continue
		}
		if name, ok := chartSectionName(event.Text); ok {
			grid.Sections = append(grid.Sections, TextEvent{Tick: event.Tick, Text: name})
		}
	}

	song := grid.rawSong()
	song.Title = c.Song.Name
	song.Artist = c.Song.Artist
	return song, nil
}

func (c *ChartFile) Metadata() map[string]string {
	result := make(map[string]string)
	for key, value := range map[string]string{
		"name":    c.Song.Name,
		"artist":  c.Song.Artist,
		"album":   c.Song.Album,
		"charter": c.Song.Charter,
		"year":    c.Song.Year,
		"genre":   c.Song.Genre,
	} {
		if value != "" {
			result[key] = value
		}
	}
	return result
}

func (c *ChartFile) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Chart File: %s\n", c.Filename))
	if c.Song.Name != "" {
		sb.WriteString(fmt.Sprintf("Title: %s\n", c.Song.Name))
	}
	if c.Song.Artist != "" {
		sb.WriteString(fmt.Sprintf("Artist: %s\n", c.Song.Artist))
	}
	sb.WriteString(fmt.Sprintf("Resolution: %d\n", c.Song.Resolution))
	sb.WriteString(fmt.Sprintf("BPM Events: %d\n", len(c.SyncTrack.BPMEvents)))
	sb.WriteString(fmt.Sprintf("Global Events: %d\n", len(c.Events.GlobalEvents)))

	return sb.String()
}
