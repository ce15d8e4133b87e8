package main

import (
	"fmt"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

const (
	DefaultTempoBPM  = 120
	DefaultNumerator = 4
	DefaultDenom     = 4
)

// TimeSignature is a meter such as 4/4 or 7/8. The denominator is the actual
// note value, not its log2.
type TimeSignature struct {
	Numerator   int `json:"numerator" yaml:"numerator"`
	Denominator int `json:"denominator" yaml:"denominator"`
}

func (ts TimeSignature) String() string {
	return fmt.Sprintf("%d/%d", ts.Numerator, ts.Denominator)
}

func (ts TimeSignature) valid() bool {
	return ts.Numerator > 0 && ts.Denominator > 0
}

var commonTime = TimeSignature{Numerator: DefaultNumerator, Denominator: DefaultDenom}

// MeasureInfo is one measure of the source tab in original order, with tempo
// and time signature already resolved.
type MeasureInfo struct {
	Number            int           `json:"number" yaml:"number"`
	SectionName       string        `json:"section_name" yaml:"section_name"`
	TempoBPM          int           `json:"tempo_bpm" yaml:"tempo_bpm"`
	TimeSignature     TimeSignature `json:"time_signature" yaml:"time_signature"`
	RepeatOpen        bool          `json:"repeat_open" yaml:"repeat_open"`
	RepeatClose       int           `json:"repeat_close" yaml:"repeat_close"`
	RepeatAlternative int           `json:"repeat_alternative" yaml:"repeat_alternative"`
	DoubleBar         bool          `json:"double_bar" yaml:"double_bar"`
}

// RawMeasureHeader is the measure header as delivered by a source adapter.
// Nil pointers mean the header does not set that value.
type RawMeasureHeader struct {
	Tempo             *int
	TimeSignature     *TimeSignature
	RepeatOpen        bool
	RepeatClose       int
	RepeatAlternative int
	DoubleBar         bool
}

// RawBeat carries the only beat-level data the timeline cares about: text
// annotations used as section names and mix-table tempo changes.
type RawBeat struct {
	Text        string
	Chord       string
	TempoChange *int
}

// RawTrack holds the beats of each measure of one track, indexed like
// RawSong.Headers.
type RawTrack struct {
	Name     string
	Measures [][]RawBeat
}

// RawSong is the typed boundary between tab parsers and the timeline engine.
type RawSong struct {
	Title   string
	Artist  string
	Tempo   int
	Headers []RawMeasureHeader
	Tracks  []RawTrack
}

// BaseTempo returns the song tempo, guarded against non-positive values.
func (s *RawSong) BaseTempo() int {
	if s == nil || s.Tempo < 1 {
		return DefaultTempoBPM
	}
	return s.Tempo
}

// ExtractMeasures derives one MeasureInfo per measure header. Tempo and time
// signature are forward-filled from the song defaults so every record is
// fully resolved. Unusable header values are repaired and logged, never
// returned as errors.
func ExtractMeasures(song *RawSong, logger *charmlog.Logger) []MeasureInfo {
	logger = loggerOrDiscard(logger)

	if song == nil || len(song.Headers) == 0 {
		return []MeasureInfo{}
	}

	baseTempo := song.BaseTempo()
	if song.Tempo < 1 {
		logger.Warn("song tempo out of range, using default", "tempo", song.Tempo, "default", DefaultTempoBPM)
	}

	var firstTrack *RawTrack
	if len(song.Tracks) > 0 {
		firstTrack = &song.Tracks[0]
	}

	currentTempo := baseTempo
	currentSig := commonTime
	measures := make([]MeasureInfo, len(song.Headers))

	for i, header := range song.Headers {
		number := i + 1

		if header.Tempo != nil {
			if *header.Tempo >= 1 {
				currentTempo = *header.Tempo
			} else {
				logger.Warn("measure tempo out of range, using song tempo",
					"measure", number, "tempo", *header.Tempo, "err", ErrMalformedMeasure)
				currentTempo = baseTempo
			}
		}

		if header.TimeSignature != nil {
			if header.TimeSignature.valid() {
				currentSig = *header.TimeSignature
			} else {
				logger.Warn("invalid time signature, using 4/4",
					"measure", number, "signature", header.TimeSignature.String(), "err", ErrMalformedMeasure)
				currentSig = commonTime
			}
		}

		var beats []RawBeat
		if firstTrack != nil && i < len(firstTrack.Measures) {
			beats = firstTrack.Measures[i]
		}

		// only the first mix-table tempo change of a measure is honored
		if tempo, ok := firstBeatTempo(beats); ok {
			currentTempo = tempo
		}

		repeatClose := header.RepeatClose
		if repeatClose < 0 {
			repeatClose = 0
		}
		repeatAlt := header.RepeatAlternative
		if repeatAlt < 0 {
			repeatAlt = 0
		}

		measures[i] = MeasureInfo{
			Number:            number,
			SectionName:       sectionText(beats),
			TempoBPM:          currentTempo,
			TimeSignature:     currentSig,
			RepeatOpen:        header.RepeatOpen,
			RepeatClose:       repeatClose,
			RepeatAlternative: repeatAlt,
			DoubleBar:         header.DoubleBar,
		}
	}

	return measures
}

// sectionText reads the annotation of the first beat of a measure.
func sectionText(beats []RawBeat) string {
	if len(beats) == 0 {
		return ""
	}
	if text := strings.TrimSpace(beats[0].Text); text != "" {
		return text
	}
	return strings.TrimSpace(beats[0].Chord)
}

func firstBeatTempo(beats []RawBeat) (int, bool) {
	for _, beat := range beats {
		if beat.TempoChange != nil && *beat.TempoChange >= 1 {
			return *beat.TempoChange, true
		}
	}
	return 0, false
}

// resolveSection finds the section active at an original measure number: the
// last measure at or before it that names a section, or "Main".
func resolveSection(measures []MeasureInfo, number int) string {
	section := ""
	for _, m := range measures {
		if m.Number <= number && m.SectionName != "" {
			section = m.SectionName
		}
	}
	if section == "" {
		return "Main"
	}
	return section
}
