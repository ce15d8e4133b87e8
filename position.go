package main

import (
	"math"
	"sort"
)

// Position describes what is playing at a given instant.
type Position struct {
	Sequence     int     `json:"sequence" yaml:"sequence"` // negative during the count-in
	SourceNumber int     `json:"source_number" yaml:"source_number"`
	Pass         int     `json:"pass" yaml:"pass"`
	Beat         int     `json:"beat" yaml:"beat"`
	BeatPhase    float64 `json:"beat_phase" yaml:"beat_phase"`
	SectionName  string  `json:"section_name" yaml:"section_name"`
	TempoBPM     int     `json:"tempo_bpm" yaml:"tempo_bpm"`
	Numerator    int     `json:"numerator" yaml:"numerator"`
	Denominator  int     `json:"denominator" yaml:"denominator"`
	CountIn      bool    `json:"count_in" yaml:"count_in"`
}

// Locate maps an elapsed time in seconds to a musical position. Times before
// zero or past the end are clamped, so Locate never fails.
func (t *Timeline) Locate(at float64) Position {
	if math.IsNaN(at) || at < 0 {
		at = 0
	}

	if at < t.CountInDuration() {
		return t.locateCountIn(at)
	}

	if at > t.total {
		at = t.total
	}

	// first measure that ends after at; the last one also takes at == total
	i := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].End() > at
	})
	if i == len(t.entries) {
		i = len(t.entries) - 1
	}
	m := &t.entries[i]

	beat, phase := beatAt(at-m.Start, m.beatLength(), len(m.Beats))
	if at >= m.End() {
		// the inclusive final bound wraps like any other whole measure:
		// floor(duration/beatLen) mod numerator + 1
		beat, phase = 1, 0
	}

	return Position{
		Sequence:     m.Sequence,
		SourceNumber: m.Source.Number,
		Pass:         m.Pass,
		Beat:         beat,
		BeatPhase:    phase,
		SectionName:  m.Section,
		TempoBPM:     m.TempoBPM,
		Numerator:    len(m.Beats),
		Denominator:  m.Source.TimeSignature.Denominator,
	}
}

func (t *Timeline) locateCountIn(at float64) Position {
	index := int(at / t.countInLength)
	if index >= t.countIn {
		index = t.countIn - 1
	}

	inMeasure := at - float64(index)*t.countInLength
	beat, phase := beatAt(inMeasure, t.countInLength/DefaultNumerator, DefaultNumerator)

	return Position{
		Sequence:    -(index + 1),
		Beat:        beat,
		BeatPhase:   phase,
		TempoBPM:    t.baseTempo,
		Numerator:   DefaultNumerator,
		Denominator: DefaultDenom,
		CountIn:     true,
	}
}

// beatAt returns the 1-based beat containing offset and how far into that beat
// offset is. Offsets that round up to the measure end stay on the last beat.
func beatAt(offset, beatLen float64, numerator int) (int, float64) {
	if beatLen <= 0 || numerator < 1 {
		return 1, 0
	}

	pos := offset / beatLen
	index := int(math.Floor(pos))
	if index < 0 {
		return 1, 0
	}
	if index >= numerator {
		return numerator, 1
	}

	return index + 1, pos - float64(index)
}
