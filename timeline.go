package main

import (
	"fmt"
	"math"
	"strings"
)

// DefaultMaxDuration bounds the total length of a timeline, in seconds.
const DefaultMaxDuration = 6 * 60 * 60

// TimelineOptions are the per-export parameters of a timeline.
type TimelineOptions struct {
	BaseTempo       int     // tempo of the count-in and fallback for bad measure tempos
	CountIn         int     // number of 4/4 count-in measures before the song
	MeasureDuration float64 // seconds per measure; zero derives it from tempo and meter
	MaxDuration     float64 // zero means DefaultMaxDuration
}

func (o TimelineOptions) baseTempo() int {
	if o.BaseTempo < 1 {
		return DefaultTempoBPM
	}
	return o.BaseTempo
}

func (o TimelineOptions) measureOverride() (float64, bool) {
	d := o.MeasureDuration
	if d <= 0 || math.IsInf(d, 0) || math.IsNaN(d) {
		return 0, false
	}
	return d, true
}

func (o TimelineOptions) maxDuration() float64 {
	if o.MaxDuration <= 0 {
		return DefaultMaxDuration
	}
	return o.MaxDuration
}

// TimedMeasure is a played measure placed on the wall clock.
type TimedMeasure struct {
	PlayedMeasure `yaml:",inline"`
	TempoBPM      int       `json:"tempo_bpm" yaml:"tempo_bpm"`
	Section       string    `json:"section" yaml:"section"`
	Start         float64   `json:"start" yaml:"start"`
	Duration      float64   `json:"duration" yaml:"duration"`
	Beats         []float64 `json:"beats" yaml:"beats,flow"`
}

// End returns the time the measure ends, in seconds.
func (m *TimedMeasure) End() float64 {
	return m.Start + m.Duration
}

func (m *TimedMeasure) beatLength() float64 {
	return m.Duration / float64(len(m.Beats))
}

// Timeline is the fully resolved performance: an optional count-in followed
// by every played measure with its start time, duration and beat times.
type Timeline struct {
	source        []MeasureInfo
	entries       []TimedMeasure
	baseTempo     int
	countIn       int
	countInLength float64 // seconds per count-in measure
	total         float64
}

// BuildTimeline places played measures on the wall clock. measures is the
// original (unexpanded) list and is kept for section lookups.
func BuildTimeline(measures []MeasureInfo, played []PlayedMeasure, opts TimelineOptions) (*Timeline, error) {
	if len(played) == 0 {
		return nil, fmt.Errorf("%w: no measures to play", ErrEmptyTimeline)
	}

	base := opts.baseTempo()
	override, hasOverride := opts.measureOverride()

	countIn := opts.CountIn
	if countIn < 0 {
		countIn = 0
	}

	tl := &Timeline{
		source:    measures,
		entries:   make([]TimedMeasure, len(played)),
		baseTempo: base,
		countIn:   countIn,
	}

	tl.countInLength = secondsPerBeat(base) * DefaultNumerator
	if hasOverride {
		tl.countInLength = override
	}

	// sections only change at measures that name one, so resolve them once
	sections := make(map[int]string)
	maxDuration := opts.maxDuration()
	current := tl.countInLength * float64(countIn)

	for i, pm := range played {
		tempo := pm.Source.TempoBPM
		if tempo < 1 {
			tempo = base
		}
		numerator := pm.Source.TimeSignature.Numerator
		if numerator < 1 {
			numerator = DefaultNumerator
		}

		duration := secondsPerBeat(tempo) * float64(numerator)
		if hasOverride {
			duration = override
		}
		// 60/tempo without an override; with one, beats divide the fixed
		// measure evenly instead of following the tempo
		beatLen := duration / float64(numerator)

		beats := make([]float64, numerator)
		for k := range beats {
			beats[k] = current + float64(k)*beatLen
		}

		section, ok := sections[pm.Source.Number]
		if !ok {
			section = resolveSection(measures, pm.Source.Number)
			sections[pm.Source.Number] = section
		}

		tl.entries[i] = TimedMeasure{
			PlayedMeasure: pm,
			TempoBPM:      tempo,
			Section:       section,
			Start:         current,
			Duration:      duration,
			Beats:         beats,
		}

		current += duration
		if current > maxDuration {
			return nil, fmt.Errorf("%w: timeline longer than %.0f seconds at measure %d",
				ErrUnboundedExpansion, maxDuration, pm.Source.Number)
		}
	}

	tl.total = current
	return tl, nil
}

func secondsPerBeat(bpm int) float64 {
	if bpm < 1 {
		bpm = DefaultTempoBPM
	}
	return 60.0 / float64(bpm)
}

// TotalDuration returns the length of the timeline including the count-in.
func (t *Timeline) TotalDuration() float64 {
	return t.total
}

// CountInDuration returns the length of the count-in segment.
func (t *Timeline) CountInDuration() float64 {
	return t.countInLength * float64(t.countIn)
}

func (t *Timeline) CountInMeasures() int {
	return t.countIn
}

// Measures returns the played measures in order. The slice is shared; callers
// must not modify it.
func (t *Timeline) Measures() []TimedMeasure {
	return t.entries
}

// Source returns the original measure list the timeline was built from.
func (t *Timeline) Source() []MeasureInfo {
	return t.source
}

func (t *Timeline) BaseTempo() int {
	return t.baseTempo
}

// Click is one metronome beat.
type Click struct {
	Time     float64 `json:"time" yaml:"time"`
	Sequence int     `json:"sequence" yaml:"sequence"` // negative during the count-in
	Beat     int     `json:"beat" yaml:"beat"`
	Accent   bool    `json:"accent" yaml:"accent"`
}

// Clicks enumerates every beat of the timeline, count-in included, in time
// order. The first beat of every measure is accented.
func (t *Timeline) Clicks() []Click {
	clicks := make([]Click, 0, t.countIn*DefaultNumerator+len(t.entries)*DefaultNumerator)

	beatLen := t.countInLength / DefaultNumerator
	for m := 0; m < t.countIn; m++ {
		start := float64(m) * t.countInLength
		for k := 0; k < DefaultNumerator; k++ {
			clicks = append(clicks, Click{
				Time:     start + float64(k)*beatLen,
				Sequence: -(m + 1),
				Beat:     k + 1,
				Accent:   k == 0,
			})
		}
	}

	for _, entry := range t.entries {
		for k, beat := range entry.Beats {
			clicks = append(clicks, Click{
				Time:     beat,
				Sequence: entry.Sequence,
				Beat:     k + 1,
				Accent:   k == 0,
			})
		}
	}

	return clicks
}

// String returns a printable listing of the timeline
func (t *Timeline) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Timeline: %d played measures, %d count-in, %.3fs\n",
		len(t.entries), t.countIn, t.total))

	for i := 0; i < t.countIn; i++ {
		sb.WriteString(fmt.Sprintf("Count-in %d: 4/4, %d BPM, %.6f\n",
			i+1, t.baseTempo, float64(i)*t.countInLength))
	}

	for _, m := range t.entries {
		sb.WriteString(fmt.Sprintf("#%d Measure %d (pass %d) [%s]: %s, %d BPM, %.6f-%.6f\n",
			m.Sequence,
			m.Source.Number,
			m.Pass,
			m.Section,
			m.Source.TimeSignature,
			m.TempoBPM,
			m.Start,
			m.End(),
		))
		for k, beat := range m.Beats {
			sb.WriteString(fmt.Sprintf("  * Beat %d: %.6f\n", k+1, beat))
		}
	}

	return sb.String()
}
