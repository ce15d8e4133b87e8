package main

import (
	"math"
	"sort"
)

// maxGridMeasures caps how many measures a tick-based file may describe.
const maxGridMeasures = 100000

// TempoEvent is a tempo change at an absolute tick.
type TempoEvent struct {
	Tick uint32
	BPM  float64
}

// TimeSigEvent is a time signature change at an absolute tick. Denominator is
// the actual note value.
type TimeSigEvent struct {
	Tick        uint32
	Numerator   int
	Denominator int
}

// TextEvent is a section marker at an absolute tick.
type TextEvent struct {
	Tick uint32
	Text string
}

// tickGrid describes a tick-based song (chart or MIDI) well enough to cut it
// into measures.
type tickGrid struct {
	TicksPerQuarter int
	Tempos          []TempoEvent
	TimeSigs        []TimeSigEvent
	Sections        []TextEvent
	EndTick         uint32 // exclusive
}

// findBPMAtTime finds the BPM that applies at a given tick
func findBPMAtTime(tick uint32, tempoMap []TempoEvent) float64 {
	bpm := float64(DefaultTempoBPM)

	for _, tempo := range tempoMap {
		if tempo.Tick <= tick {
			bpm = tempo.BPM
		} else {
			break
		}
	}

	return bpm
}

func roundBPM(bpm float64) int {
	return int(math.Round(bpm))
}

// rawSong cuts the grid into measures following the time signature map. Every
// header carries the tempo at its measure start; the first tempo change
// strictly inside a measure is passed on as a beat-level change. Sections are
// placed on the first beat of the measure they fall in.
func (g *tickGrid) rawSong() *RawSong {
	sort.SliceStable(g.Tempos, func(i, j int) bool { return g.Tempos[i].Tick < g.Tempos[j].Tick })
	sort.SliceStable(g.TimeSigs, func(i, j int) bool { return g.TimeSigs[i].Tick < g.TimeSigs[j].Tick })
	sort.SliceStable(g.Sections, func(i, j int) bool { return g.Sections[i].Tick < g.Sections[j].Tick })

	song := &RawSong{Tempo: roundBPM(findBPMAtTime(0, g.Tempos))}
	track := RawTrack{Name: "sections"}

	tpq := uint64(g.TicksPerQuarter)
	if tpq == 0 {
		return song
	}

	sig := commonTime
	sigIndex := 0
	start := uint64(0)

	for (start < uint64(g.EndTick) || len(song.Headers) == 0) && len(song.Headers) < maxGridMeasures {
		header := RawMeasureHeader{}

		sigChanged := false
		for sigIndex < len(g.TimeSigs) && uint64(g.TimeSigs[sigIndex].Tick) <= start {
			ts := g.TimeSigs[sigIndex]
			sig = TimeSignature{Numerator: ts.Numerator, Denominator: ts.Denominator}
			sigChanged = true
			sigIndex++
		}
		if sigChanged || len(song.Headers) == 0 {
			s := sig
			header.TimeSignature = &s
		}

		// restated on every measure; in-measure changes must not carry over
		tempo := roundBPM(findBPMAtTime(uint32(start), g.Tempos))
		header.Tempo = &tempo

		length := measureTicks(sig, tpq)
		end := start + length

		var beats []RawBeat
		for _, section := range g.Sections {
			if uint64(section.Tick) >= start && uint64(section.Tick) < end {
				beats = append(beats, RawBeat{Text: section.Text})
				break
			}
		}
		for _, change := range g.Tempos {
			if uint64(change.Tick) > start && uint64(change.Tick) < end {
				t := roundBPM(change.BPM)
				beats = append(beats, RawBeat{TempoChange: &t})
				break
			}
		}

		song.Headers = append(song.Headers, header)
		track.Measures = append(track.Measures, beats)
		start = end
	}

	song.Tracks = []RawTrack{track}
	return song
}

// measureTicks is the length of one measure of sig in ticks; invalid
// signatures count as 4/4.
func measureTicks(sig TimeSignature, ticksPerQuarter uint64) uint64 {
	if !sig.valid() {
		sig = commonTime
	}
	length := ticksPerQuarter * 4 * uint64(sig.Numerator) / uint64(sig.Denominator)
	if length == 0 {
		length = ticksPerQuarter * 4
	}
	return length
}
