package main

import (
	"fmt"
	"io"
	"math"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	clickTicksPerQuarter = 480
	clickChannel         = 9 // GM percussion
	clickAccentVelocity  = 110
	clickBeatVelocity    = 80
)

// MidiEvent represents a MIDI event with absolute timing
type MidiEvent struct {
	Time    uint32
	Message smf.Message
}

// ClickMidiExporter writes a timeline as a General MIDI click track: a
// conductor track with tempo, meter and section markers, and a percussion
// track with one hit per beat.
type ClickMidiExporter struct {
	smf        *smf.SMF
	voice      ClickVoice
	conductor  []MidiEvent
	clicks     []MidiEvent
	lastTempo  float64
	lastMeter  TimeSignature
	lastMarker string
}

func NewClickMidiExporter(voice ClickVoice) *ClickMidiExporter {
	e := &ClickMidiExporter{smf: smf.NewSMF1(), voice: voice}
	e.smf.TimeFormat = smf.MetricTicks(clickTicksPerQuarter)
	return e
}

// AddTimeline lays out the count-in and every played measure. Tempos are
// chosen so each measure lasts exactly as long in the MIDI file as it does on
// the timeline, whatever its meter.
func (e *ClickMidiExporter) AddTimeline(tl *Timeline) error {
	if tl == nil || len(tl.Measures()) == 0 {
		return fmt.Errorf("%w: nothing to export", ErrEmptyTimeline)
	}

	var tick uint32

	if tl.CountInMeasures() > 0 {
		e.addMarker(tick, "Count-in")
	}
	for i := 0; i < tl.CountInMeasures(); i++ {
		tick = e.addMeasure(tick, commonTime, tl.countInLength, "")
	}

	for _, m := range tl.Measures() {
		sig := m.Source.TimeSignature
		sig.Numerator = len(m.Beats)
		tick = e.addMeasure(tick, sig, m.Duration, m.Section)
	}

	return nil
}

func (e *ClickMidiExporter) addMeasure(tick uint32, sig TimeSignature, seconds float64, section string) uint32 {
	length := uint32(measureTicks(sig, clickTicksPerQuarter))
	quarters := float64(length) / clickTicksPerQuarter

	bpm := quarters * 60.0 / seconds
	if math.Abs(bpm-e.lastTempo) > 1e-9 {
		e.conductor = append(e.conductor, MidiEvent{Time: tick, Message: smf.MetaTempo(bpm)})
		e.lastTempo = bpm
	}
	if sig != e.lastMeter {
		e.conductor = append(e.conductor, MidiEvent{
			Time:    tick,
			Message: smf.MetaTimeSig(clampUint8(sig.Numerator), clampUint8(sig.Denominator), 24, 8),
		})
		e.lastMeter = sig
	}
	if section != "" {
		e.addMarker(tick, section)
	}

	beatTicks := length / uint32(sig.Numerator)
	noteLength := beatTicks / 2
	for k := 0; k < sig.Numerator; k++ {
		at := tick + uint32(k)*beatTicks
		key, velocity := e.voice.Beat, uint8(clickBeatVelocity)
		if k == 0 {
			key, velocity = e.voice.Accent, clickAccentVelocity
		}
		e.clicks = append(e.clicks,
			MidiEvent{Time: at, Message: smf.Message(midi.NoteOn(clickChannel, key, velocity))},
			MidiEvent{Time: at + noteLength, Message: smf.Message(midi.NoteOff(clickChannel, key))},
		)
	}

	return tick + length
}

func (e *ClickMidiExporter) addMarker(tick uint32, text string) {
	if text == e.lastMarker {
		return
	}
	e.conductor = append(e.conductor, MidiEvent{Time: tick, Message: smf.MetaMarker(text)})
	e.lastMarker = text
}

// WriteTo finalizes the MIDI file and writes it to the provided writer
func (e *ClickMidiExporter) WriteTo(writer io.Writer) error {
	if len(e.clicks) == 0 {
		return fmt.Errorf("no clicks to export")
	}

	e.smf.Add(createMidiTrack("Tempo", e.conductor))
	e.smf.Add(createMidiTrack("Click", e.clicks))

	if _, err := e.smf.WriteTo(writer); err != nil {
		return fmt.Errorf("error writing MIDI file: %w", err)
	}

	return nil
}

// createMidiTrack builds a complete MIDI track from absolute-time events
func createMidiTrack(name string, events []MidiEvent) smf.Track {
	track := smf.Track{}
	track = append(track, smf.Event{Delta: 0, Message: smf.MetaTrackSequenceName(name)})

	sorted := make([]MidiEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Time == sorted[j].Time {
			// note-offs before note-ons on the same tick
			var ch, key, vel uint8
			return sorted[i].Message.GetNoteOff(&ch, &key, &vel) && !sorted[j].Message.GetNoteOff(&ch, &key, &vel)
		}
		return sorted[i].Time < sorted[j].Time
	})

	var lastTime uint32
	for _, event := range sorted {
		track = append(track, smf.Event{Delta: event.Time - lastTime, Message: event.Message})
		lastTime = event.Time
	}

	track = append(track, smf.Event{Delta: 0, Message: smf.EOT})
	return track
}

func clampUint8(v int) uint8 {
	if v < 1 {
		return 1
	}
	if v > math.MaxUint8 {
		return math.MaxUint8
	}
	return uint8(v)
}

// WriteClickMidi writes the click track of tl to w, played with voice.
func WriteClickMidi(w io.Writer, tl *Timeline, voice ClickVoice) error {
	exporter := NewClickMidiExporter(voice)
	if err := exporter.AddTimeline(tl); err != nil {
		return err
	}
	return exporter.WriteTo(w)
}
