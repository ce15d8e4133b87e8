package main

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

// Metronome click sound
const (
	ClickSampleRate = 44100
	clickSeconds    = 0.1
	clickDecay      = 10.0
	accentFrequency = 1000.0
	accentGain      = 0.5
	beatFrequency   = 800.0
	beatGain        = 0.3
)

// clickSample is one decaying sine click, rendered once and mixed at every beat.
func clickSample(sampleRate int, frequency, gain float64) []float64 {
	n := int(clickSeconds * float64(sampleRate))
	samples := make([]float64, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		samples[i] = math.Sin(2*math.Pi*frequency*t) * gain * math.Exp(-t*clickDecay)
	}
	return samples
}

// clickStreamer mixes the click track of a timeline on demand, one sample
// window per Stream call, so memory stays bounded by the click list rather
// than the track length.
type clickStreamer struct {
	ctx    context.Context
	clicks []Click
	accent []float64
	beat   []float64
	rate   float64
	total  int
	pos    int
	next   int // first click that may still be sounding at pos
	window []float64
	err    error
}

// newClickStreamer prepares a mono click track for tl. Clicks running past the
// end of the timeline are cut off.
func newClickStreamer(ctx context.Context, tl *Timeline, sampleRate int) *clickStreamer {
	if sampleRate < 1 {
		sampleRate = ClickSampleRate
	}
	return &clickStreamer{
		ctx:    ctx,
		clicks: tl.Clicks(),
		accent: clickSample(sampleRate, accentFrequency, accentGain),
		beat:   clickSample(sampleRate, beatFrequency, beatGain),
		rate:   float64(sampleRate),
		total:  int(math.Ceil(tl.TotalDuration() * float64(sampleRate))),
	}
}

// Len is the track length in samples.
func (s *clickStreamer) Len() int {
	return s.total
}

func (s *clickStreamer) sound(c Click) []float64 {
	if c.Accent {
		return s.accent
	}
	return s.beat
}

// mix fills window with the samples starting at s.pos.
func (s *clickStreamer) mix(window []float64) {
	for i := range window {
		window[i] = 0
	}
	end := s.pos + len(window)

	// both click sounds have the same length, so clicks finish in order
	for s.next < len(s.clicks) {
		c := s.clicks[s.next]
		if int(c.Time*s.rate)+len(s.sound(c)) > s.pos {
			break
		}
		s.next++
	}

	for _, c := range s.clicks[s.next:] {
		start := int(c.Time * s.rate)
		if start >= end {
			break
		}
		for i, v := range s.sound(c) {
			at := start + i
			if at < s.pos {
				continue
			}
			if at >= end {
				break
			}
			window[at-s.pos] += v
		}
	}
	s.pos = end
}

func (s *clickStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	if s.err != nil || s.pos >= s.total {
		return 0, false
	}
	if err := s.ctx.Err(); err != nil {
		s.err = fmt.Errorf("click rendering cancelled: %w", err)
		return 0, false
	}

	n = len(samples)
	if remaining := s.total - s.pos; n > remaining {
		n = remaining
	}
	if cap(s.window) < n {
		s.window = make([]float64, n)
	}
	window := s.window[:n]
	s.mix(window)
	for i, v := range window {
		samples[i][0] = v
		samples[i][1] = v
	}
	return n, true
}

func (s *clickStreamer) Err() error {
	return s.err
}

// RenderClicks drains the click track of tl into a mono buffer, accenting the
// first beat of each measure. Meant for short timelines; WriteClickWav
// streams instead.
func RenderClicks(ctx context.Context, tl *Timeline, sampleRate int) ([]float64, error) {
	streamer := newClickStreamer(ctx, tl, sampleRate)

	buffer := make([]float64, streamer.Len())
	for offset := 0; offset < len(buffer); {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("click rendering cancelled: %w", err)
		}
		n := min(512, len(buffer)-offset)
		streamer.mix(buffer[offset : offset+n])
		offset += n
	}

	return buffer, nil
}

// WriteClickWav encodes the click track of tl as a 16-bit stereo WAV file,
// mixing it as the encoder reads.
func WriteClickWav(ctx context.Context, w io.WriteSeeker, tl *Timeline) error {
	streamer := newClickStreamer(ctx, tl, ClickSampleRate)

	format := beep.Format{
		SampleRate:  beep.SampleRate(ClickSampleRate),
		NumChannels: 2,
		Precision:   2,
	}

	if err := wav.Encode(w, streamer, format); err != nil {
		return fmt.Errorf("failed to encode WAV: %w", err)
	}
	if err := streamer.Err(); err != nil {
		return err
	}
	return nil
}
