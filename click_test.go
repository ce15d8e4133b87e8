package main

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/faiface/beep/wav"
)

func peak(samples []float64) float64 {
	p := 0.0
	for _, v := range samples {
		p = math.Max(p, math.Abs(v))
	}
	return p
}

func TestRenderClicks(t *testing.T) {
	tl := buildTimeline(t, measuresFrom(MeasureInfo{}), TimelineOptions{BaseTempo: 120})

	samples, err := RenderClicks(context.Background(), tl, ClickSampleRate)
	if err != nil {
		t.Fatalf("Failed to render clicks: %v", err)
	}

	if len(samples) != 2*ClickSampleRate {
		t.Fatalf("Expected %d samples, got %d", 2*ClickSampleRate, len(samples))
	}

	clickLen := int(clickSeconds * ClickSampleRate)
	beatLen := ClickSampleRate / 2

	accent := peak(samples[:clickLen])
	if accent == 0 || accent > accentGain {
		t.Errorf("Expected accent peak in (0, %v], got %v", accentGain, accent)
	}

	for beat := 1; beat < 4; beat++ {
		start := beat * beatLen
		p := peak(samples[start : start+clickLen])
		if p == 0 || p > beatGain {
			t.Errorf("Beat %d: expected peak in (0, %v], got %v", beat+1, beatGain, p)
		}
		if p >= accent {
			t.Errorf("Beat %d: expected a quieter click than the accent, got %v >= %v", beat+1, p, accent)
		}
	}

	// silence between clicks
	if p := peak(samples[clickLen:beatLen]); p != 0 {
		t.Errorf("Expected silence between clicks, got peak %v", p)
	}
}

func TestRenderClicksTruncatesAtEnd(t *testing.T) {
	// a 4/4 measure at 1200 BPM is 0.2s long, so the last click runs past the end
	measures := measuresFrom(MeasureInfo{})
	measures[0].TempoBPM = 1200

	tl := buildTimeline(t, measures, TimelineOptions{BaseTempo: 1200})

	samples, err := RenderClicks(context.Background(), tl, 1000)
	if err != nil {
		t.Fatalf("Failed to render clicks: %v", err)
	}
	if len(samples) < 200 || len(samples) > 201 {
		t.Errorf("Expected 200 samples, got %d", len(samples))
	}
	if peak(samples[150:]) == 0 {
		t.Errorf("Expected the last click to sound before the end")
	}
}

func TestRenderClicksCancelled(t *testing.T) {
	tl := buildTimeline(t, measuresFrom(MeasureInfo{}), TimelineOptions{BaseTempo: 120})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RenderClicks(ctx, tl, ClickSampleRate)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestWriteClickWav(t *testing.T) {
	tl := buildTimeline(t, measuresFrom(MeasureInfo{}, MeasureInfo{}), TimelineOptions{BaseTempo: 120, CountIn: 1})

	path := filepath.Join(t.TempDir(), "click.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	if err := WriteClickWav(context.Background(), f, tl); err != nil {
		f.Close()
		t.Fatalf("Failed to write WAV: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Failed to close file: %v", err)
	}

	r, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open WAV: %v", err)
	}
	defer r.Close()

	streamer, format, err := wav.Decode(r)
	if err != nil {
		t.Fatalf("Failed to decode WAV: %v", err)
	}
	defer streamer.Close()

	if int(format.SampleRate) != ClickSampleRate {
		t.Errorf("Expected sample rate %d, got %d", ClickSampleRate, format.SampleRate)
	}
	if format.NumChannels != 2 {
		t.Errorf("Expected 2 channels, got %d", format.NumChannels)
	}

	expected := int(math.Ceil(tl.TotalDuration() * ClickSampleRate))
	if streamer.Len() != expected {
		t.Errorf("Expected %d samples, got %d", expected, streamer.Len())
	}
}

func TestClickStreamerMatchesRender(t *testing.T) {
	measures := measuresFrom(MeasureInfo{}, MeasureInfo{}, MeasureInfo{})
	measures[1].TempoBPM = 97
	measures[2].TimeSignature = TimeSignature{7, 8}

	tl := buildTimeline(t, measures, TimelineOptions{BaseTempo: 120, CountIn: 1})

	expected, err := RenderClicks(context.Background(), tl, ClickSampleRate)
	if err != nil {
		t.Fatalf("Failed to render clicks: %v", err)
	}

	// an odd window size makes clicks straddle window boundaries
	streamer := newClickStreamer(context.Background(), tl, ClickSampleRate)
	window := make([][2]float64, 1000)
	var got []float64
	for {
		n, ok := streamer.Stream(window)
		if !ok {
			break
		}
		for _, s := range window[:n] {
			if s[0] != s[1] {
				t.Fatalf("Expected identical channels, got %v", s)
			}
			got = append(got, s[0])
		}
	}

	if len(got) != len(expected) {
		t.Fatalf("Expected %d samples, got %d", len(expected), len(got))
	}
	for i := range got {
		if math.Abs(got[i]-expected[i]) > 1e-12 {
			t.Fatalf("Sample %d: expected %v, got %v", i, expected[i], got[i])
		}
	}
}

func TestClickStreamerLongTimeline(t *testing.T) {
	// an hour of 4/4 at 120 BPM is streamed through one small window
	ms := make([]MeasureInfo, 1800)
	tl := buildTimeline(t, measuresFrom(ms...), TimelineOptions{BaseTempo: 120})

	streamer := newClickStreamer(context.Background(), tl, ClickSampleRate)
	if streamer.Len() != 3600*ClickSampleRate {
		t.Fatalf("Expected %d samples, got %d", 3600*ClickSampleRate, streamer.Len())
	}

	window := make([][2]float64, 4096)
	total := 0
	for {
		n, ok := streamer.Stream(window)
		if !ok {
			break
		}
		total += n
	}

	if total != streamer.Len() {
		t.Errorf("Expected %d streamed samples, got %d", streamer.Len(), total)
	}
	if cap(streamer.window) != len(window) {
		t.Errorf("Expected the mix buffer to stay at %d samples, got %d", len(window), cap(streamer.window))
	}
	if streamer.next != len(streamer.clicks) {
		t.Errorf("Expected all %d clicks to be consumed, got %d", len(streamer.clicks), streamer.next)
	}
	if err := streamer.Err(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestWriteClickWavCancelled(t *testing.T) {
	tl := buildTimeline(t, measuresFrom(MeasureInfo{}), TimelineOptions{BaseTempo: 120})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f, err := os.Create(filepath.Join(t.TempDir(), "click.wav"))
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	defer f.Close()

	if err := WriteClickWav(ctx, f, tl); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
