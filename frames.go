package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"gopkg.in/yaml.v3"
)

// Frame colors, as hex RGB
const (
	colorWhite        = "#ffffff"
	colorMeasure      = "#00ff00"
	colorSection      = "#ffff00"
	colorCountIn      = "#ffa500"
	colorBeatActive   = "#00ff00"
	colorBeatIdle     = "#323232"
	colorAccentActive = "#ff0000"
	colorAccentIdle   = "#000032"
)

// Metronome layout, in pixels
const (
	pendulumLength   = 150
	pendulumOffsetY  = 250
	pendulumMaxAngle = 0.5 // radians
	indicatorSpacing = 80
	indicatorOffsetY = 150
	indicatorRadius  = 25
)

// Label is one line of text on a frame.
type Label struct {
	Text  string `json:"text" yaml:"text"`
	Color string `json:"color" yaml:"color"`
}

// Point is a pixel coordinate.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// BeatIndicator is one of the beat lights along the bottom of a frame.
type BeatIndicator struct {
	Beat   int    `json:"beat" yaml:"beat"`
	Active bool   `json:"active" yaml:"active"`
	Color  string `json:"color" yaml:"color"`
	Center Point  `json:"center" yaml:"center,flow"`
	Radius int    `json:"radius" yaml:"radius"`
}

// FrameState is everything that appears on one video frame.
type FrameState struct {
	Index         int             `json:"index" yaml:"index"`
	Time          float64         `json:"time" yaml:"time"`
	Position      Position        `json:"position" yaml:"position"`
	Measure       Label           `json:"measure" yaml:"measure,flow"`
	Section       Label           `json:"section" yaml:"section,flow"`
	Beat          Label           `json:"beat" yaml:"beat,flow"`
	Tempo         Label           `json:"tempo" yaml:"tempo,flow"`
	PendulumAngle float64         `json:"pendulum_angle" yaml:"pendulum_angle"`
	PendulumPivot Point           `json:"pendulum_pivot" yaml:"pendulum_pivot,flow"`
	PendulumTip   Point           `json:"pendulum_tip" yaml:"pendulum_tip,flow"`
	Indicators    []BeatIndicator `json:"indicators" yaml:"indicators"`
}

// FramePlan describes a whole practice video, frame by frame.
type FramePlan struct {
	Title         string       `json:"title" yaml:"title"`
	FPS           int          `json:"fps" yaml:"fps"`
	Width         int          `json:"width" yaml:"width"`
	Height        int          `json:"height" yaml:"height"`
	Duration      float64      `json:"duration" yaml:"duration"`
	TotalMeasures int          `json:"total_measures" yaml:"total_measures"`
	FrameCount    int          `json:"frame_count" yaml:"frame_count"`
	Frames        []FrameState `json:"frames,omitempty" yaml:"frames,omitempty"`
}

// planHeader fills in everything but the frames.
func planHeader(tl *Timeline, title string, opts ExportOptions) FramePlan {
	fps := opts.fps()
	width, height := opts.resolution()

	count := int(tl.TotalDuration() * float64(fps))
	if count < 1 {
		count = 1
	}

	return FramePlan{
		Title:         title,
		FPS:           fps,
		Width:         width,
		Height:        height,
		Duration:      tl.TotalDuration(),
		TotalMeasures: len(tl.Measures()) + tl.CountInMeasures(),
		FrameCount:    count,
	}
}

// eachFrame queries the timeline once per frame of header and hands every
// frame to fn. It stops with the context's error if ctx is cancelled.
func eachFrame(ctx context.Context, tl *Timeline, header FramePlan, fn func(FrameState) error) error {
	for i := 0; i < header.FrameCount; i++ {
		if i%header.FPS == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("frame planning stopped at frame %d: %w", i, err)
			}
		}

		at := float64(i) / float64(header.FPS)
		if err := fn(frameAt(i, at, tl.Locate(at), header.Width, header.Height)); err != nil {
			return err
		}
	}
	return nil
}

// PlanFrames builds the whole frame plan in memory. Long timelines should go
// through WriteFrames instead.
func PlanFrames(ctx context.Context, tl *Timeline, title string, opts ExportOptions) (*FramePlan, error) {
	plan := planHeader(tl, title, opts)
	plan.Frames = make([]FrameState, 0, plan.FrameCount)

	err := eachFrame(ctx, tl, plan, func(frame FrameState) error {
		plan.Frames = append(plan.Frames, frame)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// WriteFrames encodes the frame plan of tl as "yaml" or "json", one frame at a
// time as it is computed.
func WriteFrames(ctx context.Context, w io.Writer, tl *Timeline, title string, opts ExportOptions, format string) (*FramePlan, error) {
	fw, err := newFrameWriter(w, format)
	if err != nil {
		return nil, err
	}

	header := planHeader(tl, title, opts)
	if err := fw.begin(header); err != nil {
		return nil, fmt.Errorf("failed to encode frame plan: %w", err)
	}
	if err := eachFrame(ctx, tl, header, fw.frame); err != nil {
		return nil, err
	}
	if err := fw.end(); err != nil {
		return nil, fmt.Errorf("failed to encode frame plan: %w", err)
	}
	return &header, nil
}

func frameAt(index int, at float64, pos Position, width, height int) FrameState {
	frame := FrameState{
		Index:    index,
		Time:     at,
		Position: pos,
		Beat:     Label{Text: fmt.Sprintf("Beat: %d/%d", pos.Beat, pos.Numerator), Color: colorWhite},
		Tempo:    Label{Text: fmt.Sprintf("Tempo: %d BPM", pos.TempoBPM), Color: colorWhite},
	}

	if pos.CountIn {
		frame.Measure = Label{Text: fmt.Sprintf("Count-in %d", -pos.Sequence), Color: colorCountIn}
		frame.Section = Label{Text: "Ready to start...", Color: colorCountIn}
	} else {
		frame.Measure = Label{Text: fmt.Sprintf("Measure %d", pos.SourceNumber), Color: colorMeasure}
		frame.Section = Label{Text: "Section: " + pos.SectionName, Color: colorSection}
	}

	angle := pendulumMaxAngle * math.Sin(2*math.Pi*pos.BeatPhase)
	pivot := Point{X: width / 2, Y: height/2 + pendulumOffsetY}
	frame.PendulumAngle = angle
	frame.PendulumPivot = pivot
	frame.PendulumTip = Point{
		X: pivot.X + int(pendulumLength*math.Sin(angle)),
		Y: pivot.Y - int(pendulumLength*math.Cos(angle)),
	}

	frame.Indicators = beatIndicators(pos.Beat, pos.Numerator, width, height)
	return frame
}

func beatIndicators(current, numerator, width, height int) []BeatIndicator {
	indicators := make([]BeatIndicator, numerator)
	startX := width/2 - numerator*indicatorSpacing/2

	for k := range indicators {
		beat := k + 1
		active := beat == current

		color := colorBeatIdle
		switch {
		case beat == 1 && active:
			color = colorAccentActive
		case beat == 1:
			color = colorAccentIdle
		case active:
			color = colorBeatActive
		}

		indicators[k] = BeatIndicator{
			Beat:   beat,
			Active: active,
			Color:  color,
			Center: Point{X: startX + k*indicatorSpacing, Y: height - indicatorOffsetY},
			Radius: indicatorRadius,
		}
	}
	return indicators
}

// WriteFramePlan serializes an in-memory plan as "yaml" or "json".
func WriteFramePlan(w io.Writer, plan *FramePlan, format string) error {
	fw, err := newFrameWriter(w, format)
	if err != nil {
		return err
	}

	header := *plan
	header.Frames = nil
	if err := fw.begin(header); err != nil {
		return fmt.Errorf("failed to encode frame plan: %w", err)
	}
	for _, frame := range plan.Frames {
		if err := fw.frame(frame); err != nil {
			return fmt.Errorf("failed to encode frame %d: %w", frame.Index, err)
		}
	}
	if err := fw.end(); err != nil {
		return fmt.Errorf("failed to encode frame plan: %w", err)
	}
	return nil
}

// frameWriter encodes a plan header followed by its frames, so a plan never
// has to be held in memory to be written.
type frameWriter interface {
	begin(header FramePlan) error
	frame(frame FrameState) error
	end() error
}

func newFrameWriter(w io.Writer, format string) (frameWriter, error) {
	switch format {
	case "", "yaml", "yml":
		return &yamlFrameWriter{w: w}, nil
	case "json":
		return &jsonFrameWriter{w: w}, nil
	default:
		return nil, fmt.Errorf("%w: frame format %q", ErrUnsupportedFormat, format)
	}
}

// yamlFrameWriter writes the header mapping, then the frames as a block
// sequence under "frames".
type yamlFrameWriter struct {
	w   io.Writer
	buf bytes.Buffer
}

func (y *yamlFrameWriter) encode(v any) error {
	y.buf.Reset()
	enc := yaml.NewEncoder(&y.buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := y.w.Write(y.buf.Bytes())
	return err
}

func (y *yamlFrameWriter) begin(header FramePlan) error {
	if err := y.encode(header); err != nil {
		return err
	}
	_, err := io.WriteString(y.w, "frames:\n")
	return err
}

func (y *yamlFrameWriter) frame(frame FrameState) error {
	return y.encode([]FrameState{frame})
}

func (y *yamlFrameWriter) end() error {
	return nil
}

// jsonFrameWriter writes an indented JSON object whose last field is the
// frames array.
type jsonFrameWriter struct {
	w      io.Writer
	frames int
}

func (j *jsonFrameWriter) begin(header FramePlan) error {
	data, err := json.MarshalIndent(header, "", "  ")
	if err != nil {
		return err
	}
	// reopen the object to append the frames array
	data = bytes.TrimSuffix(data, []byte("\n}"))
	if _, err := j.w.Write(data); err != nil {
		return err
	}
	_, err = io.WriteString(j.w, ",\n  \"frames\": [")
	return err
}

func (j *jsonFrameWriter) frame(frame FrameState) error {
	data, err := json.MarshalIndent(frame, "    ", "  ")
	if err != nil {
		return err
	}
	sep := ",\n    "
	if j.frames == 0 {
		sep = "\n    "
	}
	j.frames++
	if _, err := io.WriteString(j.w, sep); err != nil {
		return err
	}
	_, err = j.w.Write(data)
	return err
}

func (j *jsonFrameWriter) end() error {
	closing := "\n  ]\n}\n"
	if j.frames == 0 {
		closing = "]\n}\n"
	}
	_, err := io.WriteString(j.w, closing)
	return err
}
