package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestTab(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "Practice Piece.json")
	if err := os.WriteFile(path, []byte(validTabDocument), 0644); err != nil {
		t.Fatalf("Failed to write tab: %v", err)
	}
	return path
}

func TestRunJSON(t *testing.T) {
	path := writeTestTab(t)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-json", "-count-in", "1", "-log-level", "error", path}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, stderr.String())
	}

	var summary ExportSummary
	if err := json.Unmarshal(stdout.Bytes(), &summary); err != nil {
		t.Fatalf("Failed to parse output: %v\n%s", err, stdout.String())
	}

	if summary.Title != "Practice Piece" {
		t.Errorf("Expected title from the file name, got %q", summary.Title)
	}
	if summary.TotalMeasures != 8 {
		t.Errorf("Expected 8 total measures, got %d", summary.TotalMeasures)
	}
	if summary.Measures[0].Section != "Intro" || summary.Measures[6].Section != "Outro" {
		t.Errorf("Unexpected sections %q .. %q", summary.Measures[0].Section, summary.Measures[6].Section)
	}
}

func TestRunInfo(t *testing.T) {
	path := writeTestTab(t)

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{path}, &stdout, &stderr); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	out := stdout.String()
	for _, want := range []string{
		"Title: Practice Piece",
		"artist: The Band",
		"Base tempo: 90 BPM",
		"Measures: 6 in tab, 7 played, 0 count-in",
		"Intro @ 0.00s",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}

	if !strings.Contains(stderr.String(), "synthesized timeline") {
		t.Errorf("Expected synthesis to be logged, got:\n%s", stderr.String())
	}
}

func TestRunWritesOutputs(t *testing.T) {
	path := writeTestTab(t)
	dir := t.TempDir()

	frames := filepath.Join(dir, "frames.json")
	click := filepath.Join(dir, "click.wav")
	midi := filepath.Join(dir, "click.mid")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"-fps", "5",
		"-frames", frames,
		"-frame-format", "json",
		"-click", click,
		"-midi", midi,
		"-click-voice", "claves",
		path,
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, stderr.String())
	}

	if stdout.Len() != 0 {
		t.Errorf("Expected no info output when writing files, got:\n%s", stdout.String())
	}

	for _, p := range []string{frames, click, midi} {
		info, err := os.Stat(p)
		if err != nil {
			t.Errorf("Expected %s to be written: %v", filepath.Base(p), err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("Expected %s to have content", filepath.Base(p))
		}
	}

	data, err := os.ReadFile(frames)
	if err != nil {
		t.Fatalf("Failed to read frame plan: %v", err)
	}
	var plan FramePlan
	if err := json.Unmarshal(data, &plan); err != nil {
		t.Fatalf("Failed to parse frame plan: %v", err)
	}
	if plan.FPS != 5 || plan.Title != "Practice Piece" {
		t.Errorf("Unexpected frame plan header: %d fps %q", plan.FPS, plan.Title)
	}
}

func TestRunFailedOutputIsRemoved(t *testing.T) {
	path := writeTestTab(t)
	frames := filepath.Join(t.TempDir(), "frames.xml")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-frames", frames, "-frame-format", "xml", path}, &stdout, &stderr)
	if err == nil {
		t.Fatal("Expected an error for an unknown frame format")
	}
	if _, err := os.Stat(frames); !os.IsNotExist(err) {
		t.Errorf("Expected %s to be removed after the failure", frames)
	}
}

func TestRunLibrary(t *testing.T) {
	path := writeTestTab(t)
	db := filepath.Join(t.TempDir(), "tabs.db")

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"-db", db, "-list"}, &stdout, &stderr); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "No tabs stored") {
		t.Errorf("Expected empty library, got:\n%s", stdout.String())
	}

	stdout.Reset()
	if err := run(context.Background(), []string{"-db", db, "-store", "-json", path}, &stdout, &stderr); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	store, err := OpenTabStore(db)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	records, err := store.List()
	store.Close()
	if err != nil {
		t.Fatalf("Failed to list tabs: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 stored tab, got %d", len(records))
	}

	stdout.Reset()
	if err := run(context.Background(), []string{"-db", db, "-list"}, &stdout, &stderr); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(stdout.String(), records[0].ID) {
		t.Errorf("Expected listing to contain %s, got:\n%s", records[0].ID, stdout.String())
	}

	stdout.Reset()
	if err := run(context.Background(), []string{"-db", db, "-id", records[0].ID, "-timeline"}, &stdout, &stderr); err != nil {
		t.Fatalf("export by id failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "Timeline for: Practice Piece.json") {
		t.Errorf("Expected timeline of the stored tab, got:\n%s", stdout.String())
	}
}

func TestRunErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer

	if err := run(context.Background(), []string{filepath.Join(t.TempDir(), "missing.json")}, &stdout, &stderr); err == nil {
		t.Error("Expected an error for a missing file")
	}

	empty := filepath.Join(t.TempDir(), "empty.json")
	if err := os.WriteFile(empty, []byte(`{"song_info": {"tempo": 120}}`), 0644); err != nil {
		t.Fatalf("Failed to write tab: %v", err)
	}
	if err := run(context.Background(), []string{empty}, &stdout, &stderr); err == nil {
		t.Error("Expected an error for a tab without measures")
	}

	if err := run(context.Background(), []string{"-log-level", "loud", empty}, &stdout, &stderr); err == nil {
		t.Error("Expected an error for an invalid log level")
	}
}
