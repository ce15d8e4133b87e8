package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.logLevel, stderr)
	if err != nil {
		return err
	}

	if cfg.list {
		return listTabs(cfg, stdout)
	}

	filename, data, err := loadTab(cfg, logger)
	if err != nil {
		return err
	}

	source, err := OpenTabSource(filename, data)
	if err != nil {
		return err
	}

	song, err := source.RawSong()
	if err != nil {
		return fmt.Errorf("failed to read measures: %w", err)
	}

	opts := cfg.exportOptions()
	opts.Filename = filename

	timeline, err := Synthesize(song, opts, logger)
	if err != nil {
		return err
	}

	title := exportTitle(filename, song.Title)

	switch {
	case cfg.jsonOut:
		jsonData, err := json.MarshalIndent(timeline.Summary(title), "", "  ")
		if err != nil {
			return fmt.Errorf("error marshaling to JSON: %w", err)
		}
		fmt.Fprintln(stdout, string(jsonData))
	case cfg.timeline:
		fmt.Fprintf(stdout, "Timeline for: %s\n", filename)
		fmt.Fprint(stdout, timeline.String())
	case cfg.frames == "" && cfg.click == "" && cfg.midi == "":
		printInfo(stdout, title, source, timeline)
	}

	if cfg.frames != "" {
		if err := writeFrames(ctx, cfg, timeline, title, opts, logger); err != nil {
			return err
		}
	}

	if cfg.click != "" {
		err := writeFile(cfg.click, func(f *os.File) error {
			return WriteClickWav(ctx, f, timeline)
		})
		if err != nil {
			return fmt.Errorf("failed to write click track: %w", err)
		}
		logger.Info("wrote click track", "path", cfg.click)
	}

	if cfg.midi != "" {
		voice, err := LookupClickVoice(cfg.clickVoice)
		if err != nil {
			return err
		}
		err = writeFile(cfg.midi, func(f *os.File) error {
			return WriteClickMidi(f, timeline, voice)
		})
		if err != nil {
			return fmt.Errorf("failed to write MIDI click track: %w", err)
		}
		logger.Info("wrote MIDI click track", "path", cfg.midi, "voice", voice)
	}

	return nil
}

// loadTab returns the tab to export, from the library or from disk. With
// -store the file is also added to the library.
func loadTab(cfg *config, logger *charmlog.Logger) (string, []byte, error) {
	if cfg.id != "" {
		store, err := OpenTabStore(cfg.db)
		if err != nil {
			return "", nil, err
		}
		defer store.Close()

		record, err := store.Get(cfg.id)
		if err != nil {
			return "", nil, err
		}
		logger.Debug("loaded tab from library", "id", record.ID, "filename", record.Filename)
		return record.Filename, record.Data, nil
	}

	data, err := os.ReadFile(cfg.path)
	if err != nil {
		return "", nil, fmt.Errorf("error opening file: %w", err)
	}

	if cfg.store {
		store, err := OpenTabStore(cfg.db)
		if err != nil {
			return "", nil, err
		}
		defer store.Close()

		// only keep files that parse
		if _, err := OpenTabSource(cfg.path, data); err != nil {
			return "", nil, err
		}
		record, err := store.Put(cfg.path, data)
		if err != nil {
			return "", nil, err
		}
		logger.Info("stored tab", "id", record.ID, "filename", record.Filename, "format", record.Format)
	}

	return cfg.path, data, nil
}

func listTabs(cfg *config, w io.Writer) error {
	store, err := OpenTabStore(cfg.db)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List()
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Fprintln(w, "No tabs stored")
		return nil
	}

	for _, r := range records {
		fmt.Fprintf(w, "%s  %-8s  %s  %s\n", r.ID, r.Format, r.CreatedAt.Format("2006-01-02 15:04"), r.Filename)
	}
	return nil
}

func writeFrames(ctx context.Context, cfg *config, timeline *Timeline, title string, opts ExportOptions, logger *charmlog.Logger) error {
	var header *FramePlan
	err := writeFile(cfg.frames, func(f *os.File) error {
		var err error
		header, err = WriteFrames(ctx, f, timeline, title, opts, cfg.frameFormat)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write frame plan: %w", err)
	}

	logger.Info("wrote frame plan", "path", cfg.frames, "frames", header.FrameCount, "fps", header.FPS)
	return nil
}

// writeFile creates path and hands it to write, removing the file again if
// writing fails.
func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}

	return f.Close()
}

func printInfo(w io.Writer, title string, source TabSource, timeline *Timeline) {
	fmt.Fprintf(w, "Title: %s\n", title)

	metadata := source.Metadata()
	if len(metadata) > 0 {
		keys := make([]string, 0, len(metadata))
		for k := range metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintln(w, "Metadata:")
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %s\n", k, metadata[k])
		}
	}

	if pkg, ok := source.(*SngPackage); ok {
		fmt.Fprintf(w, "Package files: %s\n", strings.Join(pkg.Files(), ", "))
	}

	summary := timeline.Summary(title)
	fmt.Fprintf(w, "Base tempo: %d BPM\n", summary.BaseTempo)
	fmt.Fprintf(w, "Measures: %d in tab, %d played, %d count-in\n",
		len(timeline.Source()), len(summary.Measures), summary.CountIn)
	fmt.Fprintf(w, "Total measures: %d\n", summary.TotalMeasures)
	fmt.Fprintf(w, "Duration: %.2f seconds\n", summary.Duration)

	var sections []string
	last := ""
	for _, m := range summary.Measures {
		if m.Section != last {
			sections = append(sections, fmt.Sprintf("%s @ %.2fs", m.Section, m.Start))
			last = m.Section
		}
	}
	if len(sections) > 0 {
		fmt.Fprintln(w, "Sections:")
		for _, s := range sections {
			fmt.Fprintf(w, "  %s\n", s)
		}
	}
}
