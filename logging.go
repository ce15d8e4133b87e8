package main

import (
	"fmt"
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// newLogger builds the logger shared by the CLI and every component it
// drives. Level names follow charmbracelet/log (debug, info, warn, error).
func newLogger(level string, w io.Writer) (*charmlog.Logger, error) {
	lvl, err := charmlog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	if w == nil {
		w = os.Stderr
	}

	return charmlog.NewWithOptions(w, charmlog.Options{
		Level:           lvl,
		Prefix:          "clicktrack",
		ReportTimestamp: true,
	}), nil
}

// loggerOrDiscard lets library callers pass a nil logger.
func loggerOrDiscard(logger *charmlog.Logger) *charmlog.Logger {
	if logger != nil {
		return logger
	}
	return charmlog.New(io.Discard)
}
