// Package logging builds the process slog.Logger on top of charmbracelet/log.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/log"
)

// Formats accepted by New.
const (
	FormatText   = "text"
	FormatJSON   = "json"
	FormatLogfmt = "logfmt"
)

// Options configures the handler.
type Options struct {
	Level      slog.Level
	Format     string
	TimeFormat string
	ShowCaller bool
}

// New returns a slog.Logger writing to w through a charmbracelet handler.
func New(w io.Writer, opts Options) (*slog.Logger, error) {
	formatter, err := parseFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	timeFormat := opts.TimeFormat
	if timeFormat == "" {
		timeFormat = time.TimeOnly
	}

	handler := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      timeFormat,
		ReportCaller:    opts.ShowCaller,
		Formatter:       formatter,
	})
	handler.SetLevel(charmLevel(opts.Level))
	return slog.New(handler), nil
}

func parseFormat(format string) (log.Formatter, error) {
	switch format {
	case "", FormatText:
		return log.TextFormatter, nil
	case FormatJSON:
		return log.JSONFormatter, nil
	case FormatLogfmt:
		return log.LogfmtFormatter, nil
	}
	return log.TextFormatter, fmt.Errorf("logging: unknown format %q", format)
}

func charmLevel(level slog.Level) log.Level {
	switch {
	case level <= slog.LevelDebug:
		return log.DebugLevel
	case level <= slog.LevelInfo:
		return log.InfoLevel
	case level <= slog.LevelWarn:
		return log.WarnLevel
	default:
		return log.ErrorLevel
	}
}
