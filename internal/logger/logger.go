// Package logger builds the structured logger shared by every component.
// Records go through log/slog so packages only depend on the standard
// interface, while rendering is done by charmbracelet/log.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// New returns a slog logger writing to stderr.
func New(level, format string) *slog.Logger {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter returns a slog logger writing to w. Unknown levels fall back
// to info and unknown formats fall back to text.
func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	h := log.NewWithOptions(w, log.Options{
		Level:           parseLevel(level),
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       parseFormat(format),
	})
	return slog.New(h)
}

func parseLevel(level string) log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

func parseFormat(format string) log.Formatter {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON:
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}
