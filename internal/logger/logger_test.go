package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "debug", "json")

	l.With(slog.String("service", "bridge")).Info("reply sent", slog.Int("media", 2))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	require.Equal(t, "reply sent", rec["msg"])
	require.Equal(t, "bridge", rec["service"])
	require.Contains(t, rec, "media")
	require.NotEmpty(t, rec["time"])
}

func TestNewWithWriter_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn", "text")

	l.Info("hidden")
	l.Warn("shown")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.True(t, strings.Contains(out, "shown"), out)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, log.DebugLevel, parseLevel(" DEBUG "))
	require.Equal(t, log.ErrorLevel, parseLevel("error"))
	require.Equal(t, log.InfoLevel, parseLevel("verbose"))
	require.Equal(t, log.InfoLevel, parseLevel(""))
}
