package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestJSONHandlerWritesAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(newHandler(&buf, config.LogConfig{Level: "info", Format: "json"}))

	l.Debug("hidden")
	l.Info("order created", "order_number", "2406017F3A9C1B20")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "order created", entry["msg"])
	assert.Equal(t, "2406017F3A9C1B20", entry["order_number"])
}

func TestTextHandler(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(newHandler(&buf, config.LogConfig{Level: "warn", Format: "text"}))

	l.Info("skipped")
	l.Warn("gateway slow", "ms", 900)

	assert.NotContains(t, buf.String(), "skipped")
	assert.Contains(t, buf.String(), "gateway slow")
	assert.Contains(t, buf.String(), "ms=900")
}
