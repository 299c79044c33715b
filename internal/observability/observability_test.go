package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.KeysProcessed.WithLabelValues("ok").Inc()
	a.CacheLookups.WithLabelValues("hit").Add(2)

	assert.InDelta(t, 1, testutil.ToFloat64(a.KeysProcessed.WithLabelValues("ok")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(a.CacheLookups.WithLabelValues("hit")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.KeysProcessed.WithLabelValues("ok")), 0)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"loud":    slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "json")

	logger.Info("dropped")
	logger.Warn("kept", "state", "JAL")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "JAL", line["state"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "info", "text").Info("hello", "kind", "PRECIPITATION")
	assert.Contains(t, buf.String(), "kind=PRECIPITATION")
}
