package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pipeline-metrics/backend/pkg/config"
)

// captured returns a debug-level logger and a decoder for its JSON lines
func captured(t *testing.T) (*Logger, func() []map[string]interface{}) {
	t.Helper()
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	var buf bytes.Buffer
	return NewWithWriter(&buf), func() []map[string]interface{} {
		var entries []map[string]interface{}
		sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
		for sc.Scan() {
			var e map[string]interface{}
			require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
			entries = append(entries, e)
		}
		buf.Reset()
		return entries
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"DEBUG":   zerolog.DebugLevel,
		"info":    zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"Error":   zerolog.ErrorLevel,
		"fatal":   zerolog.FatalLevel,
		"panic":   zerolog.PanicLevel,
		"verbose": zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}

	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), "level %q", in)
	}
}

func TestNew_SetsGlobalLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prev)

	for _, level := range []string{"debug", "warn", "error"} {
		New(&config.Config{Env: "staging", LogLevel: level, LogFormat: "json"})
		assert.Equal(t, parseLogLevel(level), zerolog.GlobalLevel(), level)
	}
}

func TestLogger_Levels(t *testing.T) {
	log, entries := captured(t)

	log.Debug("snapshot loaded")
	log.Infof("%d views evaluated", 6)
	log.Warnf("breaker %s", "open")
	log.Error("store unavailable")

	got := entries()
	require.Len(t, got, 4)

	want := [][2]string{
		{"debug", "snapshot loaded"},
		{"info", "6 views evaluated"},
		{"warn", "breaker open"},
		{"error", "store unavailable"},
	}
	for i, w := range want {
		assert.Equal(t, w[0], got[i]["level"])
		assert.Equal(t, w[1], got[i]["message"])
		assert.Contains(t, got[i], "time")
	}
}

func TestLogger_Fields(t *testing.T) {
	log, entries := captured(t)

	log.WithField("view", "stage_breakdown").
		WithFields(map[string]interface{}{"rows": 4, "seq": uint64(12)}).
		WithError(errors.New("relation \"deals\" does not exist")).
		Warn("view degraded")

	got := entries()
	require.Len(t, got, 1)
	assert.Equal(t, "stage_breakdown", got[0]["view"])
	assert.Equal(t, float64(4), got[0]["rows"])
	assert.Equal(t, float64(12), got[0]["seq"])
	assert.Equal(t, `relation "deals" does not exist`, got[0]["error"])
}

func TestLogger_FieldsDoNotLeak(t *testing.T) {
	log, entries := captured(t)

	log.WithField("params", "2026-09-18|all").Info("evaluation started")
	log.Info("plain")

	got := entries()
	require.Len(t, got, 2)
	assert.NotContains(t, got[1], "params")
}

func TestNew_FileSinkGetsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.log")

	oldStdout := os.Stdout
	_, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() {
		w.Close()
		os.Stdout = oldStdout
	}()

	log := New(&config.Config{Env: "production", LogLevel: "info", LogFormat: "console", LogFile: path})
	log.WithField("view", "summary").Info("dashboard published")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "dashboard published", entry["message"])
	assert.Equal(t, "production", entry["env"])
	assert.Equal(t, "summary", entry["view"])
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().WithField("seq", 1).Error("discarded")
	})
}
