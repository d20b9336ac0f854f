package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONLogger(level LogLevel) (*AppLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewLogger(&LoggerConfig{Level: level, Format: "json", Output: &buf}), &buf
}

// records decodes one JSON object per line.
func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
		err  bool
	}{
		{"debug", LevelDebug, false},
		{" INFO ", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"warn", LevelWarn, false},
		{"Error", LevelError, false},
		{"trace", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := newJSONLogger(LevelWarn)
	ctx := context.Background()

	logger.Debug(ctx, "hidden")
	logger.Info(ctx, "hidden")
	logger.Warn(ctx, nil, "shown")
	logger.Error(ctx, errors.New("boom"), "shown too")

	recs := records(t, buf)
	require.Len(t, recs, 2)
	assert.Equal(t, "WARN", recs[0]["level"])
	assert.Equal(t, "boom", recs[1]["error"])
}

func TestFieldsAndComponent(t *testing.T) {
	logger, buf := newJSONLogger(LevelDebug)
	child := logger.WithComponent("catalog").With("variant", "css")

	child.Info(context.Background(), "Catalog committed", "generation", 3, "dangling")

	recs := records(t, buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "catalog", recs[0]["component"])
	assert.Equal(t, "css", recs[0]["variant"])
	assert.EqualValues(t, 3, recs[0]["generation"])
	assert.NotContains(t, recs[0], "dangling", "a key without a value is dropped")

	logger.Info(context.Background(), "parent untouched")
	recs = records(t, buf)
	assert.NotContains(t, recs[1], "variant")
	assert.NotContains(t, recs[1], "component")
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelInfo, Output: &buf})
	logger.Info(context.Background(), "Serving deck", "addr", "localhost:8080")
	assert.Contains(t, buf.String(), `msg="Serving deck"`)
	assert.Contains(t, buf.String(), "addr=localhost:8080")
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	logger.Error(context.Background(), errors.New("x"), "nothing happens")
	assert.NotNil(t, NewLogger(nil))
}

func TestPerfLogger(t *testing.T) {
	logger, buf := newJSONLogger(LevelDebug)
	ctx := context.Background()

	StartOperation(logger, "catalog.load").End(ctx, "variant", "motion")
	StartOperation(logger, "catalog.refresh").EndWithError(ctx, errors.New("gone"))

	recs := records(t, buf)
	require.Len(t, recs, 2)
	assert.Equal(t, "Operation completed", recs[0]["msg"])
	assert.Equal(t, "catalog.load", recs[0]["operation"])
	assert.Contains(t, recs[0], "duration_ms")
	assert.Equal(t, "Operation failed", recs[1]["msg"])
	assert.Equal(t, "gone", recs[1]["error"])
}
