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

func newBufferLogger(level LogLevel) (*StructuredLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewStructuredLogger("test", "0.0.1", level)
	l.SetOutput(&buf)
	return l, &buf
}

func entries(t *testing.T, buf *bytes.Buffer) []Entry {
	t.Helper()
	var out []Entry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e Entry
		require.NoError(t, json.Unmarshal([]byte(line), &e), line)
		out = append(out, e)
	}
	return out
}

func TestStructuredLogger_JSONEntry(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel)
	ctx := WithRequestID(context.Background(), "req-1")

	l.Info(ctx, "[TEST] hello", Fields{"rows": 3})

	got := entries(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "INFO", got[0].Level)
	assert.Equal(t, "test", got[0].Service)
	assert.Equal(t, "[TEST] hello", got[0].Message)
	assert.Equal(t, "req-1", got[0].RequestID)
	assert.EqualValues(t, 3, got[0].Fields["rows"])
	assert.Empty(t, got[0].File)
}

func TestStructuredLogger_LevelFilter(t *testing.T) {
	l, buf := newBufferLogger(WarnLevel)
	ctx := context.Background()

	l.Debug(ctx, "debug", nil)
	l.Info(ctx, "info", nil)
	l.Warn(ctx, "warn", nil)
	l.Error(ctx, "error", nil, errors.New("boom"))

	got := entries(t, buf)
	require.Len(t, got, 2)
	assert.Equal(t, "WARN", got[0].Level)
	assert.Equal(t, "ERROR", got[1].Level)
	assert.Equal(t, "boom", got[1].Error)
	assert.NotEmpty(t, got[1].File)
	assert.Contains(t, got[1].Function, "TestStructuredLogger_LevelFilter")
}

func TestStructuredLogger_FatalExits(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel)
	code := -1
	l.sink.exit = func(c int) { code = c }

	l.Fatal(context.Background(), "[TEST] fatal", Fields{}, errors.New("bad dataset"))

	assert.Equal(t, 1, code)
	got := entries(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "FATAL", got[0].Level)
	assert.NotEmpty(t, got[0].StackTrace)
}

func TestWithFields_Merges(t *testing.T) {
	l, buf := newBufferLogger(DebugLevel)

	l.WithFields(Fields{"component": "ingester", "file": "a.csv"}).
		Debug(context.Background(), "merged", Fields{"file": "b.csv"})

	got := entries(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "ingester", got[0].Fields["component"])
	assert.Equal(t, "b.csv", got[0].Fields["file"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DebugLevel,
		" DEBUG ": DebugLevel,
		"info":    InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"":        InfoLevel,
		"verbose": InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Error(context.Background(), "dropped", nil, errors.New("x"))
	assert.Equal(t, "", RequestID(context.Background()))
}
