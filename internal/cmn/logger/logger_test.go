package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_SourceLocation(t *testing.T) {
	tests := []struct {
		name    string
		logFunc func(Logger)
	}{
		{name: "Info", logFunc: func(l Logger) { l.Info("test message") }},
		{name: "Debug", logFunc: func(l Logger) { l.Debug("debug message") }},
		{name: "Warnf", logFunc: func(l Logger) { l.Warnf("warning %s", "test") }},
		{name: "Errorf", logFunc: func(l Logger) { l.Errorf("error %v", "test") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewLogger(WithDebug(), WithQuiet(), WithWriter(&buf), WithFormat("text"))
			tt.logFunc(l)

			out := buf.String()
			assert.Contains(t, out, "logger_test.go:")
			assert.NotContains(t, out, "cmn/logger/logger.go")
			assert.NotContains(t, out, "slog-multi")
		})
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithQuiet(), WithWriter(&buf))

	l.Debug("hidden")
	l.Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithQuiet(), WithWriter(&buf), WithFormat("json"))

	l.With("file", "azure-pipelines.yml").Info("expanded", "depth", 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &rec))
	assert.Equal(t, "expanded", rec["msg"])
	assert.Equal(t, "azure-pipelines.yml", rec["file"])
	assert.EqualValues(t, 2, rec["depth"])
}

func TestContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), NewLogger(WithQuiet(), WithWriter(&buf)))
	ctx = WithValues(ctx, "request-id", "abc")

	Info(ctx, "hello")
	Warn(ctx, "careful", "odd")

	out := buf.String()
	assert.Contains(t, out, "request-id=abc")
	assert.Contains(t, out, "msg=hello")
	assert.Contains(t, out, "msg=careful")

	assert.NotNil(t, FromContext(context.Background()))
}
