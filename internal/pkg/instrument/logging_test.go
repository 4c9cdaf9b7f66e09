package instrument

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNewHandler_MasksAndAddsBatchID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewHandler("certsend", []string{"api_key"}, newJSONHandler(&buf, slog.LevelInfo)))

	ctx := WithBatchID(context.Background(), "batch-1")
	logger.InfoContext(ctx, "sending", "api_key", "secret", slog.Group("smtp", "API_KEY", "x", "host", "mail"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "sending", lines[0]["msg"])
	assert.Equal(t, "INFO", lines[0]["severity"])
	assert.Equal(t, "***", lines[0]["api_key"])
	assert.Equal(t, "batch-1", lines[0]["batch_id"])
	assert.Equal(t, "certsend", lines[0]["service"])
	assert.Equal(t, map[string]any{"API_KEY": "***", "host": "mail"}, lines[0]["smtp"])
}

func TestMultiHandler_RespectsLevels(t *testing.T) {
	t.Parallel()

	var info, errs bytes.Buffer
	logger := slog.New(NewHandler("", nil,
		newJSONHandler(&info, slog.LevelInfo),
		newJSONHandler(&errs, slog.LevelError),
	))

	logger.Info("hello")
	logger.Error("boom", "error", "bad")

	assert.Len(t, decodeLines(t, &info), 2)
	assert.Len(t, decodeLines(t, &errs), 1)
}

func TestNew_WritesFileSink(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	file := filepath.Join(t.TempDir(), "certificate_process.log")
	var stdout bytes.Buffer

	ins, err := New(context.Background(), &Config{
		ServiceName: "certsend",
		Log:         LogConfig{File: file, Level: "warn", Stdout: &stdout},
	})
	require.NoError(t, err)

	slog.Info("hidden")
	slog.Error("Error generating preview for Ada Lovelace")
	require.NoError(t, ins.Shutdown(context.Background()))

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Error generating preview for Ada Lovelace")
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, stdout.String(), "Ada Lovelace")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(context.Background(), &Config{Log: LogConfig{Level: "loud", Stdout: &bytes.Buffer{}}})
	require.Error(t, err)
}

func TestGetBatchID_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, GetBatchID(context.Background()))
	assert.NotNil(t, NewNoop().Tracer("x"))
	assert.NoError(t, NewNoop().Shutdown(context.Background()))
}
