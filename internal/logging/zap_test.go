package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewJSONWritesStructuredLines(t *testing.T) {
	t.Parallel()

	buf := new(bytes.Buffer)
	logger, err := New(Options{JSON: true, Writer: buf})
	require.NoError(t, err)

	logger.Info("transcription finished", zap.String("request_id", "req-1"))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "info", entry["level"])
	require.Equal(t, "transcription finished", entry["msg"])
	require.Equal(t, "req-1", entry["request_id"])
	require.Contains(t, entry, "ts")
}

func TestNewConsoleOmitsTimestamp(t *testing.T) {
	t.Parallel()

	buf := new(bytes.Buffer)
	logger, err := New(Options{Writer: buf})
	require.NoError(t, err)

	logger.Warn("scratch file cleanup failed")
	line := buf.String()
	require.Contains(t, line, "WARN")
	require.Contains(t, line, "scratch file cleanup failed")
	require.False(t, strings.HasPrefix(line, "20"), "unexpected timestamp in %q", line)
}

func TestVerboseEnablesDebug(t *testing.T) {
	t.Parallel()

	quiet := new(bytes.Buffer)
	logger, err := New(Options{Writer: quiet})
	require.NoError(t, err)
	logger.Debug("hidden")
	require.Empty(t, quiet.String())

	loud := new(bytes.Buffer)
	logger, err = New(Options{Verbose: true, Writer: loud})
	require.NoError(t, err)
	logger.Debug("shown")
	require.Contains(t, loud.String(), "shown")
	require.Contains(t, loud.String(), "zap_test.go")
}
