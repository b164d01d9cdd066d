package logger

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func captureJSON(t *testing.T, level string) (read func() []map[string]interface{}) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rewards.log")
	Init(Config{Level: level, Format: "json", Output: path})
	t.Cleanup(func() { Init(Config{}) })

	return func() []map[string]interface{} {
		Sync()
		f, err := os.Open(path)
		require.NoError(t, err)
		defer f.Close()

		var lines []map[string]interface{}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			var line map[string]interface{}
			require.NoError(t, json.Unmarshal(scanner.Bytes(), &line), scanner.Text())
			lines = append(lines, line)
		}
		require.NoError(t, scanner.Err())
		return lines
	}
}

func TestInit_JSONFileWithLevelFilter(t *testing.T) {
	read := captureJSON(t, "info")

	Debug("hidden")
	Infof("processed %d reports", 3)
	Warn("slow")

	lines := read()
	require.Len(t, lines, 2)
	assert.Equal(t, "processed 3 reports", lines[0]["msg"])
	assert.Equal(t, "info", lines[0]["level"])
	assert.Contains(t, lines[0], "timestamp")
	assert.Equal(t, "warn", lines[1]["level"])
}

func TestWithFields(t *testing.T) {
	read := captureJSON(t, "debug")

	WithFields(map[string]interface{}{"user_id": "alice", "points": 15}).Info("awarded")
	Reward("alice", "r1", 2, 15)

	lines := read()
	require.Len(t, lines, 2)
	assert.Equal(t, "alice", lines[0]["user_id"])
	assert.EqualValues(t, 15, lines[0]["points"])
	assert.Equal(t, "r1", lines[1]["source_report_id"])
	assert.Equal(t, "debug", lines[1]["level"])
}

func TestWithRequestID(t *testing.T) {
	read := captureJSON(t, "info")

	ctx := ContextWithRequestID(context.Background(), "req-123")
	WithRequestID(ctx).Info("with id")
	WithRequestID(context.Background()).Info("without id")

	lines := read()
	require.Len(t, lines, 2)
	assert.Equal(t, "req-123", lines[0]["request_id"])
	assert.NotContains(t, lines[1], "request_id")
}

func TestBuild_UnknownValuesFallBack(t *testing.T) {
	l := build(Config{Level: "verbose", Format: "xml", Output: "stdout"})
	require.NotNil(t, l)
	assert.True(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))
}
