package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "JSON format stdout",
			config: Config{Level: "info", Format: "json", Output: "stdout"},
		},
		{
			name:   "Console format stderr",
			config: Config{Level: "debug", Format: "console", Output: "stderr"},
		},
		{
			name:   "Invalid level defaults to info",
			config: Config{Level: "invalid", Format: "json", Output: "stdout"},
		},
		{
			name:   "Empty config",
			config: Config{},
		},
		{
			name:    "Unwritable file",
			config:  Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "out.log")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestNewLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.log")
	logger, err := NewLogger(Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Info("written to file")
	assert.FileExists(t, path)
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)

	logger.WithRunID("run-1").WithJobID("job-2").WithComponent("batch").Info("hello")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "run-1", lines[0]["run_id"])
	assert.Equal(t, "job-2", lines[0]["job_id"])
	assert.Equal(t, "batch", lines[0]["component"])
	assert.Equal(t, "hello", lines[0]["message"])
}

func TestLogJobEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)

	logger.LogJobEvent("job-123", "started", "processing", map[string]interface{}{
		"stage": "download",
	})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "job-123", lines[0]["job_id"])
	assert.Equal(t, "started", lines[0]["event"])
	assert.Equal(t, "processing", lines[0]["status"])
	assert.Equal(t, "download", lines[0]["stage"])
}

func TestLogJobFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)

	logger.LogJobFailure("job-9", "encode", errors.New("exit status 2"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "error", lines[0]["level"])
	assert.Equal(t, "encode", lines[0]["stage"])
	assert.Equal(t, "exit status 2", lines[0]["error"])
}

func TestLogOperations(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)

	logger.LogStorageOperation("upload", "videos", "out.mp4", 1048576, 2*time.Second, nil)
	logger.LogRemoteOperation("list_jobs", "http://remote/jobs", 503, 2, 10*time.Millisecond, errors.New("unavailable"))
	logger.LogCommand("ffmpeg", 12, time.Second, errors.New("boom"))
	logger.LogHTTPRequest("GET", "/health", "127.0.0.1", 200, time.Millisecond)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 4)
	assert.Equal(t, "upload", lines[0]["operation"])
	assert.Equal(t, "warn", lines[1]["level"])
	assert.EqualValues(t, 2, lines[1]["attempt"])
	assert.Equal(t, "ffmpeg", lines[2]["command"])
	assert.EqualValues(t, 200, lines[3]["status_code"])
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	logger.WithJobID("x").Warn("discarded")
	logger.ErrorWithErr("discarded", errors.New("x"))
}

func BenchmarkLogWithFields(b *testing.B) {
	logger := NewNopLogger()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.WithFields(map[string]interface{}{
			"key1": "value1",
			"key2": 123,
		}).Info("benchmark message")
	}
}
