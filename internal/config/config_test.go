package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  host: "127.0.0.1"

remote:
  baseURL: "https://remote.example/api"
  maxRetries: 5
  retryDelay: 250ms
  transferTimeout: 2h

transcription:
  provider: whisper
  usePrompt: true

redis:
  enabled: true
  host: "cache"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "https://remote.example/api", cfg.Remote.BaseURL)
	assert.Equal(t, 5, cfg.Remote.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Remote.RetryDelay)
	assert.Equal(t, 2*time.Hour, cfg.Remote.TransferTimeout)
	assert.Equal(t, "whisper", cfg.Transcription.Provider)
	assert.True(t, cfg.Transcription.UsePrompt)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache", cfg.Redis.Host)

	// untouched sections keep defaults
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, "ffmpeg", cfg.Transcoder.FFmpegPath)
	assert.Equal(t, "@every 30m", cfg.Schedule.Cron)
}

func TestLoadNonExistentFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	assert.Error(t, err)
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "openai", cfg.Transcription.Provider)
	assert.Equal(t, "whisper-1", cfg.Transcription.Model)
	assert.Equal(t, ".mp4", cfg.Batch.OutputExt)
	assert.Equal(t, 1080, cfg.Transcoder.OutputWidth)
	assert.Equal(t, 1920, cfg.Transcoder.OutputHeight)
	assert.Equal(t, 30*time.Minute, cfg.Transcoder.CommandTimeout)
	assert.Equal(t, 60*time.Second, cfg.Remote.Timeout)
	assert.Zero(t, cfg.Remote.TransferTimeout)
	assert.False(t, cfg.Transcription.UsePrompt)
	assert.False(t, cfg.Storage.Enabled)
	assert.False(t, cfg.Database.Enabled)
}

func TestLoadOrDefaultReadsExistingFile(t *testing.T) {
	path := writeConfig(t, "batch:\n  keepTemp: true\n")

	cfg, err := LoadOrDefault(path)
	require.NoError(t, err)
	assert.True(t, cfg.Batch.KeepTemp)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LITURGIA_REMOTE_TOKEN", "secret-token")

	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cfg.Remote.Token)
}
