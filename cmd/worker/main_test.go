package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/batch"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/style"
	"github.com/therealutkarshpriyadarshi/liturgia/pkg/models"
)

type cliTestEnv struct {
	baseDir    string
	styleDir   string
	configPath string
}

func setupCLITestEnv(t *testing.T, remoteURL string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	env := &cliTestEnv{
		baseDir:    base,
		styleDir:   filepath.Join(base, "style"),
		configPath: filepath.Join(base, "config.yaml"),
	}
	if remoteURL == "" {
		remoteURL = "http://127.0.0.1:1/api"
	}

	content := fmt.Sprintf(`logging:
  level: error
  output: stderr
remote:
  baseURL: %s
  maxRetries: 0
transcription:
  provider: whisper
style:
  dir: %s
batch:
  tempDir: %s
`, remoteURL, env.styleDir, base)
	require.NoError(t, os.WriteFile(env.configPath, []byte(content), 0o644))
	return env
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestStyleCommands(t *testing.T) {
	env := setupCLITestEnv(t, "")

	out, err := env.run(t, "style", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "f_size")
	assert.Contains(t, out, "#FFFFFF")

	out, err = env.run(t, "style", "set", "f_size=30", "color=#FFD700")
	require.NoError(t, err)
	assert.Contains(t, out, "30")

	loaded := style.NewStore(env.styleDir, nil).Load()
	assert.Equal(t, 30, loaded.FontSize)
	assert.Equal(t, "#FFD700", loaded.Color)
	assert.Equal(t, style.Defaults().MarginV, loaded.MarginV)

	_, err = env.run(t, "style", "set", "f_size")
	assert.Error(t, err)
	_, err = env.run(t, "style", "set", "unknown=1")
	assert.Error(t, err)
}

func TestStyleFontCommand(t *testing.T) {
	env := setupCLITestEnv(t, "")
	fontPath := filepath.Join(env.baseDir, "Liturgica.ttf")
	require.NoError(t, os.WriteFile(fontPath, goregular.TTF, 0o644))

	out, err := env.run(t, "style", "font", fontPath)
	require.NoError(t, err)
	assert.Contains(t, out, "custom_font.ttf")
	assert.Contains(t, out, "(family Go)")

	store := style.NewStore(env.styleDir, nil)
	loaded := store.Load()
	assert.Equal(t, style.FontCustomUpload, loaded.FontStyle)
	assert.True(t, filepath.IsAbs(store.ResolveFontPath(loaded.FontStyle)))

	junk := filepath.Join(env.baseDir, "Broken.ttf")
	require.NoError(t, os.WriteFile(junk, []byte("font-bytes"), 0o644))
	_, err = env.run(t, "style", "font", junk)
	assert.Error(t, err)

	_, err = env.run(t, "style", "font", filepath.Join(env.baseDir, "missing.ttf"))
	assert.Error(t, err)
}

func TestBatchRun_NoJobs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/jobs", r.URL.Path)
		_, _ = w.Write([]byte(`{"jobs":[]}`))
	}))
	defer srv.Close()

	env := setupCLITestEnv(t, srv.URL+"/api")
	out, err := env.run(t, "batch-run")
	require.NoError(t, err)
	assert.Contains(t, out, "No jobs ready")
}

func TestBatchRun_ListingFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	env := setupCLITestEnv(t, srv.URL+"/api")
	_, err := env.run(t, "batch-run")
	assert.Error(t, err)
}

func TestListJobs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"j1","name":"dia1","source_url":"s3://videos/j1.mp4","status":"ready"}]`))
	}))
	defer srv.Close()

	env := setupCLITestEnv(t, srv.URL+"/api")
	out, err := env.run(t, "list-jobs")
	require.NoError(t, err)
	assert.Contains(t, out, "j1")
	assert.Contains(t, out, "dia1")
	assert.Contains(t, out, "s3://videos/j1.mp4")
}

func TestEncodeOne_RequiresJobID(t *testing.T) {
	env := setupCLITestEnv(t, "")
	_, err := env.run(t, "encode-one")
	assert.Error(t, err)
}

func TestEncodeOne_SRTOverride(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	env := setupCLITestEnv(t, srv.URL+"/api")

	bad := filepath.Join(env.baseDir, "bad.srt")
	require.NoError(t, os.WriteFile(bad, []byte("1\n00:00:00,000 --> 00:00:02,000\na\n\n2\n00:00:01,000 --> 00:00:03,000\nb\n"), 0o644))
	_, err := env.run(t, "encode-one", "--srt", bad, "j1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlaps cue 1")
	assert.Empty(t, paths, "invalid track is rejected before any request")

	good := filepath.Join(env.baseDir, "good.srt")
	require.NoError(t, os.WriteFile(good, []byte("1\n00:00:00,000 --> 00:00:01,000\nGlória\n"), 0o644))
	out, err := env.run(t, "encode-one", "--srt", good, "j1")
	require.Error(t, err)
	assert.Contains(t, out, "j1")
	assert.Contains(t, out, "pending")
	assert.Equal(t, []string{"/api/jobs/j1"}, paths)
}

func TestParseSlides(t *testing.T) {
	tests := []struct {
		name    string
		values  []string
		want    []float64
		wantErr bool
	}{
		{name: "single", values: []string{"a.png:3"}, want: []float64{3}},
		{name: "fractional", values: []string{"a.png:1.5", "b.png:2"}, want: []float64{1.5, 2}},
		{name: "colon in path", values: []string{"C:/imgs/a.png:4"}, want: []float64{4}},
		{name: "missing duration", values: []string{"a.png"}, wantErr: true},
		{name: "empty duration", values: []string{"a.png:"}, wantErr: true},
		{name: "zero duration", values: []string{"a.png:0"}, wantErr: true},
		{name: "not a number", values: []string{"a.png:abc"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slides, err := parseSlides(tt.values)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, slides, len(tt.want))
			for i, d := range tt.want {
				assert.Equal(t, d, slides[i].Duration)
			}
		})
	}

	slides, err := parseSlides([]string{"C:/imgs/a.png:4"})
	require.NoError(t, err)
	assert.Equal(t, "C:/imgs/a.png", slides[0].Path)
}

func TestRunError(t *testing.T) {
	run := &batch.Run{Records: []batch.Record{
		{JobID: "j1", State: models.JobStateDone},
		{JobID: "j2", State: models.JobStateFailed},
	}}
	err := runError(run)
	require.Error(t, err)
	assert.Equal(t, "1 of 2 jobs failed", err.Error())

	assert.NoError(t, runError(&batch.Run{Records: []batch.Record{{JobID: "j1", State: models.JobStateDone}}}))
}

func TestRenderRecords(t *testing.T) {
	out := renderRecords([]batch.Record{
		{JobID: "j1", State: models.JobStateDone, Entries: 12, Duration: 1500 * time.Millisecond, OutputName: "dia1_legendado.mp4"},
		{JobID: "j2", State: models.JobStateFailed, FailedStage: models.JobStateDownloading, Error: strings.Repeat("x", 200)},
	})

	assert.Contains(t, out, "dia1_legendado.mp4")
	assert.Contains(t, out, "downloading")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "...")
	assert.NotContains(t, out, strings.Repeat("x", 100))
}

func TestRenderTable_NoHeaders(t *testing.T) {
	assert.Empty(t, renderTable(nil, nil, nil))
}
