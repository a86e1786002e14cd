package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/subtitle"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/transcoder"
)

// WhisperCLI transcribes audio with a local whisper binary
type WhisperCLI struct {
	binary   string
	model    string
	language string
	runner   transcoder.Runner
}

// NewWhisperCLI creates a transcriber invoking binary through runner
func NewWhisperCLI(binary, model, language string, runner transcoder.Runner) *WhisperCLI {
	if binary == "" {
		binary = "whisper"
	}
	if runner == nil {
		runner = transcoder.NewExecRunner(0, nil)
	}
	return &WhisperCLI{binary: binary, model: model, language: language, runner: runner}
}

// Args returns the invocation writing JSON output into outputDir
func (w *WhisperCLI) Args(audioPath, outputDir string, opts Options) []string {
	args := []string{
		w.binary,
		audioPath,
		"--output_format", "json",
		"--output_dir", outputDir,
		"--verbose", "False",
	}
	if w.model != "" {
		args = append(args, "--model", w.model)
	}
	if w.language != "" {
		args = append(args, "--language", w.language)
	}
	if prompt := opts.prompt(); prompt != "" {
		args = append(args, "--initial_prompt", prompt)
	}
	return args
}

// Transcribe runs whisper next to the audio file and loads its JSON output
func (w *WhisperCLI) Transcribe(ctx context.Context, audioPath string, opts Options) ([]subtitle.Segment, error) {
	outputDir := filepath.Dir(audioPath)
	if err := w.runner.Run(ctx, w.Args(audioPath, outputDir, opts)); err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	segments, err := LoadSegments(filepath.Join(outputDir, base+".json"))
	if err != nil {
		return nil, err
	}
	return normalize(segments), nil
}

// whisperPayload is the JSON structure from whisper output
type whisperPayload struct {
	Segments []subtitle.Segment `json:"segments"`
}

// LoadSegments loads segments from a whisper JSON file
func LoadSegments(jsonPath string) ([]subtitle.Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisper json: %w", err)
	}
	return payload.Segments, nil
}
