// Package transcription turns narration audio into time-aligned segments.
package transcription

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/config"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/logging"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/subtitle"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/transcoder"
)

// Transcriber produces ordered segments for an audio file
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, opts Options) ([]subtitle.Segment, error)
}

// Options tune a single transcription
type Options struct {
	// Prompt biases recognition toward the expected wording. Empty sends none.
	Prompt string
}

// maxPromptRunes keeps the prompt inside the model's context; the tail of a
// long reference is dropped.
const maxPromptRunes = 800

func (o Options) prompt() string {
	p := strings.Join(strings.Fields(o.Prompt), " ")
	if r := []rune(p); len(r) > maxPromptRunes {
		p = string(r[:maxPromptRunes])
	}
	return p
}

// New builds the transcriber selected by cfg.Provider, wrapped with the
// transcript cache when one is given.
func New(cfg config.TranscriptionConfig, runner transcoder.Runner, store SegmentCache, logger *logging.Logger) (Transcriber, error) {
	var t Transcriber

	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("transcription.apiKey is required for the openai provider")
		}
		t = NewOpenAI(OpenAIConfig{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Model:    cfg.Model,
			Language: cfg.Language,
		})
	case "whisper":
		t = NewWhisperCLI(cfg.WhisperPath, cfg.WhisperModel, cfg.Language, runner)
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", cfg.Provider)
	}

	if store != nil && cfg.CacheEnabled {
		ttl := cfg.CacheTTL
		if ttl <= 0 {
			ttl = 7 * 24 * time.Hour
		}
		t = NewCached(t, store, ttl, logger)
	}
	return t, nil
}

// normalize trims segment text and orders bounds
func normalize(segments []subtitle.Segment) []subtitle.Segment {
	out := make([]subtitle.Segment, 0, len(segments))
	for _, seg := range segments {
		seg.Text = strings.TrimSpace(seg.Text)
		if seg.End < seg.Start {
			seg.End = seg.Start
		}
		out = append(out, seg)
	}
	return out
}
