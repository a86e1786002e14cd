package transcription

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/subtitle"
)

// OpenAIConfig configures the hosted Whisper transcriber
type OpenAIConfig struct {
	APIKey   string
	BaseURL  string // optional, for compatible endpoints
	Model    string // default whisper-1
	Language string // ISO-639-1, optional
}

// OpenAI transcribes audio with the OpenAI audio API
type OpenAI struct {
	client   openai.Client
	model    string
	language string
}

// verboseTranscription is the verbose_json response body
type verboseTranscription struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// NewOpenAI creates an OpenAI transcriber
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}

	return &OpenAI{
		client:   openai.NewClient(opts...),
		model:    model,
		language: cfg.Language,
	}
}

// Transcribe uploads the audio file and returns its segments
func (o *OpenAI) Transcribe(ctx context.Context, audioPath string, opts Options) ([]subtitle.Segment, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio: %w", err)
	}
	defer file.Close()

	params := openai.AudioTranscriptionNewParams{
		File:           file,
		Model:          openai.AudioModel(o.model),
		ResponseFormat: openai.AudioResponseFormatVerboseJSON,
	}
	if o.language != "" {
		params.Language = openai.String(o.language)
	}
	if prompt := opts.prompt(); prompt != "" {
		params.Prompt = openai.String(prompt)
	}

	var payload verboseTranscription
	if _, err := o.client.Audio.Transcriptions.New(ctx, params, option.WithResponseBodyInto(&payload)); err != nil {
		return nil, fmt.Errorf("openai transcription failed: %w", err)
	}

	segments := make([]subtitle.Segment, 0, len(payload.Segments))
	for _, seg := range payload.Segments {
		segments = append(segments, subtitle.Segment{Start: seg.Start, End: seg.End, Text: seg.Text})
	}
	return normalize(segments), nil
}
