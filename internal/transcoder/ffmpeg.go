package transcoder

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FFmpeg builds encoder invocations and runs them through a Runner
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	runner      Runner
}

// NewFFmpeg creates a new FFmpeg instance
func NewFFmpeg(ffmpegPath, ffprobePath string, runner Runner) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if runner == nil {
		runner = NewExecRunner(0, nil)
	}
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      runner,
	}
}

// Runner returns the runner used for invocations
func (f *FFmpeg) Runner() Runner {
	return f.runner
}

// ProbeMetadata holds the subset of ffprobe output we read
type ProbeMetadata struct {
	Format  FormatInfo   `json:"format"`
	Streams []StreamInfo `json:"streams"`
}

// FormatInfo holds format information
type FormatInfo struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

// StreamInfo holds stream information
type StreamInfo struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// ProbeDuration returns the container duration of a media file in seconds
func (f *FFmpeg) ProbeDuration(ctx context.Context, inputPath string) (float64, error) {
	args := []string{
		f.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}

	out, err := f.runner.Output(ctx, args)
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	var metadata ProbeMetadata
	if err := json.Unmarshal(out, &metadata); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	duration, err := strconv.ParseFloat(metadata.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", metadata.Format.Duration, err)
	}
	return duration, nil
}

// BurnOptions holds options for burning a subtitle file into a video
type BurnOptions struct {
	InputPath    string
	SubtitlePath string
	OutputPath   string
	// ForceStyle is an ASS style override such as style.Config.ASSStyle renders
	ForceStyle string
	// FontsDir is searched for font files when a custom font is used
	FontsDir   string
	VideoCodec string // default libx264
	Preset     string // default medium
	CRF        int    // default 23
}

// escapeFilterValue escapes a value embedded in a filtergraph option
func escapeFilterValue(value string) string {
	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, ":", "\\:")
	escaped = strings.ReplaceAll(escaped, "'", "\\'")
	return escaped
}

func subtitleFilter(opts BurnOptions) string {
	filter := "subtitles=" + escapeFilterValue(opts.SubtitlePath)
	if opts.FontsDir != "" {
		filter += ":fontsdir=" + escapeFilterValue(opts.FontsDir)
	}
	if opts.ForceStyle != "" {
		filter += fmt.Sprintf(":force_style='%s'", opts.ForceStyle)
	}
	return filter
}

// BurnSubtitlesArgs returns the full invocation for BurnSubtitles
func (f *FFmpeg) BurnSubtitlesArgs(opts BurnOptions) []string {
	if opts.VideoCodec == "" {
		opts.VideoCodec = "libx264"
	}
	if opts.Preset == "" {
		opts.Preset = "medium"
	}
	if opts.CRF <= 0 {
		opts.CRF = 23
	}

	return []string{
		f.ffmpegPath,
		"-y",
		"-i", opts.InputPath,
		"-vf", subtitleFilter(opts),
		"-c:v", opts.VideoCodec,
		"-preset", opts.Preset,
		"-crf", strconv.Itoa(opts.CRF),
		"-c:a", "copy", // Copy audio without re-encoding
		opts.OutputPath,
	}
}

// BurnSubtitles burns subtitles into the video (hardcoded subtitles)
func (f *FFmpeg) BurnSubtitles(ctx context.Context, opts BurnOptions) error {
	if opts.InputPath == "" || opts.SubtitlePath == "" || opts.OutputPath == "" {
		return fmt.Errorf("input, subtitle and output paths are required")
	}

	if err := f.runner.Run(ctx, f.BurnSubtitlesArgs(opts)); err != nil {
		return fmt.Errorf("subtitle burning failed: %w", err)
	}
	return nil
}

// ExtractAudioArgs returns the invocation producing mono 16 kHz mp3 audio
func (f *FFmpeg) ExtractAudioArgs(inputPath, outputPath string) []string {
	return []string{
		f.ffmpegPath,
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "libmp3lame",
		"-b:a", "64k",
		outputPath,
	}
}

// ExtractAudio writes the audio track of a video for transcription
func (f *FFmpeg) ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	if err := f.runner.Run(ctx, f.ExtractAudioArgs(inputPath, outputPath)); err != nil {
		return fmt.Errorf("audio extraction failed: %w", err)
	}
	return nil
}
