package transcoder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Slide is one still image shown for Duration seconds
type Slide struct {
	Path     string
	Duration float64
}

// SlideshowOptions holds options for assembling images and narration into a video
type SlideshowOptions struct {
	Slides     []Slide
	AudioPath  string // optional narration track
	OutputPath string
	Width      int // default 1080
	Height     int // default 1920
	FrameRate  int // default 30
}

// AssembleSlideshow renders the slides in order over the narration using the concat demuxer
func (f *FFmpeg) AssembleSlideshow(ctx context.Context, opts SlideshowOptions) error {
	if len(opts.Slides) == 0 {
		return fmt.Errorf("at least one slide is required")
	}
	if opts.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	for i, slide := range opts.Slides {
		if slide.Duration <= 0 {
			return fmt.Errorf("slide %d has non-positive duration %v", i+1, slide.Duration)
		}
	}

	if opts.AudioPath != "" {
		slides, err := f.coverNarration(ctx, opts.Slides, opts.AudioPath)
		if err != nil {
			return err
		}
		opts.Slides = slides
	}

	list, err := os.CreateTemp(filepath.Dir(opts.OutputPath), "slides_*.txt")
	if err != nil {
		return fmt.Errorf("failed to create concat file: %w", err)
	}
	listPath := list.Name()
	list.Close()
	defer os.Remove(listPath)

	if err := writeConcatList(listPath, opts.Slides); err != nil {
		return fmt.Errorf("failed to write concat file: %w", err)
	}

	if err := f.runner.Run(ctx, f.SlideshowArgs(listPath, opts)); err != nil {
		return fmt.Errorf("slideshow assembly failed: %w", err)
	}
	return nil
}

// coverNarration holds the last slide until the narration ends, since
// -shortest would otherwise cut the audio at the last frame.
func (f *FFmpeg) coverNarration(ctx context.Context, slides []Slide, audioPath string) ([]Slide, error) {
	narration, err := f.ProbeDuration(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read narration duration: %w", err)
	}

	var total float64
	for _, slide := range slides {
		total += slide.Duration
	}
	if total >= narration {
		return slides, nil
	}

	out := append([]Slide(nil), slides...)
	out[len(out)-1].Duration += narration - total
	return out, nil
}

// SlideshowArgs returns the invocation reading the concat list at listPath
func (f *FFmpeg) SlideshowArgs(listPath string, opts SlideshowOptions) []string {
	if opts.Width <= 0 {
		opts.Width = 1080
	}
	if opts.Height <= 0 {
		opts.Height = 1920
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = 30
	}

	scale := fmt.Sprintf(
		"scale=%[1]d:%[2]d:force_original_aspect_ratio=decrease,pad=%[1]d:%[2]d:(ow-iw)/2:(oh-ih)/2,setsar=1,format=yuv420p",
		opts.Width, opts.Height,
	)

	args := []string{
		f.ffmpegPath,
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
	}
	if opts.AudioPath != "" {
		args = append(args, "-i", opts.AudioPath)
	}

	args = append(args,
		"-vf", scale,
		"-r", strconv.Itoa(opts.FrameRate),
		"-c:v", "libx264",
		"-preset", "medium",
	)

	if opts.AudioPath != "" {
		args = append(args,
			"-map", "0:v:0",
			"-map", "1:a:0",
			"-c:a", "aac",
			"-b:a", "192k",
			"-shortest",
		)
	}

	return append(args, opts.OutputPath)
}

// writeConcatList writes a concat demuxer script with per-image durations
func writeConcatList(path string, slides []Slide) error {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")

	for _, slide := range slides {
		absPath, err := filepath.Abs(slide.Path)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "file '%s'\n", escapeConcatPath(absPath))
		fmt.Fprintf(&b, "duration %s\n", strconv.FormatFloat(slide.Duration, 'f', -1, 64))
	}

	// The demuxer ignores the duration of the final entry unless it is repeated
	last, err := filepath.Abs(slides[len(slides)-1].Path)
	if err != nil {
		return err
	}
	fmt.Fprintf(&b, "file '%s'\n", escapeConcatPath(last))

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func escapeConcatPath(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}
