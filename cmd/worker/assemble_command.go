package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/transcoder"
)

func newAssembleCommand(ctx *commandContext) *cobra.Command {
	var slides []string
	var audio string
	var out string

	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Build a vertical video from still images and narration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			parsed, err := parseSlides(slides)
			if err != nil {
				return err
			}

			runCtx, stop := signalContext(cmd.Context())
			defer stop()

			runner := transcoder.NewExecRunner(cfg.Transcoder.CommandTimeout, logger)
			ffmpeg := transcoder.NewFFmpeg(cfg.Transcoder.FFmpegPath, cfg.Transcoder.FFprobePath, runner)

			err = ffmpeg.AssembleSlideshow(runCtx, transcoder.SlideshowOptions{
				Slides:     parsed,
				AudioPath:  audio,
				OutputPath: out,
				Width:      cfg.Transcoder.OutputWidth,
				Height:     cfg.Transcoder.OutputHeight,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&slides, "slide", nil, "Image and duration as path:seconds (repeatable)")
	cmd.Flags().StringVar(&audio, "audio", "", "Narration audio track")
	cmd.Flags().StringVar(&out, "out", "", "Output video path")
	_ = cmd.MarkFlagRequired("slide")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

// parseSlides reads path:seconds pairs; the last colon separates the
// duration so paths may contain colons.
func parseSlides(values []string) ([]transcoder.Slide, error) {
	slides := make([]transcoder.Slide, 0, len(values))
	for _, v := range values {
		i := strings.LastIndex(v, ":")
		if i <= 0 || i == len(v)-1 {
			return nil, fmt.Errorf("invalid slide %q, expected path:seconds", v)
		}
		seconds, err := strconv.ParseFloat(v[i+1:], 64)
		if err != nil || seconds <= 0 {
			return nil, fmt.Errorf("invalid duration in slide %q", v)
		}
		slides = append(slides, transcoder.Slide{Path: v[:i], Duration: seconds})
	}
	return slides, nil
}
