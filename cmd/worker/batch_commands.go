package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/batch"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/subtitle"
	"github.com/therealutkarshpriyadarshi/liturgia/pkg/models"
)

func newBatchRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "batch-run",
		Short: "Process every job marked ready by the coordinator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signalContext(cmd.Context())
			defer stop()

			a, cleanup, err := ctx.buildApp(runCtx)
			if err != nil {
				return err
			}
			defer cleanup()

			run, err := a.Orchestrator.Run(runCtx)
			if err != nil {
				return err
			}

			printRun(cmd.OutOrStdout(), run)
			return runError(run)
		},
	}
}

func newListJobsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list-jobs",
		Short: "Show the jobs ready for processing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := ctx.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			jobs, err := a.Remote.ListReadyJobs(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs ready")
				return nil
			}
			fmt.Fprintln(out, renderJobs(jobs))
			return nil
		},
	}
}

func newEncodeOneCommand(ctx *commandContext) *cobra.Command {
	var keepTemp bool
	var srtPath string

	cmd := &cobra.Command{
		Use:   "encode-one <job-id>",
		Short: "Process a single job and report its error",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// a bad track is rejected before anything is downloaded
			var track []subtitle.Entry
			if srtPath != "" {
				var err error
				if track, err = subtitle.ReadSRT(srtPath); err != nil {
					return err
				}
			}

			if keepTemp {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				cfg.Batch.KeepTemp = true
			}

			runCtx, stop := signalContext(cmd.Context())
			defer stop()

			a, cleanup, err := ctx.buildApp(runCtx)
			if err != nil {
				return err
			}
			defer cleanup()

			var rec batch.Record
			if track != nil {
				rec, err = a.Orchestrator.ProcessJobByIDWithTrack(runCtx, args[0], track)
			} else {
				rec, err = a.Orchestrator.ProcessJobByID(runCtx, args[0])
			}
			printRecords(cmd.OutOrStdout(), []batch.Record{rec})
			return err
		},
	}

	cmd.Flags().BoolVar(&keepTemp, "keep-temp", false, "Keep the job work directory for inspection")
	cmd.Flags().StringVar(&srtPath, "srt", "", "Burn this SRT file instead of transcribing the narration")
	return cmd
}

// runError is non-nil when any record failed so the process exits 1
func runError(run *batch.Run) error {
	if failed := run.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(run.Records))
	}
	return nil
}

func printRun(w io.Writer, run *batch.Run) {
	if len(run.Records) == 0 {
		fmt.Fprintln(w, "No jobs ready")
		return
	}
	printRecords(w, run.Records)
	fmt.Fprintf(w, "Run %s: %d done, %d failed in %s\n",
		run.ID, run.Succeeded(), run.Failed(), run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond))
}

func printRecords(w io.Writer, records []batch.Record) {
	fmt.Fprintln(w, renderRecords(records))
}

func renderRecords(records []batch.Record) string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.JobID,
			string(rec.State),
			string(rec.FailedStage),
			strconv.Itoa(rec.Entries),
			rec.Duration.Round(time.Millisecond).String(),
			recordDetail(rec),
		})
	}
	return renderTable(
		[]string{"Job", "State", "Stage", "Entries", "Duration", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func recordDetail(rec batch.Record) string {
	if rec.Error != "" {
		return truncate(rec.Error, 80)
	}
	return rec.OutputName
}

func renderJobs(jobs []models.Job) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{job.ID, job.Name, job.SourceURL, job.ScriptURL})
	}
	return renderTable([]string{"ID", "Name", "Source", "Script"}, rows, nil)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
