// Package batch runs ready jobs through download, transcription, subtitle
// reconciliation, encoding, and upload, one job at a time.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/logging"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/metrics"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/style"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/subtitle"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/tracing"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/transcoder"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/transcription"
	"github.com/therealutkarshpriyadarshi/liturgia/pkg/models"
)

// Record is the terminal outcome of one job
type Record = models.JobRecord

// Run is the outcome of one batch invocation
type Run = models.BatchRun

// Source is the remote job coordinator
type Source interface {
	ListReadyJobs(ctx context.Context) ([]models.Job, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
	DownloadSource(ctx context.Context, job models.Job, dir string) (string, error)
	FetchScript(ctx context.Context, job models.Job) (*models.Script, error)
	UploadResult(ctx context.Context, job models.Job, filePath, name string) error
	ReportStatus(ctx context.Context, jobID string, status models.JobStatus, message string) error
}

// Encoder is the subset of the ffmpeg wrapper the pipeline drives
type Encoder interface {
	ExtractAudio(ctx context.Context, inputPath, outputPath string) error
	BurnSubtitles(ctx context.Context, opts transcoder.BurnOptions) error
}

// StyleSource provides the persisted subtitle style and resolves its font
// to a family name and, for an uploaded font, the directory holding it
type StyleSource interface {
	Load() style.Config
	ResolveFont(choice string) (family, dir string)
}

// Notifier publishes terminal job records
type Notifier interface {
	PublishRecord(ctx context.Context, record models.JobRecord) error
}

// History persists finished runs
type History interface {
	SaveRun(ctx context.Context, run *models.BatchRun) error
}

// Progress tracks the live state of a job
type Progress interface {
	SetJobState(ctx context.Context, jobID, state string, ttl time.Duration) error
}

// Deps are the collaborators of an Orchestrator. Style, Notifier, History
// and Progress are optional; without Style the default look is used.
type Deps struct {
	Source      Source
	Transcriber transcription.Transcriber
	Encoder     Encoder
	Style       StyleSource
	Notifier    Notifier
	History     History
	Progress    Progress
	Logger      *logging.Logger
}

// Config controls per-job resources
type Config struct {
	TempDir     string
	StepTimeout time.Duration
	OutputExt   string
	KeepTemp    bool
	// UsePrompt passes the job's reference text to the transcriber as a prompt
	UsePrompt bool
}

// StageError ties a job failure to the state it happened in
type StageError struct {
	Stage models.JobState
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

const progressTTL = 24 * time.Hour

// Orchestrator drives jobs through the pipeline states
type Orchestrator struct {
	deps   Deps
	cfg    Config
	logger *logging.Logger
	now    func() time.Time
}

// New creates an orchestrator
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Source == nil {
		return nil, errors.New("batch: job source is required")
	}
	if deps.Transcriber == nil {
		return nil, errors.New("batch: transcriber is required")
	}
	if deps.Encoder == nil {
		return nil, errors.New("batch: encoder is required")
	}
	if cfg.OutputExt == "" {
		cfg.OutputExt = ".mp4"
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		logger: logger.WithComponent("batch"),
		now:    time.Now,
	}, nil
}

// Run lists the ready jobs and processes them in order. Only a listing
// failure is returned; per-job failures are carried in the records.
func (o *Orchestrator) Run(ctx context.Context) (*Run, error) {
	jobs, err := o.deps.Source.ListReadyJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ready jobs: %w", err)
	}
	return o.RunJobs(ctx, jobs), nil
}

// RunJobs processes jobs sequentially. A canceled context stops the loop
// and the jobs not yet started are recorded as failed.
func (o *Orchestrator) RunJobs(ctx context.Context, jobs []models.Job) *Run {
	run := &Run{
		ID:        uuid.New().String(),
		StartedAt: o.now(),
		Records:   make([]Record, 0, len(jobs)),
	}
	logger := o.logger.WithRunID(run.ID)
	logger.WithField("jobs", len(jobs)).Info("Batch run started")

	look := o.loadStyle()
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			run.Records = append(run.Records, o.skipped(ctx, run.ID, job, err))
			continue
		}

		rec, err := o.process(ctx, run.ID, job, look, nil)
		if err != nil {
			logger.LogJobFailure(job.ID, string(rec.FailedStage), err)
		}
		run.Records = append(run.Records, rec)
	}

	run.CompletedAt = o.now()
	metrics.RecordBatchRun(len(run.Records), run.Failed())

	if o.deps.History != nil {
		// the run is persisted even when ctx is already canceled
		if err := o.deps.History.SaveRun(context.WithoutCancel(ctx), run); err != nil {
			logger.ErrorWithErr("Failed to save batch run", err)
		}
	}

	logger.WithFields(map[string]interface{}{
		"succeeded": run.Succeeded(),
		"failed":    run.Failed(),
		"duration":  run.CompletedAt.Sub(run.StartedAt).String(),
	}).Info("Batch run finished")

	return run
}

// ProcessJob runs a single job and returns its error to the caller
func (o *Orchestrator) ProcessJob(ctx context.Context, job models.Job) (Record, error) {
	return o.process(ctx, "", job, o.loadStyle(), nil)
}

// loadStyle reads the style once so it stays fixed for a whole run
func (o *Orchestrator) loadStyle() burnStyle {
	if o.deps.Style == nil {
		cfg := style.Defaults()
		return burnStyle{cfg: cfg, family: cfg.FontStyle}
	}
	cfg := o.deps.Style.Load()
	family, dir := o.deps.Style.ResolveFont(cfg.FontStyle)
	return burnStyle{cfg: cfg, family: family, fontsDir: dir}
}

// ProcessJobByID fetches a job from the source and processes it
func (o *Orchestrator) ProcessJobByID(ctx context.Context, id string) (Record, error) {
	return o.processByID(ctx, id, nil)
}

// ProcessJobByIDWithTrack processes a job but burns track as given, skipping
// transcription and the script. track must be non-empty.
func (o *Orchestrator) ProcessJobByIDWithTrack(ctx context.Context, id string, track []subtitle.Entry) (Record, error) {
	if len(track) == 0 {
		err := errors.New("subtitle track is empty")
		return Record{JobID: id, State: models.JobStateFailed, FailedStage: models.JobStatePending, Error: err.Error()},
			&StageError{Stage: models.JobStatePending, Err: err}
	}
	return o.processByID(ctx, id, track)
}

func (o *Orchestrator) processByID(ctx context.Context, id string, track []subtitle.Entry) (Record, error) {
	job, err := o.deps.Source.GetJob(ctx, id)
	if err != nil {
		rec := Record{JobID: id, State: models.JobStateFailed, FailedStage: models.JobStatePending, Error: err.Error()}
		return rec, &StageError{Stage: models.JobStatePending, Err: err}
	}
	return o.process(ctx, "", *job, o.loadStyle(), track)
}

func (o *Orchestrator) skipped(ctx context.Context, runID string, job models.Job, err error) Record {
	now := o.now()
	rec := Record{
		RunID:       runID,
		JobID:       job.ID,
		JobName:     job.Name,
		State:       models.JobStateFailed,
		FailedStage: models.JobStatePending,
		Error:       err.Error(),
		StartedAt:   now,
		CompletedAt: now,
	}
	o.notify(ctx, rec)
	return rec
}

func (o *Orchestrator) process(ctx context.Context, runID string, job models.Job, look burnStyle, track []subtitle.Entry) (Record, error) {
	rec := Record{
		RunID:     runID,
		JobID:     job.ID,
		JobName:   job.Name,
		State:     models.JobStatePending,
		StartedAt: o.now(),
	}
	logger := o.logger.WithJobID(job.ID)

	span, ctx := tracing.StartSpan(ctx, "batch.process_job")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "job.id", job.ID)

	metrics.RecordJobStarted()
	logger.LogJobEvent(job.ID, "started", string(rec.State), map[string]interface{}{"name": job.Name})

	if err := o.deps.Source.ReportStatus(ctx, job.ID, models.JobStatusProcessing, ""); err != nil {
		logger.WithError(err).Warn("Failed to report processing status")
	}

	err := o.pipeline(ctx, job, look, track, &rec)
	if err == nil {
		err = o.stage(ctx, &rec, models.JobStateUploading, func(ctx context.Context) error {
			return o.deps.Source.ReportStatus(ctx, job.ID, models.JobStatusDone, "")
		})
	}

	rec.CompletedAt = o.now()
	rec.Duration = rec.CompletedAt.Sub(rec.StartedAt)

	if err != nil {
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			rec.FailedStage = stageErr.Stage
		}
		rec.State = models.JobStateFailed
		rec.Error = err.Error()
		tracing.LogError(span, err)

		reportCtx := context.WithoutCancel(ctx)
		if rerr := o.deps.Source.ReportStatus(reportCtx, job.ID, models.JobStatusFailed, err.Error()); rerr != nil {
			logger.WithError(rerr).Warn("Failed to report failed status")
		}
	} else {
		rec.State = models.JobStateDone
	}

	o.setProgress(ctx, rec)
	metrics.RecordJobCompleted(string(rec.State), string(rec.FailedStage), rec.Duration.Seconds())
	logger.LogJobEvent(job.ID, "finished", string(rec.State), map[string]interface{}{
		"entries":  rec.Entries,
		"output":   rec.OutputName,
		"duration": rec.Duration.String(),
	})
	o.notify(ctx, rec)

	return rec, err
}

// pipeline runs the stages of one job inside its own work directory. A
// non-nil track replaces transcription and reconciliation.
func (o *Orchestrator) pipeline(ctx context.Context, job models.Job, look burnStyle, track []subtitle.Entry, rec *Record) error {
	workDir, err := os.MkdirTemp(o.cfg.TempDir, "liturgia-"+safeName(job.ID)+"-")
	if err != nil {
		return &StageError{Stage: models.JobStatePending, Err: fmt.Errorf("failed to create work directory: %w", err)}
	}
	if o.cfg.KeepTemp {
		o.logger.WithJobID(job.ID).WithField("dir", workDir).Info("Keeping work directory")
	} else {
		defer os.RemoveAll(workDir)
	}

	// the script is fetched with the video so the reference can bias transcription
	var sourcePath, reference string
	err = o.stage(ctx, rec, models.JobStateDownloading, func(ctx context.Context) error {
		sourcePath, err = o.deps.Source.DownloadSource(ctx, job, workDir)
		if err != nil || track != nil {
			return err
		}
		script, err := o.deps.Source.FetchScript(ctx, job)
		if err != nil {
			return fmt.Errorf("failed to fetch script: %w", err)
		}
		reference = script.FlattenText()
		return nil
	})
	if err != nil {
		return err
	}

	var segments []subtitle.Segment
	if track == nil {
		err = o.stage(ctx, rec, models.JobStateTranscribing, func(ctx context.Context) error {
			audioPath := filepath.Join(workDir, "narration.mp3")
			if err := o.deps.Encoder.ExtractAudio(ctx, sourcePath, audioPath); err != nil {
				return fmt.Errorf("failed to extract audio: %w", err)
			}
			var opts transcription.Options
			if o.cfg.UsePrompt {
				opts.Prompt = reference
			}
			segments, err = o.deps.Transcriber.Transcribe(ctx, audioPath, opts)
			return err
		})
		if err != nil {
			return err
		}
	}

	subtitlePath := filepath.Join(workDir, "legenda.srt")
	err = o.stage(ctx, rec, models.JobStateSubtitling, func(ctx context.Context) error {
		entries := track
		if entries == nil {
			entries = o.reconcile(job, segments, reference)
		}
		rec.Entries = len(entries)
		return subtitle.WriteSRT(subtitlePath, entries)
	})
	if err != nil {
		return err
	}

	outputName := job.OutputName(o.cfg.OutputExt)
	outputPath := filepath.Join(workDir, outputName)
	if filepath.Dir(outputPath) != filepath.Clean(workDir) {
		return &StageError{Stage: models.JobStateEncoding, Err: fmt.Errorf("output name %q leaves the work directory", outputName)}
	}
	err = o.stage(ctx, rec, models.JobStateEncoding, func(ctx context.Context) error {
		return o.deps.Encoder.BurnSubtitles(ctx, look.options(sourcePath, subtitlePath, outputPath))
	})
	if err != nil {
		return err
	}

	return o.stage(ctx, rec, models.JobStateUploading, func(ctx context.Context) error {
		if err := o.deps.Source.UploadResult(ctx, job, outputPath, outputName); err != nil {
			return err
		}
		rec.OutputName = outputName
		return nil
	})
}

// reconcile corrects segments against the reference. Without a reference
// the transcription is used as is.
func (o *Orchestrator) reconcile(job models.Job, segments []subtitle.Segment, reference string) []subtitle.Entry {
	if strings.TrimSpace(reference) == "" {
		return subtitle.FromSegments(segments)
	}
	if len(segments) == 0 {
		o.logger.WithJobID(job.ID).WithField("reference_words", len(strings.Fields(reference))).
			Warn("Transcription returned no segments, subtitle track is empty")
	}
	return subtitle.Reconcile(segments, reference)
}

// burnStyle is the style snapshot applied to every job of a run
type burnStyle struct {
	cfg      style.Config
	family   string
	fontsDir string
}

func (b burnStyle) options(sourcePath, subtitlePath, outputPath string) transcoder.BurnOptions {
	return transcoder.BurnOptions{
		InputPath:    sourcePath,
		SubtitlePath: subtitlePath,
		OutputPath:   outputPath,
		ForceStyle:   b.cfg.ASSStyle(b.family),
		FontsDir:     b.fontsDir,
	}
}

// stage moves rec into state and runs fn under the step timeout
func (o *Orchestrator) stage(ctx context.Context, rec *Record, state models.JobState, fn func(context.Context) error) error {
	rec.State = state
	o.setProgress(ctx, *rec)

	span, ctx := tracing.StartSpan(ctx, "batch."+string(state))
	defer tracing.FinishSpan(span)

	if o.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.StepTimeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)
	metrics.RecordStage(string(state), time.Since(start).Seconds(), err)

	if err != nil {
		tracing.LogError(span, err)
		return &StageError{Stage: state, Err: err}
	}
	return nil
}

func (o *Orchestrator) setProgress(ctx context.Context, rec Record) {
	if o.deps.Progress == nil {
		return
	}
	if err := o.deps.Progress.SetJobState(context.WithoutCancel(ctx), rec.JobID, string(rec.State), progressTTL); err != nil {
		o.logger.WithJobID(rec.JobID).WithError(err).Debug("Failed to store job state")
	}
}

func (o *Orchestrator) notify(ctx context.Context, rec Record) {
	if o.deps.Notifier == nil {
		return
	}
	if err := o.deps.Notifier.PublishRecord(context.WithoutCancel(ctx), rec); err != nil {
		o.logger.WithJobID(rec.JobID).WithError(err).Warn("Failed to publish job record")
	}
}

// safeName keeps job ids usable inside a directory name
func safeName(id string) string {
	out := make([]rune, 0, len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) > 32 {
		out = out[:32]
	}
	return string(out)
}
