// Package app wires the configured collaborators into a batch orchestrator.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/opentracing/opentracing-go"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/batch"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/cache"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/config"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/database"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/logging"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/queue"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/remote"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/storage"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/style"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/tracing"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/transcoder"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/transcription"
)

// App holds the long-lived services of a worker or API process
type App struct {
	Config       *config.Config
	Logger       *logging.Logger
	Styles       *style.Store
	Remote       *remote.Client
	FFmpeg       *transcoder.FFmpeg
	Orchestrator *batch.Orchestrator

	// Optional backends, nil when disabled
	Cache   *cache.Cache
	History *database.Repository

	closers []io.Closer
}

// Build connects every enabled backend. Close must be called even when
// Build returns an error.
func Build(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
		Styles: style.NewStore(cfg.Style.Dir, logger),
	}

	tracer, closer, err := tracing.InitTracer(cfg.Tracing)
	if err != nil {
		return a, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	opentracing.SetGlobalTracer(tracer)
	a.closers = append(a.closers, closer)

	var artifacts remote.ArtifactStore
	if cfg.Storage.Enabled {
		stor, err := storage.New(cfg.Storage, logger)
		if err != nil {
			return a, fmt.Errorf("failed to initialize storage: %w", err)
		}
		artifacts = stor
		logger.WithField("bucket", stor.Bucket()).Info("Object storage enabled")
	}

	a.Remote, err = remote.NewClient(cfg.Remote, artifacts, logger)
	if err != nil {
		return a, fmt.Errorf("failed to create remote client: %w", err)
	}

	runner := transcoder.NewExecRunner(cfg.Transcoder.CommandTimeout, logger)
	a.FFmpeg = transcoder.NewFFmpeg(cfg.Transcoder.FFmpegPath, cfg.Transcoder.FFprobePath, runner)

	deps := batch.Deps{
		Source:  a.Remote,
		Encoder: a.FFmpeg,
		Style:   a.Styles,
		Logger:  logger,
	}

	var segments transcription.SegmentCache
	if cfg.Redis.Enabled {
		c, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return a, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.Cache = c
		a.closers = append(a.closers, c)
		segments = c
		deps.Progress = c
	}

	deps.Transcriber, err = transcription.New(cfg.Transcription, runner, segments, logger)
	if err != nil {
		return a, fmt.Errorf("failed to create transcriber: %w", err)
	}

	if cfg.Database.Enabled {
		db, err := database.New(cfg.Database)
		if err != nil {
			return a, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, closeFunc(db.Close))

		repo := database.NewRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			return a, err
		}
		a.History = repo
		deps.History = repo
	}

	if cfg.Queue.Enabled {
		pub, err := queue.New(cfg.Queue)
		if err != nil {
			return a, fmt.Errorf("failed to connect to queue: %w", err)
		}
		a.closers = append(a.closers, pub)
		deps.Notifier = pub
	}

	a.Orchestrator, err = batch.New(deps, batch.Config{
		TempDir:     cfg.Batch.TempDir,
		StepTimeout: cfg.Batch.StepTimeout,
		OutputExt:   cfg.Batch.OutputExt,
		KeepTemp:    cfg.Batch.KeepTemp,
		UsePrompt:   cfg.Transcription.UsePrompt,
	})
	if err != nil {
		return a, err
	}

	return a, nil
}

// Close releases backends in reverse order of creation
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

type closeFunc func()

func (f closeFunc) Close() error {
	f()
	return nil
}
