package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/logging"
	"github.com/therealutkarshpriyadarshi/liturgia/pkg/models"
)

const lockName = "batch-run"

// BatchRunner executes one batch over the ready jobs
type BatchRunner interface {
	Run(ctx context.Context) (*models.BatchRun, error)
}

// Locker guards a batch run across worker processes
type Locker interface {
	AcquireRunLock(ctx context.Context, name, token string, ttl time.Duration) (bool, error)
	ReleaseRunLock(ctx context.Context, name, token string) error
}

// Scheduler triggers batch runs on a cron schedule. Ticks that arrive
// while a run is in progress are skipped.
type Scheduler struct {
	cron    *cron.Cron
	runner  BatchRunner
	locker  Locker
	lockTTL time.Duration
	logger  *logging.Logger

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a scheduler. locker may be nil for single-worker setups.
func New(spec string, runner BatchRunner, locker Locker, lockTTL time.Duration, logger *logging.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if lockTTL <= 0 {
		lockTTL = 2 * time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    cron.New(),
		runner:  runner,
		locker:  locker,
		lockTTL: lockTTL,
		logger:  logger.WithComponent("scheduler"),
		ctx:     ctx,
		cancel:  cancel,
	}

	if _, err := s.cron.AddFunc(spec, func() { s.Tick(s.ctx) }); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins firing the schedule in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Batch scheduler started")
}

// Stop cancels an in-flight run and waits for it to return
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("Batch scheduler stopped")
}

// Tick runs one batch unless another one holds the run lock. It reports
// whether a batch was started.
func (s *Scheduler) Tick(ctx context.Context) bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("Previous batch still running, skipping tick")
		return false
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if s.locker != nil {
		token := uuid.New().String()
		ok, err := s.locker.AcquireRunLock(ctx, lockName, token, s.lockTTL)
		if err != nil {
			s.logger.ErrorWithErr("Failed to acquire run lock", err)
			return false
		}
		if !ok {
			s.logger.Info("Batch run held by another worker, skipping tick")
			return false
		}
		defer func() {
			if err := s.locker.ReleaseRunLock(context.WithoutCancel(ctx), lockName, token); err != nil {
				s.logger.ErrorWithErr("Failed to release run lock", err)
			}
		}()
	}

	run, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.ErrorWithErr("Scheduled batch run failed", err)
		return true
	}

	s.logger.WithRunID(run.ID).WithFields(map[string]interface{}{
		"jobs":   len(run.Records),
		"failed": run.Failed(),
	}).Info("Scheduled batch run finished")
	return true
}
