package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/cache"
	"github.com/therealutkarshpriyadarshi/liturgia/pkg/models"
)

type fakeRunner struct {
	calls int
	err   error
	block chan struct{}
}

func (r *fakeRunner) Run(ctx context.Context) (*models.BatchRun, error) {
	r.calls++
	if r.block != nil {
		<-r.block
	}
	if r.err != nil {
		return nil, r.err
	}
	return &models.BatchRun{ID: "run-1", Records: []models.JobRecord{{JobID: "j1", State: models.JobStateDone}}}, nil
}

func newCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewCache(mr.Host(), mr.Server().Addr().Port, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New("not a schedule", &fakeRunner{}, nil, 0, nil)
	assert.Error(t, err)

	s, err := New("@every 30m", &fakeRunner{}, nil, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, s.lockTTL)
}

func TestTick_WithoutLocker(t *testing.T) {
	runner := &fakeRunner{}
	s, err := New("@every 1h", runner, nil, time.Minute, nil)
	require.NoError(t, err)

	assert.True(t, s.Tick(context.Background()))
	assert.Equal(t, 1, runner.calls)
}

func TestTick_RunErrorStillReleasesLock(t *testing.T) {
	c, mr := newCache(t)
	runner := &fakeRunner{err: errors.New("coordinator down")}
	s, err := New("@every 1h", runner, c, time.Minute, nil)
	require.NoError(t, err)

	assert.True(t, s.Tick(context.Background()))
	assert.False(t, mr.Exists("lock:"+lockName))
}

func TestTick_SkipsWhenLockHeld(t *testing.T) {
	c, _ := newCache(t)
	ok, err := c.AcquireRunLock(context.Background(), lockName, "other-worker", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	runner := &fakeRunner{}
	s, err := New("@every 1h", runner, c, time.Minute, nil)
	require.NoError(t, err)

	assert.False(t, s.Tick(context.Background()))
	assert.Equal(t, 0, runner.calls)
}

func TestTick_SkipsOverlappingRun(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	s, err := New("@every 1h", runner, nil, time.Minute, nil)
	require.NoError(t, err)

	done := make(chan bool)
	go func() { done <- s.Tick(context.Background()) }()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.running
	}, time.Second, 5*time.Millisecond)

	assert.False(t, s.Tick(context.Background()))
	close(runner.block)
	assert.True(t, <-done)
	assert.Equal(t, 1, runner.calls)
}

func TestStartStop(t *testing.T) {
	s, err := New("@every 1h", &fakeRunner{}, nil, time.Minute, nil)
	require.NoError(t, err)

	s.Start()
	s.Stop()
	assert.Error(t, s.ctx.Err())
}
