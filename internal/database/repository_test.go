package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/config"
	"github.com/therealutkarshpriyadarshi/liturgia/pkg/models"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host: "db", Port: 5433, User: "u", Password: "p", DBName: "liturgia", SSLMode: "disable",
		MaxConns: 4, MinConns: 1,
	})
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=liturgia sslmode=disable", dsn)
}

func TestRecordArgs(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := models.JobRecord{
		JobID: "j2", State: models.JobStateFailed, FailedStage: models.JobStateDownloading,
		Error: "404", StartedAt: start, CompletedAt: start.Add(1500 * time.Millisecond), Duration: 1500 * time.Millisecond,
	}

	args := recordArgs("r1", 1, rec)
	require.Len(t, args, 12)
	assert.Equal(t, "r1", args[0])
	assert.Equal(t, 1, args[1])
	assert.Equal(t, "failed", args[4])
	assert.Equal(t, "downloading", args[5])
	assert.Equal(t, int64(1500), args[11])
}

// TestRepositoryRoundTrip runs against a real database when
// LITURGIA_TEST_DATABASE_URL is set.
func TestRepositoryRoundTrip(t *testing.T) {
	url := os.Getenv("LITURGIA_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Skipping integration test - requires database connection")
	}

	db, err := Open(url, 2, 1)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	repo := NewRepository(db)
	require.NoError(t, repo.Migrate(ctx))

	start := time.Now().UTC().Truncate(time.Millisecond)
	run := &models.BatchRun{
		ID:          uuid.New().String(),
		StartedAt:   start,
		CompletedAt: start.Add(time.Minute),
		Records: []models.JobRecord{
			{JobID: "j1", State: models.JobStateDone, OutputName: "j1_legendado.mp4", Entries: 12, StartedAt: start, CompletedAt: start, Duration: time.Second},
			{JobID: "j2", State: models.JobStateFailed, FailedStage: models.JobStateDownloading, Error: "404", StartedAt: start, CompletedAt: start},
		},
	}
	require.NoError(t, repo.SaveRun(ctx, run))

	got, err := repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got.Records, 2)
	assert.Equal(t, "j1", got.Records[0].JobID)
	assert.Equal(t, models.JobStateDownloading, got.Records[1].FailedStage)
	assert.Equal(t, time.Second, got.Records[0].Duration)

	runs, err := repo.ListRecentRuns(ctx, 5)
	require.NoError(t, err)
	require.NotEmpty(t, runs)

	_, err = repo.GetRun(ctx, uuid.New().String())
	assert.ErrorIs(t, err, ErrRunNotFound)
}
