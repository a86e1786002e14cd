package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("GET", "/api/v1/jobs", "200", 0.123)

	counter := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/jobs", "200"))
	assert.Equal(t, 1.0, counter)
}

func TestRecordJobCompleted(t *testing.T) {
	JobsCompletedTotal.Reset()
	JobsFailedTotal.Reset()
	JobsInProgress.Set(0)

	RecordJobStarted()
	RecordJobStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(JobsInProgress))

	RecordJobCompleted("done", "", 120.5)
	RecordJobCompleted("failed", "downloading", 3.2)

	assert.Equal(t, 1.0, testutil.ToFloat64(JobsCompletedTotal.WithLabelValues("done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(JobsCompletedTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(JobsFailedTotal.WithLabelValues("downloading")))
	assert.Equal(t, 0.0, testutil.ToFloat64(JobsInProgress))
}

func TestRecordBatchRun(t *testing.T) {
	BatchRunsTotal.Reset()

	RecordBatchRun(3, 0)
	RecordBatchRun(3, 1)
	RecordBatchRun(0, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(BatchRunsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(BatchRunsTotal.WithLabelValues("partial_failure")))
}

func TestRecordCommand(t *testing.T) {
	CommandsTotal.Reset()
	CommandDuration.Reset()

	RecordCommand("ffmpeg", 2.5, nil)
	RecordCommand("ffmpeg", 0.1, errors.New("exit status 2"))
	RecordCommand("ffmpeg", 0.1, errors.New("exit status 1"))

	assert.Equal(t, 1.0, testutil.ToFloat64(CommandsTotal.WithLabelValues("ffmpeg", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(CommandsTotal.WithLabelValues("ffmpeg", "error")))
}

func TestRecordRemoteOperation(t *testing.T) {
	RemoteOperationsTotal.Reset()

	RecordRemoteOperation("list_jobs", 0.05, nil)
	RecordRemoteOperation("upload_result", 1.2, errors.New("503"))

	assert.Equal(t, 1.0, testutil.ToFloat64(RemoteOperationsTotal.WithLabelValues("list_jobs", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(RemoteOperationsTotal.WithLabelValues("upload_result", "error")))
}

func TestRecordStage(t *testing.T) {
	StageDuration.Reset()

	RecordStage("encoding", 10, nil)
	RecordStage("encoding", 1, errors.New("boom"))

	assert.Equal(t, 2, testutil.CollectAndCount(StageDuration))
}

func TestRecordStorageOperation(t *testing.T) {
	StorageOperationsTotal.Reset()
	StorageBytesTransferred.Reset()

	RecordStorageOperation("upload", "success", 1024)
	RecordStorageOperation("upload", "success", 2048)

	assert.Equal(t, 2.0, testutil.ToFloat64(StorageOperationsTotal.WithLabelValues("upload", "success")))
	assert.Equal(t, 3072.0, testutil.ToFloat64(StorageBytesTransferred.WithLabelValues("upload")))
}

func TestRecordCacheAccess(t *testing.T) {
	CacheHitsTotal.Reset()
	CacheMissesTotal.Reset()

	RecordCacheAccess("transcript", true)
	RecordCacheAccess("transcript", false)
	RecordCacheAccess("transcript", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(CacheHitsTotal.WithLabelValues("transcript")))
	assert.Equal(t, 1.0, testutil.ToFloat64(CacheMissesTotal.WithLabelValues("transcript")))
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
