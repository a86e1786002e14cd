package main

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/app"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/batch"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/database"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/logging"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/style"
	"github.com/therealutkarshpriyadarshi/liturgia/pkg/models"
)

type jobRunner interface {
	Run(ctx context.Context) (*batch.Run, error)
	ProcessJobByID(ctx context.Context, id string) (batch.Record, error)
}

type jobLister interface {
	ListReadyJobs(ctx context.Context) ([]models.Job, error)
}

type stateReader interface {
	GetJobState(ctx context.Context, jobID string) (string, error)
	Ping(ctx context.Context) error
}

type runHistory interface {
	ListRecentRuns(ctx context.Context, limit int) ([]database.RunSummary, error)
	GetRun(ctx context.Context, id string) (*models.BatchRun, error)
}

// API serves the HTTP surface over the batch orchestrator
type API struct {
	runner  jobRunner
	jobs    jobLister
	styles  *style.Store
	states  stateReader
	history runHistory
	logger  *logging.Logger

	// base outlives requests so background runs survive the response
	base context.Context
	wg   sync.WaitGroup

	mu   sync.Mutex
	busy bool
}

func newAPI(ctx context.Context, a *app.App, logger *logging.Logger) *API {
	api := &API{
		runner: a.Orchestrator,
		jobs:   a.Remote,
		styles: a.Styles,
		logger: logger.WithComponent("api"),
		base:   ctx,
	}
	if a.Cache != nil {
		api.states = a.Cache
	}
	if a.History != nil {
		api.history = a.History
	}
	return api
}

func (api *API) wait() {
	api.wg.Wait()
}

func (api *API) healthCheck(c *gin.Context) {
	status := gin.H{"status": "healthy"}
	if api.states != nil {
		if err := api.states.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "redis": err.Error()})
			return
		}
		status["redis"] = "ok"
	}
	c.JSON(http.StatusOK, status)
}

func (api *API) listJobs(c *gin.Context) {
	jobs, err := api.jobs.ListReadyJobs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

// acquire claims the single processing slot
func (api *API) acquire() bool {
	api.mu.Lock()
	defer api.mu.Unlock()
	if api.busy {
		return false
	}
	api.busy = true
	return true
}

func (api *API) release() {
	api.mu.Lock()
	api.busy = false
	api.mu.Unlock()
}

// background runs fn in the processing slot detached from the request
func (api *API) background(fn func(ctx context.Context)) {
	api.wg.Add(1)
	go func() {
		defer api.wg.Done()
		defer api.release()
		fn(api.base)
	}()
}

func (api *API) encodeJob(c *gin.Context) {
	id := c.Param("id")
	if !api.acquire() {
		c.JSON(http.StatusConflict, gin.H{"error": "A batch is already being processed"})
		return
	}

	if c.Query("wait") == "true" {
		defer api.release()
		rec, err := api.runner.ProcessJobByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "record": rec})
			return
		}
		c.JSON(http.StatusOK, gin.H{"record": rec})
		return
	}

	api.background(func(ctx context.Context) {
		if _, err := api.runner.ProcessJobByID(ctx, id); err != nil {
			api.logger.WithJobID(id).ErrorWithErr("Requested encode failed", err)
		}
	})
	c.JSON(http.StatusAccepted, gin.H{"job_id": id, "status": "accepted"})
}

func (api *API) startBatchRun(c *gin.Context) {
	if !api.acquire() {
		c.JSON(http.StatusConflict, gin.H{"error": "A batch is already being processed"})
		return
	}

	if c.Query("wait") == "true" {
		defer api.release()
		run, err := api.runner.Run(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"run": run, "failed": run.Failed(), "succeeded": run.Succeeded()})
		return
	}

	api.background(func(ctx context.Context) {
		if _, err := api.runner.Run(ctx); err != nil {
			api.logger.ErrorWithErr("Requested batch run failed", err)
		}
	})
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (api *API) getJobState(c *gin.Context) {
	if api.states == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Job state tracking requires redis"})
		return
	}

	state, err := api.states.GetJobState(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if state == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No state recorded for job"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": c.Param("id"), "state": state})
}

func (api *API) listBatchRuns(c *gin.Context) {
	if api.history == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Run history requires a database"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
		return
	}

	runs, err := api.history.ListRecentRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (api *API) getBatchRun(c *gin.Context) {
	if api.history == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Run history requires a database"})
		return
	}

	run, err := api.history.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, database.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Batch run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (api *API) getStyle(c *gin.Context) {
	c.JSON(http.StatusOK, api.styles.Load())
}

// updateStyle merges the given keys into the stored style
func (api *API) updateStyle(c *gin.Context) {
	var changes map[string]interface{}
	if err := c.ShouldBindJSON(&changes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid style document"})
		return
	}

	cfg := api.styles.Load()
	for key, raw := range changes {
		value, ok := styleValue(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported value for " + key})
			return
		}
		if err := cfg.Set(key, value); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if err := api.styles.Save(cfg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func styleValue(raw interface{}) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case float64:
		if v != float64(int(v)) {
			return "", false
		}
		return strconv.Itoa(int(v)), true
	}
	return "", false
}

func (api *API) uploadFont(c *gin.Context) {
	header, err := c.FormFile("font")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing font file"})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	path, err := api.styles.SaveCustomFont(f, filepath.Base(header.Filename))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := api.styles.Load()
	cfg.FontStyle = style.FontCustomUpload
	if err := api.styles.Save(cfg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	family, _ := api.styles.ResolveFont(style.FontCustomUpload)
	c.JSON(http.StatusCreated, gin.H{"path": path, "family": family, "style": cfg})
}
