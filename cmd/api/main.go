package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/app"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/config"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/logging"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/metrics"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/middleware"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		a.Close()
		logger.Fatalf("Failed to initialize services: %v", err)
	}
	defer a.Close()

	api := newAPI(ctx, a, logger)

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.ErrorWithErr("Metrics server stopped", err)
			}
		}()
		defer metricsServer.Shutdown(context.Background())
	}

	limiter := middleware.NewRateLimiter(cfg.Auth.RateLimit, cfg.Auth.RateBurst)
	go limiter.Cleanup(ctx, 10*time.Minute)

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("auth.jwtSecret is empty, API routes are unauthenticated")
	}

	gin.SetMode(gin.ReleaseMode)
	router := setupRouter(api, routerOptions{
		jwtSecret: cfg.Auth.JWTSecret,
		limiter:   limiter,
		logger:    logger,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithErr("Server forced to shutdown", err)
	}
	api.wait()

	logger.Info("Server stopped")
}

type routerOptions struct {
	jwtSecret string
	limiter   *middleware.RateLimiter
	logger    *logging.Logger
}

func setupRouter(api *API, opts routerOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(opts.logger))

	// Health check
	router.GET("/health", api.healthCheck)

	v1 := router.Group("/api/v1")
	if opts.jwtSecret != "" {
		v1.Use(middleware.JWTAuth(opts.jwtSecret))
	}
	if opts.limiter != nil {
		v1.Use(middleware.RateLimit(opts.limiter))
	}
	{
		// Jobs
		v1.GET("/jobs", api.listJobs)
		v1.POST("/jobs/:id/encode", api.encodeJob)
		v1.GET("/jobs/:id/state", api.getJobState)

		// Batch runs
		v1.POST("/batch-runs", api.startBatchRun)
		v1.GET("/batch-runs", api.listBatchRuns)
		v1.GET("/batch-runs/:id", api.getBatchRun)

		// Style
		v1.GET("/style", api.getStyle)
		v1.PUT("/style", api.updateStyle)
		v1.POST("/style/font", api.uploadFont)
	}

	return router
}
