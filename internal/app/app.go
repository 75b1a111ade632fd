package app

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/umarkhanovv/roadwatch/internal/cache"
	"github.com/umarkhanovv/roadwatch/internal/config"
	"github.com/umarkhanovv/roadwatch/internal/database"
	"github.com/umarkhanovv/roadwatch/internal/detection"
	"github.com/umarkhanovv/roadwatch/internal/httpapi"
	"github.com/umarkhanovv/roadwatch/internal/inference"
	"github.com/umarkhanovv/roadwatch/internal/logging"
	"github.com/umarkhanovv/roadwatch/internal/metrics"
	"github.com/umarkhanovv/roadwatch/internal/notify"
	"github.com/umarkhanovv/roadwatch/internal/reports"
	"github.com/umarkhanovv/roadwatch/internal/uploads"
	"github.com/umarkhanovv/roadwatch/internal/video"
)

// App holds all application dependencies
type App struct {
	Config     *config.Config
	Logger     *logging.Logger
	Cache      cache.Cache
	Store      reports.Store
	Uploads    *uploads.Store
	Hub        *notify.Hub
	Reports    *reports.Service
	HTTPServer *httpapi.Server
	runner     *reports.GoroutineRunner
	db         *database.DB
}

// New creates and initializes a new App instance
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	// Initialize logger
	app.Logger = app.initLogger()

	metrics.Register()

	// Initialize cache
	app.Cache = app.initCache()

	// Initialize report storage (PostgreSQL, or in-memory when unavailable)
	app.Store = app.initStore(ctx)

	uploadStore, err := uploads.NewStore(cfg.Server.UploadDir, cfg.Server.MaxUploadBytes, app.Logger)
	if err != nil {
		return nil, err
	}
	app.Uploads = uploadStore

	// Initialize inference pipeline
	detector := NewDetector(ctx, cfg.Detection, app.Logger)
	adapter := detection.NewAdapter(detector, cfg.Detection.ConfidenceThreshold, cfg.Detection.Timeout, app.Logger)
	orchestrator := inference.NewOrchestrator(
		adapter,
		video.NewFFmpeg(cfg.Video.FFprobePath, cfg.Video.FFmpegPath),
		inference.Config{
			SamplesPerSecond: cfg.Video.SamplesPerSecond,
			MaxFrames:        cfg.Video.MaxFrames,
		},
		app.Logger,
	)

	app.Hub = notify.NewHub(app.Logger)
	app.runner = reports.NewGoroutineRunner(app.Logger)
	app.Reports = reports.NewService(reports.Options{
		Store:    app.Store,
		Analyzer: orchestrator,
		Notifier: app.Hub,
		Runner:   app.runner,
		Cache:    app.Cache,
		Logger:   app.Logger,
	})

	app.HTTPServer = httpapi.New(app.Reports, app.Uploads, app.Hub, cfg.Server.AllowedOrigins, app.Logger)

	return app, nil
}

// Run serves HTTP until the server is shut down
func (a *App) Run(ctx context.Context) error {
	a.Logger.Info("Starting HTTP server", logging.WithFields(map[string]interface{}{
		"addr":       a.Config.Server.HTTPAddr,
		"upload_dir": a.Uploads.Dir(),
		"detector":   a.Config.Detection.Backend,
	}))
	return a.HTTPServer.Start(a.Config.Server.HTTPAddr)
}

// Shutdown stops accepting requests, waits for in-flight reports until ctx
// expires, then releases storage.
func (a *App) Shutdown(ctx context.Context) error {
	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error("HTTP server shutdown error", logging.WithField("error", err.Error()))
		}
	}

	if a.runner != nil {
		done := make(chan struct{})
		go func() {
			a.runner.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			a.Logger.Warn("Shutdown timed out with reports still processing")
		}
	}

	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Error("Cache close error", logging.WithField("error", err.Error()))
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error("Database close error", logging.WithField("error", err.Error()))
		}
	}

	return nil
}

func (a *App) initLogger() *logging.Logger {
	return logging.NewWithWriter(logging.ParseLevel(a.Config.Logging.Level), a.Config.Logging.Format, os.Stderr)
}

func (a *App) initCache() cache.Cache {
	switch a.Config.Cache.Backend {
	case "redis":
		a.Logger.Info("Using Redis cache backend", logging.WithField("addr", a.Config.Cache.RedisAddr))
		redisCache, err := cache.NewRedis(cache.RedisConfig{
			Addr:   a.Config.Cache.RedisAddr,
			Prefix: cache.DefaultRedisPrefix,
		}, a.Config.Cache.TTL)
		if err != nil {
			a.Logger.Error("Failed to connect to Redis, falling back to memory cache", logging.WithField("error", err.Error()))
			return cache.NewMemory(a.Config.Cache.TTL)
		}
		return redisCache
	default:
		a.Logger.Info("Using in-memory cache backend")
		return cache.NewMemory(a.Config.Cache.TTL)
	}
}

func (a *App) initStore(ctx context.Context) reports.Store {
	dbConfig := database.DefaultConfig()
	dbConfig.Host = a.Config.Database.Host
	dbConfig.Port = a.Config.Database.Port
	dbConfig.User = a.Config.Database.User
	dbConfig.Password = a.Config.Database.Password
	dbConfig.Database = a.Config.Database.Database
	dbConfig.SSLMode = a.Config.Database.SSLMode

	db, err := database.New(dbConfig)
	if err != nil {
		a.Logger.Warn("Failed to connect to PostgreSQL, using in-memory report store", logging.WithField("error", err.Error()))
		return reports.NewMemoryStore(a.Logger)
	}

	a.Logger.Info("Connected to PostgreSQL")
	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.Migrate(migrateCtx); err != nil {
		a.Logger.Warn("Failed to run migrations, using in-memory report store", logging.WithField("error", err.Error()))
		db.Close()
		return reports.NewMemoryStore(a.Logger)
	}

	a.db = db
	return database.NewReportStore(db)
}

// NewDetector builds the configured detection backend. A backend that cannot
// be constructed degrades to the offline detector, so every report gets
// placeholder findings instead of none.
func NewDetector(ctx context.Context, cfg config.DetectionConfig, logger *logging.Logger) detection.Detector {
	switch strings.ToLower(cfg.Backend) {
	case "roboflow":
		client, err := detection.NewRoboflowClient(detection.RoboflowConfig{
			APIKey:            cfg.RoboflowAPIKey,
			Project:           cfg.RoboflowProject,
			Version:           cfg.RoboflowVersion,
			Overlap:           cfg.RoboflowOverlap,
			BaseURL:           cfg.RoboflowBaseURL,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})
		if err != nil {
			logger.Warn("Roboflow detector unavailable, using placeholder detections", logging.WithField("error", err.Error()))
			return detection.OfflineDetector{}
		}
		logger.Info("Using Roboflow detector", logging.WithFields(map[string]interface{}{
			"project": cfg.RoboflowProject,
			"version": cfg.RoboflowVersion,
		}))
		return client
	case "rekognition":
		client, err := detection.NewRekognitionClient(ctx, cfg.AWSRegion, cfg.ProjectVersionARN)
		if err != nil {
			logger.Warn("Rekognition detector unavailable, using placeholder detections", logging.WithField("error", err.Error()))
			return detection.OfflineDetector{}
		}
		logger.Info("Using Rekognition Custom Labels detector", logging.WithField("region", cfg.AWSRegion))
		return client
	default:
		logger.Info("Using placeholder detector")
		return detection.OfflineDetector{}
	}
}
