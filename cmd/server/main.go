package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/codebuildervaibhav/video-summarizer/internal/cleanup"
	"github.com/codebuildervaibhav/video-summarizer/internal/config"
	"github.com/codebuildervaibhav/video-summarizer/internal/handlers"
	"github.com/codebuildervaibhav/video-summarizer/internal/llm"
	"github.com/codebuildervaibhav/video-summarizer/internal/lock"
	"github.com/codebuildervaibhav/video-summarizer/internal/logger"
	"github.com/codebuildervaibhav/video-summarizer/internal/queue"
	"github.com/codebuildervaibhav/video-summarizer/internal/service"
	"github.com/codebuildervaibhav/video-summarizer/internal/storage"
	"github.com/codebuildervaibhav/video-summarizer/internal/summarizer"
	"github.com/codebuildervaibhav/video-summarizer/internal/telemetry"
	"github.com/codebuildervaibhav/video-summarizer/internal/transcript"
	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Logs go to stdout and to the buffer behind /logs
	logBuffer := logger.NewLogBuffer(1000)
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, io.MultiWriter(os.Stdout, logBuffer))
	slog.SetDefault(log)

	if err := run(cfg, log, logBuffer); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger, logBuffer *logger.LogBuffer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing components...")

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		ServiceName:  cfg.Telemetry.ServiceName,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Logger:       log,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("failed to flush traces", "error", err)
		}
	}()

	// Database
	dsn := cfg.Storage.DSN
	if cfg.Storage.Driver == storage.DriverSQLite {
		dsn = cfg.Storage.Database
	}
	db, err := storage.NewTranscriptDB(ctx, cfg.Storage.Driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("database ready", "driver", cfg.Storage.Driver)

	// Language model. A missing key is not fatal: requests fail with a
	// configuration error until one is set.
	client, err := llm.New(ctx, llm.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
	switch {
	case errors.Is(err, types.ErrConfiguration):
		log.Warn("no API key configured for the language model, summaries are disabled", "provider", cfg.LLM.Provider)
		client = nil
	case err != nil:
		return err
	}

	pipelineOpts := []summarizer.Option{
		summarizer.WithChunkSize(cfg.Pipeline.ChunkSize),
		summarizer.WithMaxConcurrency(cfg.Pipeline.MaxConcurrency),
		summarizer.WithCallTimeout(cfg.CallTimeout()),
		summarizer.WithMaxTokens(cfg.Pipeline.SegmentMaxTokens, cfg.Pipeline.CombineMaxTokens),
		summarizer.WithTemperature(*cfg.Pipeline.Temperature),
		summarizer.WithLogger(log),
	}
	if counter, err := llm.NewTiktokenCounter(cfg.Pipeline.TokenizerModel); err != nil {
		log.Warn("token counting disabled", "model", cfg.Pipeline.TokenizerModel, "error", err)
	} else {
		pipelineOpts = append(pipelineOpts, summarizer.WithTokenCounter(counter))
	}
	pipeline := summarizer.New(client, pipelineOpts...)

	// Transcript source
	fetchTimeout := time.Duration(cfg.Transcript.TimeoutSeconds) * time.Second
	var fetcher transcript.Fetcher
	if cfg.Transcript.Fetcher == "browser" {
		fetcher = transcript.NewBrowserFetcher(fetchTimeout, cfg.Transcript.Language, log)
	} else {
		fetcher = transcript.NewHTTPFetcher(fetchTimeout, transcript.WithLanguage(cfg.Transcript.Language))
	}
	var titles transcript.TitleSource
	if cfg.Transcript.YouTubeAPIKey != "" {
		meta, err := transcript.NewYouTubeMetadata(ctx, cfg.Transcript.YouTubeAPIKey)
		if err != nil {
			log.Warn("YouTube Data API not available", "error", err)
		} else {
			titles = meta
			log.Info("YouTube Data API enabled for titles")
		}
	}
	transcripts := transcript.NewService(fetcher, titles, log)

	// Per-URL lock
	var locker lock.Locker = lock.NewLocal()
	if cfg.Redis.Addr != "" {
		rl, err := lock.NewRedis(ctx, lock.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      time.Duration(cfg.Redis.LockTTLSeconds) * time.Second,
		}, log)
		if err != nil {
			return err
		}
		defer rl.Close()
		locker = rl
		log.Info("using redis for per-URL locking", "addr", cfg.Redis.Addr)
	}

	// Exports
	localStorage := storage.NewLocalStorage(cfg.Storage.OutputDir)

	var drive queue.DriveUploader
	if _, err := os.Stat(cfg.GoogleDrive.CredentialsFile); err == nil {
		dc, err := storage.NewDriveClient(ctx,
			cfg.GoogleDrive.CredentialsFile,
			cfg.GoogleDrive.TokenFile,
			cfg.GoogleDrive.FolderName,
		)
		if err != nil {
			log.Warn("Google Drive not available, summaries will only be saved locally", "error", err)
		} else {
			drive = dc
			log.Info("Google Drive integration enabled")
		}
	} else {
		log.Info("Google Drive credentials not found - saving locally only")
	}

	// Worker pool
	workerPool := queue.NewWorkerPool(queue.Config{
		Workers:    cfg.Workers.Count,
		QueueSize:  cfg.Workers.QueueSize,
		JobTimeout: time.Duration(cfg.Workers.JobTimeoutMinutes) * time.Minute,
	}, transcripts, pipeline, db, localStorage, drive, log)
	workerPool.Start()
	defer workerPool.Stop()

	reaper := cleanup.NewReaper(db, cfg.Cleanup.IntervalMinutes, cfg.Cleanup.MaxAgeHours, log)
	reaper.Start()
	defer reaper.Stop()

	svc := service.New(db, workerPool, locker, log)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.Server.BodyLimitKB * 1024,
		DisableStartupMessage: true,
		ErrorHandler:          handlers.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{Output: io.MultiWriter(os.Stdout, logBuffer)}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	// Routes
	app.Get("/health", handlers.Health)
	app.Get("/logs", handlers.Logs(logBuffer))
	handlers.NewTranscriptHandler(svc).Register(app)
	handlers.NewStreamHandler(svc, 2*time.Second, log).Register(app)

	go func() {
		<-ctx.Done()
		log.Info("shutting down gracefully...")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Error("shutdown error", "error", err)
		}
	}()

	log.Info("server starting", "addr", cfg.Addr())
	log.Info("endpoints",
		"process", "POST /api/process",
		"status", "GET /api/status/:id",
		"list", "GET /api/list",
		"stream", "GET /ws/status/:id",
		"logs", "GET /logs",
		"health", "GET /health",
	)

	return app.Listen(cfg.Addr())
}
