package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/songforge/api/internal/client"
	"github.com/songforge/api/internal/config"
	"github.com/songforge/api/internal/handler"
	"github.com/songforge/api/internal/middleware"
	"github.com/songforge/api/internal/service"
	"github.com/songforge/api/internal/store"
	"github.com/songforge/api/internal/worker"
	ws "github.com/songforge/api/internal/websocket"
	"github.com/songforge/api/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogger := logger.New(cfg.Server.LogLevel, cfg.Server.Env)

	ctx := context.Background()

	// Initialize Postgres
	db, err := store.Connect(&cfg.Postgres, slogger)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer db.Close()

	songStore := store.NewSongStore(db)
	if err := songStore.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slogger.Warn("redis not available, rate limiting and background jobs degraded", "error", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	dispatcher := service.NewAsynqDispatcher(asynqClient, cfg.Poll.MaxRetry)

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub(slogger)
	go hub.Run()

	// Initialize provider clients
	var textGen client.TextGenerator
	if gemini, err := client.NewGeminiClient(ctx, &cfg.Gemini); err != nil {
		slogger.Warn("gemini unavailable, lyrics fall back to templates", "error", err)
	} else {
		textGen = gemini
	}

	sunoClient := client.NewSunoClient(&cfg.Suno, slogger)
	if !sunoClient.IsConfigured() {
		slogger.Warn("suno api key not set, rendering submissions will fail")
	}

	var storage client.StorageClient
	if r2, err := client.NewR2Client(&cfg.R2); err != nil {
		slogger.Warn("r2 unavailable, artifacts stay local only", "error", err)
	} else {
		storage = r2
	}

	// Initialize services
	lyricsService := service.NewLyricsService(textGen)
	reconciler := service.NewReconciler(songStore, hub, slogger)
	songService := service.NewSongService(
		songStore,
		sunoClient,
		lyricsService,
		reconciler,
		dispatcher,
		slogger,
		cfg.Suno.Model,
		time.Duration(cfg.Poll.InitialDelay)*time.Second,
	)
	artifactService := service.NewArtifactService(
		cfg.Download.Dir,
		time.Duration(cfg.Download.Timeout)*time.Second,
		storage,
		slogger,
	)

	// Initialize handlers
	lyricsHandler := handler.NewLyricsHandler(lyricsService, validate)
	songHandler := handler.NewSongHandler(songService, artifactService, validate)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"gemini":  textGen != nil && textGen.IsConfigured(),
			"suno":    sunoClient.IsConfigured(),
			"storage": storage != nil,
		})
	})

	// The provider pushes completion reports here; it carries no user token,
	// so the route stays outside the authenticated group.
	app.Post("/api/v1/callback", songHandler.Callback)

	// API routes
	api := app.Group("/api/v1", authMiddleware.Authenticate())

	// Lyrics routes
	lyrics := api.Group("/lyrics", rateLimiter.LyricsLimit(cfg.RateLimit.LyricsPerMin))
	lyrics.Post("/generate", lyricsHandler.Generate)

	// Song routes
	songs := api.Group("/songs")
	songs.Post("/", rateLimiter.SubmitLimit(cfg.RateLimit.SubmitPerHour), songHandler.Submit)
	songs.Get("/:taskId/status", songHandler.Status)
	songs.Post("/download", rateLimiter.DownloadLimit(cfg.RateLimit.DownloadPerHour), songHandler.Download)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:taskId", websocket.New(func(c *websocket.Conn) {
		taskID := c.Params("taskId")
		hub.HandleConnection(c, taskID)
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, songService, artifactService, slogger)

	// Re-arm polling for songs that were pending at the last shutdown
	if n, err := songService.RecoverPending(ctx); err != nil {
		slogger.Warn("failed to recover pending songs", "error", err)
	} else if n > 0 {
		slogger.Info("re-scheduled polls for pending songs", "count", n)
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slogger.Info("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			slogger.Error("server shutdown error", "error", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	slogger.Info("server starting", "addr", addr, "env", cfg.Server.Env)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, songService *service.SongService, artifactService *service.ArtifactService, slogger *slog.Logger) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				service.QueuePoll:        6,
				service.QueueMaterialize: 4,
			},
		},
	)

	// Create workers
	pollWorker := worker.NewPollWorker(songService, slogger)
	materializeWorker := worker.NewMaterializeWorker(artifactService, slogger)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypePoll, pollWorker.ProcessTask)
	mux.HandleFunc(service.TaskTypeMaterialize, materializeWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		slogger.Error("asynq worker error", "error", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
