package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/buildforge/api/internal/client"
	"github.com/buildforge/api/internal/config"
	"github.com/buildforge/api/internal/handler"
	"github.com/buildforge/api/internal/middleware"
	"github.com/buildforge/api/internal/model"
	"github.com/buildforge/api/internal/queue"
	"github.com/buildforge/api/internal/security"
	"github.com/buildforge/api/internal/service"
	"github.com/buildforge/api/internal/worker"
	ws "github.com/buildforge/api/internal/websocket"
	"github.com/buildforge/api/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Test Redis connection; fall back to log-only security events without it
	var recorder security.Recorder = security.LogRecorder{}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available, security events go to the log: %v", err)
	} else {
		recorder = security.NewRedisRecorder(redisClient, "security:events")
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Prompt guard and job queue
	guard := security.NewGuard(cfg.Features, recorder)
	jobQueue := queue.New(queue.Options{
		Retention:       cfg.Queue.Retention,
		CleanupInterval: cfg.Queue.CleanupInterval,
		JobTimeout:      cfg.Queue.JobTimeout,
	})

	// LLM client and workers
	llmClient := client.NewLLMClient(&cfg.LLM)
	if !llmClient.IsConfigured() {
		log.Printf("Warning: LLM API key not set, workers use mock output")
	}
	jobQueue.Register(model.JobTypeGeneration, worker.NewGenerator(jobQueue, llmClient, hub).Process)
	jobQueue.Register(model.JobTypeModification, worker.NewModifier(jobQueue, llmClient, hub).Process)
	jobQueue.Run(ctx)

	// Initialize services
	generateService := service.NewGenerateService(guard, jobQueue)
	modifyService := service.NewModifyService(guard, jobQueue)
	analyzeService := service.NewAnalyzeService(guard, llmClient)
	jobService := service.NewJobService(jobQueue)

	// Initialize handlers
	generateHandler := handler.NewGenerateHandler(generateService, validate)
	modifyHandler := handler.NewModifyHandler(modifyService, validate)
	analyzeHandler := handler.NewAnalyzeHandler(analyzeService, validate)
	jobHandler := handler.NewJobHandler(jobService)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(redisClient, recorder)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    20 * 1024 * 1024, // modification payloads carry full file sets
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate())

	api.Post("/generate",
		rateLimiter.Limit(string(model.JobTypeGeneration), cfg.RateLimit.Generation),
		generateHandler.Start)
	api.Post("/modify",
		rateLimiter.Limit(string(model.JobTypeModification), cfg.RateLimit.Modification),
		modifyHandler.Start)
	api.Post("/analyze",
		rateLimiter.Limit(security.FeatureAnalysis, cfg.RateLimit.Analysis),
		analyzeHandler.Analyze)
	api.Get("/jobs/:jobId", jobHandler.Status)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		stop()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(response.ErrorResponse{
		Error: response.ErrorDetail{
			Code:    response.CodeServiceError,
			Message: message,
		},
	})
}
