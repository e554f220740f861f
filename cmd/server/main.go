package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/api/handlers"
	"github.com/maheshrc27/postflow/internal/api/middleware"
	"github.com/maheshrc27/postflow/internal/db"
	job "github.com/maheshrc27/postflow/internal/jobs"
	"github.com/maheshrc27/postflow/internal/lock"
	"github.com/maheshrc27/postflow/internal/media"
	"github.com/maheshrc27/postflow/internal/publisher"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/telemetry"
	"github.com/maheshrc27/postflow/pkg/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()
	telemetry.SetupLogger(cfg.LogFormat, cfg.LogLevel)

	sqlDB, err := db.Connect(cfg.PostgresURI, 25, 5)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(sqlDB)

	if err := db.RunMigrations(sqlDB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	cipher, err := utils.NewTokenCipher(cfg.SecretKey)
	if err != nil {
		log.Fatalf("Invalid SECRET_KEY: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURI})
	defer rdb.Close()

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()
	inspector := asynq.NewInspector(redisConn)
	defer inspector.Close()

	postRepo := repository.NewPostRepository(sqlDB)
	socialAccountRepo := repository.NewSocialAccountRepository(sqlDB)
	postingHistoryRepo := repository.NewPostingHistoryRepository(sqlDB)

	publishers := publisher.NewSet(publisher.Config{
		Timeout:             cfg.HTTPClientTimeout,
		RatePerMinute:       cfg.PlatformRatePerMin,
		TwitterClientID:     cfg.Twitter.ClientID,
		TwitterClientSecret: cfg.Twitter.ClientSecret,
		GoogleClientID:      cfg.Google.ClientID,
		GoogleClientSecret:  cfg.Google.ClientSecret,
	})

	var resolver media.Resolver = media.PassthroughResolver{}
	var uploader media.Uploader
	if cfg.R2Enabled() {
		store, err := media.NewR2Store(context.Background(), media.R2Config{
			AccountID:  cfg.R2.AccountID,
			AccessKey:  cfg.R2.AccessKey,
			SecretKey:  cfg.R2.SecretKey,
			BucketName: cfg.R2.BucketName,
		})
		if err != nil {
			log.Fatalf("Failed to configure R2: %v", err)
		}
		resolver, uploader = store, store
	}

	scheduler := queue.NewAsynqScheduler(client, inspector)

	credentialService := service.NewCredentialService(socialAccountRepo, cipher, publishers, lock.NewRedisLocker(rdb))
	postService := service.NewPostService(postRepo, postingHistoryRepo, credentialService, publishers, scheduler, resolver,
		service.WithCancelWindow(cfg.CancelSafetyWindow),
		service.WithDispatchTimeout(cfg.DispatchTimeout))
	platformService := service.NewPlatformService(*cfg, credentialService)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
		BodyLimit:    10 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			slog.Error("unhandled request error", "path", c.Path(), "error", err)
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	platform := handlers.NewPlatformHandler(platformService, *cfg)
	app.Get("/auth/:platform", platform.AddSocialAccount)
	app.Get("/auth/:platform/callback", platform.CallbackHandler)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(postService, uploader)
	api.Post("/posts", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/:id", post.GetPost)
	api.Post("/posts/:id/cancel", post.CancelPost)
	api.Get("/posts/:id/attempts", post.ListAttempts)

	api.Get("/accounts", platform.ListConnections)
	api.Delete("/accounts/:platform", platform.Disconnect)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(credentialService)
	c := cron.New()
	if err := c.AddFunc(cfg.TokenRefreshInterval, refreshTokenJob.RefreshTokens); err != nil {
		log.Fatalf("Invalid TOKEN_REFRESH_INTERVAL: %v", err)
	}
	c.Start()
	defer c.Stop()

	// queue
	publishJob := job.NewPublishPostJob(postService, scheduler, queue.RetryPolicy{
		MaxAttempts: cfg.PublishMaxAttempts,
		Delay:       cfg.PublishRetryDelay,
	})
	worker := queue.NewServer(redisConn, cfg.WorkerConcurrency)
	go func() {
		slog.Info("starting the asynq server", "concurrency", cfg.WorkerConcurrency)
		if err := worker.Run(queue.NewServeMux(publishJob.Handle)); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	slog.Info("server is running", "addr", cfg.HTTPAddr, "metrics_addr", cfg.MetricsAddr)

	gracefulShutdown(app, worker, metricsServer)
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, worker *asynq.Server, metricsServer *http.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	slog.Info("shutting down server")

	if err := app.Shutdown(); err != nil {
		slog.Error("failed to shut down server", "error", err)
	}
	worker.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shut down metrics server", "error", err)
	}

	slog.Info("server shutdown complete")
}
