package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/locaposty/configs"
	"github.com/maheshrc27/locaposty/internal/ai"
	"github.com/maheshrc27/locaposty/internal/api"
	"github.com/maheshrc27/locaposty/internal/api/handlers"
	"github.com/maheshrc27/locaposty/internal/cache"
	"github.com/maheshrc27/locaposty/internal/gmb"
	job "github.com/maheshrc27/locaposty/internal/jobs"
	"github.com/maheshrc27/locaposty/internal/logger"
	"github.com/maheshrc27/locaposty/internal/queue"
	"github.com/maheshrc27/locaposty/internal/repository"
	"github.com/maheshrc27/locaposty/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()
	slog.SetDefault(logger.New(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	if cfg.RunMigrationsOnStart {
		if err := repository.Migrate(db); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	redisConn := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	client := asynq.NewClient(redisConn)
	defer client.Close()
	inspector := asynq.NewInspector(redisConn)
	defer inspector.Close()

	loginOAuth := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURI,
		Scopes:       service.LoginScopes,
		Endpoint:     google.Endpoint,
	}
	gmbOAuth := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GMBRedirectURI,
		Scopes:       []string{service.BusinessManageScope},
		Endpoint:     google.Endpoint,
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	postRepo := repository.NewPostRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	attemptRepo := repository.NewPublishAttemptRepository(db)
	apiKeyRepo := repository.NewApiKeyRepository(db)

	processed := cache.NewProcessedSet(rdb, cfg.ProcessedPostsTTL)
	locker := cache.NewLocker(rdb)

	gmbClient := gmb.NewClient(gmb.DefaultBaseURL, httpClient)
	assistant := ai.NewAssistant(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL, httpClient)

	s3Client, err := service.NewS3Client(context.Background(), cfg.S3)
	if err != nil {
		log.Fatalf("Failed to set up object storage: %v", err)
	}

	scheduler := queue.NewScheduler(queue.NewBroker(client, inspector, cfg.Queue.MaxRetry), processed)

	tokenService := service.NewTokenService(locationRepo, gmbOAuth, locker, cfg.SecretKey, cfg.TokenExpiryBuffer)
	publishService := service.NewPublishService(postRepo, locationRepo, tokenService, gmbClient, processed, attemptRepo)
	postService := service.NewPostService(postRepo, locationRepo, publishService, scheduler, attemptRepo)
	reviewService := service.NewReviewService(locationRepo, reviewRepo, tokenService, gmbClient, cfg.ReviewSyncPageSize)
	autoReplyService := service.NewAutoReplyService(locationRepo, reviewRepo, tokenService, gmbClient, assistant)
	locationService := service.NewLocationService(db, locationRepo, orgRepo, gmbOAuth, cfg.SecretKey)
	authService := service.NewAuthService(db, loginOAuth, userRepo, orgRepo)
	userService := service.NewUserService(userRepo)
	mediaService := service.NewMediaService(s3Client, cfg.S3.BucketName, cfg.S3.PublicURL)
	apiKeyService := service.NewApiKeyService(apiKeyRepo)

	app := api.NewApp(cfg, api.Handlers{
		Auth:     handlers.NewAuthHandler(cfg, authService),
		User:     handlers.NewUserHandler(userService),
		Post:     handlers.NewPostHandler(postService),
		Review:   handlers.NewReviewHandler(reviewService, autoReplyService),
		Location: handlers.NewLocationHandler(cfg, locationService),
		Media:    handlers.NewMediaHandler(mediaService),
		ApiKey:   handlers.NewApiKeyHandler(apiKeyService),
	}, apiKeyService, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	})

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(locationRepo, tokenService)
	reviewSyncJob := job.NewReviewSyncJob(reviewService)
	autoReplyJob := job.NewAutoReplyJob(autoReplyService)

	c := cron.New()
	c.AddFunc(cfg.Cron.TokenRefresh, refreshTokenJob.RefreshTokens)
	c.AddFunc(cfg.Cron.ReviewSync, reviewSyncJob.SyncReviews)
	c.AddFunc(cfg.Cron.AutoReply, autoReplyJob.ProcessReviews)
	c.Start()

	// queue
	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency:    cfg.Queue.Concurrency,
		RetryDelayFunc: queue.RetryDelay,
		Logger:         queue.Logger{},
	})
	mux := asynq.NewServeMux()
	queue.NewWorker(publishService).Register(mux)

	go func() {
		slog.Info("starting the asynq server", "concurrency", cfg.Queue.Concurrency)
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	slog.Info("server is running", "port", cfg.Port)

	gracefulShutdown(app, server, c)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

// gracefulShutdown stops intake first, then lets running jobs finish. The
// deferred closes in main run after it returns.
func gracefulShutdown(app *fiber.App, server *asynq.Server, c *cron.Cron) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	slog.Info("shutting down server")

	if err := app.Shutdown(); err != nil {
		slog.Error("failed to shut down http server", "error", err)
	}
	c.Stop()
	server.Shutdown()

	slog.Info("server shutdown complete")
}
