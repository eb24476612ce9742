package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/essaypilot/essaypilot-api/internal/config"
	"github.com/essaypilot/essaypilot-api/internal/database"
	"github.com/essaypilot/essaypilot-api/internal/handler"
	"github.com/essaypilot/essaypilot-api/internal/middleware"
	"github.com/essaypilot/essaypilot-api/internal/models"
	"github.com/essaypilot/essaypilot-api/internal/repository"
	"github.com/essaypilot/essaypilot-api/internal/router"
	"github.com/essaypilot/essaypilot-api/internal/service"
	"github.com/essaypilot/essaypilot-api/pkg/ai"
	"github.com/essaypilot/essaypilot-api/pkg/mailer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Essay{}, &models.User{}, &models.CreditTransaction{}, &models.BillingEvent{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.SubmissionMode == config.SubmissionModeDeferred {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	generator, err := ai.NewOpenAIGenerator(ai.OpenAIConfig{
		APIKey: cfg.OpenAIAPIKey,
		Model:  cfg.OpenAIModel,
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("failed to create feedback generator: %v", err)
	}

	var notifier service.FeedbackNotifier
	if cfg.MailerBaseURL != "" && cfg.MailerAPIKey != "" {
		mailClient, err := mailer.New(mailer.Config{
			BaseURL: cfg.MailerBaseURL,
			APIKey:  cfg.MailerAPIKey,
			Logger:  logger,
		})
		if err != nil {
			log.Fatalf("failed to create mailer: %v", err)
		}
		notifier = service.NewEmailNotifier(mailClient, cfg.FeedbackTemplateID, logger)
	} else {
		logger.Warn().Msg("mailer not configured, feedback notifications will only be logged")
		notifier = service.NewLogNotifier(logger)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	essayRepo := repository.NewEssayRepository(db)
	userRepo := repository.NewUserRepository(db)
	billingRepo := repository.NewBillingRepository(db)

	ledger := service.NewCreditLedger(userRepo, logger)
	guard := service.NewDuplicateGuard(essayRepo, redisClient, cfg.DuplicateWindow, cfg.DuplicateThreshold, cfg.GuardCacheTTL, logger)
	essayService := service.NewEssayService(essayRepo, ledger, guard, generator, notifier, validate, cfg.SubmissionMode, natsConn, logger)
	billingService, err := service.NewBillingService(billingRepo, ledger, logger)
	if err != nil {
		log.Fatalf("failed to create billing service: %v", err)
	}
	adminService := service.NewAdminService(essayRepo, userRepo, ledger, validate, logger)

	essayHandler := handler.NewEssayHandler(essayService, logger)
	billingHandler := handler.NewBillingHandler(billingService, logger)
	adminHandler := handler.NewAdminHandler(adminService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		EssayHandler:   essayHandler,
		BillingHandler: billingHandler,
		AdminHandler:   adminHandler,
		JWTMiddleware:  middleware.JWTProtected(cfg.JWTSecret),
	})

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	essayService.Start(workerCtx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, stopWorker)
}

func waitForShutdown(app *fiber.App, stopWorker context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
