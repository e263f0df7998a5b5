package router

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/anonto42/threadboard/backend/internal/captcha"
	"github.com/anonto42/threadboard/backend/internal/handlers"
	"github.com/anonto42/threadboard/backend/internal/media"
	"github.com/anonto42/threadboard/backend/internal/models"
	"github.com/anonto42/threadboard/backend/internal/repositories"
	"github.com/anonto42/threadboard/backend/internal/services"
	"github.com/anonto42/threadboard/backend/internal/storage"
	"github.com/anonto42/threadboard/backend/pkg/config"
	"github.com/anonto42/threadboard/backend/validators"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Dependencies are the long-lived clients the routes are built on
type Dependencies struct {
	Config  *config.Config
	DB      *config.DB
	Storage storage.Storage
	Logger  *zap.Logger
}

// SetupRoutes migrates the schema and wires repositories, services and
// handlers onto e
func SetupRoutes(e *echo.Echo, deps Dependencies) error {
	cfg := deps.Config

	if err := deps.DB.Postgres.AutoMigrate(&models.Comment{}); err != nil {
		return fmt.Errorf("failed to auto migrate models: %w", err)
	}
	log.Println("PostgreSQL auto-migrations completed.")

	e.Validator = validators.NewValidator()
	e.HTTPErrorHandler = handlers.NewHTTPErrorHandler(deps.Logger)

	e.GET("/health", handlers.HealthCheck)

	if cfg.StorageDriver == config.StorageLocal {
		e.Static(cfg.MediaURL, cfg.MediaRoot)
		log.Printf("Serving uploads from %s under %s", cfg.MediaRoot, cfg.MediaURL)
	}

	// --- Initialize Repositories ---
	commentRepo := repositories.NewPostgresCommentRepository(deps.DB.Postgres)

	api := e.Group("")

	var verifier services.ChallengeVerifier
	if cfg.CaptchaEnabled {
		challengeRepo, err := newChallengeRepository(cfg, deps.DB)
		if err != nil {
			return err
		}
		captchaService := captcha.NewService(challengeRepo, cfg.CaptchaTimeout)
		verifier = captchaService

		handlers.NewCaptchaHandler(captchaService).RegisterCaptchaRoutes(api)
		log.Printf("Captcha routes configured (%s store).", cfg.CaptchaStore)
	}

	commentService := services.NewCommentService(
		commentRepo,
		verifier,
		deps.Storage,
		e.Validator,
		services.CommentServiceConfig{
			CaptchaEnabled: cfg.CaptchaEnabled,
			AllowedFiles:   media.NewExtensionAllowList(cfg.AllowedFileExtensions),
		},
		deps.Logger,
	)
	handlers.NewCommentHandler(commentService, cfg.MaxUploadSize).RegisterCommentRoutes(api, cfg.AllowDelete)
	log.Println("Comment routes configured.")

	return nil
}

func newChallengeRepository(cfg *config.Config, db *config.DB) (repositories.ChallengeRepository, error) {
	switch cfg.CaptchaStore {
	case config.CaptchaStoreMongo:
		repo := repositories.NewMongoChallengeRepository(db.Mongo.Database(cfg.MongoDatabase))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("failed to create challenge indexes: %w", err)
		}
		return repo, nil
	default:
		return repositories.NewRedisChallengeRepository(db.Redis), nil
	}
}
