package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/threadboard/backend/internal/router"
	"github.com/anonto42/threadboard/backend/internal/storage"
	"github.com/anonto42/threadboard/backend/pkg/config"
	"github.com/anonto42/threadboard/backend/pkg/firebase"
	"github.com/anonto42/threadboard/backend/pkg/logger"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewZapLogger(logger.Config{Level: cfg.LogLevel, Development: cfg.IsDevelopment()})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB()

	store, err := initStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	config.SetupMiddleware(e, cfg, zapLogger)
	e.Use(echoprometheus.NewMiddleware("threadboard"))

	if err := router.SetupRoutes(e, router.Dependencies{
		Config:  cfg,
		DB:      db,
		Storage: store,
		Logger:  zapLogger,
	}); err != nil {
		log.Fatalf("Failed to set up routes: %v", err)
	}

	metrics := echo.New()
	metrics.HideBanner = true
	metrics.GET("/metrics", echoprometheus.NewHandler())

	go func() {
		if err := metrics.Start(":" + cfg.MetricsPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Error("Metrics server stopped", zap.Error(err))
		}
	}()
	go func() {
		zapLogger.Info("Starting server", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Error("Server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zapLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server shutdown failed", zap.Error(err))
	}
	if err := metrics.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Metrics server shutdown failed", zap.Error(err))
	}
}

func initStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageDriver {
	case config.StorageS3:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		log.Printf("Storing uploads in S3 bucket %s", cfg.S3Bucket)
		return storage.NewS3Storage(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Region, cfg.S3PublicURL), nil
	case config.StorageFirebase:
		app, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseBucket)
		if err != nil {
			return nil, err
		}
		return storage.NewFirebaseStorage(app.Bucket, cfg.FirebaseBucket, ""), nil
	default:
		log.Printf("Storing uploads under %s", cfg.MediaRoot)
		return storage.NewLocalStorage(cfg.MediaRoot, cfg.MediaURL), nil
	}
}
