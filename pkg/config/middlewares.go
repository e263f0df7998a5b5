package config

import (
	"fmt"

	"github.com/anonto42/threadboard/backend/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// SetupMiddleware installs the global middleware chain. The body limit
// leaves room for an avatar and a file of MaxUploadSize each.
func SetupMiddleware(e *echo.Echo, cfg *Config, log *zap.Logger) {
	e.Use(middleware.RequestID())
	e.Use(logger.NewEchoRequestLogger(log))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSAllowedOrigins,
	}))
	if cfg.MaxUploadSize > 0 {
		e.Use(middleware.BodyLimit(fmt.Sprintf("%dB", 2*cfg.MaxUploadSize+1<<20)))
	}
}
