package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/anonto42/threadboard/backend/internal/captcha"
	"github.com/anonto42/threadboard/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// CaptchaService issues challenges and renders their images
type CaptchaService interface {
	Issue(ctx context.Context) (*models.Challenge, error)
	Image(ctx context.Context, key string) ([]byte, error)
}

// CaptchaHandler handles HTTP requests related to CAPTCHA challenges
type CaptchaHandler struct {
	captchaService CaptchaService
}

// NewCaptchaHandler creates a new CaptchaHandler
func NewCaptchaHandler(captchaService CaptchaService) *CaptchaHandler {
	return &CaptchaHandler{captchaService: captchaService}
}

// RegisterCaptchaRoutes registers captcha-related routes
func (h *CaptchaHandler) RegisterCaptchaRoutes(g *echo.Group) {
	g.GET("/captcha/", h.NewChallenge)
	g.GET("/captcha", h.NewChallenge)
	g.GET("/captcha/image/:key/", h.ChallengeImage)
	g.GET("/captcha/image/:key", h.ChallengeImage)
}

// NewChallenge issues a challenge and returns its key and image URL
func (h *CaptchaHandler) NewChallenge(c echo.Context) error {
	challenge, err := h.captchaService.Issue(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.CaptchaResponse{
		CaptchaKey:   challenge.Key,
		CaptchaImage: "/captcha/image/" + challenge.Key + "/",
	})
}

// ChallengeImage renders the PNG for a live challenge
func (h *CaptchaHandler) ChallengeImage(c echo.Context) error {
	img, err := h.captchaService.Image(c.Request().Context(), c.Param("key"))
	if errors.Is(err, captcha.ErrNotFound) || errors.Is(err, captcha.ErrExpired) {
		return echo.NewHTTPError(http.StatusNotFound, "CAPTCHA not found")
	}
	if err != nil {
		return err
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Blob(http.StatusOK, "image/png", img)
}
