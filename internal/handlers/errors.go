package handlers

import (
	"errors"
	"net/http"

	"github.com/anonto42/threadboard/backend/internal/captcha"
	"github.com/anonto42/threadboard/backend/internal/repositories"
	"github.com/anonto42/threadboard/backend/validators"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// NewHTTPErrorHandler maps handler errors to responses:
//
//	validators.FieldErrors      400 {field: [messages]}
//	captcha challenge errors    400 {error: message}
//	ErrCommentNotFound          404 {error: message}
//	*echo.HTTPError             its code, {error: message}
//	anything else               500 {error: "Internal Server Error"}, logged
func NewHTTPErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := errorResponse(err)
		if code >= http.StatusInternalServerError {
			logger.Error("Unhandled error",
				zap.Error(err),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.Stack("stack"),
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			logger.Error("Failed to send error response", zap.Error(err))
		}
	}
}

func errorResponse(err error) (int, interface{}) {
	var fieldErrs validators.FieldErrors
	if errors.As(err, &fieldErrs) {
		return http.StatusBadRequest, fieldErrs
	}
	if captcha.IsChallengeError(err) {
		return http.StatusBadRequest, errorBody(err.Error())
	}
	if errors.Is(err, repositories.ErrCommentNotFound) {
		return http.StatusNotFound, errorBody("Comment not found")
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Internal != nil && he.Code >= http.StatusInternalServerError {
			return he.Code, errorBody(http.StatusText(he.Code))
		}
		if msg, ok := he.Message.(string); ok {
			return he.Code, errorBody(msg)
		}
		return he.Code, map[string]interface{}{"error": he.Message}
	}

	return http.StatusInternalServerError, errorBody(http.StatusText(http.StatusInternalServerError))
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
