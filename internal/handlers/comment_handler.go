package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/anonto42/threadboard/backend/internal/media"
	"github.com/anonto42/threadboard/backend/internal/models"
	"github.com/anonto42/threadboard/backend/internal/services"
	"github.com/anonto42/threadboard/backend/validators"
	"github.com/labstack/echo/v4"
)

// CommentService is the comment use-case layer the handler delegates to
type CommentService interface {
	ListComments(ctx context.Context, query models.ListCommentsQuery) ([]*models.CommentResponse, error)
	GetComment(ctx context.Context, id uint) (*models.CommentResponse, error)
	SubmitComment(ctx context.Context, sub services.Submission) (*models.CommentResponse, error)
	DeleteComment(ctx context.Context, id uint) error
}

// CommentHandler handles HTTP requests related to comments
type CommentHandler struct {
	commentService CommentService
	maxUploadSize  int64
}

// NewCommentHandler creates a new CommentHandler. maxUploadSize caps each
// uploaded part; zero disables the cap.
func NewCommentHandler(commentService CommentService, maxUploadSize int64) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
		maxUploadSize:  maxUploadSize,
	}
}

// RegisterCommentRoutes registers comment-related routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group, allowDelete bool) {
	for _, path := range []string{"/comments/", "/comments"} {
		g.GET(path, h.GetComments)
		g.POST(path, h.CreateComment)
	}
	g.GET("/comments/:id", h.GetComment)
	if allowDelete {
		g.DELETE("/comments/:id", h.DeleteComment)
	}
}

// GetComments returns top-level comments with nested replies
func (h *CommentHandler) GetComments(c echo.Context) error {
	var query models.ListCommentsQuery
	if err := c.Bind(&query); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid query parameters")
	}

	comments, err := h.commentService.ListComments(c.Request().Context(), query)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, comments)
}

// GetComment returns a single comment with its replies
func (h *CommentHandler) GetComment(c echo.Context) error {
	id, err := parseCommentID(c)
	if err != nil {
		return err
	}

	comment, err := h.commentService.GetComment(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, comment)
}

// CreateComment accepts a multipart or JSON submission
func (h *CommentHandler) CreateComment(c echo.Context) error {
	var req models.CreateCommentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	sub := services.Submission{Request: req, UploadErrors: validators.FieldErrors{}}
	if isMultipart(c) {
		var err error
		if sub.Avatar, err = h.readUpload(c, "avatar", sub.UploadErrors); err != nil {
			return err
		}
		if sub.File, err = h.readUpload(c, "file", sub.UploadErrors); err != nil {
			return err
		}
	}

	comment, err := h.commentService.SubmitComment(c.Request().Context(), sub)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, comment)
}

// DeleteComment removes a comment and all of its replies
func (h *CommentHandler) DeleteComment(c echo.Context) error {
	id, err := parseCommentID(c)
	if err != nil {
		return err
	}

	if err := h.commentService.DeleteComment(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// readUpload reads an optional multipart file. Problems the client can fix
// are recorded in fieldErrs and yield a nil upload.
func (h *CommentHandler) readUpload(c echo.Context, field string, fieldErrs validators.FieldErrors) (*media.Upload, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload").SetInternal(err)
	}
	if fh.Size == 0 {
		fieldErrs.Add(field, "The submitted file is empty.")
		return nil, nil
	}

	upload, err := media.FromFileHeader(fh, h.maxUploadSize)
	if err != nil {
		if mErr, ok := media.AsError(err); ok {
			fieldErrs.Add(field, mErr.Message)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", field, err)
	}
	return upload, nil
}

func parseCommentID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid comment ID")
	}
	return uint(id), nil
}

func isMultipart(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}
