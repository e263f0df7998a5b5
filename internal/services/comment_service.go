package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/threadboard/backend/internal/markup"
	"github.com/anonto42/threadboard/backend/internal/media"
	"github.com/anonto42/threadboard/backend/internal/models"
	"github.com/anonto42/threadboard/backend/internal/repositories"
	"github.com/anonto42/threadboard/backend/internal/storage"
	"github.com/anonto42/threadboard/backend/validators"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrParentNotFound is reported on the parent field when it references a
// missing comment
var ErrParentNotFound = errors.New("Parent comment not found.")

// ChallengeVerifier checks CAPTCHA answers. A challenge is spent by its
// first verification.
type ChallengeVerifier interface {
	Verify(ctx context.Context, key, value string) error
}

// StructValidator validates request structs
type StructValidator interface {
	Validate(i interface{}) error
}

// Submission is a comment submission with its already-read uploads.
// UploadErrors carries problems hit while reading the multipart parts.
type Submission struct {
	Request      models.CreateCommentRequest
	Avatar       *media.Upload
	File         *media.Upload
	UploadErrors validators.FieldErrors
}

// CommentServiceConfig holds the tunables of CommentService
type CommentServiceConfig struct {
	CaptchaEnabled bool
	AllowedFiles   *media.ExtensionAllowList
}

// CommentService implements listing, submitting and deleting comments
type CommentService struct {
	comments  repositories.CommentRepository
	verifier  ChallengeVerifier
	storage   storage.Storage
	validator StructValidator
	config    CommentServiceConfig
	logger    *zap.Logger
}

// NewCommentService creates a new CommentService
func NewCommentService(
	comments repositories.CommentRepository,
	verifier ChallengeVerifier,
	store storage.Storage,
	validator StructValidator,
	config CommentServiceConfig,
	logger *zap.Logger,
) *CommentService {
	if config.AllowedFiles == nil {
		config.AllowedFiles = media.NewExtensionAllowList(nil)
	}
	return &CommentService{
		comments:  comments,
		verifier:  verifier,
		storage:   store,
		validator: validator,
		config:    config,
		logger:    logger,
	}
}

// ListComments returns top-level comments with their full reply trees
func (s *CommentService) ListComments(ctx context.Context, query models.ListCommentsQuery) ([]*models.CommentResponse, error) {
	roots, err := s.comments.GetTopLevelComments(ctx, query.Normalize())
	if err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}
	return BuildCommentTree(ctx, s.comments, roots, s.storage.URL)
}

// GetComment returns one comment with its full reply tree
func (s *CommentService) GetComment(ctx context.Context, id uint) (*models.CommentResponse, error) {
	comment, err := s.comments.GetCommentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tree, err := BuildCommentTree(ctx, s.comments, []models.Comment{*comment}, s.storage.URL)
	if err != nil {
		return nil, err
	}
	return tree[0], nil
}

// SubmitComment verifies the challenge, validates every field and uploads,
// and persists the comment. Client mistakes are returned as captcha errors
// or validators.FieldErrors; nothing is stored in that case.
func (s *CommentService) SubmitComment(ctx context.Context, sub Submission) (*models.CommentResponse, error) {
	req := sub.Request

	if s.config.CaptchaEnabled {
		if err := s.verifier.Verify(ctx, req.CaptchaKey, req.CaptchaResponse()); err != nil {
			return nil, err
		}
	}

	fieldErrs, err := validators.ToFieldErrors(s.validator.Validate(&req))
	if err != nil {
		return nil, fmt.Errorf("failed to validate request: %w", err)
	}
	for field, msgs := range sub.UploadErrors {
		for _, msg := range msgs {
			fieldErrs.Add(field, msg)
		}
	}

	if req.Text != "" {
		if err := markup.Check(req.Text); err != nil {
			fieldErrs.Add("text", err.Error())
		}
	}

	parentID, err := s.resolveParent(ctx, req.Parent, fieldErrs)
	if err != nil {
		return nil, err
	}

	avatar, file, err := s.validateUploads(sub.Avatar, sub.File, fieldErrs)
	if err != nil {
		return nil, err
	}

	if len(fieldErrs) > 0 {
		return nil, fieldErrs
	}

	comment := &models.Comment{
		Username: req.Username,
		Email:    req.Email,
		HomePage: req.HomePage,
		Text:     req.Text,
		ParentID: parentID,
	}

	stored, err := s.storeUploads(ctx, comment, avatar, file)
	if err != nil {
		return nil, err
	}

	if err := s.comments.CreateComment(ctx, comment); err != nil {
		s.removeStored(ctx, stored)
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	s.logger.Info("Comment created", zap.Uint("comment_id", comment.ID), zap.Any("parent_id", comment.ParentID))
	return ToCommentResponse(comment, s.storage.URL), nil
}

// DeleteComment removes a comment, its whole reply subtree and their
// stored uploads
func (s *CommentService) DeleteComment(ctx context.Context, id uint) error {
	deleted, err := s.comments.DeleteCommentTree(ctx, id)
	if err != nil {
		return err
	}

	var names []string
	for _, c := range deleted {
		if c.Avatar != "" {
			names = append(names, c.Avatar)
		}
		if c.File != "" {
			names = append(names, c.File)
		}
	}
	s.removeStored(ctx, names)

	s.logger.Info("Comment tree deleted", zap.Uint("comment_id", id), zap.Int("deleted", len(deleted)))
	return nil
}

func (s *CommentService) resolveParent(ctx context.Context, ref models.ParentRef, fieldErrs validators.FieldErrors) (*uint, error) {
	if !ref.IsSet() {
		return nil, nil
	}
	id, err := ref.ID()
	if err != nil {
		fieldErrs.Add("parent", "Invalid parent id.")
		return nil, nil
	}
	exists, err := s.comments.CommentExists(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to look up parent comment: %w", err)
	}
	if !exists {
		fieldErrs.Add("parent", ErrParentNotFound.Error())
		return nil, nil
	}
	return &id, nil
}

// validateUploads runs the avatar and file validators concurrently. Media
// errors become field errors; anything else is returned.
func (s *CommentService) validateUploads(avatar, file *media.Upload, fieldErrs validators.FieldErrors) (*media.Upload, *media.Upload, error) {
	var (
		avatarOut, fileOut *media.Upload
		avatarErr, fileErr error
		g                  errgroup.Group
	)

	if avatar != nil && !fieldErrs.Has("avatar") {
		g.Go(func() error {
			avatarOut, avatarErr = media.ValidateAvatar(avatar)
			return nil
		})
	}
	if file != nil && !fieldErrs.Has("file") {
		g.Go(func() error {
			if fileErr = s.config.AllowedFiles.Check(file.Name); fileErr != nil {
				return nil
			}
			fileOut, fileErr = media.ValidateFile(file)
			return nil
		})
	}
	_ = g.Wait()

	for field, err := range map[string]error{"avatar": avatarErr, "file": fileErr} {
		if err == nil {
			continue
		}
		mErr, ok := media.AsError(err)
		if !ok {
			return nil, nil, fmt.Errorf("failed to process %s: %w", field, err)
		}
		fieldErrs.Add(field, mErr.Message)
	}
	return avatarOut, fileOut, nil
}

func (s *CommentService) storeUploads(ctx context.Context, comment *models.Comment, avatar, file *media.Upload) ([]string, error) {
	var stored []string
	save := func(dir string, u *media.Upload) (string, error) {
		name := storage.ObjectName(dir, u.Name)
		if err := s.storage.Save(ctx, name, u); err != nil {
			s.removeStored(ctx, stored)
			return "", fmt.Errorf("failed to store %s: %w", dir, err)
		}
		stored = append(stored, name)
		return name, nil
	}

	var err error
	if avatar != nil {
		if comment.Avatar, err = save(storage.AvatarsDir, avatar); err != nil {
			return nil, err
		}
	}
	if file != nil {
		if comment.File, err = save(storage.FilesDir, file); err != nil {
			return nil, err
		}
	}
	return stored, nil
}

// removeStored deletes uploads on a detached context so cleanup still runs
// when the request context is done
func (s *CommentService) removeStored(ctx context.Context, names []string) {
	if len(names) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	for _, name := range names {
		if err := s.storage.Delete(ctx, name); err != nil {
			s.logger.Error("Failed to remove stored upload", zap.String("name", name), zap.Error(err))
		}
	}
}
