// Package captcha issues and verifies image challenges for comment submission.
package captcha

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anonto42/threadboard/backend/internal/models"
	"github.com/anonto42/threadboard/backend/internal/repositories"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Verification failures. Their messages are shown to clients as-is.
var (
	ErrRequired = errors.New("CAPTCHA is required")
	ErrNotFound = errors.New("Invalid CAPTCHA key")
	ErrExpired  = errors.New("CAPTCHA expired")
	ErrMismatch = errors.New("Invalid CAPTCHA")
)

const (
	// DefaultTimeout is how long an issued challenge can be answered
	DefaultTimeout = 5 * time.Minute

	challengeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	challengeLength   = 4
	keyLength         = 32
)

// IsChallengeError reports whether err is one of the client-facing
// verification failures
func IsChallengeError(err error) bool {
	return errors.Is(err, ErrRequired) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrMismatch)
}

// Service issues, renders and verifies challenges
type Service struct {
	repo    repositories.ChallengeRepository
	timeout time.Duration
	now     func() time.Time
}

// NewService creates a Service. A zero timeout uses DefaultTimeout.
func NewService(repo repositories.ChallengeRepository, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{repo: repo, timeout: timeout, now: time.Now}
}

// Issue generates and stores a new challenge
func (s *Service) Issue(ctx context.Context) (*models.Challenge, error) {
	key, err := gonanoid.New(keyLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate challenge key: %w", err)
	}
	text, err := gonanoid.Generate(challengeAlphabet, challengeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate challenge text: %w", err)
	}

	challenge := &models.Challenge{
		Key:       key,
		Challenge: text,
		Response:  strings.ToLower(text),
		ExpiresAt: s.now().Add(s.timeout),
	}
	if err := s.repo.SaveChallenge(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}
	return challenge, nil
}

// Verify checks a submitted answer. The challenge is removed by the first
// attempt whatever its outcome, so a key cannot be guessed at or reused. It
// returns one of the Err* values for client mistakes and a wrapped error for
// store failures.
func (s *Service) Verify(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return ErrRequired
	}

	challenge, err := s.repo.TakeChallenge(ctx, key)
	if err != nil {
		if errors.Is(err, repositories.ErrChallengeNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load challenge: %w", err)
	}
	if challenge.Expired(s.now()) {
		return ErrExpired
	}
	if challenge.Response != strings.ToLower(value) {
		return ErrMismatch
	}
	return nil
}

// Image renders the PNG for a live challenge
func (s *Service) Image(ctx context.Context, key string) ([]byte, error) {
	challenge, err := s.repo.GetChallenge(ctx, key)
	if err != nil {
		if errors.Is(err, repositories.ErrChallengeNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	if challenge.Expired(s.now()) {
		return nil, ErrExpired
	}
	return Render(challenge.Challenge)
}
