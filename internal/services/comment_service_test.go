package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/threadboard/backend/internal/captcha"
	"github.com/anonto42/threadboard/backend/internal/media"
	"github.com/anonto42/threadboard/backend/internal/models"
	"github.com/anonto42/threadboard/backend/internal/repositories"
	"github.com/anonto42/threadboard/backend/validators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockCommentRepository is a mock implementation of CommentRepository
type MockCommentRepository struct {
	mock.Mock
}

func (m *MockCommentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	args := m.Called(ctx, comment)
	return args.Error(0)
}

func (m *MockCommentRepository) GetCommentByID(ctx context.Context, id uint) (*models.Comment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Comment), args.Error(1)
}

func (m *MockCommentRepository) CommentExists(ctx context.Context, id uint) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockCommentRepository) GetTopLevelComments(ctx context.Context, query models.ListCommentsQuery) ([]models.Comment, error) {
	args := m.Called(ctx, query)
	comments, _ := args.Get(0).([]models.Comment)
	return comments, args.Error(1)
}

func (m *MockCommentRepository) GetRepliesByParentIDs(ctx context.Context, parentIDs []uint) ([]models.Comment, error) {
	args := m.Called(ctx, parentIDs)
	comments, _ := args.Get(0).([]models.Comment)
	return comments, args.Error(1)
}

func (m *MockCommentRepository) DeleteCommentTree(ctx context.Context, id uint) ([]models.Comment, error) {
	args := m.Called(ctx, id)
	comments, _ := args.Get(0).([]models.Comment)
	return comments, args.Error(1)
}

// MockVerifier is a mock implementation of ChallengeVerifier
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

// memoryStorage keeps saved uploads in a map
type memoryStorage struct {
	mu      sync.Mutex
	objects map[string]*media.Upload
	saveErr error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string]*media.Upload{}}
}

func (s *memoryStorage) Save(_ context.Context, name string, upload *media.Upload) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = upload
	return nil
}

func (s *memoryStorage) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, name)
	return nil
}

func (s *memoryStorage) URL(name string) string {
	return "/media/" + name
}

func pngUpload(t *testing.T, name string, w, h int) *media.Upload {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return &media.Upload{Name: name, ContentType: "image/png", Content: buf.Bytes()}
}

func validRequest() models.CreateCommentRequest {
	return models.CreateCommentRequest{
		Username:   "alice",
		Email:      "alice@example.com",
		Text:       "hello <strong>world</strong>",
		CaptchaKey: "k1",
		Captcha:    "ab3d",
	}
}

func newTestCommentService(repo *MockCommentRepository, verifier *MockVerifier, store *memoryStorage) *CommentService {
	return NewCommentService(repo, verifier, store, validators.NewValidator(), CommentServiceConfig{CaptchaEnabled: true}, zap.NewNop())
}

func ptr(id uint) *uint { return &id }

func TestCommentService_ListComments_BuildsTree(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	repo := new(MockCommentRepository)

	repo.On("GetTopLevelComments", ctx, models.ListCommentsQuery{SortBy: "created_at", Order: "desc"}).
		Return([]models.Comment{
			{ID: 2, Username: "bob", CreatedAt: now, Avatar: "avatars/x/b.png"},
			{ID: 1, Username: "alice", CreatedAt: now.Add(-time.Hour)},
		}, nil)
	repo.On("GetRepliesByParentIDs", ctx, []uint{2, 1}).
		Return([]models.Comment{
			{ID: 4, ParentID: ptr(1), CreatedAt: now.Add(-time.Minute)},
			{ID: 3, ParentID: ptr(1), CreatedAt: now.Add(-2 * time.Minute), File: "files/y/r.txt"},
		}, nil)
	repo.On("GetRepliesByParentIDs", ctx, []uint{4, 3}).
		Return([]models.Comment{{ID: 5, ParentID: ptr(3), CreatedAt: now}}, nil)
	repo.On("GetRepliesByParentIDs", ctx, []uint{5}).Return([]models.Comment{}, nil)

	s := newTestCommentService(repo, new(MockVerifier), newMemoryStorage())
	tree, err := s.ListComments(ctx, models.ListCommentsQuery{SortBy: "bogus"})
	require.NoError(t, err)

	require.Len(t, tree, 2)
	assert.Equal(t, uint(2), tree[0].ID)
	assert.Equal(t, "/media/avatars/x/b.png", tree[0].Avatar)
	assert.Empty(t, tree[0].Replies)
	assert.NotNil(t, tree[0].Replies)

	alice := tree[1]
	require.Len(t, alice.Replies, 2)
	assert.Equal(t, uint(4), alice.Replies[0].ID)
	assert.Equal(t, uint(3), alice.Replies[1].ID)
	assert.Equal(t, "/media/files/y/r.txt", alice.Replies[1].File)
	require.Len(t, alice.Replies[1].Replies, 1)
	assert.Equal(t, uint(5), alice.Replies[1].Replies[0].ID)
	repo.AssertExpectations(t)
}

func TestCommentService_GetComment(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCommentRepository)
	repo.On("GetCommentByID", ctx, uint(3)).Return(&models.Comment{ID: 3, ParentID: ptr(1)}, nil)
	repo.On("GetRepliesByParentIDs", ctx, []uint{3}).Return([]models.Comment{{ID: 5, ParentID: ptr(3)}}, nil)
	repo.On("GetRepliesByParentIDs", ctx, []uint{5}).Return(nil, nil)
	repo.On("GetCommentByID", ctx, uint(9)).Return(nil, repositories.ErrCommentNotFound)

	s := newTestCommentService(repo, new(MockVerifier), newMemoryStorage())

	got, err := s.GetComment(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, ptr(1), got.Parent)
	require.Len(t, got.Replies, 1)
	assert.Equal(t, uint(5), got.Replies[0].ID)

	_, err = s.GetComment(ctx, 9)
	assert.ErrorIs(t, err, repositories.ErrCommentNotFound)
}

func TestCommentService_ListComments_Error(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCommentRepository)
	repo.On("GetTopLevelComments", ctx, mock.Anything).Return(nil, errors.New("db down"))

	_, err := newTestCommentService(repo, new(MockVerifier), newMemoryStorage()).ListComments(ctx, models.ListCommentsQuery{})
	assert.Error(t, err)
}

func TestCommentService_Submit_Success(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	repo := new(MockCommentRepository)
	verifier := new(MockVerifier)
	store := newMemoryStorage()

	verifier.On("Verify", ctx, "k1", "ab3d").Return(nil)
	repo.On("CommentExists", ctx, uint(1)).Return(true, nil)
	repo.On("CreateComment", ctx, mock.AnythingOfType("*models.Comment")).
		Run(func(args mock.Arguments) {
			c := args.Get(1).(*models.Comment)
			c.ID = 7
			c.CreatedAt = created
		}).Return(nil)

	req := validRequest()
	req.Parent = models.ParentRef{Raw: "1"}
	resp, err := newTestCommentService(repo, verifier, store).SubmitComment(ctx, Submission{
		Request: req,
		Avatar:  pngUpload(t, "me.png", 200, 100),
		File:    &media.Upload{Name: "notes.png", Content: pngUpload(t, "notes.png", 10, 10).Content},
	})
	require.NoError(t, err)

	assert.Equal(t, uint(7), resp.ID)
	assert.Equal(t, created, resp.CreatedAt)
	assert.Equal(t, ptr(1), resp.Parent)
	assert.Equal(t, "hello <strong>world</strong>", resp.Text)
	assert.NotNil(t, resp.Replies)
	assert.Empty(t, resp.Replies)
	assert.True(t, strings.HasPrefix(resp.Avatar, "/media/avatars/"))
	assert.True(t, strings.HasPrefix(resp.File, "/media/files/"))

	require.Len(t, store.objects, 2)
	avatar := store.objects[strings.TrimPrefix(resp.Avatar, "/media/")]
	require.NotNil(t, avatar)
	cfg, err := png.DecodeConfig(bytes.NewReader(avatar.Content))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)

	repo.AssertExpectations(t)
	verifier.AssertExpectations(t)
}

func TestCommentService_Submit_ExpiredChallengeStoresNothing(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCommentRepository)
	verifier := new(MockVerifier)
	store := newMemoryStorage()
	verifier.On("Verify", ctx, "k1", "ab3d").Return(captcha.ErrExpired)

	_, err := newTestCommentService(repo, verifier, store).SubmitComment(ctx, Submission{
		Request: validRequest(),
		Avatar:  pngUpload(t, "me.png", 10, 10),
	})
	assert.ErrorIs(t, err, captcha.ErrExpired)
	assert.Empty(t, store.objects)
	repo.AssertNotCalled(t, "CreateComment", mock.Anything, mock.Anything)
}

func TestCommentService_Submit_CaptchaAlias(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCommentRepository)
	verifier := new(MockVerifier)
	verifier.On("Verify", ctx, "k1", "zz99").Return(captcha.ErrMismatch)

	req := validRequest()
	req.Captcha = ""
	req.CaptchaValue = "zz99"
	_, err := newTestCommentService(repo, verifier, newMemoryStorage()).SubmitComment(ctx, Submission{Request: req})
	assert.ErrorIs(t, err, captcha.ErrMismatch)
	verifier.AssertExpectations(t)
}

func TestCommentService_Submit_ParentNotFound(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCommentRepository)
	verifier := new(MockVerifier)
	verifier.On("Verify", ctx, "k1", "ab3d").Return(nil)
	repo.On("CommentExists", ctx, uint(99)).Return(false, nil)

	req := validRequest()
	req.Parent = models.ParentRef{Raw: "99"}
	_, err := newTestCommentService(repo, verifier, newMemoryStorage()).SubmitComment(ctx, Submission{Request: req})

	var fe validators.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, []string{"Parent comment not found."}, fe["parent"])
	repo.AssertNotCalled(t, "CreateComment", mock.Anything, mock.Anything)
}

func TestCommentService_Submit_CollectsFieldErrors(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCommentRepository)
	verifier := new(MockVerifier)
	store := newMemoryStorage()
	verifier.On("Verify", ctx, "k1", "ab3d").Return(nil)

	req := validRequest()
	req.Email = "not-an-email"
	req.Text = "<script>alert(1)</script>"
	req.Parent = models.ParentRef{Raw: "abc"}
	_, err := newTestCommentService(repo, verifier, store).SubmitComment(ctx, Submission{
		Request:      req,
		Avatar:       pngUpload(t, "me.png", 10, 10),
		File:         &media.Upload{Name: "run.exe", Content: []byte("MZ")},
		UploadErrors: validators.FieldErrors{"avatar": {"Uploaded file exceeds 10 bytes."}},
	})

	var fe validators.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, []string{"Enter a valid email address."}, fe["email"])
	assert.Equal(t, []string{"tag <script> not allowed. Use only a, code, i, strong."}, fe["text"])
	assert.Equal(t, []string{"Invalid parent id."}, fe["parent"])
	assert.Equal(t, []string{"Uploaded file exceeds 10 bytes."}, fe["avatar"])
	assert.Equal(t, []string{"Invalid file format. Allowed: jpg, jpeg, png, gif."}, fe["file"])
	assert.Empty(t, store.objects)
	repo.AssertNotCalled(t, "CommentExists", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "CreateComment", mock.Anything, mock.Anything)
}

func TestCommentService_Submit_CaptchaDisabled(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCommentRepository)
	verifier := new(MockVerifier)
	repo.On("CreateComment", ctx, mock.AnythingOfType("*models.Comment")).Return(nil)

	s := NewCommentService(repo, verifier, newMemoryStorage(), validators.NewValidator(), CommentServiceConfig{}, zap.NewNop())
	req := validRequest()
	req.CaptchaKey, req.Captcha = "", ""
	_, err := s.SubmitComment(ctx, Submission{Request: req})
	require.NoError(t, err)
	verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
}

func TestCommentService_Submit_StoresTextUnchanged(t *testing.T) {
	texts := []string{
		"Tom & Jerry",
		"it's <i>fine</i>",
		`if a < b && b > c, see <a href="https://example.com/?q=1&x=2">this</a>`,
	}
	for _, text := range texts {
		t.Run(text, func(t *testing.T) {
			ctx := context.Background()
			repo := new(MockCommentRepository)
			var stored string
			repo.On("CreateComment", ctx, mock.AnythingOfType("*models.Comment")).
				Run(func(args mock.Arguments) { stored = args.Get(1).(*models.Comment).Text }).
				Return(nil)

			s := NewCommentService(repo, nil, newMemoryStorage(), validators.NewValidator(), CommentServiceConfig{}, zap.NewNop())
			req := validRequest()
			req.Text = text
			resp, err := s.SubmitComment(ctx, Submission{Request: req})
			require.NoError(t, err)
			assert.Equal(t, text, stored)
			assert.Equal(t, text, resp.Text)
		})
	}
}

func TestCommentService_Submit_RejectsUnsafeLink(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCommentRepository)

	s := NewCommentService(repo, nil, newMemoryStorage(), validators.NewValidator(), CommentServiceConfig{}, zap.NewNop())
	req := validRequest()
	req.Text = `<a href="javascript:alert(1)">click</a>`
	_, err := s.SubmitComment(ctx, Submission{Request: req})

	var fieldErrs validators.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Equal(t, []string{"link in <a> not allowed. Use only http, https, mailto URLs."}, fieldErrs["text"])
	repo.AssertNotCalled(t, "CreateComment", mock.Anything, mock.Anything)
}

func TestCommentService_Submit_CreateFailureRemovesUploads(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCommentRepository)
	verifier := new(MockVerifier)
	store := newMemoryStorage()
	verifier.On("Verify", ctx, "k1", "ab3d").Return(nil)
	repo.On("CreateComment", ctx, mock.AnythingOfType("*models.Comment")).Return(errors.New("db down"))

	_, err := newTestCommentService(repo, verifier, store).SubmitComment(ctx, Submission{
		Request: validRequest(),
		Avatar:  pngUpload(t, "me.png", 10, 10),
	})
	require.Error(t, err)
	assert.False(t, validators.IsFieldErrors(err))
	assert.Empty(t, store.objects)
}

func TestCommentService_Submit_StorageFailure(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCommentRepository)
	verifier := new(MockVerifier)
	store := newMemoryStorage()
	store.saveErr = errors.New("bucket gone")
	verifier.On("Verify", ctx, "k1", "ab3d").Return(nil)

	_, err := newTestCommentService(repo, verifier, store).SubmitComment(ctx, Submission{
		Request: validRequest(),
		Avatar:  pngUpload(t, "me.png", 10, 10),
	})
	assert.ErrorIs(t, err, store.saveErr)
	repo.AssertNotCalled(t, "CreateComment", mock.Anything, mock.Anything)
}

func TestCommentService_DeleteComment(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCommentRepository)
	store := newMemoryStorage()
	store.objects["avatars/a/me.png"] = &media.Upload{}
	store.objects["files/b/r.txt"] = &media.Upload{}
	store.objects["files/c/keep.txt"] = &media.Upload{}

	repo.On("DeleteCommentTree", ctx, uint(1)).Return([]models.Comment{
		{ID: 1, Avatar: "avatars/a/me.png"},
		{ID: 2, ParentID: ptr(1), File: "files/b/r.txt"},
	}, nil)
	repo.On("DeleteCommentTree", ctx, uint(9)).Return(nil, repositories.ErrCommentNotFound)

	s := newTestCommentService(repo, new(MockVerifier), store)
	require.NoError(t, s.DeleteComment(ctx, 1))
	assert.Len(t, store.objects, 1)
	assert.Contains(t, store.objects, "files/c/keep.txt")

	assert.ErrorIs(t, s.DeleteComment(ctx, 9), repositories.ErrCommentNotFound)
}
