package repositories

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/anonto42/threadboard/backend/internal/models"
	"gorm.io/gorm"
)

// ErrCommentNotFound is returned when a comment id does not exist
var ErrCommentNotFound = errors.New("comment not found")

// idBatchSize caps the ids bound into one IN list. Postgres allows at most
// 65535 parameters per statement.
var idBatchSize = 1000

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetCommentByID(ctx context.Context, id uint) (*models.Comment, error)
	CommentExists(ctx context.Context, id uint) (bool, error)
	GetTopLevelComments(ctx context.Context, query models.ListCommentsQuery) ([]models.Comment, error)
	GetRepliesByParentIDs(ctx context.Context, parentIDs []uint) ([]models.Comment, error)
	DeleteCommentTree(ctx context.Context, id uint) ([]models.Comment, error)
}

// PostgresCommentRepository implements CommentRepository for PostgreSQL
type PostgresCommentRepository struct {
	db *gorm.DB
}

// NewPostgresCommentRepository creates a new PostgresCommentRepository
func NewPostgresCommentRepository(db *gorm.DB) *PostgresCommentRepository {
	return &PostgresCommentRepository{db: db}
}

// CreateComment inserts a comment; id and created_at are assigned here
func (r *PostgresCommentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

// GetCommentByID retrieves a comment by ID
func (r *PostgresCommentRepository) GetCommentByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	return &comment, nil
}

// CommentExists reports whether a comment with the given id is stored
func (r *PostgresCommentRepository) CommentExists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetTopLevelComments returns comments without a parent in the requested
// order. The query is normalized first so only whitelisted columns reach SQL.
func (r *PostgresCommentRepository) GetTopLevelComments(ctx context.Context, query models.ListCommentsQuery) ([]models.Comment, error) {
	query = query.Normalize()
	order := fmt.Sprintf("%s %s, id %s", query.SortBy, query.Order, query.Order)

	var comments []models.Comment
	if err := r.db.WithContext(ctx).Where("parent_id IS NULL").Order(order).Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

// GetRepliesByParentIDs returns the direct replies of all given comments.
// Replies of one parent are newest first; ids are queried in batches.
func (r *PostgresCommentRepository) GetRepliesByParentIDs(ctx context.Context, parentIDs []uint) ([]models.Comment, error) {
	return findReplies(r.db.WithContext(ctx), parentIDs)
}

func findReplies(db *gorm.DB, parentIDs []uint) ([]models.Comment, error) {
	var replies []models.Comment
	for batch := range slices.Chunk(parentIDs, idBatchSize) {
		var page []models.Comment
		err := db.
			Where("parent_id IN ?", batch).
			Order("created_at desc, id desc").
			Find(&page).Error
		if err != nil {
			return nil, err
		}
		replies = append(replies, page...)
	}
	return replies, nil
}

// DeleteCommentTree deletes a comment and every descendant in one
// transaction and returns the deleted rows
func (r *PostgresCommentRepository) DeleteCommentTree(ctx context.Context, id uint) ([]models.Comment, error) {
	var deleted []models.Comment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var root models.Comment
		if err := tx.First(&root, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCommentNotFound
			}
			return err
		}

		deleted = append(deleted, root)
		ids := []uint{root.ID}
		frontier := []uint{root.ID}
		for len(frontier) > 0 {
			children, err := findReplies(tx, frontier)
			if err != nil {
				return fmt.Errorf("failed to collect replies: %w", err)
			}
			frontier = make([]uint, 0, len(children))
			for _, child := range children {
				deleted = append(deleted, child)
				ids = append(ids, child.ID)
				frontier = append(frontier, child.ID)
			}
		}

		for batch := range slices.Chunk(ids, idBatchSize) {
			if err := tx.Where("id IN ?", batch).Delete(&models.Comment{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}
