package services

import (
	"context"
	"fmt"

	"github.com/anonto42/threadboard/backend/internal/models"
)

// ReplyLoader loads the direct replies of a set of comments
type ReplyLoader interface {
	GetRepliesByParentIDs(ctx context.Context, parentIDs []uint) ([]models.Comment, error)
}

// URLFunc turns a storage name into a public URL
type URLFunc func(name string) string

// ToCommentResponse converts a stored comment into its wire shape with an
// empty reply list
func ToCommentResponse(c *models.Comment, url URLFunc) *models.CommentResponse {
	resp := &models.CommentResponse{
		ID:        c.ID,
		Username:  c.Username,
		Email:     c.Email,
		HomePage:  c.HomePage,
		Text:      c.Text,
		Parent:    c.ParentID,
		CreatedAt: c.CreatedAt,
		Replies:   []*models.CommentResponse{},
	}
	if c.Avatar != "" {
		resp.Avatar = url(c.Avatar)
	}
	if c.File != "" {
		resp.File = url(c.File)
	}
	return resp
}

// BuildCommentTree attaches every descendant of roots, one level per query.
// Replies keep the order the loader returns them in (newest first).
func BuildCommentTree(ctx context.Context, loader ReplyLoader, roots []models.Comment, url URLFunc) ([]*models.CommentResponse, error) {
	out := make([]*models.CommentResponse, 0, len(roots))
	byID := make(map[uint]*models.CommentResponse, len(roots))
	frontier := make([]uint, 0, len(roots))

	for i := range roots {
		node := ToCommentResponse(&roots[i], url)
		out = append(out, node)
		byID[node.ID] = node
		frontier = append(frontier, node.ID)
	}

	for len(frontier) > 0 {
		replies, err := loader.GetRepliesByParentIDs(ctx, frontier)
		if err != nil {
			return nil, fmt.Errorf("failed to load replies: %w", err)
		}
		var next []uint
		for i := range replies {
			r := &replies[i]
			if r.ParentID == nil {
				continue
			}
			parent, ok := byID[*r.ParentID]
			if !ok {
				continue
			}
			if _, seen := byID[r.ID]; seen {
				continue
			}
			node := ToCommentResponse(r, url)
			parent.Replies = append(parent.Replies, node)
			byID[node.ID] = node
			next = append(next, node.ID)
		}
		frontier = next
	}
	return out, nil
}
