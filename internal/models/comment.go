package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Comment is a posted message, optionally a reply to another comment
type Comment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Username  string    `json:"username" gorm:"size:50;not null;index"`
	Email     string    `json:"email" gorm:"size:254;not null;index"`
	HomePage  string    `json:"home_page,omitempty" gorm:"size:200"`
	Text      string    `json:"text" gorm:"type:text;not null"`
	Avatar    string    `json:"avatar,omitempty" gorm:"size:255"` // storage name, not a URL
	File      string    `json:"file,omitempty" gorm:"size:255"`   // storage name, not a URL
	ParentID  *uint     `json:"parent,omitempty" gorm:"index"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;index"`
}

// CommentResponse is the wire shape of a comment with its reply tree
type CommentResponse struct {
	ID        uint               `json:"id"`
	Username  string             `json:"username"`
	Email     string             `json:"email"`
	HomePage  string             `json:"home_page,omitempty"`
	Text      string             `json:"text"`
	Avatar    string             `json:"avatar,omitempty"`
	File      string             `json:"file,omitempty"`
	Parent    *uint              `json:"parent,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	Replies   []*CommentResponse `json:"replies"`
}

// CreateCommentRequest defines the form/JSON body for submitting a comment.
// avatar and file arrive as multipart parts and are read separately.
type CreateCommentRequest struct {
	Username     string    `json:"username" form:"username" validate:"required,max=50"`
	Email        string    `json:"email" form:"email" validate:"required,email,max=254"`
	HomePage     string    `json:"home_page" form:"home_page" validate:"omitempty,weburl,max=200"`
	Text         string    `json:"text" form:"text" validate:"required"`
	Parent       ParentRef `json:"parent" form:"parent"`
	CaptchaKey   string    `json:"captcha_key" form:"captcha_key"`
	Captcha      string    `json:"captcha" form:"captcha"`
	CaptchaValue string    `json:"captcha_value" form:"captcha_value"`
}

// CaptchaResponse returns the submitted challenge answer, accepting either
// field name.
func (r *CreateCommentRequest) CaptchaResponse() string {
	if r.Captcha != "" {
		return r.Captcha
	}
	return r.CaptchaValue
}

// ParentRef is the raw parent id as sent by the client. Forms send "" for
// top-level comments, JSON may send null, a number or a string.
type ParentRef struct {
	Raw string
}

// UnmarshalParam implements echo.BindUnmarshaler
func (p *ParentRef) UnmarshalParam(src string) error {
	p.Raw = strings.TrimSpace(src)
	return nil
}

func (p *ParentRef) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		p.Raw = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		p.Raw = strings.TrimSpace(str)
		return nil
	}
	p.Raw = s
	return nil
}

// IsSet reports whether a parent was given
func (p ParentRef) IsSet() bool {
	return p.Raw != ""
}

// ID parses the reference as a comment id
func (p ParentRef) ID() (uint, error) {
	id, err := strconv.ParseUint(p.Raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid parent id %q", p.Raw)
	}
	return uint(id), nil
}

// Sort fields and directions accepted by the comment list endpoint
const (
	SortByUsername  = "username"
	SortByEmail     = "email"
	SortByCreatedAt = "created_at"

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// ListCommentsQuery holds the query parameters of the comment list endpoint
type ListCommentsQuery struct {
	SortBy string `query:"sort_by"`
	Order  string `query:"order"`
}

// Normalize replaces missing or unknown values with created_at / desc
func (q ListCommentsQuery) Normalize() ListCommentsQuery {
	switch q.SortBy {
	case SortByUsername, SortByEmail, SortByCreatedAt:
	default:
		q.SortBy = SortByCreatedAt
	}
	if q.Order != OrderAsc {
		q.Order = OrderDesc
	}
	return q
}
