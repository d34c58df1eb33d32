package posts

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"postline.dev/internal/auth"
)

const (
	maxTitleLength   = 200
	maxContentLength = 10000
)

// ErrNotFound is returned by stores when a post does not exist. It matches
// auth.ErrNotFound so the ownership guard and HTTP layer treat both alike.
var ErrNotFound = auth.ErrNotFound

// Post is an owned resource. Only UserID may update or delete it.
type Post struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PostWithAuthor is a post joined with its owner's public profile. Author is
// nil when the join could not be loaded.
type PostWithAuthor struct {
	Post
	Author *auth.UserSummary `json:"author,omitempty"`
}

// CreateInput is the body of a create request.
type CreateInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// UpdateInput is the body of an update request. Empty fields keep the stored
// value.
type UpdateInput struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// Patch is the normalized form of UpdateInput handed to stores.
type Patch struct {
	Title   *string
	Content *string
}

// Store is the storage collaborator for posts.
type Store interface {
	List(ctx context.Context) ([]PostWithAuthor, error)
	Find(ctx context.Context, id uuid.UUID) (PostWithAuthor, error)
	Create(ctx context.Context, p *Post) error
	// Update applies patch atomically and returns the stored post.
	Update(ctx context.Context, id uuid.UUID, patch Patch) (Post, error)
	Delete(ctx context.Context, id uuid.UUID) error
	auth.OwnerLookup
}

func (in *CreateInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
}

func (in CreateInput) Validate() error {
	var verr auth.ValidationError
	validateTitle(&verr, in.Title, true)
	validateContent(&verr, in.Content, true)
	return verr.Err()
}

func (in UpdateInput) patch() (Patch, error) {
	var (
		verr  auth.ValidationError
		patch Patch
	)
	if in.Title != nil {
		if t := strings.TrimSpace(*in.Title); t != "" {
			validateTitle(&verr, t, false)
			patch.Title = &t
		}
	}
	if in.Content != nil {
		if c := strings.TrimSpace(*in.Content); c != "" {
			validateContent(&verr, c, false)
			patch.Content = &c
		}
	}
	return patch, verr.Err()
}

func validateTitle(verr *auth.ValidationError, title string, required bool) {
	switch {
	case title == "" && required:
		verr.Add("title", "title is required")
	case utf8.RuneCountInString(title) > maxTitleLength:
		verr.Add("title", "title must be at most 200 characters")
	}
}

func validateContent(verr *auth.ValidationError, content string, required bool) {
	switch {
	case content == "" && required:
		verr.Add("content", "content is required")
	case utf8.RuneCountInString(content) > maxContentLength:
		verr.Add("content", "content must be at most 10000 characters")
	}
}

// IsNotFound reports whether err means the post is absent.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
