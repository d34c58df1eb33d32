package posts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"postline.dev/internal/auth"
)

var tracer = otel.Tracer("postline.dev/internal/posts")

// Service implements post reads (public) and mutations (owner only).
type Service struct {
	store  Store
	guard  *auth.OwnershipGuard
	logger *slog.Logger
	newID  func() uuid.UUID
}

func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		guard:  auth.NewOwnershipGuard(store),
		logger: logger,
		newID:  uuid.New,
	}
}

func (s *Service) List(ctx context.Context) ([]PostWithAuthor, error) {
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	if items == nil {
		items = []PostWithAuthor{}
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (PostWithAuthor, error) {
	p, err := s.store.Find(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return PostWithAuthor{}, ErrNotFound
		}
		return PostWithAuthor{}, fmt.Errorf("find post %s: %w", id, err)
	}
	return p, nil
}

// Create stores a new post owned by the caller.
func (s *Service) Create(ctx context.Context, owner auth.Identity, in CreateInput) (PostWithAuthor, error) {
	ctx, span := tracer.Start(ctx, "posts.Service.Create")
	defer span.End()

	in.normalize()
	if err := in.Validate(); err != nil {
		return PostWithAuthor{}, err
	}
	p := &Post{
		ID:      s.newID(),
		UserID:  owner.Subject,
		Title:   in.Title,
		Content: in.Content,
	}
	if err := s.store.Create(ctx, p); err != nil {
		span.RecordError(err)
		return PostWithAuthor{}, fmt.Errorf("create post: %w", err)
	}
	return s.withAuthor(ctx, *p), nil
}

// Update applies a partial update after the ownership check. A non-owner gets
// auth.ErrForbidden before the body is validated.
func (s *Service) Update(ctx context.Context, caller auth.Identity, id uuid.UUID, in UpdateInput) (PostWithAuthor, error) {
	ctx, span := tracer.Start(ctx, "posts.Service.Update")
	defer span.End()

	if err := s.guard.Authorize(ctx, caller, id); err != nil {
		return PostWithAuthor{}, err
	}
	patch, err := in.patch()
	if err != nil {
		return PostWithAuthor{}, err
	}
	updated, err := s.store.Update(ctx, id, patch)
	if err != nil {
		if IsNotFound(err) {
			return PostWithAuthor{}, ErrNotFound
		}
		span.RecordError(err)
		return PostWithAuthor{}, fmt.Errorf("update post %s: %w", id, err)
	}
	return s.withAuthor(ctx, updated), nil
}

// Delete removes a post owned by the caller.
func (s *Service) Delete(ctx context.Context, caller auth.Identity, id uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "posts.Service.Delete")
	defer span.End()

	if err := s.guard.Authorize(ctx, caller, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if IsNotFound(err) {
			return ErrNotFound
		}
		span.RecordError(err)
		return fmt.Errorf("delete post %s: %w", id, err)
	}
	return nil
}

// withAuthor re-reads the post joined with its author. A failed read is
// logged and the bare post is returned instead.
func (s *Service) withAuthor(ctx context.Context, p Post) PostWithAuthor {
	full, err := s.store.Find(ctx, p.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "fetch post with author failed", "post_id", p.ID, "error", err)
		return PostWithAuthor{Post: p}
	}
	return full
}
