package posts_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"

	"postline.dev/internal/auth"
	"postline.dev/internal/posts"
	"postline.dev/internal/store/memory"
)

type fixture struct {
	svc   *posts.Service
	store *memory.Store
	alice auth.Identity
	bob   auth.Identity
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st := memory.New()
	ctx := context.Background()
	mk := func(email string) auth.Identity {
		u := &auth.User{ID: uuid.New(), Email: email, PasswordHash: "x", FirstName: strings.Split(email, "@")[0]}
		if err := st.Users().Create(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
		return auth.Identity{Subject: u.ID}
	}
	return fixture{
		svc:   posts.NewService(st.Posts(), slog.New(slog.DiscardHandler)),
		store: st,
		alice: mk("alice@x.com"),
		bob:   mk("bob@x.com"),
	}
}

func strptr(s string) *string { return &s }

func TestListEmptyIsNonNil(t *testing.T) {
	f := newFixture(t)
	items, err := f.svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", items)
	}
}

func TestCreateAttachesOwnerAndAuthor(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Create(context.Background(), f.alice, posts.CreateInput{Title: "  Hello ", Content: "World"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.UserID != f.alice.Subject || p.Title != "Hello" {
		t.Fatalf("unexpected post: %+v", p)
	}
	if p.Author == nil || p.Author.Email != "alice@x.com" {
		t.Fatalf("author not joined: %+v", p.Author)
	}

	got, err := f.svc.Get(context.Background(), p.ID)
	if err != nil || got.ID != p.ID {
		t.Fatalf("Get = %+v, %v", got, err)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name  string
		in    posts.CreateInput
		field string
	}{
		{name: "missing title", in: posts.CreateInput{Content: "c"}, field: "title"},
		{name: "blank title", in: posts.CreateInput{Title: "   ", Content: "c"}, field: "title"},
		{name: "missing content", in: posts.CreateInput{Title: "t"}, field: "content"},
		{name: "long title", in: posts.CreateInput{Title: strings.Repeat("t", 201), Content: "c"}, field: "title"},
		{name: "long content", in: posts.CreateInput{Title: "t", Content: strings.Repeat("c", 10001)}, field: "content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), f.alice, tt.in)
			var verr *auth.ValidationError
			if !errors.As(err, &verr) || verr.Fields[tt.field] == "" {
				t.Fatalf("expected validation error on %s, got %v", tt.field, err)
			}
		})
	}
	if n := f.store.Posts().Count(); n != 0 {
		t.Fatalf("invalid posts stored: %d", n)
	}
}

func TestGetMissing(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Get(context.Background(), uuid.New()); !errors.Is(err, posts.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, _ := f.svc.Create(ctx, f.alice, posts.CreateInput{Title: "t", Content: "c"})

	if _, err := f.svc.Update(ctx, f.bob, p.ID, posts.UpdateInput{Title: strptr("hijack")}); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	// Ownership is decided before the body is looked at.
	if _, err := f.svc.Update(ctx, f.bob, p.ID, posts.UpdateInput{Title: strptr(strings.Repeat("x", 500))}); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden before validation, got %v", err)
	}
	got, _ := f.svc.Get(ctx, p.ID)
	if got.Title != "t" {
		t.Fatalf("non-owner update changed the post: %+v", got)
	}

	updated, err := f.svc.Update(ctx, f.alice, p.ID, posts.UpdateInput{Title: strptr("new")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "new" || updated.Content != "c" {
		t.Fatalf("partial update wrong: %+v", updated)
	}
}

func TestUpdateBlankFieldsKeepStoredValues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, _ := f.svc.Create(ctx, f.alice, posts.CreateInput{Title: "t", Content: "c"})

	updated, err := f.svc.Update(ctx, f.alice, p.ID, posts.UpdateInput{Title: strptr("  "), Content: strptr("")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "t" || updated.Content != "c" {
		t.Fatalf("blank fields overwrote values: %+v", updated)
	}
}

func TestUpdateValidationForOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, _ := f.svc.Create(ctx, f.alice, posts.CreateInput{Title: "t", Content: "c"})
	_, err := f.svc.Update(ctx, f.alice, p.ID, posts.UpdateInput{Content: strptr(strings.Repeat("c", 10001))})
	if !errors.Is(err, auth.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestUpdateMissing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Update(context.Background(), f.alice, uuid.New(), posts.UpdateInput{Title: strptr("x")})
	if !errors.Is(err, posts.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, _ := f.svc.Create(ctx, f.alice, posts.CreateInput{Title: "t", Content: "c"})

	if err := f.svc.Delete(ctx, f.bob, p.ID); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := f.svc.Delete(ctx, f.alice, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := f.svc.Delete(ctx, f.alice, p.ID); !errors.Is(err, posts.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

// brokenFind wraps a store whose joined read fails after a write.
type brokenFind struct {
	posts.Store
}

func (b brokenFind) Find(ctx context.Context, id uuid.UUID) (posts.PostWithAuthor, error) {
	return posts.PostWithAuthor{}, errors.New("replica lag")
}

func TestCreateFallsBackToBarePost(t *testing.T) {
	f := newFixture(t)
	svc := posts.NewService(brokenFind{f.store.Posts()}, slog.New(slog.DiscardHandler))
	p, err := svc.Create(context.Background(), f.alice, posts.CreateInput{Title: "t", Content: "c"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID == uuid.Nil || p.Title != "t" || p.Author != nil {
		t.Fatalf("expected bare post, got %+v", p)
	}
}

func TestGetStoreFailureIsNotNotFound(t *testing.T) {
	f := newFixture(t)
	svc := posts.NewService(brokenFind{f.store.Posts()}, nil)
	_, err := svc.Get(context.Background(), uuid.New())
	if err == nil || errors.Is(err, posts.ErrNotFound) {
		t.Fatalf("expected internal error, got %v", err)
	}
}
