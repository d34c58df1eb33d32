package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestOwnershipGuard(t *testing.T) {
	owner := uuid.New()
	other := uuid.New()
	resource := uuid.New()
	storeErr := errors.New("connection refused")

	lookup := OwnerLookupFunc(func(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
		switch id {
		case resource:
			return owner, nil
		case uuid.Nil:
			return uuid.Nil, storeErr
		default:
			return uuid.Nil, ErrNotFound
		}
	})
	guard := NewOwnershipGuard(lookup)
	ctx := context.Background()

	if err := guard.Authorize(ctx, Identity{Subject: owner}, resource); err != nil {
		t.Fatalf("owner rejected: %v", err)
	}
	if err := guard.Authorize(ctx, Identity{Subject: other}, resource); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-owner: expected ErrForbidden, got %v", err)
	}
	if err := guard.Authorize(ctx, Identity{}, resource); !errors.Is(err, ErrForbidden) {
		t.Fatalf("anonymous: expected ErrForbidden, got %v", err)
	}
	if err := guard.Authorize(ctx, Identity{Subject: owner}, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing resource: expected ErrNotFound, got %v", err)
	}

	err := guard.Authorize(ctx, Identity{Subject: owner}, uuid.Nil)
	if !errors.Is(err, storeErr) {
		t.Fatalf("store failure should be wrapped, got %v", err)
	}
	if errors.Is(err, ErrForbidden) || errors.Is(err, ErrNotFound) {
		t.Fatalf("store failure must not look like a client error: %v", err)
	}
}
