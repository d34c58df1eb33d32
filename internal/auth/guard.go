package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// OwnerLookup resolves the recorded owner of a resource. Implementations
// return ErrNotFound when the resource does not exist.
type OwnerLookup interface {
	OwnerOf(ctx context.Context, resourceID uuid.UUID) (uuid.UUID, error)
}

// OwnerLookupFunc adapts a function to OwnerLookup.
type OwnerLookupFunc func(ctx context.Context, resourceID uuid.UUID) (uuid.UUID, error)

func (f OwnerLookupFunc) OwnerOf(ctx context.Context, resourceID uuid.UUID) (uuid.UUID, error) {
	return f(ctx, resourceID)
}

// OwnershipGuard allows a mutation only when the caller owns the resource.
type OwnershipGuard struct {
	owners OwnerLookup
}

func NewOwnershipGuard(owners OwnerLookup) *OwnershipGuard {
	return &OwnershipGuard{owners: owners}
}

// Authorize returns nil when id owns resourceID, ErrNotFound when the resource
// is absent and ErrForbidden otherwise.
func (g *OwnershipGuard) Authorize(ctx context.Context, id Identity, resourceID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "auth.OwnershipGuard.Authorize")
	defer span.End()

	owner, err := g.owners.OwnerOf(ctx, resourceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		span.RecordError(err)
		return fmt.Errorf("lookup owner of %s: %w", resourceID, err)
	}
	if id.Subject == uuid.Nil || owner != id.Subject {
		return ErrForbidden
	}
	return nil
}
