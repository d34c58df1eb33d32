package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("postline.dev/internal/auth")

// Hasher is the credential hashing capability used by Service.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) (bool, error)
}

// Issuer mints tokens for a subject.
type Issuer interface {
	Issue(subject uuid.UUID) (string, error)
}

// Service runs registration, login and identity lookup. It is the only path
// that combines the hasher with token issuance.
type Service struct {
	users  UserStore
	hasher Hasher
	tokens Issuer
	newID  func() uuid.UUID
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithIDGenerator overrides how new user ids are produced.
func WithIDGenerator(fn func() uuid.UUID) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func NewService(users UserStore, hasher Hasher, tokens Issuer, opts ...ServiceOption) *Service {
	s := &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		newID:  uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a credential record. An existing email yields ErrConflict
// and nothing is written.
func (s *Service) Register(ctx context.Context, in RegisterInput) (UserSummary, error) {
	ctx, span := tracer.Start(ctx, "auth.Service.Register")
	defer span.End()

	in.normalize()
	if err := in.Validate(); err != nil {
		return UserSummary{}, err
	}

	if _, err := s.users.FindByEmail(ctx, in.Email); err == nil {
		return UserSummary{}, ErrConflict
	} else if !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		return UserSummary{}, fmt.Errorf("lookup user by email: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		span.RecordError(err)
		return UserSummary{}, err
	}

	u := &User{
		ID:           s.newID(),
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, ErrConflict) {
			return UserSummary{}, ErrConflict
		}
		span.RecordError(err)
		return UserSummary{}, fmt.Errorf("create user: %w", err)
	}
	span.SetAttributes(attribute.String("user.id", u.ID.String()))
	return u.Summary(), nil
}

// Login checks credentials and issues a token. Unknown emails and wrong
// passwords both return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	ctx, span := tracer.Start(ctx, "auth.Service.Login")
	defer span.End()

	if err := in.Validate(); err != nil {
		return LoginResult{}, err
	}

	u, err := s.users.FindByEmail(ctx, NormalizeEmail(in.Email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		span.RecordError(err)
		return LoginResult{}, fmt.Errorf("lookup user by email: %w", err)
	}

	ok, err := s.hasher.Verify(in.Password, u.PasswordHash)
	if err != nil {
		span.RecordError(err)
		return LoginResult{}, fmt.Errorf("verify password for %s: %w", u.ID, err)
	}
	if !ok {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		span.RecordError(err)
		return LoginResult{}, err
	}
	span.SetAttributes(attribute.String("user.id", u.ID.String()))
	return LoginResult{Token: token, User: u.Summary()}, nil
}

// Me returns the summary of the authenticated user, or ErrNotFound if the
// record no longer exists.
func (s *Service) Me(ctx context.Context, id Identity) (UserSummary, error) {
	u, err := s.users.Find(ctx, id.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return UserSummary{}, ErrNotFound
		}
		return UserSummary{}, fmt.Errorf("find user %s: %w", id.Subject, err)
	}
	return u.Summary(), nil
}

