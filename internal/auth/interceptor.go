package auth

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const bearerScheme = "bearer"

// TokenVerifier is the part of TokenService the interceptor depends on.
type TokenVerifier interface {
	Verify(token string) (Claims, error)
}

// Authenticator turns an Authorization header value into an Identity.
type Authenticator struct {
	tokens TokenVerifier
}

func NewAuthenticator(tokens TokenVerifier) *Authenticator {
	return &Authenticator{tokens: tokens}
}

// Authenticate runs the header through the checks in order: presence, bearer
// format, token verification, subject shape. The returned error is one of
// ErrAuthorizationRequired, ErrInvalidAuthorizationFormat, ErrInvalidToken or
// ErrInvalidSubject; ErrInvalidToken wraps the verifier's cause for logging.
func (a *Authenticator) Authenticate(header string) (Identity, string, error) {
	token, err := ExtractBearerToken(header)
	if err != nil {
		return Identity{}, "", err
	}

	claims, err := a.tokens.Verify(token)
	if err != nil {
		return Identity{}, "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	subject, err := uuid.Parse(claims.Subject)
	if err != nil || subject == uuid.Nil {
		return Identity{}, "", ErrInvalidSubject
	}
	return Identity{Subject: subject}, token, nil
}

// ExtractBearerToken returns the token from a "Bearer <token>" header value.
func ExtractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrAuthorizationRequired
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return "", ErrInvalidAuthorizationFormat
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrInvalidAuthorizationFormat
	}
	return token, nil
}
