package auth

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrValidation                 = errors.New("auth: validation failed")
	ErrConflict                   = errors.New("auth: already exists")
	ErrNotFound                   = errors.New("auth: not found")
	ErrForbidden                  = errors.New("auth: forbidden")
	ErrInvalidCredentials         = errors.New("auth: invalid credentials")
	ErrAuthorizationRequired      = errors.New("auth: authorization header required")
	ErrInvalidAuthorizationFormat = errors.New("auth: invalid authorization format")
	ErrInvalidToken               = errors.New("auth: invalid token")
	ErrInvalidSubject             = errors.New("auth: invalid token subject")
)

// Token verification failures. Callers outside this package should treat all
// of them as ErrInvalidToken.
var (
	ErrMalformedToken   = errors.New("token: malformed")
	ErrInvalidSignature = errors.New("token: signature invalid")
	ErrTokenExpired     = errors.New("token: expired")
)

// ErrMalformedHash is returned when a stored password hash cannot be parsed.
// It signals corrupt data, not a wrong password.
var ErrMalformedHash = errors.New("password: malformed hash")

// ValidationError carries per-field messages and matches ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Add records a failing field; the first message per field wins.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; ok {
		return
	}
	e.Fields[field] = msg
}

// Err returns nil when no field failed.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}
