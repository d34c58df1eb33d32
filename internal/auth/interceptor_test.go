package auth

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

type stubVerifier struct {
	claims Claims
	err    error
	calls  int
}

func (s *stubVerifier) Verify(token string) (Claims, error) {
	s.calls++
	return s.claims, s.err
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		token   string
		wantErr error
	}{
		{header: "", wantErr: ErrAuthorizationRequired},
		{header: "   ", wantErr: ErrAuthorizationRequired},
		{header: "Bearer abc.def.ghi", token: "abc.def.ghi"},
		{header: "bearer abc", token: "abc"},
		{header: "BEARER  abc ", token: "abc"},
		{header: "Bearer", wantErr: ErrInvalidAuthorizationFormat},
		{header: "Bearer ", wantErr: ErrInvalidAuthorizationFormat},
		{header: "Basic abc", wantErr: ErrInvalidAuthorizationFormat},
		{header: "Token abc", wantErr: ErrInvalidAuthorizationFormat},
		{header: "Bearer a b", wantErr: ErrInvalidAuthorizationFormat},
		{header: "Bearer a\tb", wantErr: ErrInvalidAuthorizationFormat},
		{header: "abc", wantErr: ErrInvalidAuthorizationFormat},
	}
	for _, tt := range tests {
		token, err := ExtractBearerToken(tt.header)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ExtractBearerToken(%q) err = %v, want %v", tt.header, err, tt.wantErr)
			}
			continue
		}
		if err != nil || token != tt.token {
			t.Fatalf("ExtractBearerToken(%q) = %q, %v; want %q", tt.header, token, err, tt.token)
		}
	}
}

func TestAuthenticateStates(t *testing.T) {
	subject := uuid.New()

	t.Run("missing header skips verification", func(t *testing.T) {
		v := &stubVerifier{}
		_, _, err := NewAuthenticator(v).Authenticate("")
		if !errors.Is(err, ErrAuthorizationRequired) {
			t.Fatalf("err = %v", err)
		}
		if v.calls != 0 {
			t.Fatal("verifier called without a token")
		}
	})

	t.Run("bad format skips verification", func(t *testing.T) {
		v := &stubVerifier{}
		_, _, err := NewAuthenticator(v).Authenticate("Basic abc")
		if !errors.Is(err, ErrInvalidAuthorizationFormat) {
			t.Fatalf("err = %v", err)
		}
		if v.calls != 0 {
			t.Fatal("verifier called for a non-bearer header")
		}
	})

	t.Run("verification failure becomes invalid token", func(t *testing.T) {
		v := &stubVerifier{err: ErrTokenExpired}
		_, _, err := NewAuthenticator(v).Authenticate("Bearer tok")
		if !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("err = %v", err)
		}
		if !errors.Is(err, ErrTokenExpired) {
			t.Fatal("cause should stay available for logging")
		}
	})

	t.Run("non uuid subject", func(t *testing.T) {
		v := &stubVerifier{claims: Claims{Subject: "user-42"}}
		_, _, err := NewAuthenticator(v).Authenticate("Bearer tok")
		if !errors.Is(err, ErrInvalidSubject) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("nil uuid subject", func(t *testing.T) {
		v := &stubVerifier{claims: Claims{Subject: uuid.Nil.String()}}
		_, _, err := NewAuthenticator(v).Authenticate("Bearer tok")
		if !errors.Is(err, ErrInvalidSubject) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("authenticated", func(t *testing.T) {
		v := &stubVerifier{claims: Claims{Subject: subject.String()}}
		id, token, err := NewAuthenticator(v).Authenticate("Bearer tok")
		if err != nil {
			t.Fatalf("err = %v", err)
		}
		if id.Subject != subject || token != "tok" {
			t.Fatalf("got %v %q", id, token)
		}
	})
}
