package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"postline.dev/internal/audit"
	"postline.dev/internal/auth"
)

// Machine-readable error codes carried next to the human message.
const (
	codeValidation           = "validation_failed"
	codeInvalidBody          = "invalid_body"
	codeBodyTooLarge         = "body_too_large"
	codeInvalidID            = "invalid_id"
	codeConflict             = "conflict"
	codeInvalidCredentials   = "invalid_credentials"
	codeAuthorizationMissing = "authorization_required"
	codeAuthorizationFormat  = "invalid_authorization_format"
	codeInvalidToken         = "invalid_token"
	codeInvalidSubject       = "invalid_subject"
	codeForbidden            = "forbidden"
	codeNotFound             = "not_found"
	codeMethodNotAllowed     = "method_not_allowed"
	codeInternal             = "internal"
)

// errorText overrides the default message for resource-specific failures.
type errorText struct {
	notFound  string
	forbidden string
}

// RequestIDFromContext returns the id assigned by the RequestID middleware.
func RequestIDFromContext(ctx context.Context) string {
	return audit.RequestIDFromContext(ctx)
}

// writeServiceError maps a service error to status, code and message.
// Unrecognised errors are logged and answered with a generic 500.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error, text errorText) {
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		writeErrorDetails(w, r, http.StatusBadRequest, codeValidation, "Validation failed", verr.Fields)
	case errors.Is(err, auth.ErrValidation):
		writeError(w, r, http.StatusBadRequest, codeValidation, "Validation failed")
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, codeConflict, "Email already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeUnauthorized(w, r, codeInvalidCredentials, "Invalid credentials")
	case errors.Is(err, auth.ErrAuthorizationRequired):
		writeUnauthorized(w, r, codeAuthorizationMissing, "Authorization header required")
	case errors.Is(err, auth.ErrInvalidAuthorizationFormat):
		writeUnauthorized(w, r, codeAuthorizationFormat, "Invalid authorization format")
	case errors.Is(err, auth.ErrInvalidToken):
		writeUnauthorized(w, r, codeInvalidToken, "Invalid token")
	case errors.Is(err, auth.ErrInvalidSubject):
		writeUnauthorized(w, r, codeInvalidSubject, "Invalid user ID in token")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, codeForbidden, orDefault(text.forbidden, "Forbidden"))
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, codeNotFound, orDefault(text.notFound, "Not found"))
	default:
		a.logger.ErrorContext(r.Context(), "request failed",
			"request_id", RequestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, r, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

// writeDecodeError answers a body that could not be decoded.
func writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, r, http.StatusRequestEntityTooLarge, codeBodyTooLarge, "request body too large")
		return
	}
	writeError(w, r, http.StatusBadRequest, codeInvalidBody, err.Error())
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, code, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="postline"`)
	writeError(w, r, http.StatusUnauthorized, code, msg)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeErrorDetails(w, r, status, code, msg, nil)
}

func writeErrorDetails(w http.ResponseWriter, r *http.Request, status int, code, msg string, details map[string]string) {
	payload := map[string]any{
		"error": msg,
		"code":  code,
	}
	if len(details) > 0 {
		payload["details"] = details
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, status, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
}

// decodeJSON reads exactly one JSON value of at most a.maxBody bytes.
func (a *API) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, a.maxBody)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
