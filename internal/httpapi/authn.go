package httpapi

import (
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"

	"postline.dev/internal/auth"
	"postline.dev/internal/obs"
)

const authHeader = "Authorization"

// requireAuth verifies the bearer token before next runs. On rejection it
// answers 401 and next is never called; otherwise the identity and raw token
// travel in the request context.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "httpapi.requireAuth")
		defer span.End()
		r = r.WithContext(ctx)

		id, token, err := a.authn.Authenticate(r.Header.Get(authHeader))
		if err != nil {
			reason := rejectionReason(err)
			obs.AuthRejected(reason)
			span.SetStatus(otelcodes.Error, reason)
			a.logger.InfoContext(ctx, "authentication rejected",
				"request_id", RequestIDFromContext(ctx),
				"path", r.URL.Path,
				"reason", reason,
				"error", err,
			)
			a.writeServiceError(w, r, err, errorText{})
			return
		}

		span.SetAttributes(attribute.String("user.id", id.String()))
		ctx = auth.ContextWithIdentity(ctx, id)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrAuthorizationRequired):
		return "missing"
	case errors.Is(err, auth.ErrInvalidAuthorizationFormat):
		return "format"
	case errors.Is(err, auth.ErrTokenExpired):
		return "expired"
	case errors.Is(err, auth.ErrInvalidSignature):
		return "signature"
	case errors.Is(err, auth.ErrInvalidToken):
		return "token"
	case errors.Is(err, auth.ErrInvalidSubject):
		return "subject"
	default:
		return "other"
	}
}

// identity returns the caller attached by requireAuth.
func identity(r *http.Request) (auth.Identity, bool) {
	return auth.IdentityFromContext(r.Context())
}
