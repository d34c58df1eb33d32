package httpapi

import (
	"errors"
	"net/http"

	"postline.dev/internal/audit"
	"postline.dev/internal/auth"
	"postline.dev/internal/obs"
)

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req auth.RegisterInput
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	user, err := a.auth.Register(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err, errorText{})
		return
	}

	_ = audit.LogEvent(r.Context(), "user.registered", map[string]any{
		"user_id": user.ID.String(),
	})
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req auth.LoginInput
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	res, err := a.auth.Login(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			obs.LoginAttempt("invalid")
			_ = audit.LogEvent(r.Context(), "user.login_failed", nil)
		case errors.Is(err, auth.ErrValidation):
		default:
			obs.LoginAttempt("error")
		}
		a.writeServiceError(w, r, err, errorText{})
		return
	}

	obs.LoginAttempt("success")
	_ = audit.LogEvent(r.Context(), "user.login", map[string]any{
		"user_id": res.User.ID.String(),
	})
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	a.me.ServeHTTP(w, r)
}

func (a *API) getMe(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		a.writeServiceError(w, r, auth.ErrAuthorizationRequired, errorText{})
		return
	}
	user, err := a.auth.Me(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, r, err, errorText{notFound: "User not found"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}
