package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"

	"postline.dev/internal/auth"
	"postline.dev/internal/obs"
	"postline.dev/internal/posts"
)

const serviceName = "postline-api"

var tracer = otel.Tracer("postline.dev/internal/httpapi")

// Pinger is implemented by every store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe reports readiness by pinging the store.
type ReadyProbe struct {
	Store Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return rp.Store.Ping(ctx)
}

// Options wires the API to its services.
type Options struct {
	Auth          *auth.Service
	Posts         *posts.Service
	Authenticator *auth.Authenticator
	Ready         ReadyProbe
	Version       string
	MaxBodyBytes  int64
	Logger        *slog.Logger
}

// API is the HTTP layer.
type API struct {
	mux     *http.ServeMux
	auth    *auth.Service
	posts   *posts.Service
	authn   *auth.Authenticator
	ready   ReadyProbe
	version string
	maxBody int64
	logger  *slog.Logger

	me         http.Handler
	createPost http.Handler
	postWrite  http.Handler
}

func New(opts Options) *API {
	a := &API{
		mux:     http.NewServeMux(),
		auth:    opts.Auth,
		posts:   opts.Posts,
		authn:   opts.Authenticator,
		ready:   opts.Ready,
		version: opts.Version,
		maxBody: opts.MaxBodyBytes,
		logger:  opts.Logger,
	}
	if a.maxBody <= 0 {
		a.maxBody = 1 << 20
	}
	if a.logger == nil {
		a.logger = obs.Logger()
	}

	a.me = a.requireAuth(http.HandlerFunc(a.getMe))
	a.createPost = a.requireAuth(http.HandlerFunc(a.handleCreatePost))
	a.postWrite = a.requireAuth(http.HandlerFunc(a.handlePostWrite))

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	a.mux.HandleFunc("/auth/register", a.handleRegister)
	a.mux.HandleFunc("/auth/login", a.handleLogin)
	a.mux.HandleFunc("/auth/me", a.handleMe)

	a.mux.HandleFunc("/posts", a.handlePostsCollection)
	a.mux.HandleFunc("/posts/", a.handlePostResource)

	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, codeNotFound, "resource not found")
	})

	return a
}

// Handler returns the mux wrapped in the middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = obs.Instrument(a.mux)
	h = MaxBodyBytes(h, a.maxBody)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	return RequestID(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		a.logger.WarnContext(r.Context(), "readiness check failed", "request_id", RequestIDFromContext(r.Context()), "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
