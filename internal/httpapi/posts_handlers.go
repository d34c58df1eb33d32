package httpapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"postline.dev/internal/audit"
	"postline.dev/internal/auth"
	"postline.dev/internal/posts"
)

var postErrors = errorText{notFound: "Post not found"}

func (a *API) handlePostsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listPosts(w, r)
	case http.MethodPost:
		a.createPost.ServeHTTP(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePostResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/posts/")
	if path == "" || strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, codeNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		id, ok := parsePostID(w, r, path)
		if !ok {
			return
		}
		a.getPost(w, r, id)
	case http.MethodPut, http.MethodDelete:
		a.postWrite.ServeHTTP(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// handlePostWrite runs behind requireAuth for PUT and DELETE.
func (a *API) handlePostWrite(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePostID(w, r, strings.TrimPrefix(r.URL.Path, "/posts/"))
	if !ok {
		return
	}
	caller, ok := identity(r)
	if !ok {
		a.writeServiceError(w, r, auth.ErrAuthorizationRequired, errorText{})
		return
	}
	if r.Method == http.MethodDelete {
		a.deletePost(w, r, caller, id)
		return
	}
	a.updatePost(w, r, caller, id)
}

func (a *API) listPosts(w http.ResponseWriter, r *http.Request) {
	items, err := a.posts.List(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err, postErrors)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) getPost(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	p, err := a.posts.Get(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, r, err, postErrors)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(r)
	if !ok {
		a.writeServiceError(w, r, auth.ErrAuthorizationRequired, errorText{})
		return
	}

	var req posts.CreateInput
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	p, err := a.posts.Create(r.Context(), caller, req)
	if err != nil {
		a.writeServiceError(w, r, err, postErrors)
		return
	}

	_ = audit.LogEvent(r.Context(), "post.created", map[string]any{"post_id": p.ID.String()})
	w.Header().Set("Location", "/posts/"+p.ID.String())
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) updatePost(w http.ResponseWriter, r *http.Request, caller auth.Identity, id uuid.UUID) {
	var req posts.UpdateInput
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	p, err := a.posts.Update(r.Context(), caller, id, req)
	if err != nil {
		a.writeServiceError(w, r, err, errorText{
			notFound:  postErrors.notFound,
			forbidden: "You can only update your own posts",
		})
		return
	}

	_ = audit.LogEvent(r.Context(), "post.updated", map[string]any{"post_id": id.String()})
	writeJSON(w, http.StatusOK, p)
}

func (a *API) deletePost(w http.ResponseWriter, r *http.Request, caller auth.Identity, id uuid.UUID) {
	if err := a.posts.Delete(r.Context(), caller, id); err != nil {
		a.writeServiceError(w, r, err, errorText{
			notFound:  postErrors.notFound,
			forbidden: "You can only delete your own posts",
		})
		return
	}

	_ = audit.LogEvent(r.Context(), "post.deleted", map[string]any{"post_id": id.String()})
	w.WriteHeader(http.StatusNoContent)
}

func parsePostID(w http.ResponseWriter, r *http.Request, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidID, "Invalid post ID")
		return uuid.Nil, false
	}
	return id, true
}
