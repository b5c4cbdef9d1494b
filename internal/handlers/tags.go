package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"insta-archive/internal/database"
)

// ListTags returns all tags with their post counts, most used first.
func (h *Handlers) ListTags(w http.ResponseWriter, r *http.Request) {
	h.writeCachedJSON(w, "tags", func() (interface{}, error) {
		tags, err := h.db.ListTags(r.Context())
		if err != nil {
			return nil, err
		}
		if tags == nil {
			tags = []database.Tag{}
		}
		return tags, nil
	})
}

// ListTagPosts returns all posts carrying the given tag, newest first.
func (h *Handlers) ListTagPosts(w http.ResponseWriter, r *http.Request) {
	tag := mux.Vars(r)["tag"]

	h.writeCachedJSON(w, "tag-posts:"+tag, func() (interface{}, error) {
		posts, err := h.db.ListPostsByTag(r.Context(), tag)
		if err != nil {
			return nil, err
		}
		if posts == nil {
			posts = []database.Post{}
		}
		return posts, nil
	})
}

// SearchPosts runs a full-text search over captions.
func (h *Handlers) SearchPosts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSONError(w, "missing query parameter q", http.StatusBadRequest)
		return
	}

	posts, err := h.db.SearchPosts(r.Context(), query, 50)
	if errors.Is(err, database.ErrSearchUnavailable) {
		writeJSONError(w, err.Error(), http.StatusNotImplemented)
		return
	}
	if err != nil {
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if posts == nil {
		posts = []database.Post{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, posts)
}
