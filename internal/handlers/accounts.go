package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"insta-archive/internal/database"
)

// ListAccounts returns all indexed accounts.
func (h *Handlers) ListAccounts(w http.ResponseWriter, r *http.Request) {
	h.writeCachedJSON(w, "accounts", func() (interface{}, error) {
		accounts, err := h.db.ListAccounts(r.Context())
		if err != nil {
			return nil, err
		}
		if accounts == nil {
			accounts = []database.Account{}
		}
		return accounts, nil
	})
}

// AccountDetail is the per-account response with its profile picture
// history attached.
type AccountDetail struct {
	database.Account
	ProfilePics []database.ProfilePic `json:"profilePics"`
}

// GetAccount returns one account with its profile picture history.
func (h *Handlers) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	account, err := h.db.GetAccount(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSONError(w, "account not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	pics, err := h.db.ListProfilePics(r.Context(), id)
	if err != nil {
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if pics == nil {
		pics = []database.ProfilePic{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, AccountDetail{Account: *account, ProfilePics: pics})
}

// ListAccountPosts returns an account's posts, newest first.
func (h *Handlers) ListAccountPosts(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	h.writeCachedJSON(w, "posts:"+id, func() (interface{}, error) {
		posts, err := h.db.ListPosts(r.Context(), id)
		if err != nil {
			return nil, err
		}
		if posts == nil {
			posts = []database.Post{}
		}
		return posts, nil
	})
}

// ListAccountHighlights returns an account's highlights with media.
func (h *Handlers) ListAccountHighlights(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	h.writeCachedJSON(w, "highlights:"+id, func() (interface{}, error) {
		highlights, err := h.db.ListHighlights(r.Context(), id)
		if err != nil {
			return nil, err
		}
		if highlights == nil {
			highlights = []database.Highlight{}
		}
		return highlights, nil
	})
}

// GetPost returns a single post by account and post id.
func (h *Handlers) GetPost(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	post, err := h.db.GetPost(r.Context(), vars["account"], vars["id"])
	if errors.Is(err, sql.ErrNoRows) {
		writeJSONError(w, "post not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, post)
}
