package handlers

import (
	"encoding/json"
	"net/http"

	"insta-archive/internal/logging"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Encoding or write errors are logged since we typically cannot recover
// from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, map[string]string{"error": message})
}

// writeCachedJSON serves key from the response cache when possible,
// otherwise calls load, stores the result and writes it.
func (h *Handlers) writeCachedJSON(w http.ResponseWriter, key string, load func() (interface{}, error)) {
	w.Header().Set("Content-Type", "application/json")

	if h.cache != nil {
		if body, ok := h.cache.Get(key); ok {
			if _, err := w.Write(body); err != nil {
				logging.Error("failed to write cached response: %v", err)
			}
			return
		}
	}

	v, err := load()
	if err != nil {
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		logging.Error("failed to load %s: %v", key, err)
		return
	}

	body, err := json.Marshal(v)
	if err != nil {
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		logging.Error("failed to encode %s: %v", key, err)
		return
	}
	body = append(body, '\n')

	if h.cache != nil {
		h.cache.Set(key, body)
	}
	if _, err := w.Write(body); err != nil {
		logging.Error("failed to write response: %v", err)
	}
}
