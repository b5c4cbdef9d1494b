package handlers

import (
	"net/http"

	"insta-archive/internal/logging"
)

// TriggerReindex requests an index run. With ?wait=true the request blocks
// until the run finishes and the response reflects its outcome; otherwise
// the run is scheduled (or coalesced into a pending rerun) and 202 is
// returned immediately.
func (h *Handlers) TriggerReindex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("wait") == "true" {
		if err := h.coord.TriggerAndWait(r.Context(), "api"); err != nil {
			logging.Error("reindex failed: %v", err)
			writeJSONError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, h.coord.Status())
		return
	}

	h.coord.Schedule("api")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"status": "scheduled"})
}

// IndexerStatus reports the run coordinator's state machine snapshot.
func (h *Handlers) IndexerStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.coord.Status())
}
