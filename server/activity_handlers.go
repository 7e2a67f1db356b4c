package server

import (
	"net/http"
	"strconv"

	"github.com/marquee-labs/marquee/bus"
)

const defaultActivityLimit = 50

// ActivityResponse is the JSON response for GET /api/activity.
type ActivityResponse struct {
	Events []bus.Event `json:"events"`
}

// handleActivity returns recent activity events for the active user, oldest
// first. The optional "after" parameter resumes from a sequence cursor.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	user, ok := s.session.Current()
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "not logged in")
		return
	}

	var afterSeq uint64
	if afterStr := r.URL.Query().Get("after"); afterStr != "" {
		parsed, err := strconv.ParseUint(afterStr, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid after parameter")
			return
		}
		afterSeq = parsed
	}

	limit := defaultActivityLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid limit parameter")
			return
		}
		limit = parsed
	}

	events, err := s.eventStore.List(r.Context(), user.ID, afterSeq, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if events == nil {
		events = []bus.Event{}
	}

	writeJSON(w, http.StatusOK, ActivityResponse{Events: events})
}
