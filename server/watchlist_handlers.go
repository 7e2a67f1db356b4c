package server

import (
	"net/http"
	"strconv"

	"github.com/marquee-labs/marquee/catalog"
)

// WatchlistResponse is the JSON response for watchlist reads and mutations.
// Movies carries the hydrated catalog records for the ids the provider could
// serve; ids without a record are still listed in IDs.
type WatchlistResponse struct {
	IDs    []int64                `json:"ids"`
	Movies []catalog.MovieDetails `json:"movies,omitempty"`
}

func parseMovieID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// handleGetWatchlist returns the active user's watchlist, hydrated with
// catalog details. Provider failures degrade individual entries, never the
// whole response.
func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	user, ok := s.session.Current()
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "not logged in")
		return
	}

	resp := WatchlistResponse{IDs: user.Watchlist}
	if s.catalog != nil {
		for _, id := range user.Watchlist {
			details, err := s.catalog.Details(r.Context(), id)
			if err != nil {
				s.logger.Warn("watchlist hydration failed", "movie_id", id, "error", err)
				continue
			}
			resp.Movies = append(resp.Movies, details)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleAddToWatchlist adds a movie to the watchlist. Adding a movie already
// present is a successful no-op.
func (s *Server) handleAddToWatchlist(w http.ResponseWriter, r *http.Request) {
	movieID, ok := parseMovieID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid movie id")
		return
	}

	added, err := s.session.AddToWatchlist(r.Context(), movieID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if !added {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "not logged in")
		return
	}

	user, _ := s.session.Current()
	writeJSON(w, http.StatusOK, WatchlistResponse{IDs: user.Watchlist})
}

// handleRemoveFromWatchlist removes a movie from the watchlist. Removing an
// absent movie is a successful no-op.
func (s *Server) handleRemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	movieID, ok := parseMovieID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid movie id")
		return
	}

	removed, err := s.session.RemoveFromWatchlist(r.Context(), movieID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if !removed {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "not logged in")
		return
	}

	user, _ := s.session.Current()
	writeJSON(w, http.StatusOK, WatchlistResponse{IDs: user.Watchlist})
}

// handleClearWatchlist empties the watchlist in a single commit.
func (s *Server) handleClearWatchlist(w http.ResponseWriter, r *http.Request) {
	cleared, err := s.session.ClearWatchlist(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if !cleared {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "not logged in")
		return
	}

	writeJSON(w, http.StatusOK, WatchlistResponse{IDs: []int64{}})
}
