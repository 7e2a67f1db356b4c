package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/marquee-labs/marquee/catalog"
)

// MovieListResponse is the JSON response for catalog listing endpoints.
type MovieListResponse struct {
	Results []catalog.Movie `json:"results"`
}

// handleHome returns the cached home page rails. A cold cache is refreshed
// inline once; if the provider is still unreachable the rails are unavailable.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.homeCache.Snapshot()
	if !ok {
		if err := s.homeCache.Refresh(r.Context()); err != nil {
			s.logger.Warn("inline home refresh failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "PROVIDER_UNAVAILABLE", "home rails are not available yet")
			return
		}
		snap, _ = s.homeCache.Snapshot()
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleListByCategory returns one provider listing category. Provider
// failures degrade to an empty result.
func (s *Server) handleListByCategory(w http.ResponseWriter, r *http.Request) {
	category, err := catalog.ParseCategory(r.PathValue("category"))
	if err != nil {
		writeError(w, http.StatusNotFound, "UNKNOWN_CATEGORY", err.Error())
		return
	}

	movies, err := s.catalog.ListByCategory(r.Context(), category)
	if err != nil {
		s.logger.Warn("category listing failed", "category", category, "error", err)
		movies = nil
	}
	writeJSON(w, http.StatusOK, MovieListResponse{Results: emptyIfNil(movies)})
}

// handleDiscoverByGenre returns movies for one genre. Provider failures
// degrade to an empty result.
func (s *Server) handleDiscoverByGenre(w http.ResponseWriter, r *http.Request) {
	genreID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || genreID <= 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid genre id")
		return
	}

	movies, err := s.catalog.DiscoverByGenre(r.Context(), genreID)
	if err != nil {
		s.logger.Warn("genre discovery failed", "genre_id", genreID, "error", err)
		movies = nil
	}
	writeJSON(w, http.StatusOK, MovieListResponse{Results: emptyIfNil(movies)})
}

// handleMovieDetails returns the full record for one movie.
func (s *Server) handleMovieDetails(w http.ResponseWriter, r *http.Request) {
	movieID, ok := parseMovieID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid movie id")
		return
	}

	details, err := s.catalog.Details(r.Context(), movieID)
	if err != nil {
		var statusErr *catalog.StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "movie not found")
			return
		}
		writeError(w, http.StatusBadGateway, "PROVIDER_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// handleMovieVideos returns the YouTube trailers and clips for one movie.
// Provider failures degrade to an empty result.
func (s *Server) handleMovieVideos(w http.ResponseWriter, r *http.Request) {
	movieID, ok := parseMovieID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid movie id")
		return
	}

	videos, err := s.catalog.Videos(r.Context(), movieID)
	if err != nil {
		s.logger.Warn("video listing failed", "movie_id", movieID, "error", err)
		videos = nil
	}
	if videos == nil {
		videos = []catalog.Video{}
	}
	writeJSON(w, http.StatusOK, map[string][]catalog.Video{"results": videos})
}

// handleSearch returns movies matching the query. A blank query is an empty
// result; provider failures degrade to an empty result.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")

	movies, err := s.catalog.Search(r.Context(), query)
	if err != nil {
		s.logger.Warn("search failed", "query", query, "error", err)
		movies = nil
	}
	writeJSON(w, http.StatusOK, MovieListResponse{Results: emptyIfNil(movies)})
}

func emptyIfNil(movies []catalog.Movie) []catalog.Movie {
	if movies == nil {
		return []catalog.Movie{}
	}
	return movies
}
