package server

import (
	"net/http"
	"testing"

	"github.com/marquee-labs/marquee/catalog"
)

func TestHome_ColdCacheRefreshesInline(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/movies/home", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var snap catalog.HomeSnapshot
	decodeBody(t, rec, &snap)
	if len(snap.Popular) != 1 || snap.Popular[0].Title != "popular" {
		t.Fatalf("popular rail = %+v", snap.Popular)
	}
	if len(snap.Horror) != 1 || snap.Horror[0].Title != "genre 27" {
		t.Fatalf("horror rail = %+v", snap.Horror)
	}
}

func TestHome_UnavailableWhenProviderDownAndCacheCold(t *testing.T) {
	env := newTestEnv(t)
	env.providerDown = true

	rec := env.do(t, http.MethodGet, "/api/movies/home", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if code := errorCode(t, rec); code != "PROVIDER_UNAVAILABLE" {
		t.Fatalf("error code = %q", code)
	}
}

func TestHome_ServesStaleSnapshotWhenProviderDown(t *testing.T) {
	env := newTestEnv(t)

	// Warm the cache, then take the provider down.
	if rec := env.do(t, http.MethodGet, "/api/movies/home", nil); rec.Code != http.StatusOK {
		t.Fatalf("warmup status = %d", rec.Code)
	}
	env.providerDown = true

	rec := env.do(t, http.MethodGet, "/api/movies/home", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want stale 200", rec.Code)
	}
}

func TestListByCategory(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/movies/top_rated", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp MovieListResponse
	decodeBody(t, rec, &resp)
	if len(resp.Results) != 1 || resp.Results[0].Title != "top_rated" {
		t.Fatalf("results = %+v", resp.Results)
	}
}

func TestListByCategory_Unknown(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/movies/trending", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if code := errorCode(t, rec); code != "UNKNOWN_CATEGORY" {
		t.Fatalf("error code = %q", code)
	}
}

func TestListByCategory_DegradesWhenProviderDown(t *testing.T) {
	env := newTestEnv(t)
	env.providerDown = true

	rec := env.do(t, http.MethodGet, "/api/movies/popular", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want degraded 200", rec.Code)
	}
	var resp MovieListResponse
	decodeBody(t, rec, &resp)
	if len(resp.Results) != 0 {
		t.Fatalf("results = %+v, want empty", resp.Results)
	}
}

func TestDiscoverByGenre(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/movies/genre/35", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp MovieListResponse
	decodeBody(t, rec, &resp)
	if len(resp.Results) != 1 || resp.Results[0].Title != "genre 35" {
		t.Fatalf("results = %+v", resp.Results)
	}
}

func TestDiscoverByGenre_InvalidID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/movies/genre/abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestMovieDetails(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/movie/603", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var details catalog.MovieDetails
	decodeBody(t, rec, &details)
	if details.ID != 603 || details.Runtime != 120 {
		t.Fatalf("details = %+v", details)
	}
}

func TestMovieDetails_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/movie/404", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestMovieDetails_ProviderError(t *testing.T) {
	env := newTestEnv(t)
	env.providerDown = true

	rec := env.do(t, http.MethodGet, "/api/movie/603", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestMovieVideos_FiltersNonYouTube(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/movie/603/videos", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Results []catalog.Video `json:"results"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Results) != 1 || resp.Results[0].Site != "YouTube" {
		t.Fatalf("results = %+v", resp.Results)
	}
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/search?query=matrix", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp MovieListResponse
	decodeBody(t, rec, &resp)
	if len(resp.Results) != 1 || resp.Results[0].Title != "match: matrix" {
		t.Fatalf("results = %+v", resp.Results)
	}
}

func TestSearch_BlankQueryIsEmpty(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/search?query=", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp MovieListResponse
	decodeBody(t, rec, &resp)
	if len(resp.Results) != 0 {
		t.Fatalf("results = %+v, want empty", resp.Results)
	}
}
