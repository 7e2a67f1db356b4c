// Package catalog is the client for the external movie metadata provider.
// It exposes category listings, genre discovery, per-title details, and
// search over the provider's JSON HTTP API.
//
// Provider failures surface as errors from this package; the serving layer
// degrades them to empty results rather than letting them reach the
// identity/session core.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the provider API root.
const DefaultBaseURL = "https://api.themoviedb.org/3"

// Category is a provider-defined movie listing.
type Category string

// Supported listing categories.
const (
	CategoryPopular  Category = "popular"
	CategoryTopRated Category = "top_rated"
	CategoryUpcoming Category = "upcoming"
)

// Provider genre identifiers used by the home rails.
const (
	GenreAction int64 = 28
	GenreComedy int64 = 35
	GenreHorror int64 = 27
)

// ErrUnknownCategory is returned for a category the provider does not serve.
var ErrUnknownCategory = errors.New("unknown catalog category")

// StatusError reports a non-success HTTP response from the provider.
type StatusError struct {
	Operation string
	Code      int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog %s: provider returned status %d", e.Operation, e.Code)
}

// ParseCategory validates a category string.
func ParseCategory(value string) (Category, error) {
	switch Category(value) {
	case CategoryPopular, CategoryTopRated, CategoryUpcoming:
		return Category(value), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, value)
	}
}

// Config configures a catalog Client.
type Config struct {
	// BaseURL overrides the provider API root (default: DefaultBaseURL).
	BaseURL string
	// APIKey is the provider API key. Required.
	APIKey string
	// HTTPClient overrides the HTTP client (default: 10s timeout).
	HTTPClient *http.Client
	// Observer receives fetch lifecycle notifications.
	Observer Observer
	Logger   *slog.Logger
}

// Client issues requests against the metadata provider.
type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	observer Observer
	logger   *slog.Logger
}

// NewClient creates a catalog client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("catalog client: api key is required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	observer := cfg.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:  baseURL,
		apiKey:   cfg.APIKey,
		http:     httpClient,
		observer: observer,
		logger:   logger,
	}, nil
}

// ListByCategory returns the first page of the given listing category.
func (c *Client) ListByCategory(ctx context.Context, category Category) ([]Movie, error) {
	if _, err := ParseCategory(string(category)); err != nil {
		return nil, err
	}
	var resp page[Movie]
	op := "list." + string(category)
	if err := c.get(ctx, op, "/movie/"+string(category), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// DiscoverByGenre returns the first page of movies for one genre.
func (c *Client) DiscoverByGenre(ctx context.Context, genreID int64) ([]Movie, error) {
	var resp page[Movie]
	query := url.Values{"with_genres": {fmt.Sprint(genreID)}}
	if err := c.get(ctx, "discover.genre", "/discover/movie", query, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Details returns the full record for one movie.
func (c *Client) Details(ctx context.Context, movieID int64) (MovieDetails, error) {
	var details MovieDetails
	path := fmt.Sprintf("/movie/%d", movieID)
	if err := c.get(ctx, "details", path, nil, &details); err != nil {
		return MovieDetails{}, err
	}
	return details, nil
}

// Videos returns the YouTube trailers and clips attached to one movie.
// Entries hosted elsewhere are filtered out.
func (c *Client) Videos(ctx context.Context, movieID int64) ([]Video, error) {
	var resp videoList
	path := fmt.Sprintf("/movie/%d/videos", movieID)
	if err := c.get(ctx, "videos", path, nil, &resp); err != nil {
		return nil, err
	}
	videos := make([]Video, 0, len(resp.Results))
	for _, v := range resp.Results {
		if v.Site == "YouTube" {
			videos = append(videos, v)
		}
	}
	return videos, nil
}

// Search returns movies matching the query. A blank query is an empty result
// without a provider round trip.
func (c *Client) Search(ctx context.Context, query string) ([]Movie, error) {
	clean := strings.TrimSpace(query)
	if clean == "" {
		return nil, nil
	}
	var resp page[Movie]
	values := url.Values{"query": {clean}}
	if err := c.get(ctx, "search", "/search/movie", values, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// get performs one provider request and decodes the JSON response.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) (err error) {
	ctx, done := c.observer.FetchStarted(ctx, op)
	defer func() { done(err) }()

	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("catalog %s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("catalog %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Operation: op, Code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("catalog %s: decode response: %w", op, err)
	}
	return nil
}
