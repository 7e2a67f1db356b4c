package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// HomeSnapshot is one consistent capture of the home page category rails.
type HomeSnapshot struct {
	Popular     []Movie   `json:"popular"`
	TopRated    []Movie   `json:"top_rated"`
	Upcoming    []Movie   `json:"upcoming"`
	Action      []Movie   `json:"action"`
	Comedy      []Movie   `json:"comedy"`
	Horror      []Movie   `json:"horror"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// HomeCache holds the latest snapshot of the home rails. A failed refresh
// keeps the previous snapshot; readers never see a partially built one.
type HomeCache struct {
	client *Client
	logger *slog.Logger
	now    func() time.Time

	mu   sync.RWMutex
	snap HomeSnapshot
	ok   bool
}

// NewHomeCache creates an empty cache over the given client.
func NewHomeCache(client *Client, logger *slog.Logger) *HomeCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &HomeCache{
		client: client,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot returns the latest snapshot. The boolean reports whether a
// refresh has ever succeeded.
func (c *HomeCache) Snapshot() (HomeSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap, c.ok
}

// Refresh fetches all six rails and swaps in a new snapshot. Any provider
// failure aborts the refresh and leaves the previous snapshot in place.
func (c *HomeCache) Refresh(ctx context.Context) error {
	popular, err := c.client.ListByCategory(ctx, CategoryPopular)
	if err != nil {
		return fmt.Errorf("home cache refresh: %w", err)
	}
	topRated, err := c.client.ListByCategory(ctx, CategoryTopRated)
	if err != nil {
		return fmt.Errorf("home cache refresh: %w", err)
	}
	upcoming, err := c.client.ListByCategory(ctx, CategoryUpcoming)
	if err != nil {
		return fmt.Errorf("home cache refresh: %w", err)
	}
	action, err := c.client.DiscoverByGenre(ctx, GenreAction)
	if err != nil {
		return fmt.Errorf("home cache refresh: %w", err)
	}
	comedy, err := c.client.DiscoverByGenre(ctx, GenreComedy)
	if err != nil {
		return fmt.Errorf("home cache refresh: %w", err)
	}
	horror, err := c.client.DiscoverByGenre(ctx, GenreHorror)
	if err != nil {
		return fmt.Errorf("home cache refresh: %w", err)
	}

	c.mu.Lock()
	c.snap = HomeSnapshot{
		Popular:     popular,
		TopRated:    topRated,
		Upcoming:    upcoming,
		Action:      action,
		Comedy:      comedy,
		Horror:      horror,
		RefreshedAt: c.now(),
	}
	c.ok = true
	c.mu.Unlock()
	return nil
}
