// Package otel provides OpenTelemetry integration for marquee activity
// events and catalog fetches.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/marquee-labs/marquee/bus"
)

// MetricsHandler translates activity events into OpenTelemetry metrics.
// It records counters for session transitions and watchlist mutations.
type MetricsHandler struct {
	sessionEvents    metric.Int64Counter
	watchlistChanges metric.Int64Counter
	profileUpdates   metric.Int64Counter
	accountDeletions metric.Int64Counter
}

// NewMetricsHandler creates a MetricsHandler that uses the given meter to
// create instruments for recording activity metrics.
func NewMetricsHandler(meter metric.Meter) (*MetricsHandler, error) {
	sessionEvents, err := meter.Int64Counter("marquee.session.events",
		metric.WithDescription("Number of session transitions (signup, login, logout)"),
	)
	if err != nil {
		return nil, err
	}

	watchlistChanges, err := meter.Int64Counter("marquee.watchlist.changes",
		metric.WithDescription("Number of watchlist mutations"),
	)
	if err != nil {
		return nil, err
	}

	profileUpdates, err := meter.Int64Counter("marquee.profile.updates",
		metric.WithDescription("Number of profile updates"),
	)
	if err != nil {
		return nil, err
	}

	accountDeletions, err := meter.Int64Counter("marquee.account.deletions",
		metric.WithDescription("Number of account deletions"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsHandler{
		sessionEvents:    sessionEvents,
		watchlistChanges: watchlistChanges,
		profileUpdates:   profileUpdates,
		accountDeletions: accountDeletions,
	}, nil
}

// Handle processes one activity event and records the appropriate metrics.
func (h *MetricsHandler) Handle(e bus.Event) {
	switch e.Kind {
	case bus.EventSignup, bus.EventLogin, bus.EventLogout:
		h.handleSessionEvent(e)
	case bus.EventWatchlistAdded, bus.EventWatchlistRemoved, bus.EventWatchlistCleared:
		h.handleWatchlistEvent(e)
	case bus.EventProfileUpdated:
		h.profileUpdates.Add(context.Background(), 1)
	case bus.EventAccountDeleted:
		h.accountDeletions.Add(context.Background(), 1)
	}
}

// handleSessionEvent increments the session transition counter.
func (h *MetricsHandler) handleSessionEvent(e bus.Event) {
	h.sessionEvents.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", string(e.Kind)),
	))
}

// handleWatchlistEvent increments the watchlist mutation counter.
func (h *MetricsHandler) handleWatchlistEvent(e bus.Event) {
	h.watchlistChanges.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", string(e.Kind)),
	))
}
