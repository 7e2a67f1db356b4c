package bus

import (
	"context"
	"log/slog"
)

// Recorder appends events to an EventStore and then publishes them on an
// EventBus. Appending first assigns the sequence number, so live subscribers
// and replaying clients observe the same cursor.
//
// Store failures are logged and the event is still published; activity
// history is advisory and must never block a session operation.
type Recorder struct {
	store  EventStore
	bus    EventBus
	logger *slog.Logger
}

// NewRecorder creates a new Recorder. Store and bus may each be nil, in which
// case the corresponding step is skipped.
func NewRecorder(store EventStore, eb EventBus, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:  store,
		bus:    eb,
		logger: logger,
	}
}

// Record persists and publishes a single event.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if r == nil {
		return
	}

	if r.store != nil {
		stored, err := r.store.Append(ctx, event)
		if err != nil {
			r.logger.Error("failed to persist activity event",
				"user_id", event.UserID,
				"kind", event.Kind,
				"error", err,
			)
		} else {
			event = stored
		}
	}

	if r.bus != nil {
		r.bus.Publish(event)
	}
}
