package bus

import "context"

// EventStore persists account activity events for replay. Stored events feed
// the activity feed endpoint and let SSE clients catch up after a reconnect.
type EventStore interface {
	// Append stores an event, assigning it the next sequence number.
	// The stored event (with Seq set) is returned.
	Append(ctx context.Context, event Event) (Event, error)

	// List returns events for a user with Seq greater than afterSeq, in
	// ascending sequence order. An empty userID matches all users. A limit
	// of 0 means no limit.
	List(ctx context.Context, userID string, afterSeq uint64, limit int) ([]Event, error)

	// Close releases store resources.
	Close() error
}
