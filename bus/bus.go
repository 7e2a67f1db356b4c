// Package bus provides an event distribution system for Marquee account
// activity. Session transitions and watchlist mutations publish events here,
// enabling decoupled observers such as metrics handlers, the activity feed,
// and SSE streams to the browser UI.
//
// Delivery is best-effort: subscriber buffers are bounded and events are
// dropped when a consumer falls behind. The bus is never consulted for
// session or account state.
package bus

import "time"

// EventKind identifies the type of an account activity event.
type EventKind string

// Account activity event kinds.
const (
	EventSignup           EventKind = "session.signup"
	EventLogin            EventKind = "session.login"
	EventLogout           EventKind = "session.logout"
	EventWatchlistAdded   EventKind = "watchlist.added"
	EventWatchlistRemoved EventKind = "watchlist.removed"
	EventWatchlistCleared EventKind = "watchlist.cleared"
	EventProfileUpdated   EventKind = "profile.updated"
	EventAccountDeleted   EventKind = "account.deleted"
)

// Event is one account activity record.
type Event struct {
	// ID is a unique event identifier.
	ID string `json:"id"`
	// Kind identifies the activity type.
	Kind EventKind `json:"kind"`
	// UserID is the account the activity belongs to.
	UserID string `json:"user_id"`
	// MovieID is set for watchlist events, zero otherwise.
	MovieID int64 `json:"movie_id,omitempty"`
	// Time is when the activity happened.
	Time time.Time `json:"time"`
	// Seq is the store-assigned sequence number, zero until appended.
	Seq uint64 `json:"seq"`
}

// EventBus distributes events to subscribers.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(event Event)

	// Subscribe registers a subscriber for a specific user's events.
	// Returns a Subscription that must be closed when done.
	Subscribe(userID string) Subscription

	// SubscribeAll registers a subscriber that receives all events.
	// Returns a Subscription that must be closed when done.
	SubscribeAll() Subscription

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// Subscription receives events.
type Subscription interface {
	// Events returns a channel of events for this subscription.
	Events() <-chan Event

	// Close unsubscribes and releases resources.
	Close() error
}
