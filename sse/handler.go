// Package sse provides a Server-Sent Events handler for streaming account
// activity events to HTTP clients. It supports replaying stored events and
// subscribing to live events via the event bus.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/marquee-labs/marquee/bus"
)

// HeartbeatInterval is the interval between SSE heartbeat comments.
const HeartbeatInterval = 15 * time.Second

// UserResolver reports the account the request is authenticated as. The
// boolean is false for anonymous requests.
type UserResolver func(r *http.Request) (string, bool)

// sseEvent is the JSON-serializable representation of an activity event
// sent over the SSE stream.
type sseEvent struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	UserID  string    `json:"user_id"`
	MovieID int64     `json:"movie_id,omitempty"`
	Time    time.Time `json:"time"`
	Seq     uint64    `json:"seq"`
}

func toSSEEvent(e bus.Event) sseEvent {
	return sseEvent{
		ID:      e.ID,
		Kind:    string(e.Kind),
		UserID:  e.UserID,
		MovieID: e.MovieID,
		Time:    e.Time,
		Seq:     e.Seq,
	}
}

// SSEHandler serves an SSE stream of account activity events for the
// authenticated user. It first replays stored events from the EventStore,
// then subscribes to live events via the EventBus. Duplicate events (by
// sequence number) are skipped.
//
// The handler accepts an optional "after" query parameter to specify the
// last-seen sequence number.
//
// SSE format:
//
//	id: {seq}
//	event: {kind}
//	data: {json}
//
// A heartbeat comment ": ping\n\n" is sent every 15 seconds. The stream
// closes when an "account.deleted" event is sent or the client disconnects.
type SSEHandler struct {
	store   bus.EventStore
	bus     bus.EventBus
	resolve UserResolver
}

// NewSSEHandler creates a new SSEHandler with the given EventStore, EventBus,
// and user resolver.
func NewSSEHandler(store bus.EventStore, eb bus.EventBus, resolve UserResolver) *SSEHandler {
	return &SSEHandler{
		store:   store,
		bus:     eb,
		resolve: resolve,
	}
}

// ServeHTTP implements http.Handler. It streams activity events for the
// authenticated user.
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolve(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Parse optional ?after= cursor.
	var afterSeq uint64
	if afterStr := r.URL.Query().Get("after"); afterStr != "" {
		parsed, err := strconv.ParseUint(afterStr, 10, 64)
		if err != nil {
			http.Error(w, "invalid after parameter", http.StatusBadRequest)
			return
		}
		afterSeq = parsed
	}

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()

	// Subscribe to live events before replaying stored events, to avoid
	// missing events that arrive between replay and subscription.
	sub := h.bus.Subscribe(userID)
	defer sub.Close()

	// Phase 1: Replay stored events.
	lastSeq := afterSeq

	finished, err := h.replayStored(ctx, w, flusher, userID, afterSeq, &lastSeq)
	if err != nil || finished {
		return
	}

	// Phase 2: Stream live events with heartbeat.
	h.streamLive(ctx, w, flusher, sub, &lastSeq)
}

// replayStored replays events from the store, writing them to the SSE stream.
// It returns true if an account.deleted event was sent (stream should close)
// or if the context was cancelled.
func (h *SSEHandler) replayStored(
	ctx context.Context,
	w http.ResponseWriter,
	flusher http.Flusher,
	userID string,
	afterSeq uint64,
	lastSeq *uint64,
) (finished bool, err error) {
	events, err := h.store.List(ctx, userID, afterSeq, 0)
	if err != nil {
		return false, err
	}

	for _, evt := range events {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		if err := writeSSEEvent(w, evt); err != nil {
			return false, err
		}
		flusher.Flush()

		if evt.Seq > *lastSeq {
			*lastSeq = evt.Seq
		}

		if evt.Kind == bus.EventAccountDeleted {
			return true, nil
		}
	}

	return false, nil
}

// streamLive streams events from the live subscription, deduplicating against
// already-sent sequence numbers.
func (h *SSEHandler) streamLive(
	ctx context.Context,
	w http.ResponseWriter,
	flusher http.Flusher,
	sub bus.Subscription,
	lastSeq *uint64,
) {
	heartbeat := time.NewTicker(HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case evt, ok := <-sub.Events():
			if !ok {
				// Subscription closed.
				return
			}

			// Dedup: skip events already sent during replay.
			if evt.Seq <= *lastSeq {
				continue
			}

			if err := writeSSEEvent(w, evt); err != nil {
				return
			}
			flusher.Flush()

			*lastSeq = evt.Seq

			if evt.Kind == bus.EventAccountDeleted {
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes a single event in SSE format.
func writeSSEEvent(w http.ResponseWriter, evt bus.Event) error {
	data, err := json.Marshal(toSSEEvent(evt))
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.Seq, evt.Kind, data)
	return err
}
