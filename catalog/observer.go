package catalog

import "context"

// FetchDone finalizes one observed fetch with its outcome.
type FetchDone func(err error)

// Observer receives catalog fetch lifecycle notifications. Implementations
// must be safe for concurrent use.
type Observer interface {
	// FetchStarted is called before a provider request for the named
	// operation. The returned context carries any tracing state; the
	// returned FetchDone must be called exactly once.
	FetchStarted(ctx context.Context, operation string) (context.Context, FetchDone)
}

// NopObserver observes nothing.
type NopObserver struct{}

// FetchStarted returns the context unchanged and a no-op finalizer.
func (NopObserver) FetchStarted(ctx context.Context, _ string) (context.Context, FetchDone) {
	return ctx, func(error) {}
}

var _ Observer = NopObserver{}
