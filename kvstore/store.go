// Package kvstore provides the durable key-value boundary for Marquee.
// Every persistent record in the application lives under a string key as
// serialized text; mutating callers perform full read-modify-write cycles
// rather than incremental patches.
package kvstore

import "context"

// Store is a flat mapping from string keys to serialized text values.
type Store interface {
	// Get returns the value stored under key. The boolean reports whether
	// the key was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes the value stored under key. Removing an absent key
	// is not an error.
	Remove(ctx context.Context, key string) error
}
