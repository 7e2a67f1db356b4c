package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marquee-labs/marquee/bus"
	"github.com/marquee-labs/marquee/kvstore"
)

// SessionConfig configures a Session projection.
type SessionConfig struct {
	Store    *Store
	KV       kvstore.Store
	Recorder *bus.Recorder
	Logger   *slog.Logger

	// Now overrides the clock (tests).
	Now func() time.Time
}

// Session is the single source of "am I logged in, and as whom". It holds the
// in-memory projection of the active account and mirrors it to the durable
// session key on every mutation; the account table row is updated in the same
// logical commit.
//
// All operations run synchronously to completion. Two Session instances over
// the same durable store are last-writer-wins: concurrent mutations from
// separate processes can silently lose one side's write. That matches the
// storage model this layer simulates and is not papered over with locking.
type Session struct {
	store    *Store
	kv       kvstore.Store
	recorder *bus.Recorder
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.Mutex
	user *User // nil when anonymous
}

// NewSession creates the session projection and synchronously restores state
// from the durable session mirror. A present, parseable mirror yields an
// authenticated session; anything else yields an anonymous one.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Store == nil {
		return nil, errors.New("session: identity store is nil")
	}
	if cfg.KV == nil {
		return nil, errors.New("session: kv store is nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	s := &Session{
		store:    cfg.Store,
		kv:       cfg.KV,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
	s.restore()
	return s, nil
}

// restore reads the durable session mirror. Corruption falls back to
// anonymous, never to an error.
func (s *Session) restore() {
	raw, ok, err := s.kv.Get(context.Background(), SessionKey)
	if err != nil {
		s.logger.Warn("session mirror read failed, starting anonymous", "error", err)
		return
	}
	if !ok {
		return
	}
	user, parsed := decodeUser(raw)
	if !parsed {
		s.logger.Warn("session mirror is unparseable, starting anonymous", "key", SessionKey)
		return
	}
	s.user = &user
}

// Current returns a snapshot of the active user. The boolean reports whether
// the session is authenticated.
func (s *Session) Current() (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return User{}, false
	}
	return s.user.clone(), true
}

// Login authenticates against the stored account table. On success the
// session becomes Authenticated and the stripped record is mirrored. A wrong
// credential is a business failure, not an error; errors are reserved for
// storage failures.
func (s *Session) Login(ctx context.Context, email, password string) (User, bool, error) {
	account, ok, err := s.store.VerifyCredential(ctx, email, password)
	if err != nil {
		return User{}, false, err
	}
	if !ok {
		return User{}, false, nil
	}

	user := account.User()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeMirror(ctx, user); err != nil {
		return User{}, false, err
	}
	s.user = &user
	s.record(ctx, bus.EventLogin, user.ID, 0)
	return user.clone(), true, nil
}

// Signup creates a new account and immediately authenticates as it.
// A duplicate email yields ErrEmailTaken with no state change.
func (s *Session) Signup(ctx context.Context, email, password, name string) (User, error) {
	account, err := s.store.Create(ctx, email, password, name)
	if err != nil {
		return User{}, err
	}

	user := account.User()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeMirror(ctx, user); err != nil {
		return User{}, err
	}
	s.user = &user
	s.record(ctx, bus.EventSignup, user.ID, 0)
	return user.clone(), nil
}

// Logout transitions to Anonymous and clears the durable session mirror.
// It is idempotent.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Remove(ctx, SessionKey); err != nil {
		return fmt.Errorf("session clear mirror: %w", err)
	}
	if s.user != nil {
		s.record(ctx, bus.EventLogout, s.user.ID, 0)
		s.user = nil
	}
	return nil
}

// AddToWatchlist appends a catalog item to the active user's watchlist.
// Adding an item already present is a successful no-op; the watchlist never
// accumulates duplicates. Returns false without error when anonymous.
func (s *Session) AddToWatchlist(ctx context.Context, movieID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return false, nil
	}

	for _, id := range s.user.Watchlist {
		if id == movieID {
			return true, nil
		}
	}

	updated := s.user.clone()
	updated.Watchlist = append(updated.Watchlist, movieID)
	if err := s.commit(ctx, updated); err != nil {
		return false, err
	}
	s.record(ctx, bus.EventWatchlistAdded, updated.ID, movieID)
	return true, nil
}

// RemoveFromWatchlist filters a catalog item out of the active user's
// watchlist. Removing an absent item is a successful no-op. Returns false
// without error when anonymous.
func (s *Session) RemoveFromWatchlist(ctx context.Context, movieID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return false, nil
	}

	updated := s.user.clone()
	filtered := updated.Watchlist[:0]
	for _, id := range updated.Watchlist {
		if id != movieID {
			filtered = append(filtered, id)
		}
	}
	if len(filtered) == len(updated.Watchlist) {
		return true, nil
	}
	updated.Watchlist = filtered

	if err := s.commit(ctx, updated); err != nil {
		return false, err
	}
	s.record(ctx, bus.EventWatchlistRemoved, updated.ID, movieID)
	return true, nil
}

// ClearWatchlist empties the active user's watchlist in a single commit.
// Returns false without error when anonymous.
func (s *Session) ClearWatchlist(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return false, nil
	}
	if len(s.user.Watchlist) == 0 {
		return true, nil
	}

	updated := s.user.clone()
	updated.Watchlist = []int64{}
	if err := s.commit(ctx, updated); err != nil {
		return false, err
	}
	s.record(ctx, bus.EventWatchlistCleared, updated.ID, 0)
	return true, nil
}

// ProfileUpdate carries the mutable profile fields. Nil fields are unchanged.
type ProfileUpdate struct {
	Name           *string
	ProfilePicture *string
}

// UpdateProfile merges fields into the active user and propagates the merge
// to the account table. Returns false without error when anonymous.
func (s *Session) UpdateProfile(ctx context.Context, update ProfileUpdate) (User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return User{}, false, nil
	}

	updated := s.user.clone()
	if update.Name != nil {
		updated.Name = *update.Name
	}
	if update.ProfilePicture != nil {
		updated.ProfilePicture = *update.ProfilePicture
	}

	if err := s.commit(ctx, updated); err != nil {
		return User{}, false, err
	}
	s.record(ctx, bus.EventProfileUpdated, updated.ID, 0)
	return updated.clone(), true, nil
}

// DeleteAccount re-verifies the candidate credential against the account
// record matching the session's identifier (not its email). On match the
// account is removed, the session becomes Anonymous, and the mirror is
// cleared. On mismatch nothing changes.
func (s *Session) DeleteAccount(ctx context.Context, candidate string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return false, nil
	}

	account, ok, err := s.store.Get(ctx, s.user.ID)
	if err != nil {
		return false, err
	}
	if !ok || account.Password != candidate {
		return false, nil
	}

	if err := s.store.Remove(ctx, account.ID); err != nil {
		return false, err
	}
	if err := s.kv.Remove(ctx, SessionKey); err != nil {
		return false, fmt.Errorf("session clear mirror: %w", err)
	}
	s.record(ctx, bus.EventAccountDeleted, account.ID, 0)
	s.user = nil
	return true, nil
}

// commit is the one logical write for a session mutation: the stripped record
// goes to the durable mirror and the same merge goes to the account table row.
// The two writes are not atomic across processes; within one process they
// always travel together.
func (s *Session) commit(ctx context.Context, user User) error {
	if err := s.writeMirror(ctx, user); err != nil {
		return err
	}

	watchlist := make([]int64, len(user.Watchlist))
	copy(watchlist, user.Watchlist)
	err := s.store.ApplyUpdate(ctx, user.ID, Update{
		Name:           &user.Name,
		ProfilePicture: &user.ProfilePicture,
		Watchlist:      &watchlist,
	})
	if err != nil {
		return err
	}
	s.user = &user
	return nil
}

// writeMirror serializes the credential-stripped user to the session key.
func (s *Session) writeMirror(ctx context.Context, user User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("session encode mirror: %w", err)
	}
	if err := s.kv.Set(ctx, SessionKey, string(data)); err != nil {
		return fmt.Errorf("session write mirror: %w", err)
	}
	return nil
}

// record publishes an activity event. Recording is advisory and never fails
// the surrounding operation.
func (s *Session) record(ctx context.Context, kind bus.EventKind, userID string, movieID int64) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(ctx, bus.Event{
		ID:      uuid.NewString(),
		Kind:    kind,
		UserID:  userID,
		MovieID: movieID,
		Time:    s.now(),
	})
}
