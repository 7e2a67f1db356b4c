package identity

import (
	"context"
	"strings"
	"testing"

	"github.com/marquee-labs/marquee/bus"
	"github.com/marquee-labs/marquee/kvstore"
)

func newTestSession(t *testing.T) (*Session, *Store, *kvstore.MemoryStore) {
	t.Helper()
	kv := kvstore.NewMemoryStore()
	store, err := NewStore(StoreConfig{KV: kv})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	session, err := NewSession(SessionConfig{Store: store, KV: kv})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return session, store, kv
}

func TestSession_StartsAnonymous(t *testing.T) {
	session, _, _ := newTestSession(t)
	if _, ok := session.Current(); ok {
		t.Fatal("expected anonymous session")
	}
}

func TestSession_SignupAuthenticatesAndMirrorsWithoutCredential(t *testing.T) {
	ctx := context.Background()
	session, store, kv := newTestSession(t)

	user, err := session.Signup(ctx, "a@x.com", "pw123456", "Ann")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if user.Name != "Ann" || user.Email != "a@x.com" {
		t.Fatalf("Signup: got %+v", user)
	}

	n, _ := store.Count(ctx)
	if n != 1 {
		t.Fatalf("Count: got %d, want 1", n)
	}
	if _, ok := session.Current(); !ok {
		t.Fatal("expected authenticated session")
	}

	mirror, ok, _ := kv.Get(ctx, SessionKey)
	if !ok {
		t.Fatal("session mirror absent after signup")
	}
	if strings.Contains(mirror, "password") || strings.Contains(mirror, "pw123456") {
		t.Fatalf("session mirror contains credential: %s", mirror)
	}
}

func TestSession_SignupDuplicateEmailChangesNothing(t *testing.T) {
	ctx := context.Background()
	session, store, kv := newTestSession(t)

	if _, err := session.Signup(ctx, "a@x.com", "pw123456", "Ann"); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if err := session.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	tableBefore, _, _ := kv.Get(ctx, AccountsKey)

	if _, err := session.Signup(ctx, "a@x.com", "other", "Impostor"); err != ErrEmailTaken {
		t.Fatalf("Signup duplicate: got %v, want ErrEmailTaken", err)
	}

	tableAfter, _, _ := kv.Get(ctx, AccountsKey)
	if tableBefore != tableAfter {
		t.Fatal("Signup duplicate: account table mutated")
	}
	n, _ := store.Count(ctx)
	if n != 1 {
		t.Fatalf("Count: got %d, want 1", n)
	}
	if _, ok := session.Current(); ok {
		t.Fatal("Signup duplicate: session state changed")
	}
}

func TestSession_LoginSuccessAndFailure(t *testing.T) {
	ctx := context.Background()
	session, store, _ := newTestSession(t)

	created, _ := store.Create(ctx, "a@x.com", "pw123456", "Ann")

	// Wrong credential: failure, no state change.
	_, ok, err := session.Login(ctx, "a@x.com", "wrong")
	if err != nil {
		t.Fatalf("Login wrong: %v", err)
	}
	if ok {
		t.Fatal("Login wrong: expected failure")
	}
	if _, authed := session.Current(); authed {
		t.Fatal("Login wrong: session should stay anonymous")
	}

	// Correct credential: user equals stored account minus credential.
	user, ok, err := session.Login(ctx, "a@x.com", "pw123456")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !ok {
		t.Fatal("Login: expected success")
	}
	if user.ID != created.ID || user.Email != created.Email || user.Name != created.Name {
		t.Fatalf("Login: got %+v, want projection of %+v", user, created)
	}

	// Wrong credential while authenticated leaves the session untouched.
	_, ok, _ = session.Login(ctx, "a@x.com", "wrong")
	if ok {
		t.Fatal("Login wrong while authenticated: expected failure")
	}
	current, authed := session.Current()
	if !authed || current.ID != created.ID {
		t.Fatal("Login wrong while authenticated: session changed")
	}
}

func TestSession_AddToWatchlistIsIdempotent(t *testing.T) {
	ctx := context.Background()
	session, _, _ := newTestSession(t)
	_, _ = session.Signup(ctx, "a@x.com", "pw123456", "Ann")

	for i := 0; i < 2; i++ {
		ok, err := session.AddToWatchlist(ctx, 42)
		if err != nil {
			t.Fatalf("AddToWatchlist #%d: %v", i+1, err)
		}
		if !ok {
			t.Fatalf("AddToWatchlist #%d: expected success", i+1)
		}
	}

	user, _ := session.Current()
	if len(user.Watchlist) != 1 || user.Watchlist[0] != 42 {
		t.Fatalf("watchlist = %v, want [42]", user.Watchlist)
	}
}

func TestSession_AddRemoveRoundTrip(t *testing.T) {
	ctx := context.Background()
	session, store, _ := newTestSession(t)
	signed, _ := session.Signup(ctx, "a@x.com", "pw123456", "Ann")

	if _, err := session.AddToWatchlist(ctx, 42); err != nil {
		t.Fatalf("AddToWatchlist: %v", err)
	}
	if _, err := session.RemoveFromWatchlist(ctx, 42); err != nil {
		t.Fatalf("RemoveFromWatchlist: %v", err)
	}

	user, _ := session.Current()
	if len(user.Watchlist) != 0 {
		t.Fatalf("watchlist = %v, want empty", user.Watchlist)
	}

	// Table row agrees with the projection.
	stored, _, _ := store.Get(ctx, signed.ID)
	if len(stored.Watchlist) != 0 {
		t.Fatalf("stored watchlist = %v, want empty", stored.Watchlist)
	}
}

func TestSession_WatchlistOrderPreserved(t *testing.T) {
	ctx := context.Background()
	session, _, _ := newTestSession(t)
	_, _ = session.Signup(ctx, "a@x.com", "pw123456", "Ann")

	for _, id := range []int64{9, 3, 7} {
		if _, err := session.AddToWatchlist(ctx, id); err != nil {
			t.Fatalf("AddToWatchlist %d: %v", id, err)
		}
	}
	if _, err := session.RemoveFromWatchlist(ctx, 3); err != nil {
		t.Fatalf("RemoveFromWatchlist: %v", err)
	}

	user, _ := session.Current()
	if len(user.Watchlist) != 2 || user.Watchlist[0] != 9 || user.Watchlist[1] != 7 {
		t.Fatalf("watchlist = %v, want [9 7]", user.Watchlist)
	}
}

func TestSession_ClearWatchlistIsOneBulkCommit(t *testing.T) {
	ctx := context.Background()
	session, store, _ := newTestSession(t)
	signed, _ := session.Signup(ctx, "a@x.com", "pw123456", "Ann")

	for _, id := range []int64{1, 2, 3} {
		_, _ = session.AddToWatchlist(ctx, id)
	}
	ok, err := session.ClearWatchlist(ctx)
	if err != nil {
		t.Fatalf("ClearWatchlist: %v", err)
	}
	if !ok {
		t.Fatal("ClearWatchlist: expected success")
	}

	user, _ := session.Current()
	if len(user.Watchlist) != 0 {
		t.Fatalf("watchlist = %v, want empty", user.Watchlist)
	}
	stored, _, _ := store.Get(ctx, signed.ID)
	if len(stored.Watchlist) != 0 {
		t.Fatalf("stored watchlist = %v, want empty", stored.Watchlist)
	}
}

func TestSession_MutationsWhileAnonymousAreNoops(t *testing.T) {
	ctx := context.Background()
	session, store, _ := newTestSession(t)

	if ok, err := session.AddToWatchlist(ctx, 42); ok || err != nil {
		t.Fatalf("AddToWatchlist anonymous: got (%v, %v)", ok, err)
	}
	if ok, err := session.RemoveFromWatchlist(ctx, 42); ok || err != nil {
		t.Fatalf("RemoveFromWatchlist anonymous: got (%v, %v)", ok, err)
	}
	if ok, err := session.ClearWatchlist(ctx); ok || err != nil {
		t.Fatalf("ClearWatchlist anonymous: got (%v, %v)", ok, err)
	}
	name := "Ghost"
	if _, ok, err := session.UpdateProfile(ctx, ProfileUpdate{Name: &name}); ok || err != nil {
		t.Fatalf("UpdateProfile anonymous: got (%v, %v)", ok, err)
	}
	if ok, err := session.DeleteAccount(ctx, "pw"); ok || err != nil {
		t.Fatalf("DeleteAccount anonymous: got (%v, %v)", ok, err)
	}
	n, _ := store.Count(ctx)
	if n != 0 {
		t.Fatalf("Count: got %d, want 0", n)
	}
}

func TestSession_UpdateProfilePropagatesToTable(t *testing.T) {
	ctx := context.Background()
	session, store, _ := newTestSession(t)
	signed, _ := session.Signup(ctx, "a@x.com", "pw123456", "Ann")

	name := "Annie"
	picture := "https://example.com/ann.png"
	user, ok, err := session.UpdateProfile(ctx, ProfileUpdate{Name: &name, ProfilePicture: &picture})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if !ok || user.Name != "Annie" || user.ProfilePicture != picture {
		t.Fatalf("UpdateProfile: got (%+v, %v)", user, ok)
	}

	stored, _, _ := store.Get(ctx, signed.ID)
	if stored.Name != "Annie" || stored.ProfilePicture != picture {
		t.Fatalf("stored account: %+v", stored)
	}
	// Credential survives profile merges untouched.
	if stored.Password != "pw123456" {
		t.Fatalf("stored credential changed: %q", stored.Password)
	}
}

func TestSession_DeleteAccount(t *testing.T) {
	ctx := context.Background()
	session, store, kv := newTestSession(t)
	_, _ = session.Signup(ctx, "a@x.com", "pw123456", "Ann")

	// Wrong credential: account kept, session still authenticated.
	ok, err := session.DeleteAccount(ctx, "wrong")
	if err != nil {
		t.Fatalf("DeleteAccount wrong: %v", err)
	}
	if ok {
		t.Fatal("DeleteAccount wrong: expected failure")
	}
	if n, _ := store.Count(ctx); n != 1 {
		t.Fatalf("Count after failed delete: got %d, want 1", n)
	}
	if _, authed := session.Current(); !authed {
		t.Fatal("session should remain authenticated after failed delete")
	}

	// Right credential: account removed, session anonymous, mirror cleared.
	ok, err = session.DeleteAccount(ctx, "pw123456")
	if err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if !ok {
		t.Fatal("DeleteAccount: expected success")
	}
	if n, _ := store.Count(ctx); n != 0 {
		t.Fatalf("Count after delete: got %d, want 0", n)
	}
	if _, authed := session.Current(); authed {
		t.Fatal("session should be anonymous after delete")
	}
	if _, present, _ := kv.Get(ctx, SessionKey); present {
		t.Fatal("session mirror should be cleared after delete")
	}
}

func TestSession_RestoreFromMirror(t *testing.T) {
	ctx := context.Background()
	session, store, kv := newTestSession(t)
	signed, _ := session.Signup(ctx, "a@x.com", "pw123456", "Ann")
	_, _ = session.AddToWatchlist(ctx, 42)

	// A fresh projection over the same storage restores the session.
	restored, err := NewSession(SessionConfig{Store: store, KV: kv})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	user, ok := restored.Current()
	if !ok {
		t.Fatal("restored session should be authenticated")
	}
	if user.ID != signed.ID || len(user.Watchlist) != 1 || user.Watchlist[0] != 42 {
		t.Fatalf("restored user: %+v", user)
	}
}

func TestSession_CorruptMirrorStartsAnonymous(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	store, _ := NewStore(StoreConfig{KV: kv})
	if err := kv.Set(ctx, SessionKey, `{"watchlist": "nope"`); err != nil {
		t.Fatalf("Set: %v", err)
	}

	session, err := NewSession(SessionConfig{Store: store, KV: kv})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if _, ok := session.Current(); ok {
		t.Fatal("expected anonymous session over corrupt mirror")
	}
}

func TestSession_MirrorMissingIdentityFieldsIsCorrupt(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	store, _ := NewStore(StoreConfig{KV: kv})
	if err := kv.Set(ctx, SessionKey, `{"name":"Ann","watchlist":[]}`); err != nil {
		t.Fatalf("Set: %v", err)
	}

	session, err := NewSession(SessionConfig{Store: store, KV: kv})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if _, ok := session.Current(); ok {
		t.Fatal("mirror without id/email should restore as anonymous")
	}
}

func TestSession_LogoutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	session, _, kv := newTestSession(t)
	_, _ = session.Signup(ctx, "a@x.com", "pw123456", "Ann")

	for i := 0; i < 2; i++ {
		if err := session.Logout(ctx); err != nil {
			t.Fatalf("Logout #%d: %v", i+1, err)
		}
	}
	if _, ok := session.Current(); ok {
		t.Fatal("expected anonymous session")
	}
	if _, present, _ := kv.Get(ctx, SessionKey); present {
		t.Fatal("mirror should be absent after logout")
	}
}

// Full lifecycle: signup, watchlist, logout, login restores the watchlist.
func TestSession_Lifecycle(t *testing.T) {
	ctx := context.Background()
	session, store, kv := newTestSession(t)

	if n, _ := store.Count(ctx); n != 0 {
		t.Fatalf("initial Count: got %d, want 0", n)
	}

	user, err := session.Signup(ctx, "a@x.com", "pw123456", "Ann")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if user.Name != "Ann" || len(user.Watchlist) != 0 {
		t.Fatalf("Signup: got %+v", user)
	}

	if _, err := session.AddToWatchlist(ctx, 42); err != nil {
		t.Fatalf("AddToWatchlist: %v", err)
	}
	user, _ = session.Current()
	if len(user.Watchlist) != 1 || user.Watchlist[0] != 42 {
		t.Fatalf("watchlist = %v, want [42]", user.Watchlist)
	}

	if err := session.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, ok := session.Current(); ok {
		t.Fatal("expected anonymous after logout")
	}
	if _, present, _ := kv.Get(ctx, SessionKey); present {
		t.Fatal("mirror should be absent after logout")
	}

	restored, ok, err := session.Login(ctx, "a@x.com", "pw123456")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !ok {
		t.Fatal("Login: expected success")
	}
	if len(restored.Watchlist) != 1 || restored.Watchlist[0] != 42 {
		t.Fatalf("restored watchlist = %v, want [42]", restored.Watchlist)
	}
}

func TestSession_PublishesActivityEvents(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	store, _ := NewStore(StoreConfig{KV: kv})
	eventStore := bus.NewMemStore(bus.MemStoreConfig{})
	recorder := bus.NewRecorder(eventStore, nil, nil)

	session, err := NewSession(SessionConfig{Store: store, KV: kv, Recorder: recorder})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	signed, _ := session.Signup(ctx, "a@x.com", "pw123456", "Ann")
	_, _ = session.AddToWatchlist(ctx, 42)
	_, _ = session.RemoveFromWatchlist(ctx, 42)
	_ = session.Logout(ctx)

	events, err := eventStore.List(ctx, signed.ID, 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	wantKinds := []bus.EventKind{
		bus.EventSignup,
		bus.EventWatchlistAdded,
		bus.EventWatchlistRemoved,
		bus.EventLogout,
	}
	if len(events) != len(wantKinds) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(wantKinds), events)
	}
	for i, kind := range wantKinds {
		if events[i].Kind != kind {
			t.Fatalf("event %d: got %q, want %q", i, events[i].Kind, kind)
		}
	}
	if events[1].MovieID != 42 {
		t.Fatalf("watchlist event movie id = %d, want 42", events[1].MovieID)
	}
}
