package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/marquee-labs/marquee/kvstore"
)

// Sentinel errors for identity store operations.
var (
	// ErrEmailTaken is the conflict outcome for creating an account with an
	// email that is already registered.
	ErrEmailTaken = errors.New("email already registered")
)

// StoreConfig configures an identity Store.
type StoreConfig struct {
	KV     kvstore.Store
	Logger *slog.Logger

	// NewID overrides account ID generation (tests).
	NewID func() string
	// Now overrides the clock (tests).
	Now func() time.Time
}

// Store maintains the durable table of all accounts and performs credential
// and uniqueness checks. Every mutation is a full read-modify-write of the
// whole table; there is no partial-update path at the storage boundary.
type Store struct {
	kv     kvstore.Store
	logger *slog.Logger
	newID  func() string
	now    func() time.Time
}

// NewStore creates an identity store over the given key-value store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.KV == nil {
		return nil, errors.New("identity store: kv store is nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Store{
		kv:     cfg.KV,
		logger: cfg.Logger,
		newID:  cfg.NewID,
		now:    cfg.Now,
	}, nil
}

// FindByEmail returns the account registered under email. No side effects.
func (s *Store) FindByEmail(ctx context.Context, email string) (Account, bool, error) {
	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return Account{}, false, err
	}
	for _, acc := range accounts {
		if acc.Email == email {
			return acc, true, nil
		}
	}
	return Account{}, false, nil
}

// Get returns the account with the given identifier.
func (s *Store) Get(ctx context.Context, accountID string) (Account, bool, error) {
	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return Account{}, false, err
	}
	for _, acc := range accounts {
		if acc.ID == accountID {
			return acc, true, nil
		}
	}
	return Account{}, false, nil
}

// Create registers a new account. It returns ErrEmailTaken when the email is
// already registered, leaving the stored table untouched.
func (s *Store) Create(ctx context.Context, email, password, name string) (Account, error) {
	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return Account{}, err
	}
	for _, acc := range accounts {
		if acc.Email == email {
			return Account{}, ErrEmailTaken
		}
	}

	account := Account{
		ID:        s.newID(),
		Email:     email,
		Password:  password,
		Name:      name,
		Watchlist: []int64{},
		CreatedAt: s.now(),
	}
	accounts = append(accounts, account)
	if err := s.saveAccounts(ctx, accounts); err != nil {
		return Account{}, err
	}
	return account, nil
}

// VerifyCredential returns the stored account if and only if an account with
// that email exists and its stored credential equals the candidate exactly.
// No normalization, no hashing.
func (s *Store) VerifyCredential(ctx context.Context, email, candidate string) (Account, bool, error) {
	account, ok, err := s.FindByEmail(ctx, email)
	if err != nil || !ok {
		return Account{}, false, err
	}
	if account.Password != candidate {
		return Account{}, false, nil
	}
	return account, true, nil
}

// Update carries the mutable account fields for ApplyUpdate. Nil fields are
// left unchanged. The identifier and email cannot be altered through this path.
type Update struct {
	Name           *string
	ProfilePicture *string
	Watchlist      *[]int64
}

// ApplyUpdate merges the given fields into the stored record matching
// accountID. It is a no-op when no such record exists.
func (s *Store) ApplyUpdate(ctx context.Context, accountID string, update Update) error {
	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return err
	}

	for i := range accounts {
		if accounts[i].ID != accountID {
			continue
		}
		if update.Name != nil {
			accounts[i].Name = *update.Name
		}
		if update.ProfilePicture != nil {
			accounts[i].ProfilePicture = *update.ProfilePicture
		}
		if update.Watchlist != nil {
			watchlist := make([]int64, len(*update.Watchlist))
			copy(watchlist, *update.Watchlist)
			accounts[i].Watchlist = watchlist
		}
		return s.saveAccounts(ctx, accounts)
	}
	return nil
}

// Remove deletes the record matching accountID. It is a no-op when absent.
func (s *Store) Remove(ctx context.Context, accountID string) error {
	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return err
	}

	kept := accounts[:0]
	removed := false
	for _, acc := range accounts {
		if acc.ID == accountID {
			removed = true
			continue
		}
		kept = append(kept, acc)
	}
	if !removed {
		return nil
	}
	return s.saveAccounts(ctx, kept)
}

// Count returns the number of registered accounts.
func (s *Store) Count(ctx context.Context) (int, error) {
	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return 0, err
	}
	return len(accounts), nil
}

// loadAccounts reads the whole account table. An absent key is an empty
// table; an unparseable value is treated the same way, logged at warn.
func (s *Store) loadAccounts(ctx context.Context) ([]Account, error) {
	raw, ok, err := s.kv.Get(ctx, AccountsKey)
	if err != nil {
		return nil, fmt.Errorf("identity store load accounts: %w", err)
	}
	if !ok {
		return nil, nil
	}

	accounts, parsed := decodeAccounts(raw)
	if !parsed {
		s.logger.Warn("stored account table is unparseable, treating as empty", "key", AccountsKey)
		return nil, nil
	}
	return accounts, nil
}

// saveAccounts writes the whole account table back.
func (s *Store) saveAccounts(ctx context.Context, accounts []Account) error {
	if accounts == nil {
		accounts = []Account{}
	}
	data, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("identity store encode accounts: %w", err)
	}
	if err := s.kv.Set(ctx, AccountsKey, string(data)); err != nil {
		return fmt.Errorf("identity store save accounts: %w", err)
	}
	return nil
}
