// Package identity owns the durable representation of registered accounts and
// the currently active session. Accounts live under a single key-value store
// key as a serialized table; the active session is mirrored under its own key
// and restored at startup.
//
// Credentials are stored and compared as plain text by design: there is no
// backend, no hashing, and no session protocol. The package simulates the
// identity model of a single-user browser storage scope.
package identity

import (
	"encoding/json"
	"time"
)

// Durable storage keys.
const (
	// SessionKey holds the serialized session record, stripped of the
	// credential, or is absent when anonymous.
	SessionKey = "movieapp_user"

	// AccountsKey holds the serialized array of all account records,
	// credentials included, in insertion order.
	AccountsKey = "movieapp_users"
)

// Account is one durable registered identity.
type Account struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Password       string    `json:"password"`
	Name           string    `json:"name"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	Watchlist      []int64   `json:"watchlist"`
	CreatedAt      time.Time `json:"createdAt"`
}

// User is the credential-stripped projection of an Account, exposed to the
// rest of the application as "the current user".
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	Watchlist      []int64   `json:"watchlist"`
	CreatedAt      time.Time `json:"createdAt"`
}

// User returns the account stripped of its credential.
func (a Account) User() User {
	watchlist := make([]int64, len(a.Watchlist))
	copy(watchlist, a.Watchlist)
	return User{
		ID:             a.ID,
		Email:          a.Email,
		Name:           a.Name,
		ProfilePicture: a.ProfilePicture,
		Watchlist:      watchlist,
		CreatedAt:      a.CreatedAt,
	}
}

// clone returns a deep copy of the user.
func (u User) clone() User {
	watchlist := make([]int64, len(u.Watchlist))
	copy(watchlist, u.Watchlist)
	out := u
	out.Watchlist = watchlist
	return out
}

// decodeUser parses a stored session mirror value. Values that parse but lack
// the identifying fields are treated as corrupt.
func decodeUser(raw string) (User, bool) {
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return User{}, false
	}
	if u.ID == "" || u.Email == "" {
		return User{}, false
	}
	if u.Watchlist == nil {
		u.Watchlist = []int64{}
	}
	return u, true
}

// decodeAccounts parses the stored account table. A value that does not parse
// as an array is corrupt; individual rows missing identifying fields are
// dropped rather than surfaced.
func decodeAccounts(raw string) ([]Account, bool) {
	var accounts []Account
	if err := json.Unmarshal([]byte(raw), &accounts); err != nil {
		return nil, false
	}
	valid := accounts[:0]
	for _, acc := range accounts {
		if acc.ID == "" || acc.Email == "" {
			continue
		}
		if acc.Watchlist == nil {
			acc.Watchlist = []int64{}
		}
		valid = append(valid, acc)
	}
	return valid, true
}
