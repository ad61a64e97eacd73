// Package store persists enrolled accounts and their encrypted refresh
// credentials.
//
// An account row is created on first successful enrollment, its credential
// updated whenever a token exchange rotates the refresh token, and the row
// deleted when Spotify reports the grant as revoked. The signed-up count is
// recomputed from the table on demand rather than cached in process state.
package store

import (
	"context"
	"time"
)

// Account is one enrolled user: an opaque Spotify user id plus the
// encrypted refresh credential and the nonce needed to decrypt it.
type Account struct {
	UserID       string
	RefreshToken string // hex ciphertext, see internal/secrets
	Nonce        string // hex nonce
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AccountStore defines the credential store operations the saver consumes.
type AccountStore interface {
	// List returns every enrolled account.
	List(ctx context.Context) ([]Account, error)

	// Get returns the account for userID, or shared.ErrAccountNotFound.
	Get(ctx context.Context, userID string) (*Account, error)

	// Insert adds a newly enrolled account.
	Insert(ctx context.Context, account Account) error

	// UpdateToken replaces an account's encrypted credential and nonce.
	UpdateToken(ctx context.Context, userID, refreshToken, nonce string) error

	// Delete removes an account, used when its grant is revoked.
	Delete(ctx context.Context, userID string) error

	// Count returns the current number of enrolled accounts.
	Count(ctx context.Context) (int, error)
}
