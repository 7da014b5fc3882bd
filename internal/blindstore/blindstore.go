// Package blindstore consumes the external blind secret store: encrypted
// values are held under access-controlled references and the backend only
// ever handles opaque ciphertext and store references.
package blindstore

import (
	"context"
	"errors"
)

var (
	// ErrPermissionDenied means the caller is not an allowed reader of
	// the secret, or the secret is gone. Surfaced distinctly so the HTTP
	// layer can map it to an authorization failure, not a generic 404.
	ErrPermissionDenied = errors.New("blindstore: access denied or secret gone")

	// ErrNotInitialised means no user session was established before a
	// store or retrieve call.
	ErrNotInitialised = errors.New("blindstore: client not initialised")
)

// Store is the blind store capability. Implementations never reveal
// plaintext to this service; values go in and come out as opaque strings.
type Store interface {
	// Initialise establishes (or swaps to) a session for the given
	// wallet. The wallet address doubles as the user seed, so each user
	// gets a deterministic identity inside the store network.
	Initialise(ctx context.Context, wallet string) error

	// StoreSecret blindly stores a named value and returns the opaque
	// reference that gets persisted in the relational pointer store.
	// allowedReaders lists wallets that may retrieve it; empty means
	// owner-only. TTL is in days.
	StoreSecret(ctx context.Context, name, value string, allowedReaders []string, ttlDays int) (string, error)

	// RetrieveSecret fetches a secret by reference and the name it was
	// stored under. Returns ErrPermissionDenied when the caller is not
	// an allowed reader or the reference no longer exists.
	RetrieveSecret(ctx context.Context, reference, name string) (string, error)

	// DeleteSecret removes a secret. Owner-only.
	DeleteSecret(ctx context.Context, reference string) error
}
