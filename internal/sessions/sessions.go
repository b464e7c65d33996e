// Package sessions implements the single-slot refresh-token store backing
// token rotation. Exactly one refresh token is valid per identity; rotation
// overwrites the slot, implicitly revoking the previous token.
package sessions

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrIdentityNotFound means no refresh slot exists for the identity.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrRefreshStale means the presented token does not match the stored
	// slot — it was superseded by a later login or rotation.
	ErrRefreshStale = errors.New("refresh token stale")
)

// Repository is the persistence contract for the per-identity refresh slot.
// Replace must be atomic: of two concurrent calls presenting the same old
// value, at most one may succeed.
type Repository interface {
	// Bind seeds or overwrites the slot unconditionally (login).
	Bind(ctx context.Context, sub, token string, ttl time.Duration) error
	// Get returns the stored token, or ErrIdentityNotFound.
	Get(ctx context.Context, sub string) (string, error)
	// Replace swaps old for new iff the slot currently holds old.
	// Returns ErrIdentityNotFound when no slot exists and ErrRefreshStale
	// when the slot holds a different value.
	Replace(ctx context.Context, sub, old, new string, ttl time.Duration) error
	// Delete clears the slot (logout). Clearing an absent slot is a no-op.
	Delete(ctx context.Context, sub string) error
}
