package twofactor

import "context"

// UpdateFunc mutates a copy of the stored record. Returning an error aborts
// the update without writing; returning ErrDeleteRecord removes the record.
type UpdateFunc func(rec *SecretRecord) error

// Store persists one SecretRecord per identity.
//
// Update is the only read-modify-write path and must be atomic per identity:
// two concurrent Updates for the same identity never both observe the same
// Version. Updates for different identities must not block each other.
type Store interface {
	// Get returns ErrRecordNotFound when the identity has no record.
	Get(ctx context.Context, identity string) (*SecretRecord, error)
	// Put overwrites any existing record.
	Put(ctx context.Context, identity string, rec *SecretRecord) error
	// Delete is idempotent.
	Delete(ctx context.Context, identity string) error
	// Update returns ErrRecordNotFound without calling fn when no record exists.
	Update(ctx context.Context, identity string, fn UpdateFunc) (*SecretRecord, error)
}
