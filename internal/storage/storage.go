// Package storage is the persistence collaborator of the wallet core. Two
// backends implement the same capability interface and are selected at
// construction time: an in-memory backend for tests and single-process use,
// and a Postgres backend for shared deployments.
//
// Everything stored here is ciphertext, salts, nonces or non-secret
// metadata; plaintext key material never reaches this package.
package storage

import (
	"context"
	"time"
)

// WalletRow is a persisted wallet record. EncryptedData carries the
// serialized record envelope: ciphertext plus public metadata.
type WalletRow struct {
	ID            string
	Name          string
	EncryptedData []byte
	QuantumSafe   bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// KeyLabelRow is the current-version pointer for one rotation label.
type KeyLabelRow struct {
	Label          string
	CurrentVersion int64
	CurrentID      string
}

// KeyVersionRow is one historical key version under a label.
type KeyVersionRow struct {
	Label      string
	Version    int64
	KeyID      string
	Retired    bool
	UsageCount int64
	CreatedAt  time.Time
}

// Storage is the capability interface the core depends on.
type Storage interface {
	// StoreWallet inserts a wallet row. Fails if the name already exists.
	StoreWallet(ctx context.Context, row *WalletRow) error

	// LoadWallet returns the row for name, or errs.ErrNotFound.
	LoadWallet(ctx context.Context, name string) (*WalletRow, error)

	// ListWallets returns all wallet rows.
	ListWallets(ctx context.Context) ([]*WalletRow, error)

	// DeleteWallet removes the row for name, or errs.ErrNotFound.
	DeleteWallet(ctx context.Context, name string) error

	// UpdateWalletData replaces the encrypted record bytes for name.
	UpdateWalletData(ctx context.Context, name string, data []byte) error

	// ReserveNonce atomically reserves the next sequence value for
	// (network, address): insert a seeded row or increment the stored
	// value in a single statement, then return the reserved value. Two
	// concurrent reservations always yield distinct, ordered values.
	ReserveNonce(ctx context.Context, network, address string, initial uint64) (uint64, error)

	// MarkNonceUsed raises the stored next value to max(stored, used+1).
	// It never decreases the counter.
	MarkNonceUsed(ctx context.Context, network, address string, used uint64) error

	// PurgeNonces removes all sequence rows for the given addresses.
	PurgeNonces(ctx context.Context, addresses []string) error

	// UpsertKeyLabel sets the current-version pointer for a label.
	UpsertKeyLabel(ctx context.Context, label string, currentVersion int64, currentID string) error

	// InsertKeyVersion records a fresh, non-retired version with zero usage.
	InsertKeyVersion(ctx context.Context, label string, version int64, keyID string) error

	// RetireKeyVersion marks a version retired. Retired versions remain
	// queryable but are never current.
	RetireKeyVersion(ctx context.Context, label string, version int64) error

	// IncrementKeyUsage bumps the usage counter of a version.
	IncrementKeyUsage(ctx context.Context, label string, version int64) error

	// GetKeyLabel returns the pointer row for a label, or errs.ErrNotFound.
	GetKeyLabel(ctx context.Context, label string) (*KeyLabelRow, error)

	// GetKeyVersion returns one version row, or errs.ErrNotFound.
	GetKeyVersion(ctx context.Context, label string, version int64) (*KeyVersionRow, error)

	// ListKeyVersions returns all version rows for a label, oldest first.
	ListKeyVersions(ctx context.Context, label string) ([]*KeyVersionRow, error)
}
