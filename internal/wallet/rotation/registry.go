// Package rotation tracks versioned signing keys per label. A label names
// one logical key (for example one wallet's signing key); each rotation
// retires the current version and advances the pointer to a fresh one.
// Historical versions stay queryable so old signatures remain attributable.
package rotation

import (
	"context"

	"github.com/google/uuid"

	"github.com/defisafe/hotwallet/internal/errs"
	"github.com/defisafe/hotwallet/internal/storage"
	"github.com/defisafe/hotwallet/internal/util"
)

const firstVersion = 1

// Version is one key version under a label.
type Version struct {
	Label      string
	Version    int64
	KeyID      string
	Retired    bool
	UsageCount int64
}

// Registry manages key versions.
type Registry struct {
	store storage.Storage
}

// NewRegistry creates a registry over the given storage backend.
func NewRegistry(store storage.Storage) *Registry {
	return &Registry{store: store}
}

// CreateLabel registers a label at version 1 with a fresh key ID. Fails if
// the label already exists.
func (r *Registry) CreateLabel(ctx context.Context, label string) (*Version, error) {
	if label == "" {
		return nil, errs.Validationf("rotation label must not be empty")
	}

	if _, err := r.store.GetKeyLabel(ctx, label); err == nil {
		return nil, errs.Validationf("rotation label already exists: %s", label)
	}

	keyID := uuid.NewString()

	if err := r.store.InsertKeyVersion(ctx, label, firstVersion, keyID); err != nil {
		return nil, err
	}
	if err := r.store.UpsertKeyLabel(ctx, label, firstVersion, keyID); err != nil {
		return nil, err
	}

	return &Version{Label: label, Version: firstVersion, KeyID: keyID}, nil
}

// Rotate retires the current version and makes version N+1 current with a
// fresh key ID. Returns the retired version and the new current one.
func (r *Registry) Rotate(ctx context.Context, label string) (*Version, *Version, error) {
	pointer, err := r.store.GetKeyLabel(ctx, label)
	if err != nil {
		return nil, nil, err
	}

	retired, err := r.GetVersion(ctx, label, pointer.CurrentVersion)
	if err != nil {
		return nil, nil, err
	}

	next := pointer.CurrentVersion + 1
	keyID := uuid.NewString()

	if err := r.store.InsertKeyVersion(ctx, label, next, keyID); err != nil {
		return nil, nil, err
	}
	if err := r.store.RetireKeyVersion(ctx, label, retired.Version); err != nil {
		return nil, nil, err
	}
	if err := r.store.UpsertKeyLabel(ctx, label, next, keyID); err != nil {
		return nil, nil, err
	}
	retired.Retired = true

	log := util.LogFromContext(ctx)
	log.Info().
		Str("label", label).
		Int64("retired_version", retired.Version).
		Int64("current_version", next).
		Msg("rotated signing key")

	return retired, &Version{Label: label, Version: next, KeyID: keyID}, nil
}

// Current returns the active version for a label.
func (r *Registry) Current(ctx context.Context, label string) (*Version, error) {
	pointer, err := r.store.GetKeyLabel(ctx, label)
	if err != nil {
		return nil, err
	}

	return r.GetVersion(ctx, label, pointer.CurrentVersion)
}

// GetVersion returns one version, retired or not.
func (r *Registry) GetVersion(ctx context.Context, label string, version int64) (*Version, error) {
	row, err := r.store.GetKeyVersion(ctx, label, version)
	if err != nil {
		return nil, err
	}

	return fromRow(row), nil
}

// History returns all versions for a label, oldest first.
func (r *Registry) History(ctx context.Context, label string) ([]*Version, error) {
	rows, err := r.store.ListKeyVersions(ctx, label)
	if err != nil {
		return nil, err
	}

	versions := make([]*Version, 0, len(rows))
	for _, row := range rows {
		versions = append(versions, fromRow(row))
	}

	return versions, nil
}

// RecordUsage bumps the usage counter of the current version. Called once
// per signature produced under the label.
func (r *Registry) RecordUsage(ctx context.Context, label string) error {
	pointer, err := r.store.GetKeyLabel(ctx, label)
	if err != nil {
		return err
	}

	return r.store.IncrementKeyUsage(ctx, label, pointer.CurrentVersion)
}

func fromRow(row *storage.KeyVersionRow) *Version {
	return &Version{
		Label:      row.Label,
		Version:    row.Version,
		KeyID:      row.KeyID,
		Retired:    row.Retired,
		UsageCount: row.UsageCount,
	}
}
