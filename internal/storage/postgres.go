package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/defisafe/hotwallet/internal/errs"
)

// Postgres is the SQL-backed storage backend. Cross-process nonce
// reservations rely on a single upsert statement, so concurrent instances
// sharing one database always hand out distinct sequence values.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a connection pool for the given DSN.
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	return &Postgres{db: db}, nil
}

// NewPostgresFromDB wraps an existing pool, mainly for tests.
func NewPostgresFromDB(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// InitSchema creates all tables the core depends on.
func (p *Postgres) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS wallets (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			encrypted_data BYTEA NOT NULL,
			quantum_safe BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS nonces (
			network TEXT NOT NULL,
			address TEXT NOT NULL,
			next_nonce BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (network, address)
		)`,
		`CREATE TABLE IF NOT EXISTS key_labels (
			label TEXT PRIMARY KEY,
			current_version BIGINT NOT NULL,
			current_id TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS key_versions (
			label TEXT NOT NULL,
			version BIGINT NOT NULL,
			key_id TEXT NOT NULL,
			retired BOOLEAN NOT NULL DEFAULT FALSE,
			usage_count BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (label, version)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to create schema")
		}
	}

	return nil
}

func (p *Postgres) StoreWallet(ctx context.Context, row *WalletRow) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO wallets (id, name, encrypted_data, quantum_safe, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		row.ID, row.Name, row.EncryptedData, row.QuantumSafe, row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert wallet")
	}

	return nil
}

func (p *Postgres) LoadWallet(ctx context.Context, name string) (*WalletRow, error) {
	row := &WalletRow{}
	err := p.db.QueryRowContext(ctx, `
		SELECT id, name, encrypted_data, quantum_safe, created_at, updated_at
		FROM wallets WHERE name = $1`, name,
	).Scan(&row.ID, &row.Name, &row.EncryptedData, &row.QuantumSafe, &row.CreatedAt, &row.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("wallet %q", name)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load wallet")
	}

	return row, nil
}

func (p *Postgres) ListWallets(ctx context.Context) ([]*WalletRow, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, encrypted_data, quantum_safe, created_at, updated_at
		FROM wallets ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list wallets")
	}
	defer rows.Close()

	var out []*WalletRow
	for rows.Next() {
		row := &WalletRow{}
		if err := rows.Scan(&row.ID, &row.Name, &row.EncryptedData, &row.QuantumSafe, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan wallet row")
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

func (p *Postgres) DeleteWallet(ctx context.Context, name string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM wallets WHERE name = $1`, name)
	if err != nil {
		return errors.Wrap(err, "failed to delete wallet")
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("wallet %q", name)
	}

	return nil
}

func (p *Postgres) UpdateWalletData(ctx context.Context, name string, data []byte) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE wallets SET encrypted_data = $1, updated_at = $2 WHERE name = $3`,
		data, time.Now().UTC(), name,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update wallet")
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("wallet %q", name)
	}

	return nil
}

// ReserveNonce is the authoritative cross-process reservation: one upsert
// seeds or increments the stored counter and returns it; the reserved value
// is the returned counter minus one. A single statement, so interleaved
// callers never observe the same value.
func (p *Postgres) ReserveNonce(ctx context.Context, network, address string, initial uint64) (uint64, error) {
	var next int64
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO nonces (network, address, next_nonce, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (network, address)
		DO UPDATE SET next_nonce = nonces.next_nonce + 1, updated_at = EXCLUDED.updated_at
		RETURNING next_nonce`,
		network, address, int64(initial)+1, time.Now().UTC(),
	).Scan(&next)
	if err != nil {
		return 0, errors.Wrap(err, "failed to reserve nonce")
	}

	return uint64(next - 1), nil
}

func (p *Postgres) MarkNonceUsed(ctx context.Context, network, address string, used uint64) error {
	now := time.Now().UTC()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO nonces (network, address, next_nonce, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (network, address)
		DO UPDATE SET next_nonce = GREATEST(nonces.next_nonce, EXCLUDED.next_nonce),
		              updated_at = EXCLUDED.updated_at`,
		network, address, int64(used)+1, now,
	)
	if err != nil {
		return errors.Wrap(err, "failed to mark nonce used")
	}

	return nil
}

func (p *Postgres) PurgeNonces(ctx context.Context, addresses []string) error {
	if len(addresses) == 0 {
		return nil
	}

	_, err := p.db.ExecContext(ctx, `DELETE FROM nonces WHERE address = ANY($1)`, pq.Array(addresses))
	if err != nil {
		return errors.Wrap(err, "failed to purge nonces")
	}

	return nil
}

func (p *Postgres) UpsertKeyLabel(ctx context.Context, label string, currentVersion int64, currentID string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO key_labels (label, current_version, current_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (label)
		DO UPDATE SET current_version = EXCLUDED.current_version, current_id = EXCLUDED.current_id`,
		label, currentVersion, currentID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to upsert key label")
	}

	return nil
}

func (p *Postgres) InsertKeyVersion(ctx context.Context, label string, version int64, keyID string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO key_versions (label, version, key_id, retired, usage_count, created_at)
		VALUES ($1, $2, $3, FALSE, 0, $4)`,
		label, version, keyID, time.Now().UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert key version")
	}

	return nil
}

func (p *Postgres) RetireKeyVersion(ctx context.Context, label string, version int64) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE key_versions SET retired = TRUE WHERE label = $1 AND version = $2`,
		label, version,
	)
	if err != nil {
		return errors.Wrap(err, "failed to retire key version")
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("key version %d for label %q", version, label)
	}

	return nil
}

func (p *Postgres) IncrementKeyUsage(ctx context.Context, label string, version int64) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE key_versions SET usage_count = usage_count + 1 WHERE label = $1 AND version = $2`,
		label, version,
	)
	if err != nil {
		return errors.Wrap(err, "failed to increment key usage")
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("key version %d for label %q", version, label)
	}

	return nil
}

func (p *Postgres) GetKeyLabel(ctx context.Context, label string) (*KeyLabelRow, error) {
	row := &KeyLabelRow{}
	err := p.db.QueryRowContext(ctx, `
		SELECT label, current_version, current_id FROM key_labels WHERE label = $1`, label,
	).Scan(&row.Label, &row.CurrentVersion, &row.CurrentID)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("key label %q", label)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get key label")
	}

	return row, nil
}

func (p *Postgres) GetKeyVersion(ctx context.Context, label string, version int64) (*KeyVersionRow, error) {
	row := &KeyVersionRow{}
	err := p.db.QueryRowContext(ctx, `
		SELECT label, version, key_id, retired, usage_count, created_at
		FROM key_versions WHERE label = $1 AND version = $2`,
		label, version,
	).Scan(&row.Label, &row.Version, &row.KeyID, &row.Retired, &row.UsageCount, &row.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("key version %d for label %q", version, label)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get key version")
	}

	return row, nil
}

func (p *Postgres) ListKeyVersions(ctx context.Context, label string) ([]*KeyVersionRow, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT label, version, key_id, retired, usage_count, created_at
		FROM key_versions WHERE label = $1 ORDER BY version`, label)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list key versions")
	}
	defer rows.Close()

	var out []*KeyVersionRow
	for rows.Next() {
		row := &KeyVersionRow{}
		if err := rows.Scan(&row.Label, &row.Version, &row.KeyID, &row.Retired, &row.UsageCount, &row.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan key version row")
		}
		out = append(out, row)
	}

	return out, rows.Err()
}
