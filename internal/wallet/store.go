package wallet

import (
	"context"
	"sync"

	"github.com/defisafe/hotwallet/internal/storage"
)

// Store is a read-through cache over the storage backend. The backend is
// the source of truth; the cache only short-circuits repeated lookups in
// one process and is invalidated on every write-through.
type Store struct {
	mu    sync.RWMutex
	cache map[string]*Record

	backend storage.Storage
}

// NewStore creates a record store over backend.
func NewStore(backend storage.Storage) *Store {
	return &Store{
		cache:   make(map[string]*Record),
		backend: backend,
	}
}

// Save persists a new record. Fails if the name is taken.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	row, err := rec.row()
	if err != nil {
		return err
	}

	if err := s.backend.StoreWallet(ctx, row); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[rec.Name] = rec
	s.mu.Unlock()

	return nil
}

// Get returns the record for name, from cache or backend.
func (s *Store) Get(ctx context.Context, name string) (*Record, error) {
	s.mu.RLock()
	rec, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return rec, nil
	}

	row, err := s.backend.LoadWallet(ctx, name)
	if err != nil {
		return nil, err
	}

	rec, err = recordFromRow(row)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[name] = rec
	s.mu.Unlock()

	return rec, nil
}

// Update writes the record's current serialized form back to the backend.
func (s *Store) Update(ctx context.Context, rec *Record) error {
	row, err := rec.row()
	if err != nil {
		return err
	}

	if err := s.backend.UpdateWalletData(ctx, rec.Name, row.EncryptedData); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[rec.Name] = rec
	s.mu.Unlock()

	return nil
}

// List returns all records from the backend.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.backend.ListWallets(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]*Record, 0, len(rows))
	for _, row := range rows {
		rec, err := recordFromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}

// Delete removes the record from the backend and the cache.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := s.backend.DeleteWallet(ctx, name); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.cache, name)
	s.mu.Unlock()

	return nil
}
