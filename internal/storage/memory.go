package storage

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/defisafe/hotwallet/internal/errs"
)

// Memory is the in-memory storage backend. All methods are safe for
// concurrent use; the single mutex gives ReserveNonce the same atomicity
// the Postgres upsert provides.
type Memory struct {
	mu       sync.Mutex
	wallets  map[string]*WalletRow
	nonces   map[nonceKey]uint64
	labels   map[string]*KeyLabelRow
	versions map[string][]*KeyVersionRow
}

type nonceKey struct {
	network string
	address string
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		wallets:  make(map[string]*WalletRow),
		nonces:   make(map[nonceKey]uint64),
		labels:   make(map[string]*KeyLabelRow),
		versions: make(map[string][]*KeyVersionRow),
	}
}

func (m *Memory) StoreWallet(_ context.Context, row *WalletRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.wallets[row.Name]; ok {
		return errs.Validationf("wallet %q already exists", row.Name)
	}

	cp := *row
	cp.EncryptedData = append([]byte(nil), row.EncryptedData...)
	m.wallets[row.Name] = &cp

	return nil
}

func (m *Memory) LoadWallet(_ context.Context, name string) (*WalletRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.wallets[name]
	if !ok {
		return nil, errs.NotFoundf("wallet %q", name)
	}

	cp := *row
	cp.EncryptedData = append([]byte(nil), row.EncryptedData...)

	return &cp, nil
}

func (m *Memory) ListWallets(_ context.Context) ([]*WalletRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*WalletRow, 0, len(m.wallets))
	for _, row := range m.wallets {
		cp := *row
		cp.EncryptedData = append([]byte(nil), row.EncryptedData...)
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

func (m *Memory) DeleteWallet(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.wallets[name]; !ok {
		return errs.NotFoundf("wallet %q", name)
	}

	delete(m.wallets, name)

	return nil
}

func (m *Memory) UpdateWalletData(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.wallets[name]
	if !ok {
		return errs.NotFoundf("wallet %q", name)
	}

	row.EncryptedData = append([]byte(nil), data...)
	row.UpdatedAt = time.Now().UTC()

	return nil
}

func (m *Memory) ReserveNonce(_ context.Context, network, address string, initial uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := nonceKey{network: network, address: address}
	next, ok := m.nonces[k]
	if !ok {
		// Seed: the stored value is always one past the reserved one.
		m.nonces[k] = initial + 1
		return initial, nil
	}

	if next == math.MaxUint64 {
		return 0, errs.ErrNonceOverflow
	}

	m.nonces[k] = next + 1

	return next, nil
}

func (m *Memory) MarkNonceUsed(_ context.Context, network, address string, used uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if used == math.MaxUint64 {
		return errs.ErrNonceOverflow
	}

	k := nonceKey{network: network, address: address}
	if next, ok := m.nonces[k]; !ok || used+1 > next {
		m.nonces[k] = used + 1
	}

	return nil
}

func (m *Memory) PurgeNonces(_ context.Context, addresses []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range m.nonces {
		for _, addr := range addresses {
			if k.address == addr {
				delete(m.nonces, k)
				break
			}
		}
	}

	return nil
}

func (m *Memory) UpsertKeyLabel(_ context.Context, label string, currentVersion int64, currentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.labels[label] = &KeyLabelRow{
		Label:          label,
		CurrentVersion: currentVersion,
		CurrentID:      currentID,
	}

	return nil
}

func (m *Memory) InsertKeyVersion(_ context.Context, label string, version int64, keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range m.versions[label] {
		if v.Version == version {
			return errs.Validationf("key version %d already exists for label %q", version, label)
		}
	}

	m.versions[label] = append(m.versions[label], &KeyVersionRow{
		Label:     label,
		Version:   version,
		KeyID:     keyID,
		CreatedAt: time.Now().UTC(),
	})

	return nil
}

func (m *Memory) RetireKeyVersion(_ context.Context, label string, version int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range m.versions[label] {
		if v.Version == version {
			v.Retired = true
			return nil
		}
	}

	return errs.NotFoundf("key version %d for label %q", version, label)
}

func (m *Memory) IncrementKeyUsage(_ context.Context, label string, version int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range m.versions[label] {
		if v.Version == version {
			v.UsageCount++
			return nil
		}
	}

	return errs.NotFoundf("key version %d for label %q", version, label)
}

func (m *Memory) GetKeyLabel(_ context.Context, label string) (*KeyLabelRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.labels[label]
	if !ok {
		return nil, errs.NotFoundf("key label %q", label)
	}

	cp := *row

	return &cp, nil
}

func (m *Memory) GetKeyVersion(_ context.Context, label string, version int64) (*KeyVersionRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range m.versions[label] {
		if v.Version == version {
			cp := *v
			return &cp, nil
		}
	}

	return nil, errs.NotFoundf("key version %d for label %q", version, label)
}

func (m *Memory) ListKeyVersions(_ context.Context, label string) ([]*KeyVersionRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*KeyVersionRow, 0, len(m.versions[label]))
	for _, v := range m.versions[label] {
		cp := *v
		out = append(out, &cp)
	}

	return out, nil
}
