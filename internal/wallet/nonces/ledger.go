// Package nonces tracks per-address transaction sequence numbers in two
// tiers. The in-memory tier is an advisory cache that answers without I/O;
// the persisted tier is authoritative and survives restarts. A nonce handed
// out by Reserve is never handed out again for the same address.
package nonces

import (
	"context"
	"math"
	"sync"

	"github.com/defisafe/hotwallet/internal/errs"
	"github.com/defisafe/hotwallet/internal/storage"
)

type addressKey struct {
	network string
	address string
}

// Ledger allocates transaction nonces.
type Ledger struct {
	mu    sync.RWMutex
	local map[addressKey]uint64

	store storage.Storage
}

// NewLedger creates a ledger backed by store for the persisted tier.
func NewLedger(store storage.Storage) *Ledger {
	return &Ledger{
		local: make(map[addressKey]uint64),
		store: store,
	}
}

// ReserveLocal allocates the next nonce from the in-memory tier only. The
// first call for an address seeds the counter from initial, normally the
// node's pending transaction count.
func (l *Ledger) ReserveLocal(network, address string, initial uint64) (uint64, error) {
	key := addressKey{network: network, address: address}

	l.mu.Lock()
	defer l.mu.Unlock()

	next, ok := l.local[key]
	if !ok {
		next = initial
	}
	if next == math.MaxUint64 {
		return 0, errs.ErrNonceOverflow
	}
	l.local[key] = next + 1

	return next, nil
}

// Reserve allocates the next nonce from the persisted tier and refreshes
// the in-memory cache to match. Concurrent callers across processes each
// get a distinct value; the storage backend performs the increment
// atomically.
func (l *Ledger) Reserve(ctx context.Context, network, address string, initial uint64) (uint64, error) {
	nonce, err := l.store.ReserveNonce(ctx, network, address, initial)
	if err != nil {
		return 0, err
	}

	key := addressKey{network: network, address: address}

	l.mu.Lock()
	if cached := l.local[key]; cached <= nonce {
		l.local[key] = nonce + 1
	}
	l.mu.Unlock()

	return nonce, nil
}

// MarkUsed records that a nonce was consumed outside Reserve, for example
// by a transaction submitted through another tool. Both tiers advance to at
// least used+1 and never move backward.
func (l *Ledger) MarkUsed(ctx context.Context, network, address string, used uint64) error {
	if err := l.store.MarkNonceUsed(ctx, network, address, used); err != nil {
		return err
	}

	key := addressKey{network: network, address: address}

	l.mu.Lock()
	if used != math.MaxUint64 && l.local[key] < used+1 {
		l.local[key] = used + 1
	}
	l.mu.Unlock()

	return nil
}

// Reset drops the in-memory counter for an address so the next ReserveLocal
// reseeds from the caller's initial value. The persisted tier is untouched.
func (l *Ledger) Reset(network, address string) {
	l.mu.Lock()
	delete(l.local, addressKey{network: network, address: address})
	l.mu.Unlock()
}

// Purge removes all state for the given addresses from both tiers. Called
// when a wallet is deleted.
func (l *Ledger) Purge(ctx context.Context, addresses []string) error {
	if len(addresses) == 0 {
		return nil
	}

	if err := l.store.PurgeNonces(ctx, addresses); err != nil {
		return err
	}

	purge := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		purge[a] = struct{}{}
	}

	l.mu.Lock()
	for key := range l.local {
		if _, ok := purge[key.address]; ok {
			delete(l.local, key)
		}
	}
	l.mu.Unlock()

	return nil
}
