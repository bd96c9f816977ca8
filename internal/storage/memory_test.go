package storage_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defisafe/hotwallet/internal/errs"
	"github.com/defisafe/hotwallet/internal/storage"
)

func TestWalletCRUD(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemory()

	row := &storage.WalletRow{ID: "id-1", Name: "alpha", EncryptedData: []byte("blob")}
	require.NoError(t, m.StoreWallet(ctx, row))

	// Duplicate names are rejected.
	err := m.StoreWallet(ctx, &storage.WalletRow{ID: "id-2", Name: "alpha"})
	assert.True(t, errors.Is(err, errs.ErrValidation))

	loaded, err := m.LoadWallet(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, []byte("blob"), loaded.EncryptedData)

	// Mutating the returned copy must not affect the stored row.
	loaded.EncryptedData[0] = 'x'
	again, err := m.LoadWallet(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, []byte("blob"), again.EncryptedData)

	require.NoError(t, m.UpdateWalletData(ctx, "alpha", []byte("blob2")))
	updated, err := m.LoadWallet(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, []byte("blob2"), updated.EncryptedData)

	require.NoError(t, m.StoreWallet(ctx, &storage.WalletRow{ID: "id-3", Name: "beta"}))
	all, err := m.ListWallets(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].Name)
	assert.Equal(t, "beta", all[1].Name)

	require.NoError(t, m.DeleteWallet(ctx, "alpha"))
	_, err = m.LoadWallet(ctx, "alpha")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	err = m.DeleteWallet(ctx, "alpha")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestReserveNonceSeedsThenIncrements(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemory()

	first, err := m.ReserveNonce(ctx, "eth", "0xabc", 17)
	require.NoError(t, err)
	assert.Equal(t, uint64(17), first)

	// The seed only applies to the first reservation.
	second, err := m.ReserveNonce(ctx, "eth", "0xabc", 99)
	require.NoError(t, err)
	assert.Equal(t, uint64(18), second)

	// Separate networks keep separate counters.
	other, err := m.ReserveNonce(ctx, "polygon", "0xabc", 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), other)
}

func TestKeyVersionLifecycle(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemory()

	require.NoError(t, m.InsertKeyVersion(ctx, "lbl", 1, "key-1"))
	require.NoError(t, m.UpsertKeyLabel(ctx, "lbl", 1, "key-1"))

	err := m.InsertKeyVersion(ctx, "lbl", 1, "key-x")
	assert.True(t, errors.Is(err, errs.ErrValidation))

	require.NoError(t, m.IncrementKeyUsage(ctx, "lbl", 1))
	require.NoError(t, m.IncrementKeyUsage(ctx, "lbl", 1))

	v, err := m.GetKeyVersion(ctx, "lbl", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.UsageCount)
	assert.False(t, v.Retired)

	require.NoError(t, m.RetireKeyVersion(ctx, "lbl", 1))
	v, err = m.GetKeyVersion(ctx, "lbl", 1)
	require.NoError(t, err)
	assert.True(t, v.Retired)

	_, err = m.GetKeyLabel(ctx, "missing")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	err = m.RetireKeyVersion(ctx, "lbl", 9)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}
