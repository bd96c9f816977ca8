package wallet_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"regexp"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defisafe/hotwallet/internal/config"
	"github.com/defisafe/hotwallet/internal/errs"
	"github.com/defisafe/hotwallet/internal/storage"
	"github.com/defisafe/hotwallet/internal/wallet"
	"github.com/defisafe/hotwallet/internal/wallet/multisig"
)

const testPassword = "Str0ng!Pass"

var ethAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

func newTestService(t *testing.T) wallet.Service {
	t.Helper()

	svc, _ := newTestServiceWithBackend(t, config.Service{})

	return svc
}

func newTestServiceWithBackend(t *testing.T, cfg config.Service) (wallet.Service, storage.Storage) {
	t.Helper()

	kek := make([]byte, 32)
	_, err := rand.Read(kek)
	require.NoError(t, err)

	cfg.KEK = base64.StdEncoding.EncodeToString(kek)
	cfg.TestMode = true
	cfg.PBKDF2Iterations = 1000

	backend := storage.NewMemory()
	svc, err := wallet.NewService(cfg, backend)
	require.NoError(t, err)

	return svc, backend
}

func TestCreateWalletReturnsMnemonicOnce(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	mnemonic, rec, err := svc.CreateWallet(ctx, "w1", testPassword, wallet.CreateOptions{})
	require.NoError(t, err)

	assert.Len(t, strings.Fields(mnemonic), 24)
	assert.Equal(t, "w1", rec.Name)
	assert.NotEqual(t, rec.ID.String(), "00000000-0000-0000-0000-000000000000")
	assert.NotEmpty(t, rec.Envelope.Ciphertext)
	assert.NotEmpty(t, rec.PasswordSalt)

	// The phrase is not stored anywhere in the record.
	records, err := svc.ListWallets(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)

	// Duplicate names are rejected.
	_, _, err = svc.CreateWallet(ctx, "w1", testPassword, wallet.CreateOptions{})
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestCreateWalletShorterMnemonic(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	mnemonic, _, err := svc.CreateWallet(ctx, "w12", testPassword, wallet.CreateOptions{Words: 12})
	require.NoError(t, err)
	assert.Len(t, strings.Fields(mnemonic), 12)

	_, _, err = svc.CreateWallet(ctx, "w13", testPassword, wallet.CreateOptions{Words: 13})
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestCreateWalletRejectsWeakInput(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, _, err := svc.CreateWallet(ctx, "", testPassword, wallet.CreateOptions{})
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, _, err = svc.CreateWallet(ctx, "w1", "weak", wallet.CreateOptions{})
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, _, err = svc.CreateWallet(ctx, "w1", testPassword, wallet.CreateOptions{Networks: []string{"dogecoin"}})
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestRestoreWalletValidatesMnemonic(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	// 13 words is not a BIP-39 length.
	bad := strings.Repeat("abandon ", 12) + "about"
	_, err := svc.RestoreWallet(ctx, "w1", testPassword, bad, wallet.CreateOptions{})
	assert.True(t, errors.Is(err, errs.ErrValidation))

	// Right length, wrong checksum.
	badChecksum := strings.TrimSpace(strings.Repeat("abandon ", 12))
	_, err = svc.RestoreWallet(ctx, "w1", testPassword, badChecksum, wallet.CreateOptions{})
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestRestoreWalletReproducesAddresses(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	mnemonic, _, err := svc.CreateWallet(ctx, "orig", testPassword, wallet.CreateOptions{})
	require.NoError(t, err)

	origAddr, err := svc.GetAddress(ctx, "orig", testPassword, "eth")
	require.NoError(t, err)

	_, err = svc.RestoreWallet(ctx, "copy", testPassword, mnemonic, wallet.CreateOptions{})
	require.NoError(t, err)

	copyAddr, err := svc.GetAddress(ctx, "copy", testPassword, "eth")
	require.NoError(t, err)

	assert.Equal(t, origAddr, copyAddr)
}

func TestGetAddressDeterministicChecksummed(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, _, err := svc.CreateWallet(ctx, "w1", testPassword, wallet.CreateOptions{})
	require.NoError(t, err)

	first, err := svc.GetAddress(ctx, "w1", testPassword, "eth")
	require.NoError(t, err)
	second, err := svc.GetAddress(ctx, "w1", testPassword, "eth")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, ethAddressPattern.MatchString(first), "got %s", first)

	btcAddr, err := svc.GetAddress(ctx, "w1", testPassword, "btc")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(btcAddr, "1"), "got %s", btcAddr)
}

func TestGetAddressRejectsWrongPassword(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, _, err := svc.CreateWallet(ctx, "w1", testPassword, wallet.CreateOptions{})
	require.NoError(t, err)

	// Policy-compliant but wrong. Indistinguishable from corrupt data.
	_, err = svc.GetAddress(ctx, "w1", "Wr0ng!Pass99", "eth")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrCrypto))
	assert.NotContains(t, err.Error(), "password")
}

func TestGetAddressHonorsNetworkRestriction(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, _, err := svc.CreateWallet(ctx, "ethonly", testPassword, wallet.CreateOptions{Networks: []string{"eth"}})
	require.NoError(t, err)

	_, err = svc.GetAddress(ctx, "ethonly", testPassword, "btc")
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = svc.GetAddress(ctx, "ethonly", testPassword, "eth")
	require.NoError(t, err)
}

func TestSendTransactionValidatesBeforeNetwork(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, _, err := svc.CreateWallet(ctx, "w1", testPassword, wallet.CreateOptions{})
	require.NoError(t, err)

	_, err = svc.SendTransaction(ctx, "w1", testPassword, "eth", "not-an-address", "1")
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = svc.SendTransaction(ctx, "w1", testPassword, "eth", "0x8ba1f109551bD432803012645Ac136ddd64DBA72", "-1")
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = svc.SendTransaction(ctx, "w1", testPassword, "btc", "1BoatSLRHtKNngkdXEeobR76b53LETtpyT", "0")
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = svc.SendTransaction(ctx, "missing", testPassword, "eth", "0x8ba1f109551bD432803012645Ac136ddd64DBA72", "1")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestSendTransactionRequiresMultisigApproval(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, _, err := svc.CreateWallet(ctx, "guarded", testPassword, wallet.CreateOptions{MultisigThreshold: 2})
	require.NoError(t, err)

	_, err = svc.SendTransaction(ctx, "guarded", testPassword, "eth", "0x8ba1f109551bD432803012645Ac136ddd64DBA72", "1")
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestSendMultiSigRejectsShortApprovalSet(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, _, err := svc.CreateWallet(ctx, "guarded", testPassword, wallet.CreateOptions{MultisigThreshold: 2})
	require.NoError(t, err)

	req := multisig.Request{
		Network:    "eth",
		To:         "0x8ba1f109551bD432803012645Ac136ddd64DBA72",
		Amount:     "1",
		Threshold:  2,
		Signers:    []string{"a", "b", "c"},
		Signatures: [][]byte{[]byte("only-one")},
	}

	_, err = svc.SendMultiSig(ctx, "guarded", testPassword, req)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	// A request below the wallet's own threshold is rejected outright.
	req.Threshold = 1
	req.Signatures = [][]byte{[]byte("only-one")}
	_, err = svc.SendMultiSig(ctx, "guarded", testPassword, req)
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestRotateSigningKey(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, rec, err := svc.CreateWallet(ctx, "w1", testPassword, wallet.CreateOptions{})
	require.NoError(t, err)
	sealed := append([]byte(nil), rec.Envelope.Ciphertext...)

	retired, current, err := svc.RotateSigningKey(ctx, "w1", testPassword)
	require.NoError(t, err)
	assert.Equal(t, int64(1), retired.Version)
	assert.True(t, retired.Retired)
	assert.Equal(t, int64(2), current.Version)

	history, err := svc.KeyHistory(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Retired)
	assert.False(t, history[1].Retired)

	// Rotation re-seals the envelope, and the wallet still opens.
	records, err := svc.ListWallets(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotEqual(t, sealed, records[0].Envelope.Ciphertext)

	addr, err := svc.GetAddress(ctx, "w1", testPassword, "eth")
	require.NoError(t, err)
	assert.True(t, ethAddressPattern.MatchString(addr))

	_, _, err = svc.RotateSigningKey(ctx, "w1", "Wr0ng!Pass99")
	assert.True(t, errors.Is(err, errs.ErrCrypto))

	_, _, err = svc.RotateSigningKey(ctx, "missing", testPassword)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestDeleteWallet(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, rec, err := svc.CreateWallet(ctx, "w1", testPassword, wallet.CreateOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.Addresses["eth"])
	assert.NotEmpty(t, rec.Addresses["btc"])

	// Deletion never needs the password, so a forgotten one does not
	// strand the record.
	require.NoError(t, svc.DeleteWallet(ctx, "w1"))

	_, err = svc.GetAddress(ctx, "w1", testPassword, "eth")
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	err = svc.DeleteWallet(ctx, "w1")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestMarkNonceUsedAdvancesLedger(t *testing.T) {
	ctx := context.Background()
	svc, backend := newTestServiceWithBackend(t, config.Service{})

	_, rec, err := svc.CreateWallet(ctx, "w1", testPassword, wallet.CreateOptions{})
	require.NoError(t, err)

	require.NoError(t, svc.MarkNonceUsed(ctx, "w1", "ethereum", 41))

	// The alias tag lands on the same counter as "eth", and the next
	// reservation starts past the recorded nonce.
	next, err := backend.ReserveNonce(ctx, "eth", rec.Addresses["eth"], 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), next)

	err = svc.MarkNonceUsed(ctx, "missing", "eth", 1)
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	err = svc.MarkNonceUsed(ctx, "w1", "dogecoin", 1)
	assert.True(t, errors.Is(err, errs.ErrValidation))
}
