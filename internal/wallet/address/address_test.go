package address_test

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defisafe/hotwallet/internal/errs"
	"github.com/defisafe/hotwallet/internal/secret"
	"github.com/defisafe/hotwallet/internal/wallet/address"
)

var ethAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

func masterKey(t *testing.T, seed byte) *secret.Buf {
	t.Helper()

	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = seed + byte(i)
	}

	return secret.FromBytes(raw)
}

func TestDeriveAddressIsDeterministic(t *testing.T) {
	ctx := context.Background()
	svc := address.NewService()

	for _, network := range []string{"eth", "sepolia", "btc"} {
		first, err := svc.DeriveAddress(ctx, masterKey(t, 7), network)
		require.NoError(t, err)

		second, err := svc.DeriveAddress(ctx, masterKey(t, 7), network)
		require.NoError(t, err)

		assert.Equal(t, first, second, "network: %s", network)
	}
}

func TestDeriveAddressNoCollisions(t *testing.T) {
	ctx := context.Background()
	svc := address.NewService()

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		raw := make([]byte, 32)
		raw[0] = byte(i)
		raw[31] = byte(i >> 4)
		key := secret.FromBytes(raw)

		addr, err := svc.DeriveAddress(ctx, key, "eth")
		require.NoError(t, err)

		_, dup := seen[addr]
		require.False(t, dup, "collision at key %d", i)
		seen[addr] = struct{}{}
	}
}

func TestDeriveAddressEthereumChecksumShape(t *testing.T) {
	ctx := context.Background()
	svc := address.NewService()

	addr, err := svc.DeriveAddress(ctx, masterKey(t, 3), "eth")
	require.NoError(t, err)

	require.True(t, ethAddressPattern.MatchString(addr), "got %s", addr)

	// EIP-55 output is mixed case for practically every key.
	hexPart := addr[2:]
	assert.NotEqual(t, strings.ToLower(hexPart), hexPart)
}

func TestEVMNetworksShareOneAddress(t *testing.T) {
	ctx := context.Background()
	svc := address.NewService()

	ethAddr, err := svc.DeriveAddress(ctx, masterKey(t, 11), "eth")
	require.NoError(t, err)

	for _, network := range []string{"ethereum", "sepolia", "polygon", "bsc"} {
		addr, err := svc.DeriveAddress(ctx, masterKey(t, 11), network)
		require.NoError(t, err)
		assert.Equal(t, ethAddr, addr, "network: %s", network)
	}
}

func TestDeriveAddressBitcoinEncoding(t *testing.T) {
	ctx := context.Background()

	// One deriver serves both chains; the tag alone picks the version byte.
	svc := address.NewService()

	mainnet, err := svc.DeriveAddress(ctx, masterKey(t, 5), "btc")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(mainnet, "1"), "got %s", mainnet)

	testnet, err := svc.DeriveAddress(ctx, masterKey(t, 5), "btc-testnet")
	require.NoError(t, err)
	assert.True(t,
		strings.HasPrefix(testnet, "m") || strings.HasPrefix(testnet, "n"),
		"got %s", testnet)
	assert.NotEqual(t, mainnet, testnet)
}

func TestBitcoinCoinTypeDiffersFromEthereum(t *testing.T) {
	ctx := context.Background()
	svc := address.NewService()

	ethKey, err := svc.DerivePrivateKey(ctx, masterKey(t, 9), "eth")
	require.NoError(t, err)
	defer ethKey.Wipe()

	btcKey, err := svc.DerivePrivateKey(ctx, masterKey(t, 9), "btc")
	require.NoError(t, err)
	defer btcKey.Wipe()

	assert.NotEqual(t, ethKey.Bytes(), btcKey.Bytes())
}

func TestDeriveAddressUnsupportedNetwork(t *testing.T) {
	ctx := context.Background()
	svc := address.NewService()

	_, err := svc.DeriveAddress(ctx, masterKey(t, 1), "dogecoin")
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestDerivePrivateKeyRejectsShortMasterKey(t *testing.T) {
	ctx := context.Background()
	svc := address.NewService()

	_, err := svc.DerivePrivateKey(ctx, secret.FromBytes([]byte("short")), "eth")
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestVerifyKeyAddressMatch(t *testing.T) {
	ctx := context.Background()
	svc := address.NewService()

	key, err := svc.DerivePrivateKey(ctx, masterKey(t, 21), "eth")
	require.NoError(t, err)
	defer key.Wipe()

	addr, err := svc.DeriveAddress(ctx, masterKey(t, 21), "eth")
	require.NoError(t, err)

	ok, err := svc.VerifyKeyAddressMatch(ctx, key, strings.ToLower(addr))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.VerifyKeyAddressMatch(ctx, key, fmt.Sprintf("0x%040d", 1))
	require.NoError(t, err)
	assert.False(t, ok)
}
