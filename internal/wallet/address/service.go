// Package address turns a decrypted master key into network-specific
// addresses. Derivation is deterministic and side-effect-free: the same key
// and network always produce the same address.
package address

import (
	"context"
	"strings"

	"github.com/defisafe/hotwallet/internal/errs"
	"github.com/defisafe/hotwallet/internal/secret"
)

// Network tags accepted by the deriver. The Ethereum-family tags share one
// account key (coin type 60); Bitcoin mainnet and testnet differ in both
// coin type and address version byte.
const (
	NetworkEthereum    = "eth"
	NetworkSepolia     = "sepolia"
	NetworkPolygon     = "polygon"
	NetworkBSC         = "bsc"
	NetworkBitcoin     = "btc"
	NetworkBitcoinTest = "btc-testnet"
)

// IsEVM reports whether the tag names an Ethereum-family network.
func IsEVM(network string) bool {
	switch strings.ToLower(network) {
	case NetworkEthereum, "ethereum", NetworkSepolia, NetworkPolygon, NetworkBSC:
		return true
	}

	return false
}

// IsBitcoin reports whether the tag names a Bitcoin network.
func IsBitcoin(network string) bool {
	switch strings.ToLower(network) {
	case NetworkBitcoin, NetworkBitcoinTest:
		return true
	}

	return false
}

// Service derives network keys and addresses from a wallet master key.
type Service interface {
	// DeriveAddress returns the rendered address for the wallet on the
	// given network.
	DeriveAddress(ctx context.Context, masterKey *secret.Buf, network string) (string, error)

	// DerivePrivateKey returns the network signing key (the hardened
	// account-level child of the master key). Caller owns the buffer.
	DerivePrivateKey(ctx context.Context, masterKey *secret.Buf, network string) (*secret.Buf, error)

	// VerifyKeyAddressMatch checks that privateKey derives the expected
	// Ethereum address, case-insensitively.
	VerifyKeyAddressMatch(ctx context.Context, privateKey *secret.Buf, expected string) (bool, error)
}

type service struct{}

// NewService creates an address deriver.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService() Service {
	return &service{}
}

func (s *service) DeriveAddress(ctx context.Context, masterKey *secret.Buf, network string) (string, error) {
	privateKey, err := s.DerivePrivateKey(ctx, masterKey, network)
	if err != nil {
		return "", err
	}
	defer privateKey.Wipe()

	if IsBitcoin(network) {
		return bitcoinAddress(privateKey, network)
	}

	return ethereumAddress(privateKey)
}

func (s *service) DerivePrivateKey(_ context.Context, masterKey *secret.Buf, network string) (*secret.Buf, error) {
	if masterKey.Len() != masterKeyLen {
		return nil, errs.Validationf("master key must be %d bytes", masterKeyLen)
	}

	coin, err := coinType(network)
	if err != nil {
		return nil, err
	}

	return deriveAccountKey(masterKey, coin)
}

func (s *service) VerifyKeyAddressMatch(_ context.Context, privateKey *secret.Buf, expected string) (bool, error) {
	derived, err := ethereumAddress(privateKey)
	if err != nil {
		return false, err
	}

	return strings.EqualFold(derived, expected), nil
}

// coinType maps a network tag to its BIP-44 coin type.
func coinType(network string) (uint32, error) {
	switch {
	case IsEVM(network):
		return coinTypeEthereum, nil
	case strings.EqualFold(network, NetworkBitcoinTest):
		return coinTypeBitcoinTest, nil
	case strings.EqualFold(network, NetworkBitcoin):
		return coinTypeBitcoin, nil
	default:
		return 0, errs.Validationf("unsupported network: %s", network)
	}
}
