// Package signer builds, signs, and broadcasts Ethereum-family transactions.
// Validation of recipient and amount happens before any network call so that
// bad input never consumes a nonce.
package signer

import (
	"context"
	"math/big"

	"github.com/defisafe/hotwallet/internal/config"
	"github.com/defisafe/hotwallet/internal/secret"
)

// TransferRequest describes a simple value transfer. Nonce is assigned by
// the caller from the node's pending transaction count.
type TransferRequest struct {
	Network string
	To      string
	Amount  string
	Nonce   uint64
}

// Service signs and submits Ethereum-family transactions.
type Service interface {
	// ValidateTransfer checks the recipient address and amount without
	// touching the network. Returns the parsed wei amount.
	ValidateTransfer(ctx context.Context, req TransferRequest) (*big.Int, error)

	// PendingNonce returns the node's pending transaction count for the
	// address, used to seed the nonce ledger.
	PendingNonce(ctx context.Context, network, address string) (uint64, error)

	// SendTransaction signs req with privateKey and broadcasts it.
	// Returns the transaction hash.
	SendTransaction(ctx context.Context, privateKey *secret.Buf, req TransferRequest) (string, error)

	// GetBalance returns the wei balance of the address.
	GetBalance(ctx context.Context, network, address string) (*big.Int, error)
}

type service struct {
	cfg config.Service
}

// NewService creates an Ethereum signer backed by the configured RPC
// endpoints.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(cfg config.Service) Service {
	return &service{cfg: cfg}
}
