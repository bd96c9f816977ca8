// Package multisig gates a transfer behind an approval threshold. The
// coordinator checks the approval set before the transaction touches the
// signing path; signature shape problems never consume a nonce.
package multisig

import (
	"context"

	"github.com/defisafe/hotwallet/internal/errs"
	"github.com/defisafe/hotwallet/internal/secret"
	"github.com/defisafe/hotwallet/internal/wallet/signer"
)

// Request is a transfer awaiting threshold approval.
type Request struct {
	Network    string
	To         string
	Amount     string
	Threshold  int
	Signers    []string
	Signatures [][]byte
}

// Coordinator validates approvals and hands approved transfers to the
// Ethereum signing path.
type Coordinator struct {
	eth signer.Service
}

// NewCoordinator creates a coordinator over the given transaction signer.
func NewCoordinator(eth signer.Service) *Coordinator {
	return &Coordinator{eth: eth}
}

// Validate checks the approval set and the transfer itself. The transfer
// fields are checked even when the signature set is already known bad, so
// callers get the full picture from one call.
func (c *Coordinator) Validate(ctx context.Context, req Request) error {
	if _, err := c.eth.ValidateTransfer(ctx, signer.TransferRequest{
		Network: req.Network,
		To:      req.To,
		Amount:  req.Amount,
	}); err != nil {
		return err
	}

	if len(req.Signers) == 0 {
		return errs.Validationf("multisig requires at least one signer")
	}
	if req.Threshold < 1 || req.Threshold > len(req.Signers) {
		return errs.Validationf("threshold %d out of range for %d signers", req.Threshold, len(req.Signers))
	}
	if len(req.Signatures) < req.Threshold {
		return errs.Validationf("have %d signatures, need %d", len(req.Signatures), req.Threshold)
	}

	for i, sig := range req.Signatures {
		if len(sig) == 0 {
			return errs.Validationf("signature %d is empty", i)
		}
	}

	return nil
}

// Execute validates the approval set and broadcasts the transfer with the
// wallet's signing key. The nonce comes from the caller's ledger
// reservation.
func (c *Coordinator) Execute(ctx context.Context, privateKey *secret.Buf, req Request, nonce uint64) (string, error) {
	if err := c.Validate(ctx, req); err != nil {
		return "", err
	}

	return c.eth.SendTransaction(ctx, privateKey, signer.TransferRequest{
		Network: req.Network,
		To:      req.To,
		Amount:  req.Amount,
		Nonce:   nonce,
	})
}
