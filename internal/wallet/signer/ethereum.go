package signer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"

	"github.com/defisafe/hotwallet/internal/errs"
	"github.com/defisafe/hotwallet/internal/secret"
	"github.com/defisafe/hotwallet/internal/util"
)

const transferGasLimit = 21000

func (s *service) ValidateTransfer(_ context.Context, req TransferRequest) (*big.Int, error) {
	if err := validateAddress(req.To); err != nil {
		return nil, err
	}

	return parseEther(req.Amount)
}

func (s *service) PendingNonce(ctx context.Context, network, address string) (uint64, error) {
	if err := validateAddress(address); err != nil {
		return 0, err
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	client, err := s.dial(ctx, network)
	if err != nil {
		return 0, err
	}
	defer client.Close()

	nonce, err := client.PendingNonceAt(ctx, common.HexToAddress(address))
	if err != nil {
		return 0, errs.Networkf("fetch pending nonce: %v", err)
	}

	return nonce, nil
}

func (s *service) SendTransaction(ctx context.Context, privateKey *secret.Buf, req TransferRequest) (string, error) {
	wei, err := s.ValidateTransfer(ctx, req)
	if err != nil {
		return "", err
	}

	key, err := crypto.ToECDSA(privateKey.Bytes())
	if err != nil {
		return "", errs.Cryptof("parse signing key: %v", err)
	}

	id, err := chainID(req.Network)
	if err != nil {
		return "", err
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	client, err := s.dial(ctx, req.Network)
	if err != nil {
		return "", err
	}
	defer client.Close()

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return "", errs.Networkf("fetch gas price: %v", err)
	}

	to := common.HexToAddress(req.To)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    req.Nonce,
		To:       &to,
		Value:    wei,
		Gas:      transferGasLimit,
		GasPrice: gasPrice,
	})

	signed, err := types.SignTx(tx, types.NewEIP155Signer(id), key)
	if err != nil {
		return "", errors.Wrap(errs.ErrCrypto, "sign transaction")
	}

	if err := client.SendTransaction(ctx, signed); err != nil {
		return "", errs.Networkf("broadcast transaction: %v", err)
	}

	hash := signed.Hash().Hex()

	log := util.LogFromContext(ctx)
	log.Info().
		Str("network", req.Network).
		Str("tx_hash", hash).
		Uint64("nonce", req.Nonce).
		Msg("broadcast ethereum transaction")

	return hash, nil
}

func (s *service) GetBalance(ctx context.Context, network, address string) (*big.Int, error) {
	if err := validateAddress(address); err != nil {
		return nil, err
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	client, err := s.dial(ctx, network)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	balance, err := client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, errs.Networkf("fetch balance: %v", err)
	}

	return balance, nil
}

// opContext bounds one outbound operation with the configured RPC timeout.
func (s *service) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RPCTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, s.cfg.RPCTimeout)
}

func (s *service) dial(ctx context.Context, network string) (*ethclient.Client, error) {
	url, err := s.rpcEndpoint(network)
	if err != nil {
		return nil, err
	}

	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, errs.Networkf("dial %s RPC: %v", network, err)
	}

	return client, nil
}
