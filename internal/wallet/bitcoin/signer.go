package bitcoin

import (
	"bytes"
	"context"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/defisafe/hotwallet/internal/errs"
	"github.com/defisafe/hotwallet/internal/secret"
	"github.com/defisafe/hotwallet/internal/util"
)

const txVersion = 2

// Signer builds, signs, and broadcasts P2PKH transactions for a single
// key wallet.
type Signer interface {
	// SendTransaction spends from the key's P2PKH address to the given
	// address and returns the broadcast txid.
	SendTransaction(ctx context.Context, privateKey *secret.Buf, to string, amountSat int64) (string, error)
}

type txSigner struct {
	client Client
	params *chaincfg.Params
}

// NewSigner creates a Bitcoin signer over the given chain index.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewSigner(client Client, testnet bool) Signer {
	params := &chaincfg.MainNetParams
	if testnet {
		params = &chaincfg.TestNet3Params
	}

	return &txSigner{client: client, params: params}
}

func (s *txSigner) SendTransaction(ctx context.Context, privateKey *secret.Buf, to string, amountSat int64) (string, error) {
	if amountSat < DustLimit {
		return "", errs.Validationf("amount %d sat is below the dust limit", amountSat)
	}

	toAddr, err := btcutil.DecodeAddress(to, s.params)
	if err != nil {
		return "", errs.Validationf("invalid recipient address: %s", to)
	}

	key, _ := btcec.PrivKeyFromBytes(privateKey.Bytes())
	fromAddr, fromScript, err := s.senderScript(key)
	if err != nil {
		return "", err
	}

	utxos, err := s.client.GetAddressUTXOs(ctx, fromAddr.EncodeAddress())
	if err != nil {
		return "", err
	}

	feeRate, err := s.client.RecommendedFeeRate(ctx)
	if err != nil {
		return "", err
	}

	selection, err := SelectUTXOs(utxos, amountSat, feeRate)
	if err != nil {
		return "", err
	}

	raw, err := buildSignedTransaction(key, fromScript, fromAddr, toAddr, amountSat, selection)
	if err != nil {
		return "", err
	}

	txid, err := s.client.BroadcastTransaction(ctx, raw)
	if err != nil {
		return "", err
	}

	log := util.LogFromContext(ctx)
	log.Info().
		Str("txid", txid).
		Int64("amount_sat", amountSat).
		Int64("fee_sat", selection.Fee).
		Int("inputs", len(selection.Inputs)).
		Msg("broadcast bitcoin transaction")

	return txid, nil
}

func (s *txSigner) senderScript(key *btcec.PrivateKey) (btcutil.Address, []byte, error) {
	pubKeyHash := btcutil.Hash160(key.PubKey().SerializeCompressed())

	addr, err := btcutil.NewAddressPubKeyHash(pubKeyHash, s.params)
	if err != nil {
		return nil, nil, errs.Cryptof("derive sender address: %v", err)
	}

	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, nil, errs.Cryptof("build sender script: %v", err)
	}

	return addr, script, nil
}

// buildSignedTransaction assembles the transaction for a selection and signs
// every input with a legacy SIGHASH_ALL signature.
func buildSignedTransaction(key *btcec.PrivateKey, fromScript []byte, changeAddr, toAddr btcutil.Address, amountSat int64, selection *Selection) (string, error) {
	tx := wire.NewMsgTx(txVersion)

	for _, u := range selection.Inputs {
		hash, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			return "", errs.Validationf("invalid utxo txid: %s", u.TxID)
		}
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(hash, u.Vout), nil, nil))
	}

	toScript, err := txscript.PayToAddrScript(toAddr)
	if err != nil {
		return "", errs.Validationf("build recipient script: %v", err)
	}
	tx.AddTxOut(wire.NewTxOut(amountSat, toScript))

	if selection.Change > 0 {
		changeScript, err := txscript.PayToAddrScript(changeAddr)
		if err != nil {
			return "", errs.Cryptof("build change script: %v", err)
		}
		tx.AddTxOut(wire.NewTxOut(selection.Change, changeScript))
	}

	for i := range tx.TxIn {
		sigScript, err := txscript.SignatureScript(tx, i, fromScript, txscript.SigHashAll, key, true)
		if err != nil {
			return "", errs.Cryptof("sign input %d: %v", i, err)
		}
		tx.TxIn[i].SignatureScript = sigScript
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", errs.Cryptof("serialize transaction: %v", err)
	}

	return hex.EncodeToString(buf.Bytes()), nil
}
