package address

import (
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/defisafe/hotwallet/internal/errs"
	"github.com/defisafe/hotwallet/internal/secret"
)

// bitcoinParams maps a Bitcoin network tag to its chain parameters. The tag
// alone decides the address version byte, so a testnet derivation never
// renders with the mainnet prefix.
func bitcoinParams(network string) *chaincfg.Params {
	if strings.EqualFold(network, NetworkBitcoinTest) {
		return &chaincfg.TestNet3Params
	}

	return &chaincfg.MainNetParams
}

// bitcoinAddress renders the legacy P2PKH address for a secp256k1 private
// key on the given Bitcoin network.
func bitcoinAddress(privateKey *secret.Buf, network string) (string, error) {
	if privateKey.Len() != masterKeyLen {
		return "", errs.Validationf("private key must be %d bytes", masterKeyLen)
	}

	key, _ := btcec.PrivKeyFromBytes(privateKey.Bytes())
	pubKeyHash := btcutil.Hash160(key.PubKey().SerializeCompressed())

	addr, err := btcutil.NewAddressPubKeyHash(pubKeyHash, bitcoinParams(network))
	if err != nil {
		return "", errs.Cryptof("encode p2pkh address: %v", err)
	}

	return addr.EncodeAddress(), nil
}
