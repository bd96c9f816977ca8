package address

import (
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/defisafe/hotwallet/internal/errs"
	"github.com/defisafe/hotwallet/internal/secret"
)

// ethereumAddress renders the EIP-55 checksummed address for a secp256k1
// private key.
func ethereumAddress(privateKey *secret.Buf) (string, error) {
	if privateKey.Len() != masterKeyLen {
		return "", errs.Validationf("private key must be %d bytes", masterKeyLen)
	}

	key, err := crypto.ToECDSA(privateKey.Bytes())
	if err != nil {
		return "", errs.Cryptof("parse private key: %v", err)
	}

	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}
