package address

import (
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip32"

	"github.com/defisafe/hotwallet/internal/errs"
	"github.com/defisafe/hotwallet/internal/secret"
)

const (
	masterKeyLen = 32

	coinTypeEthereum    = 60
	coinTypeBitcoin     = 0
	coinTypeBitcoinTest = 1

	purposeBIP44 = 44
)

// deriveAccountKey walks the hardened path m/44'/coin'/0' and returns the
// account key bytes. Intermediate extended keys are wiped before returning.
func deriveAccountKey(masterKey *secret.Buf, coin uint32) (*secret.Buf, error) {
	root, err := bip32.NewMasterKey(masterKey.Bytes())
	if err != nil {
		return nil, errs.Cryptof("derive root key: %v", err)
	}
	defer wipeExtendedKey(root)

	path := []uint32{
		bip32.FirstHardenedChild + purposeBIP44,
		bip32.FirstHardenedChild + coin,
		bip32.FirstHardenedChild,
	}

	node := root
	for _, index := range path {
		child, err := node.NewChildKey(index)
		if err != nil {
			return nil, errors.Wrap(errs.ErrCrypto, "derive child key")
		}
		if node != root {
			wipeExtendedKey(node)
		}
		node = child
	}

	account := secret.New(masterKeyLen)
	copy(account.Bytes(), node.Key)
	wipeExtendedKey(node)

	return account, nil
}

func wipeExtendedKey(key *bip32.Key) {
	secret.Wipe(key.Key)
	secret.Wipe(key.ChainCode)
}
