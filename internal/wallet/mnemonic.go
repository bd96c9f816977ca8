package wallet

import (
	"strings"

	"github.com/tyler-smith/go-bip39"

	"github.com/defisafe/hotwallet/internal/errs"
	"github.com/defisafe/hotwallet/internal/secret"
)

// DefaultMnemonicWords is the word count used when the caller does not ask
// for a shorter phrase.
const DefaultMnemonicWords = 24

// entropyBits maps the BIP-39 word counts to their entropy sizes.
var entropyBits = map[int]int{
	12: 128,
	15: 160,
	18: 192,
	21: 224,
	24: 256,
}

// newMnemonic generates a fresh recovery phrase with the given word count.
func newMnemonic(words int) (string, error) {
	bits, ok := entropyBits[words]
	if !ok {
		return "", errs.Validationf("mnemonic word count must be 12, 15, 18, 21 or 24")
	}

	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", errs.Cryptof("failed to generate entropy")
	}
	defer secret.Wipe(entropy)

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", errs.Cryptof("failed to encode mnemonic")
	}

	return mnemonic, nil
}

// validateMnemonic checks word count and the BIP-39 checksum. The message
// never echoes the phrase.
func validateMnemonic(mnemonic string) error {
	words := len(strings.Fields(mnemonic))
	if _, ok := entropyBits[words]; !ok {
		return errs.Validationf("mnemonic must have 12, 15, 18, 21 or 24 words, got %d", words)
	}

	if !bip39.IsMnemonicValid(mnemonic) {
		return errs.Validationf("mnemonic checksum is invalid")
	}

	return nil
}

// masterKeyFromMnemonic derives the 32-byte wallet master key from the
// phrase with an empty BIP-39 passphrase.
func masterKeyFromMnemonic(mnemonic string) *secret.Buf {
	seed := bip39.NewSeed(mnemonic, "")
	defer secret.Wipe(seed)

	return secret.FromBytes(seed[:32])
}
