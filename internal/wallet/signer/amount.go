package signer

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defisafe/hotwallet/internal/errs"
)

const etherDecimals = 18

var amountPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// parseEther converts a decimal ether amount to wei. Rejects zero, negative
// shapes, and more than 18 fractional digits, which would silently truncate.
func parseEther(amount string) (*big.Int, error) {
	if !amountPattern.MatchString(amount) {
		return nil, errs.Validationf("invalid amount format: %s", amount)
	}

	whole, frac, _ := strings.Cut(amount, ".")
	if len(frac) > etherDecimals {
		return nil, errs.Validationf("amount has more than %d decimal places", etherDecimals)
	}

	// Pad the fraction out to wei precision and treat the whole thing as
	// one integer.
	frac += strings.Repeat("0", etherDecimals-len(frac))

	wei, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, errs.Validationf("invalid amount: %s", amount)
	}
	if wei.Sign() <= 0 {
		return nil, errs.Validationf("amount must be positive")
	}

	return wei, nil
}

// validateAddress checks hex shape and, for mixed-case input, the EIP-55
// checksum.
func validateAddress(address string) error {
	if !common.IsHexAddress(address) {
		return errs.Validationf("invalid recipient address: %s", address)
	}

	stripped := strings.TrimPrefix(address, "0x")
	if stripped == strings.ToLower(stripped) || stripped == strings.ToUpper(stripped) {
		return nil
	}

	if common.HexToAddress(address).Hex() != address {
		return errs.Validationf("recipient address failed checksum: %s", address)
	}

	return nil
}
