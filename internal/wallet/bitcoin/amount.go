package bitcoin

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/defisafe/hotwallet/internal/errs"
)

const btcDecimals = 8

var btcAmountPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ParseAmount converts a decimal BTC amount to satoshis. Rejects zero,
// negative shapes, and more than 8 fractional digits.
func ParseAmount(amount string) (int64, error) {
	if !btcAmountPattern.MatchString(amount) {
		return 0, errs.Validationf("invalid amount format: %s", amount)
	}

	whole, frac, _ := strings.Cut(amount, ".")
	if len(frac) > btcDecimals {
		return 0, errs.Validationf("amount has more than %d decimal places", btcDecimals)
	}
	frac += strings.Repeat("0", btcDecimals-len(frac))

	sat, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return 0, errs.Validationf("invalid amount: %s", amount)
	}
	if sat <= 0 {
		return 0, errs.Validationf("amount must be positive")
	}

	return sat, nil
}
