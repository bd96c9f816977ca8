package bitcoin

import (
	"sort"

	"github.com/defisafe/hotwallet/internal/errs"
)

const (
	// DustLimit is the minimum output value in satoshis. Change below it
	// is folded into the fee instead of creating an unspendable output.
	DustLimit = 546

	txOverheadBytes = 10
	inputBytes      = 148
	outputBytes     = 34
)

// Selection is the outcome of coin selection: which outputs to spend, the
// fee they imply, and the change left over.
type Selection struct {
	Inputs []UTXO
	Fee    int64
	Change int64
}

// EstimateSize returns the serialized size in bytes of a legacy transaction
// with the given input and output counts.
func EstimateSize(inputs, outputs int) int64 {
	return txOverheadBytes + inputBytes*int64(inputs) + outputBytes*int64(outputs)
}

// SelectUTXOs picks outputs greedily, largest first, until they cover the
// target plus the fee implied by the inputs chosen so far. The fee is
// computed assuming two outputs (payment and change); if the change ends up
// below the dust limit it is added to the fee and no change output is made.
func SelectUTXOs(utxos []UTXO, target, feeRate int64) (*Selection, error) {
	if target <= 0 {
		return nil, errs.Validationf("target amount must be positive")
	}
	if feeRate <= 0 {
		return nil, errs.Validationf("fee rate must be positive")
	}

	sorted := make([]UTXO, len(utxos))
	copy(sorted, utxos)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Value > sorted[j].Value })

	var (
		inputs []UTXO
		total  int64
	)

	for _, u := range sorted {
		inputs = append(inputs, u)
		total += u.Value

		fee := EstimateSize(len(inputs), 2) * feeRate
		if total < target+fee {
			continue
		}

		change := total - target - fee
		if change < DustLimit {
			fee += change
			change = 0
		}

		return &Selection{Inputs: inputs, Fee: fee, Change: change}, nil
	}

	return nil, errs.InsufficientFundsf("have %d sat, need %d sat plus fees", total, target)
}
