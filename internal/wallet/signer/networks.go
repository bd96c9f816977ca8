package signer

import (
	"math/big"
	"strings"

	"github.com/defisafe/hotwallet/internal/errs"
)

// Built-in RPC endpoints used when the configuration does not override a
// network. Public endpoints are rate-limited and meant as a fallback only.
var defaultRPCEndpoints = map[string]string{
	"eth":     "https://eth.llamarpc.com",
	"sepolia": "https://rpc.sepolia.org",
	"polygon": "https://polygon-rpc.com",
	"bsc":     "https://bsc-dataseed.binance.org",
}

var chainIDs = map[string]int64{
	"eth":     1,
	"sepolia": 11155111,
	"polygon": 137,
	"bsc":     56,
}

// Canonical collapses network tag aliases ("ethereum" -> "eth") so callers
// key per-chain state under a single name.
func Canonical(network string) string {
	tag := strings.ToLower(network)
	if tag == "ethereum" {
		return "eth"
	}

	return tag
}

func (s *service) rpcEndpoint(network string) (string, error) {
	tag := Canonical(network)

	if url, ok := s.cfg.RPCEndpoints[tag]; ok && url != "" {
		return url, nil
	}
	if url, ok := defaultRPCEndpoints[tag]; ok {
		return url, nil
	}

	return "", errs.Validationf("no RPC endpoint configured for network: %s", network)
}

func chainID(network string) (*big.Int, error) {
	id, ok := chainIDs[Canonical(network)]
	if !ok {
		return nil, errs.Validationf("unknown chain ID for network: %s", network)
	}

	return big.NewInt(id), nil
}
