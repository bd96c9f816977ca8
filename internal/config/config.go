// Package config holds the service configuration consumed by the wallet
// core. All values are sourced from HOTWALLET_* environment variables via
// viper, with working defaults for every public network.
package config

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/defisafe/hotwallet/internal/errs"
	"github.com/defisafe/hotwallet/internal/secret"
)

// ModuleName identifies this service in logs and version output.
const ModuleName = "hotwallet"

// kekLen is the required root key-encryption-key length in bytes.
const kekLen = 32

// Service is the configuration surface of the wallet core.
type Service struct {
	// KEK is the root key-encryption key, base64 or hex encoded 256 bits.
	// Never derived from any user password. Rejected if all-zero unless
	// TestMode is set.
	KEK string

	// KEKID optionally names the root key that encrypted a record, so
	// records survive KEK rotation.
	KEKID string

	// TestMode relaxes the all-zero KEK rejection for deterministic tests.
	TestMode bool

	// PBKDF2Iterations configures password-verifier stretching.
	PBKDF2Iterations int

	// RPCEndpoints overrides the built-in per-network RPC endpoint map.
	RPCEndpoints map[string]string

	// RPCTimeout bounds every outbound RPC, broadcast and indexer call.
	RPCTimeout time.Duration

	// EsploraURL is the base URL of the Bitcoin UTXO indexer / relay API.
	EsploraURL string

	// BitcoinTestnet selects testnet3 address encoding and coin type.
	BitcoinTestnet bool

	// FeeRateFallback is the sat/vB rate used when the indexer offers no
	// fee estimate.
	FeeRateFallback int64

	// DatabaseURL selects the Postgres storage backend when non-empty;
	// otherwise the in-memory backend is used.
	DatabaseURL string
}

// DefaultServiceConfigFromEnv returns the service config resolved from the
// environment.
func DefaultServiceConfigFromEnv() Service {
	v := viper.New()
	v.SetEnvPrefix("HOTWALLET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("kek", "")
	v.SetDefault("kek_id", "")
	v.SetDefault("test_mode", false)
	v.SetDefault("pbkdf2_iterations", 310_000)
	v.SetDefault("rpc_timeout", 30*time.Second)
	v.SetDefault("esplora_url", "https://blockstream.info/api")
	v.SetDefault("bitcoin_testnet", false)
	v.SetDefault("fee_rate_fallback", 10)
	v.SetDefault("database_url", "")

	return Service{
		KEK:              v.GetString("kek"),
		KEKID:            v.GetString("kek_id"),
		TestMode:         v.GetBool("test_mode"),
		PBKDF2Iterations: v.GetInt("pbkdf2_iterations"),
		RPCEndpoints:     v.GetStringMapString("rpc_endpoints"),
		RPCTimeout:       v.GetDuration("rpc_timeout"),
		EsploraURL:       v.GetString("esplora_url"),
		BitcoinTestnet:   v.GetBool("bitcoin_testnet"),
		FeeRateFallback:  v.GetInt64("fee_rate_fallback"),
		DatabaseURL:      v.GetString("database_url"),
	}
}

// DecodeKEK decodes and checks the configured root key. The returned buffer
// is owned by the caller and must be wiped after use.
func (s Service) DecodeKEK() (*secret.Buf, error) {
	if s.KEK == "" {
		return nil, errs.Validationf("root encryption key not configured")
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s.KEK))
	if err != nil {
		raw, err = hex.DecodeString(strings.TrimSpace(s.KEK))
		if err != nil {
			return nil, errs.Validationf("root encryption key must be base64 or hex")
		}
	}

	if len(raw) != kekLen {
		secret.Wipe(raw)
		return nil, errs.Validationf("root encryption key must decode to %d bytes", kekLen)
	}

	if !s.TestMode && allZero(raw) {
		secret.Wipe(raw)
		return nil, errs.Validationf("insecure root encryption key (all zeros)")
	}

	return secret.FromBytes(raw), nil
}

func allZero(p []byte) bool {
	var acc byte
	for _, b := range p {
		acc |= b
	}

	return acc == 0
}
