// Package errs defines the error taxonomy shared by the wallet core.
// Callers classify failures with errors.Is against the exported kinds and
// must only surface messages that passed through Public.
package errs

import (
	"github.com/pkg/errors"

	"github.com/defisafe/hotwallet/internal/sanitize"
)

var (
	// ErrNotFound marks lookups for absent wallets or records.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks rejected input: bad address, amount, network tag,
	// threshold or mnemonic shape. Always raised before any cryptographic
	// or network operation.
	ErrValidation = errors.New("validation failed")

	// ErrCrypto marks decryption or signature failures. The message never
	// distinguishes a wrong password from corrupted data.
	ErrCrypto = errors.New("cryptographic operation failed")

	// ErrNetwork marks RPC, broadcast and indexer failures. Retryable; no
	// persisted wallet or nonce state has been corrupted when it is raised.
	ErrNetwork = errors.New("network operation failed")

	// ErrInsufficientFunds marks balances short of target plus fee.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNonceOverflow marks counter exhaustion. Fatal for that address.
	ErrNonceOverflow = errors.New("nonce overflow")
)

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrValidation, format, args...)
}

// Cryptof wraps ErrCrypto with a formatted message. Keep messages generic;
// they are shown to callers verbatim after sanitization.
func Cryptof(format string, args ...interface{}) error {
	return errors.Wrapf(ErrCrypto, format, args...)
}

// Networkf wraps ErrNetwork with a formatted message.
func Networkf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrNetwork, format, args...)
}

// InsufficientFundsf wraps ErrInsufficientFunds with a formatted message.
func InsufficientFundsf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInsufficientFunds, format, args...)
}

// Public renders err as a caller-safe string with secrets redacted.
func Public(err error) string {
	if err == nil {
		return ""
	}

	return sanitize.Message(err.Error())
}
