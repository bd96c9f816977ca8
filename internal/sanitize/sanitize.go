// Package sanitize redacts secret material from strings that are about to
// leave the core: error messages, log lines, anything user-visible. Every
// message returned across the service boundary passes through Message first.
package sanitize

import "regexp"

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

var rules = []rule{
	// 32-byte hex private keys.
	{regexp.MustCompile(`0x[0-9a-fA-F]{64}`), "[REDACTED_PRIVATE_KEY]"},
	// BIP-39 mnemonics (12-24 lowercase words).
	{regexp.MustCompile(`\b([a-z]{3,8}\s+){11,23}[a-z]{3,8}\b`), "[REDACTED_MNEMONIC]"},
	// API keys in key=value or key: value form.
	{regexp.MustCompile(`(?i)api[_-]?key['"]?\s*[:=]\s*['"]?[a-zA-Z0-9_-]{20,}`), "api_key=[REDACTED]"},
	// JWTs.
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`), "[REDACTED_JWT]"},
	// Inline passwords.
	{regexp.MustCompile(`(?i)password['"]?\s*[:=]\s*['"]?[^\s'"]{6,}`), "password=[REDACTED]"},
	// Email addresses.
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[REDACTED_EMAIL]"},
	// IPv4 addresses.
	{regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`), "xxx.xxx.xxx.xxx"},
	// File paths (Windows drives, home directories).
	{regexp.MustCompile(`(?i)[a-z]:\\[^\s]+|/home/[^\s]+|/root/[^\s]+`), "[REDACTED_PATH]"},
	// Database connection strings.
	{regexp.MustCompile(`(?i)(?:postgres|postgresql|mysql|mongodb)://[^\s]+`), "[DATABASE_URL_REDACTED]"},
}

// Message redacts all known secret patterns from msg.
func Message(msg string) string {
	for _, r := range rules {
		msg = r.pattern.ReplaceAllString(msg, r.replacement)
	}

	return msg
}
