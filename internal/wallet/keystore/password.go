package keystore

import (
	"crypto/sha256"
	"unicode"

	"golang.org/x/crypto/pbkdf2"

	"github.com/defisafe/hotwallet/internal/errs"
	"github.com/defisafe/hotwallet/internal/secret"
)

// PasswordPolicy is the strength policy applied before any cryptographic
// operation is attempted.
type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSpecial   bool
}

// DefaultPasswordPolicy matches the production policy: at least 8
// characters with upper, lower and digit classes present.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        8,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigit:     true,
		RequireSpecial:   false,
	}
}

// StrictPasswordPolicy is the hardened variant for high-value deployments.
func StrictPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        12,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigit:     true,
		RequireSpecial:   true,
	}
}

// ValidatePassword checks password against policy. Failures are validation
// errors; they carry no information about any stored secret.
func ValidatePassword(password string, policy PasswordPolicy) error {
	if password == "" {
		return errs.Validationf("password must not be empty")
	}

	if len(password) < policy.MinLength {
		return errs.Validationf("password must be at least %d characters", policy.MinLength)
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	if policy.RequireUppercase && !hasUpper {
		return errs.Validationf("password must contain an uppercase letter")
	}
	if policy.RequireLowercase && !hasLower {
		return errs.Validationf("password must contain a lowercase letter")
	}
	if policy.RequireDigit && !hasDigit {
		return errs.Validationf("password must contain a digit")
	}
	if policy.RequireSpecial && !hasSpecial {
		return errs.Validationf("password must contain a special character")
	}

	return nil
}

// PasswordVerifier derives a stretched verifier from a password and salt
// with PBKDF2-SHA256. The verifier supports equality checks without storing
// the password; it plays no part in master-key encryption.
func PasswordVerifier(password string, salt []byte, iterations int) *secret.Buf {
	return secret.FromBytes(pbkdf2.Key([]byte(password), salt, iterations, 32, sha256.New))
}
