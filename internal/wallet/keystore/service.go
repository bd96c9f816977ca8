// Package keystore implements envelope encryption for wallet master keys.
//
// A 256-bit root key-encryption key (KEK) is loaded from configuration and
// is never derived from any user password. Per wallet, HKDF-SHA256 with a
// random salt stretches the KEK into a one-time data-encryption key, which
// encrypts the master key under an AEAD with associated data derived from
// the wallet identity. Swapping ciphertexts between wallets therefore fails
// authentication.
package keystore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/defisafe/hotwallet/internal/config"
	"github.com/defisafe/hotwallet/internal/errs"
	"github.com/defisafe/hotwallet/internal/secret"
	"github.com/defisafe/hotwallet/internal/util"
)

// Service encrypts and decrypts wallet master keys.
type Service interface {
	// EncryptMasterKey seals masterKey for the given wallet identity under
	// the latest schema. The caller keeps ownership of masterKey.
	EncryptMasterKey(ctx context.Context, masterKey *secret.Buf, id Identity, quantumSafe bool) (*Envelope, error)

	// DecryptMasterKey opens an envelope after validating the password
	// against the strength policy. The returned buffer is owned by the
	// caller and must be wiped after use.
	DecryptMasterKey(ctx context.Context, env *Envelope, id Identity, quantumSafe bool, password string) (*secret.Buf, error)
}

type service struct {
	cfg    config.Service
	policy PasswordPolicy
}

// NewService creates a keystore service. The KEK is decoded lazily per
// operation so configuration errors surface with context.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(cfg config.Service) (Service, error) {
	// Fail fast on an unusable root key.
	kek, err := cfg.DecodeKEK()
	if err != nil {
		return nil, err
	}
	kek.Wipe()

	return &service{cfg: cfg, policy: DefaultPasswordPolicy()}, nil
}

func (s *service) EncryptMasterKey(ctx context.Context, masterKey *secret.Buf, id Identity, quantumSafe bool) (*Envelope, error) {
	log := util.LogFromContext(ctx).With().Str("component", "keystore").Logger()

	if masterKey.Len() != masterKeyLen {
		return nil, errs.Validationf("master key must be %d bytes", masterKeyLen)
	}

	salt, err := secret.Random(saltLen)
	if err != nil {
		return nil, errs.Cryptof("failed to generate salt")
	}
	// Salt is persisted; keep bytes before release below.
	saltOut := append([]byte(nil), salt.Bytes()...)
	salt.Wipe()

	dek, err := s.deriveDEK(saltOut, id, DefaultSchema)
	if err != nil {
		return nil, err
	}
	defer dek.Wipe()

	aead, err := newAEAD(dek.Bytes(), quantumSafe)
	if err != nil {
		return nil, errs.Cryptof("failed to initialize cipher")
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errs.Cryptof("failed to generate nonce")
	}

	ciphertext := aead.Seal(nil, nonce, masterKey.Bytes(), id.aad(DefaultSchema))

	log.Debug().Str("wallet", id.Name).Int("schema", DefaultSchema).Msg("Master key encrypted")

	return &Envelope{
		Ciphertext:    ciphertext,
		Salt:          saltOut,
		Nonce:         nonce,
		SchemaVersion: DefaultSchema,
		KEKID:         s.cfg.KEKID,
	}, nil
}

func (s *service) DecryptMasterKey(ctx context.Context, env *Envelope, id Identity, quantumSafe bool, password string) (*secret.Buf, error) {
	log := util.LogFromContext(ctx).With().Str("component", "keystore").Logger()

	// Cheap rejection before any cryptographic work. The password gates
	// the operation; it does not feed key derivation.
	if err := ValidatePassword(password, s.policy); err != nil {
		return nil, err
	}

	schema := env.SchemaVersion
	if schema == 0 {
		schema = SchemaV1
	}

	plaintext, err := s.open(env, id, quantumSafe, schema)
	if err != nil && schema > SchemaV1 {
		// Single fallback to the prior schema's AAD for records written
		// before the binding format changed.
		plaintext, err = s.open(env, id, quantumSafe, schema-1)
	}
	if err != nil {
		// Generic by design: never hint whether the password was wrong or
		// the record corrupted.
		return nil, errs.Cryptof("failed to decrypt wallet data")
	}

	if len(plaintext) != masterKeyLen {
		secret.Wipe(plaintext)
		return nil, errs.Cryptof("failed to decrypt wallet data")
	}

	log.Debug().Str("wallet", id.Name).Msg("Master key decrypted")

	return secret.FromBytes(plaintext), nil
}

// open attempts decryption under one schema's AAD reconstruction.
func (s *service) open(env *Envelope, id Identity, quantumSafe bool, schema int) ([]byte, error) {
	dek, err := s.deriveDEK(env.Salt, id, schema)
	if err != nil {
		return nil, err
	}
	defer dek.Wipe()

	aead, err := newAEAD(dek.Bytes(), quantumSafe)
	if err != nil {
		return nil, errs.Cryptof("failed to initialize cipher")
	}

	if len(env.Nonce) != aead.NonceSize() {
		return nil, errs.Cryptof("invalid nonce length")
	}

	return aead.Open(nil, env.Nonce, env.Ciphertext, id.aad(schema))
}

// deriveDEK stretches the root KEK into the per-wallet data-encryption key
// for one schema. Both the KEK copy and the result are zero-on-release.
func (s *service) deriveDEK(salt []byte, id Identity, schema int) (*secret.Buf, error) {
	kek, err := s.cfg.DecodeKEK()
	if err != nil {
		return nil, err
	}
	defer kek.Wipe()

	dek := secret.New(masterKeyLen)
	r := hkdf.New(sha256.New, kek.Bytes(), salt, id.hkdfInfo(schema))
	if _, err := io.ReadFull(r, dek.Bytes()); err != nil {
		dek.Wipe()
		return nil, errs.Cryptof("failed to derive encryption key")
	}

	return dek, nil
}

// newAEAD selects the AEAD variant: AES-256-GCM by default, or
// XChaCha20-Poly1305 for quantum-safe records.
func newAEAD(key []byte, quantumSafe bool) (cipher.AEAD, error) {
	if quantumSafe {
		return chacha20poly1305.NewX(key)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}
