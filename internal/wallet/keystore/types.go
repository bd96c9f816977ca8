package keystore

import (
	"github.com/google/uuid"
)

// AAD schema versions. SchemaV1 binds ciphertext to the wallet name only;
// SchemaV2 binds it to a domain tag plus the wallet UUID, which survives
// renames and is collision-free across deployments. New writes always use
// DefaultSchema; records declaring an older schema stay decryptable.
const (
	SchemaV1 = 1
	SchemaV2 = 2

	DefaultSchema = SchemaV2
)

const (
	masterKeyLen = 32
	saltLen      = 32
)

// Identity is the wallet identity an envelope is bound to.
type Identity struct {
	ID   uuid.UUID
	Name string
}

// Envelope is the encrypted master-key container persisted per wallet.
// Everything in it is safe at rest: ciphertext, public KDF inputs and
// non-secret metadata.
type Envelope struct {
	Ciphertext    []byte `json:"ciphertext"`
	Salt          []byte `json:"salt"`
	Nonce         []byte `json:"nonce"`
	SchemaVersion int    `json:"schemaVersion"`
	KEKID         string `json:"kekId,omitempty"`
}

// aad returns the associated data bound into the ciphertext for the given
// schema version.
func (id Identity) aad(schema int) []byte {
	if schema >= SchemaV2 {
		out := []byte("DEFISAFE-AAD-V2")
		return append(out, id.ID[:]...)
	}

	return []byte(id.Name)
}

// hkdfInfo returns the HKDF context string for the given schema version.
// The AAD is folded in, so the derived key is bound to the same identity
// the authentication tag is.
func (id Identity) hkdfInfo(schema int) []byte {
	if schema >= SchemaV2 {
		return append([]byte("wallet-master-key-v2"), id.aad(SchemaV2)...)
	}

	return append([]byte("wallet-master-key"), id.aad(SchemaV1)...)
}
