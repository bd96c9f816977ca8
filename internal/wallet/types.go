// Package wallet is the custody boundary: every operation that touches a
// decrypted master key starts and ends here. Keys exist in plaintext only
// inside a single call frame and are wiped before it returns.
package wallet

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/defisafe/hotwallet/internal/errs"
	"github.com/defisafe/hotwallet/internal/storage"
	"github.com/defisafe/hotwallet/internal/wallet/keystore"
)

// Record is one wallet: public metadata plus the encrypted master-key
// envelope. The password verifier is a PBKDF2 hash; nothing in a Record is
// secret at rest.
type Record struct {
	ID                uuid.UUID         `json:"id"`
	Name              string            `json:"name"`
	QuantumSafe       bool              `json:"quantumSafe"`
	MultisigThreshold int               `json:"multisigThreshold,omitempty"`
	Networks          []string          `json:"networks,omitempty"`
	Addresses         map[string]string `json:"addresses,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	Envelope          keystore.Envelope `json:"envelope"`
	PasswordSalt      []byte            `json:"passwordSalt"`
	PasswordHash      []byte            `json:"passwordHash"`
}

// Identity returns the identity the envelope is cryptographically bound to.
func (r *Record) Identity() keystore.Identity {
	return keystore.Identity{ID: r.ID, Name: r.Name}
}

// row serializes the record into a storage row.
func (r *Record) row() (*storage.WalletRow, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, errs.Validationf("serialize wallet record: %v", err)
	}

	return &storage.WalletRow{
		ID:            r.ID.String(),
		Name:          r.Name,
		EncryptedData: data,
		QuantumSafe:   r.QuantumSafe,
		CreatedAt:     r.CreatedAt,
	}, nil
}

func recordFromRow(row *storage.WalletRow) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(row.EncryptedData, &rec); err != nil {
		return nil, errs.Validationf("deserialize wallet record: %v", err)
	}

	return &rec, nil
}
