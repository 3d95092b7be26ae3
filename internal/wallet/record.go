package wallet

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/Klingon-tech/klingsol/internal/chain"
)

// Record is one wallet account as persisted in the keystore and in exports.
// PrivateKey is the base58 encoding of the 64-byte ed25519 secret key.
type Record struct {
	PublicKey      string `json:"publicKey"`
	PrivateKey     string `json:"privateKey"`
	Mnemonic       string `json:"mnemonic"`
	Index          uint32 `json:"index"`
	DerivationPath string `json:"derivationPath,omitempty"`
	Label          string `json:"label,omitempty"`
	CreatedAt      int64  `json:"createdAt,omitempty"`
}

// NewRecord derives the account at index from mnemonic and wraps it in a Record.
func NewRecord(mnemonic, passphrase string, index uint32) (*Record, error) {
	mnemonic = NormalizeMnemonic(mnemonic)
	if !ValidateMnemonic(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}

	key, err := DeriveKeypair(mnemonic, passphrase, index)
	if err != nil {
		return nil, err
	}
	defer SecureClear(key)

	return &Record{
		PublicKey:      key.PublicKey().String(),
		PrivateKey:     base58.Encode(key),
		Mnemonic:       mnemonic,
		Index:          index,
		DerivationPath: chain.DerivationPath(index),
		CreatedAt:      time.Now().Unix(),
	}, nil
}

// Validate checks that the private key decodes and matches the public key.
func (r *Record) Validate() error {
	if r.PublicKey == "" {
		return errors.New("record has no public key")
	}
	pub, err := solana.PublicKeyFromBase58(r.PublicKey)
	if err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}

	raw, err := base58.Decode(r.PrivateKey)
	if err != nil {
		return fmt.Errorf("invalid private key encoding: %w", err)
	}
	defer SecureClear(raw)

	if len(raw) != ed25519.PrivateKeySize {
		return fmt.Errorf("invalid private key length %d", len(raw))
	}

	derived := ed25519.PrivateKey(raw).Public().(ed25519.PublicKey)
	if !bytes.Equal(derived, pub[:]) {
		return fmt.Errorf("private key does not match public key %s", r.PublicKey)
	}

	if r.Mnemonic != "" && !ValidateMnemonic(r.Mnemonic) {
		return fmt.Errorf("record %s has an invalid mnemonic", r.PublicKey)
	}

	return nil
}

// Keypair returns the decoded private key.
func (r *Record) Keypair() (solana.PrivateKey, error) {
	key, err := solana.PrivateKeyFromBase58(r.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// Address returns the account's public key.
func (r *Record) Address() (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(r.PublicKey)
}

// Public returns a copy of the record with the secrets removed.
func (r Record) Public() Record {
	r.PrivateKey = ""
	r.Mnemonic = ""
	return r
}

// MarshalRecords encodes a record list as a JSON array.
func MarshalRecords(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	return json.Marshal(records)
}

// UnmarshalRecords decodes a JSON array of records and validates each one.
func UnmarshalRecords(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}

	seen := make(map[string]bool, len(records))
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if seen[records[i].PublicKey] {
			return nil, fmt.Errorf("record %d: duplicate public key %s", i, records[i].PublicKey)
		}
		seen[records[i].PublicKey] = true
	}

	return records, nil
}

// exportDocument is the plaintext export format. The "wallets" key matches
// what browser wallets keep in local storage, so exports can be moved across.
type exportDocument struct {
	Wallets []Record `json:"wallets"`
}

// ExportRecords encodes records in the plaintext export format.
func ExportRecords(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	return json.MarshalIndent(exportDocument{Wallets: records}, "", "  ")
}

// ImportRecords accepts either the export document or a bare JSON array.
func ImportRecords(data []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var doc struct {
			Wallets json.RawMessage `json:"wallets"`
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode export: %w", err)
		}
		if doc.Wallets == nil {
			return nil, errors.New("export has no wallets key")
		}
		trimmed = doc.Wallets
	}
	return UnmarshalRecords(trimmed)
}
