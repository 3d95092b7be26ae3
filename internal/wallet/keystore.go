package wallet

import (
	"fmt"
	"os"
	"path/filepath"
)

// KeystoreFileName is the encrypted record list inside the data directory.
const KeystoreFileName = "wallets.json"

// Keystore persists the record list encrypted under a password.
type Keystore struct {
	path string
}

// NewKeystore returns a keystore stored in dataDir.
func NewKeystore(dataDir string) *Keystore {
	return &Keystore{path: filepath.Join(dataDir, KeystoreFileName)}
}

// Path returns the keystore file path.
func (k *Keystore) Path() string {
	return k.path
}

// Exists returns true if a keystore file is present.
func (k *Keystore) Exists() bool {
	_, err := os.Stat(k.path)
	return err == nil
}

// Save encrypts and writes records, replacing any existing file.
func (k *Keystore) Save(records []Record, password string) error {
	data, err := MarshalRecords(records)
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	defer SecureClear(data)

	blob, err := Seal(data, password)
	if err != nil {
		return fmt.Errorf("failed to encrypt keystore: %w", err)
	}

	if err := SaveEncryptedBlob(blob, k.path); err != nil {
		return fmt.Errorf("failed to save keystore: %w", err)
	}

	return nil
}

// Load decrypts and decodes the record list.
func (k *Keystore) Load(password string) ([]Record, error) {
	blob, err := LoadEncryptedBlob(k.path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keystore: %w", err)
	}

	data, err := Open(blob, password)
	if err != nil {
		return nil, err
	}
	defer SecureClear(data)

	return UnmarshalRecords(data)
}
