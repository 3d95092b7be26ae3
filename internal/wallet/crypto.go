package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"

	"github.com/Klingon-tech/klingsol/pkg/helpers"
)

// KDFParams are the Argon2id cost parameters stored alongside each blob.
type KDFParams struct {
	Time        uint32
	Memory      uint32
	Parallelism uint8
}

// Argon2 parameters (OWASP recommended for password hashing)
var defaultKDF = KDFParams{
	Time:        3,
	Memory:      64 * 1024,
	Parallelism: 4,
}

const (
	argon2KeyLen  = 32 // AES-256
	argon2SaltLen = 32

	blobVersion = 1
)

// EncryptedBlob is an Argon2id + AES-256-GCM sealed payload as stored on disk.
type EncryptedBlob struct {
	Version     int    `json:"version"`
	Ciphertext  []byte `json:"ciphertext"`
	Salt        []byte `json:"salt"`
	Nonce       []byte `json:"nonce"`
	Time        uint32 `json:"time"`
	Memory      uint32 `json:"memory"`
	Parallelism uint8  `json:"parallelism"`
}

// Seal encrypts plaintext with a key derived from password.
func Seal(plaintext []byte, password string) (*EncryptedBlob, error) {
	if err := ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("invalid password: %w", err)
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	params := defaultKDF
	gcm, err := newGCM(password, salt, params)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return &EncryptedBlob{
		Version:     blobVersion,
		Ciphertext:  gcm.Seal(nil, nonce, plaintext, nil),
		Salt:        salt,
		Nonce:       nonce,
		Time:        params.Time,
		Memory:      params.Memory,
		Parallelism: params.Parallelism,
	}, nil
}

// Open decrypts a blob. The caller should SecureClear the result when done.
func Open(blob *EncryptedBlob, password string) ([]byte, error) {
	if blob.Version != blobVersion {
		return nil, fmt.Errorf("unsupported keystore version %d", blob.Version)
	}

	// Use stored parameters or defaults
	params := KDFParams{Time: blob.Time, Memory: blob.Memory, Parallelism: blob.Parallelism}
	if params.Time == 0 {
		params.Time = defaultKDF.Time
	}
	if params.Memory == 0 {
		params.Memory = defaultKDF.Memory
	}
	if params.Parallelism == 0 {
		params.Parallelism = defaultKDF.Parallelism
	}

	gcm, err := newGCM(password, blob.Salt, params)
	if err != nil {
		return nil, err
	}

	if len(blob.Nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("invalid nonce length %d", len(blob.Nonce))
	}

	plaintext, err := gcm.Open(nil, blob.Nonce, blob.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt (wrong password?): %w", err)
	}

	return plaintext, nil
}

func newGCM(password string, salt []byte, params KDFParams) (cipher.AEAD, error) {
	key := argon2.IDKey(
		[]byte(password),
		salt,
		params.Time,
		params.Memory,
		params.Parallelism,
		argon2KeyLen,
	)
	defer SecureClear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return gcm, nil
}

// SaveEncryptedBlob writes a blob to path atomically with 0600 permissions.
func SaveEncryptedBlob(blob *EncryptedBlob, path string) error {
	if err := ValidateFilePath(path); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace file: %w", err)
	}

	return nil
}

// LoadEncryptedBlob loads a blob from a file.
func LoadEncryptedBlob(path string) (*EncryptedBlob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var blob EncryptedBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("failed to unmarshal: %w", err)
	}

	return &blob, nil
}

// SecureClear overwrites a byte slice with zeros.
func SecureClear(data []byte) {
	helpers.Zero(data)
}

// Password validation constants
const (
	MinPasswordLength = 8
	MaxPasswordLength = 256
)

// ValidatePassword validates password strength.
// Requires at least 8 characters and 3 of 4 character types.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("password must be at most %d characters", MaxPasswordLength)
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	complexity := 0
	for _, ok := range []bool{hasUpper, hasLower, hasNumber, hasSpecial} {
		if ok {
			complexity++
		}
	}

	if complexity < 3 {
		return fmt.Errorf("password must contain at least 3 of: uppercase, lowercase, number, special character")
	}

	return nil
}

// ValidateFilePath validates a file path for safety.
func ValidateFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	// Check for path traversal
	clean := filepath.Clean(path)
	if clean != path && !filepath.IsAbs(path) {
		return fmt.Errorf("suspicious path (potential traversal): %s", path)
	}

	if !utf8.ValidString(path) {
		return fmt.Errorf("path contains invalid UTF-8")
	}

	return nil
}
