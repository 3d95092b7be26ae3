package wallet

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// LoadKeypairFile reads a keypair in Solana CLI format (JSON array of 64
// bytes) or as a base58 encoded secret key.
func LoadKeypairFile(path string) (solana.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair file: %w", err)
	}
	defer SecureClear(data)

	return ParseKeypair(data)
}

// ParseKeypair decodes keypair bytes in either supported format.
func ParseKeypair(data []byte) (solana.PrivateKey, error) {
	trimmed := strings.TrimSpace(string(data))

	if strings.HasPrefix(trimmed, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(trimmed), &ints); err != nil {
			return nil, fmt.Errorf("invalid keypair JSON: %w", err)
		}
		raw := make([]byte, len(ints))
		defer SecureClear(raw)
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("invalid keypair byte at %d: %d", i, v)
			}
			raw[i] = byte(v)
		}
		return keypairFromBytes(raw)
	}

	decoded, err := base58.Decode(strings.Trim(trimmed, "\""))
	if err != nil || len(decoded) == 0 {
		return nil, fmt.Errorf("invalid keypair format: not a JSON array or base58 encoded")
	}
	defer SecureClear(decoded)
	return keypairFromBytes(decoded)
}

func keypairFromBytes(raw []byte) (solana.PrivateKey, error) {
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid keypair length: got %d, want %d", len(raw), ed25519.PrivateKeySize)
	}

	key := make(solana.PrivateKey, len(raw))
	copy(key, raw)

	// The trailing 32 bytes must be the public half of the leading seed.
	derived := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	if !derived.Equal(ed25519.PrivateKey(key)) {
		return nil, fmt.Errorf("keypair public key does not match secret")
	}

	return key, nil
}

// MarshalKeypair encodes a key in Solana CLI JSON array format.
func MarshalKeypair(key solana.PrivateKey) ([]byte, error) {
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	return json.Marshal(ints)
}
