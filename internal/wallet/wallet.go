// Package wallet provides HD key derivation, the encrypted keystore and the
// wallet service that builds, signs and submits Solana transactions.
package wallet

import (
	"fmt"
	"strings"
	"sync"

	slip10 "github.com/anyproto/go-slip10"
	"github.com/gagliardetto/solana-go"
	"github.com/tyler-smith/go-bip39"

	"github.com/Klingon-tech/klingsol/internal/chain"
)

// DefaultMnemonicWords is the length of newly generated mnemonics.
const DefaultMnemonicWords = 12

// HDWallet derives Solana keypairs from a BIP39 seed along m/44'/501'/{index}'/0'.
type HDWallet struct {
	seed []byte
	mu   sync.Mutex

	// Cached derived keys (index -> key)
	cache map[uint32]solana.PrivateKey
}

// GenerateMnemonic generates a new 12-word BIP39 mnemonic.
func GenerateMnemonic() (string, error) {
	return GenerateMnemonicWords(DefaultMnemonicWords)
}

// GenerateMnemonicWords generates a BIP39 mnemonic with 12, 15, 18, 21 or 24 words.
func GenerateMnemonicWords(words int) (string, error) {
	var bits int
	switch words {
	case 12:
		bits = 128
	case 15:
		bits = 160
	case 18:
		bits = 192
	case 21:
		bits = 224
	case 24:
		bits = 256
	default:
		return "", fmt.Errorf("unsupported mnemonic length: %d words", words)
	}

	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}
	defer SecureClear(entropy)

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate mnemonic: %w", err)
	}

	return mnemonic, nil
}

// NormalizeMnemonic lowercases a mnemonic and collapses whitespace,
// so pasted phrases with line breaks or double spaces validate.
func NormalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")
}

// ValidateMnemonic checks if a mnemonic is valid.
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(NormalizeMnemonic(mnemonic))
}

// NewFromMnemonic creates an HD wallet from a BIP39 mnemonic.
// The passphrase is optional (can be empty string).
func NewFromMnemonic(mnemonic, passphrase string) (*HDWallet, error) {
	seed, err := bip39.NewSeedWithErrorChecking(NormalizeMnemonic(mnemonic), passphrase)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}

	return NewFromSeed(seed)
}

// NewFromSeed creates an HD wallet from a raw BIP39 seed.
func NewFromSeed(seed []byte) (*HDWallet, error) {
	if len(seed) < 16 || len(seed) > 64 {
		return nil, fmt.Errorf("invalid seed length: %d", len(seed))
	}

	s := make([]byte, len(seed))
	copy(s, seed)

	return &HDWallet{
		seed:  s,
		cache: make(map[uint32]solana.PrivateKey),
	}, nil
}

// DeriveKeypair derives the ed25519 keypair for an account index.
func (w *HDWallet) DeriveKeypair(index uint32) (solana.PrivateKey, error) {
	if err := chain.ValidateAccountIndex(index); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.seed == nil {
		return nil, fmt.Errorf("wallet has been cleared")
	}

	if key, ok := w.cache[index]; ok {
		return copyKey(key), nil
	}

	key, err := keypairFromSeed(w.seed, index)
	if err != nil {
		return nil, err
	}

	w.cache[index] = key
	return copyKey(key), nil
}

// ClearCache zeroes and drops all cached derived keys.
func (w *HDWallet) ClearCache() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for idx, key := range w.cache {
		SecureClear(key)
		delete(w.cache, idx)
	}
}

// Close clears the cache and the seed. The wallet is unusable afterwards.
func (w *HDWallet) Close() {
	w.ClearCache()

	w.mu.Lock()
	defer w.mu.Unlock()
	SecureClear(w.seed)
	w.seed = nil
}

// DeriveKeypair derives the keypair for (mnemonic, passphrase, index) in one call.
func DeriveKeypair(mnemonic, passphrase string, index uint32) (solana.PrivateKey, error) {
	w, err := NewFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	return w.DeriveKeypair(index)
}

func keypairFromSeed(seed []byte, index uint32) (solana.PrivateKey, error) {
	path := chain.DerivationPath(index)

	node, err := slip10.DeriveForPath(path, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to derive %s: %w", path, err)
	}

	_, priv := node.Keypair()
	return solana.PrivateKey(priv), nil
}

func copyKey(key solana.PrivateKey) solana.PrivateKey {
	out := make(solana.PrivateKey, len(key))
	copy(out, key)
	return out
}
