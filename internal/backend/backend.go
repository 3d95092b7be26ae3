// Package backend provides the Solana cluster API used by the wallet for
// fetching balances and broadcasting transactions.
// This package is read-only for private keys - all signing happens in the wallet package.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/Klingon-tech/klingsol/internal/chain"
)

// Common errors
var (
	ErrNotConnected    = errors.New("backend not connected")
	ErrNotFound        = errors.New("not found")
	ErrBroadcastFailed = errors.New("broadcast failed")
	ErrTxFailed        = errors.New("transaction failed")
	ErrAirdropDisabled = errors.New("airdrop not available on this cluster")
)

// Commitment levels, weakest first.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// Blockhash is a recent blockhash and the last block height it is valid for.
type Blockhash struct {
	Hash                 solana.Hash `json:"blockhash"`
	LastValidBlockHeight uint64      `json:"lastValidBlockHeight"`
}

// SignatureStatus is the cluster's view of a submitted transaction.
type SignatureStatus struct {
	Slot               uint64  `json:"slot"`
	Confirmations      *uint64 `json:"confirmations,omitempty"`
	ConfirmationStatus string  `json:"confirmationStatus"`
	Err                string  `json:"err,omitempty"`
}

// Confirmed returns true once the transaction reached confirmed or finalized.
func (s *SignatureStatus) Confirmed() bool {
	return s.ConfirmationStatus == CommitmentConfirmed || s.ConfirmationStatus == CommitmentFinalized
}

// Failed returns true if the transaction landed with an error.
func (s *SignatureStatus) Failed() bool {
	return s.Err != ""
}

// TokenAccount is a token account owned by a wallet, from jsonParsed data.
type TokenAccount struct {
	Address  solana.PublicKey `json:"address"`
	Mint     solana.PublicKey `json:"mint"`
	Amount   uint64           `json:"amount"`
	Decimals uint8            `json:"decimals"`
	UIAmount string           `json:"uiAmount"`
}

// SendOptions control transaction submission.
type SendOptions struct {
	SkipPreflight bool
	MaxRetries    *uint
}

// NodeInfo describes the connected RPC node.
type NodeInfo struct {
	Version string `json:"version"`
	Slot    uint64 `json:"slot"`
}

// Client defines the cluster operations the wallet needs.
// All methods are read-only except SendTransaction and RequestAirdrop,
// and none of them handle private keys.
type Client interface {
	// Connect checks that the endpoint answers.
	Connect(ctx context.Context) error

	// Close closes the connection.
	Close() error

	// IsConnected returns true if connected.
	IsConnected() bool

	// Account operations
	GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
	GetAccountData(ctx context.Context, account solana.PublicKey) ([]byte, error)
	GetTokenAccountsByOwner(ctx context.Context, owner, programID solana.PublicKey) ([]TokenAccount, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)

	// Transaction operations
	GetLatestBlockhash(ctx context.Context) (*Blockhash, error)
	SendTransaction(ctx context.Context, raw []byte, opts SendOptions) (solana.Signature, error)
	GetSignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error)
	RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error)

	// Node
	GetNodeInfo(ctx context.Context) (*NodeInfo, error)
}

// Config contains backend configuration.
type Config struct {
	URL        string        `yaml:"url"`
	Commitment string        `yaml:"commitment"`
	Timeout    time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the backend configuration for a cluster.
func DefaultConfig(network chain.Network) (*Config, error) {
	params, ok := chain.Get(network)
	if !ok {
		return nil, fmt.Errorf("unknown network: %s", network)
	}
	return &Config{
		URL:        params.RPCURL,
		Commitment: CommitmentConfirmed,
		Timeout:    30 * time.Second,
	}, nil
}

// WaitForConfirmation polls the signature status until the transaction is
// confirmed, fails, or ctx is done.
func WaitForConfirmation(ctx context.Context, c Client, sig solana.Signature, interval time.Duration) (*SignatureStatus, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.GetSignatureStatus(ctx, sig)
		switch {
		case err == nil && status.Failed():
			return status, fmt.Errorf("%w: %s", ErrTxFailed, status.Err)
		case err == nil && status.Confirmed():
			return status, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", sig, ctx.Err())
		case <-ticker.C:
		}
	}
}
