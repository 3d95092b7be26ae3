package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/tidwall/gjson"

	"github.com/Klingon-tech/klingsol/pkg/helpers"
)

// SolanaRPC implements Client over a Solana JSON-RPC endpoint.
type SolanaRPC struct {
	url        string
	client     *rpc.Client
	commitment rpc.CommitmentType
	timeout    time.Duration

	mu        sync.RWMutex
	connected bool
}

// NewSolanaRPC creates a client for cfg.URL.
func NewSolanaRPC(cfg *Config) (*SolanaRPC, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}

	commitment := rpc.CommitmentConfirmed
	switch cfg.Commitment {
	case "", CommitmentConfirmed:
	case CommitmentProcessed:
		commitment = rpc.CommitmentProcessed
	case CommitmentFinalized:
		commitment = rpc.CommitmentFinalized
	default:
		return nil, fmt.Errorf("unknown commitment: %s", cfg.Commitment)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &SolanaRPC{
		url:        cfg.URL,
		client:     rpc.New(cfg.URL),
		commitment: commitment,
		timeout:    timeout,
	}, nil
}

// URL returns the endpoint.
func (s *SolanaRPC) URL() string {
	return s.url
}

func (s *SolanaRPC) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Connect tests the connection with getVersion.
func (s *SolanaRPC) Connect(ctx context.Context) error {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	if _, err := s.client.GetVersion(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

// Close closes the connection.
func (s *SolanaRPC) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return s.client.Close()
}

// IsConnected returns true if connected.
func (s *SolanaRPC) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// GetBalance returns the lamport balance of account.
func (s *SolanaRPC) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	res, err := s.client.GetBalance(ctx, account, s.commitment)
	if err != nil {
		return 0, fmt.Errorf("getBalance %s: %w", account, err)
	}
	return res.Value, nil
}

// GetAccountData returns the raw data of account, or ErrNotFound.
func (s *SolanaRPC) GetAccountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	res, err := s.client.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Commitment: s.commitment,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("account %s: %w", account, ErrNotFound)
		}
		return nil, fmt.Errorf("getAccountInfo %s: %w", account, err)
	}
	if res == nil || res.Value == nil || res.Value.Data == nil {
		return nil, fmt.Errorf("account %s: %w", account, ErrNotFound)
	}
	return res.Value.Data.GetBinary(), nil
}

// GetTokenAccountsByOwner lists owner's token accounts under programID.
func (s *SolanaRPC) GetTokenAccountsByOwner(ctx context.Context, owner, programID solana.PublicKey) ([]TokenAccount, error) {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	res, err := s.client.GetTokenAccountsByOwner(ctx, owner,
		&rpc.GetTokenAccountsConfig{ProgramId: programID.ToPointer()},
		&rpc.GetTokenAccountsOpts{
			Commitment: s.commitment,
			Encoding:   solana.EncodingJSONParsed,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("getTokenAccountsByOwner %s: %w", owner, err)
	}

	accounts := make([]TokenAccount, 0, len(res.Value))
	for _, ka := range res.Value {
		if ka == nil || ka.Account.Data == nil {
			continue
		}
		acct, err := ParseTokenAccountJSON(ka.Pubkey, ka.Account.Data.GetRawJSON())
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acct)
	}
	return accounts, nil
}

// ParseTokenAccountJSON decodes a jsonParsed token account body.
func ParseTokenAccountJSON(address solana.PublicKey, raw []byte) (*TokenAccount, error) {
	info := gjson.GetBytes(raw, "parsed.info")
	if !info.Exists() {
		return nil, fmt.Errorf("token account %s: missing parsed info", address)
	}

	mint, err := solana.PublicKeyFromBase58(info.Get("mint").String())
	if err != nil {
		return nil, fmt.Errorf("token account %s: invalid mint: %w", address, err)
	}

	amount := info.Get("tokenAmount.amount").String()
	decimals := uint8(info.Get("tokenAmount.decimals").Uint())
	base, err := helpers.ParseAmount(amount, 0)
	if err != nil {
		return nil, fmt.Errorf("token account %s: invalid amount %q: %w", address, amount, err)
	}

	return &TokenAccount{
		Address:  address,
		Mint:     mint,
		Amount:   base,
		Decimals: decimals,
		UIAmount: helpers.FormatAmount(base, decimals),
	}, nil
}

// GetMinimumBalanceForRentExemption returns the rent-exempt minimum for size bytes.
func (s *SolanaRPC) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	lamports, err := s.client.GetMinimumBalanceForRentExemption(ctx, size, s.commitment)
	if err != nil {
		return 0, fmt.Errorf("getMinimumBalanceForRentExemption(%d): %w", size, err)
	}
	return lamports, nil
}

// GetLatestBlockhash returns a recent blockhash.
func (s *SolanaRPC) GetLatestBlockhash(ctx context.Context) (*Blockhash, error) {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	res, err := s.client.GetLatestBlockhash(ctx, s.commitment)
	if err != nil {
		return nil, fmt.Errorf("getLatestBlockhash: %w", err)
	}
	return &Blockhash{
		Hash:                 res.Value.Blockhash,
		LastValidBlockHeight: res.Value.LastValidBlockHeight,
	}, nil
}

// SendTransaction broadcasts a serialized signed transaction.
func (s *SolanaRPC) SendTransaction(ctx context.Context, raw []byte, opts SendOptions) (solana.Signature, error) {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	sig, err := s.client.SendRawTransactionWithOpts(ctx, raw, rpc.TransactionOpts{
		SkipPreflight:       opts.SkipPreflight,
		PreflightCommitment: s.commitment,
		MaxRetries:          opts.MaxRetries,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %v", ErrBroadcastFailed, err)
	}
	return sig, nil
}

// GetSignatureStatus returns the status of sig, or ErrNotFound if the
// cluster has not seen it.
func (s *SolanaRPC) GetSignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error) {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	res, err := s.client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return nil, fmt.Errorf("getSignatureStatuses: %w", err)
	}
	if res == nil || len(res.Value) == 0 || res.Value[0] == nil {
		return nil, fmt.Errorf("signature %s: %w", sig, ErrNotFound)
	}

	v := res.Value[0]
	status := &SignatureStatus{
		Slot:               v.Slot,
		Confirmations:      v.Confirmations,
		ConfirmationStatus: string(v.ConfirmationStatus),
	}
	if v.Err != nil {
		status.Err = fmt.Sprintf("%v", v.Err)
	}
	return status, nil
}

// RequestAirdrop asks the cluster faucet for lamports.
func (s *SolanaRPC) RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error) {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	sig, err := s.client.RequestAirdrop(ctx, account, lamports, s.commitment)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("requestAirdrop: %w", err)
	}
	return sig, nil
}

// GetNodeInfo returns the node version and current slot.
func (s *SolanaRPC) GetNodeInfo(ctx context.Context) (*NodeInfo, error) {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	version, err := s.client.GetVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("getVersion: %w", err)
	}
	slot, err := s.client.GetSlot(ctx, s.commitment)
	if err != nil {
		return nil, fmt.Errorf("getSlot: %w", err)
	}
	return &NodeInfo{Version: version.SolanaCore, Slot: slot}, nil
}

var _ Client = (*SolanaRPC)(nil)
