// Package backendtest provides an in-memory backend.Client for tests.
package backendtest

import (
	"context"
	"fmt"
	"sync"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/Klingon-tech/klingsol/internal/backend"
)

// FakeClient is a backend.Client that serves canned state and records
// every call, so tests can assert that nothing touched the network.
type FakeClient struct {
	mu sync.Mutex

	Balances      map[solana.PublicKey]uint64
	Accounts      map[solana.PublicKey][]byte
	TokenAccounts map[solana.PublicKey][]backend.TokenAccount
	Statuses      map[solana.Signature]*backend.SignatureStatus
	Rent          uint64
	Blockhash     solana.Hash

	// SendErr, when set, is returned by SendTransaction.
	SendErr error

	// Sent holds every raw transaction passed to SendTransaction.
	Sent [][]byte
	// SentOpts holds the options of each SendTransaction call.
	SentOpts []backend.SendOptions
	Airdrops map[solana.PublicKey]uint64

	calls      map[string]int
	airdropSeq byte
}

// NewFakeClient returns an empty fake with a fixed blockhash.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		Balances:      make(map[solana.PublicKey]uint64),
		Accounts:      make(map[solana.PublicKey][]byte),
		TokenAccounts: make(map[solana.PublicKey][]backend.TokenAccount),
		Statuses:      make(map[solana.Signature]*backend.SignatureStatus),
		Airdrops:      make(map[solana.PublicKey]uint64),
		Rent:          2_039_280,
		Blockhash:     solana.HashFromBytes([]byte("klingsol-fake-blockhash-32-bytes")),
		calls:         make(map[string]int),
	}
}

func (f *FakeClient) record(name string) {
	f.calls[name]++
}

// Calls returns the number of calls made to method, or to all methods if method is empty.
func (f *FakeClient) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	if method != "" {
		return f.calls[method]
	}
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// ResetCalls clears the call counters.
func (f *FakeClient) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = make(map[string]int)
}

// SetBalance sets an account's lamport balance.
func (f *FakeClient) SetBalance(account solana.PublicKey, lamports uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Balances[account] = lamports
}

// SetStatus sets the status returned for sig.
func (f *FakeClient) SetStatus(sig solana.Signature, status *backend.SignatureStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Statuses[sig] = status
}

// SentTransactions decodes every submitted transaction.
func (f *FakeClient) SentTransactions() ([]*solana.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*solana.Transaction, 0, len(f.Sent))
	for i, raw := range f.Sent {
		tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
		if err != nil {
			return nil, fmt.Errorf("sent[%d]: %w", i, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

func (f *FakeClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Connect")
	return nil
}

func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) IsConnected() bool { return true }

func (f *FakeClient) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetBalance")
	return f.Balances[account], nil
}

func (f *FakeClient) GetAccountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetAccountData")
	data, ok := f.Accounts[account]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", account, backend.ErrNotFound)
	}
	return data, nil
}

func (f *FakeClient) GetTokenAccountsByOwner(ctx context.Context, owner, programID solana.PublicKey) ([]backend.TokenAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetTokenAccountsByOwner")
	return append([]backend.TokenAccount(nil), f.TokenAccounts[owner]...), nil
}

func (f *FakeClient) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetMinimumBalanceForRentExemption")
	return f.Rent, nil
}

func (f *FakeClient) GetLatestBlockhash(ctx context.Context) (*backend.Blockhash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetLatestBlockhash")
	return &backend.Blockhash{Hash: f.Blockhash, LastValidBlockHeight: 1000}, nil
}

// SendTransaction stores raw and returns its first signature. Submitted
// transactions are immediately reported as confirmed.
func (f *FakeClient) SendTransaction(ctx context.Context, raw []byte, opts backend.SendOptions) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SendTransaction")

	if f.SendErr != nil {
		return solana.Signature{}, f.SendErr
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %v", backend.ErrBroadcastFailed, err)
	}
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, fmt.Errorf("%w: unsigned", backend.ErrBroadcastFailed)
	}

	f.Sent = append(f.Sent, raw)
	f.SentOpts = append(f.SentOpts, opts)

	sig := tx.Signatures[0]
	if _, ok := f.Statuses[sig]; !ok {
		f.Statuses[sig] = &backend.SignatureStatus{Slot: 1, ConfirmationStatus: backend.CommitmentConfirmed}
	}
	return sig, nil
}

func (f *FakeClient) GetSignatureStatus(ctx context.Context, sig solana.Signature) (*backend.SignatureStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetSignatureStatus")
	status, ok := f.Statuses[sig]
	if !ok {
		return nil, fmt.Errorf("signature %s: %w", sig, backend.ErrNotFound)
	}
	s := *status
	return &s, nil
}

func (f *FakeClient) RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RequestAirdrop")

	f.Airdrops[account] += lamports
	f.Balances[account] += lamports

	f.airdropSeq++
	var sig solana.Signature
	copy(sig[:], account[:])
	sig[63] = f.airdropSeq
	f.Statuses[sig] = &backend.SignatureStatus{Slot: 1, ConfirmationStatus: backend.CommitmentFinalized}
	return sig, nil
}

func (f *FakeClient) GetNodeInfo(ctx context.Context) (*backend.NodeInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetNodeInfo")
	return &backend.NodeInfo{Version: "fake", Slot: 1}, nil
}

var _ backend.Client = (*FakeClient)(nil)
