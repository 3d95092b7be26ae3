package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/Klingon-tech/klingsol/internal/backend"
	"github.com/Klingon-tech/klingsol/internal/chain"
	"github.com/Klingon-tech/klingsol/internal/programs/token2022"
	"github.com/Klingon-tech/klingsol/internal/storage"
	"github.com/Klingon-tech/klingsol/pkg/helpers"
)

// FaucetAddress is the sender recorded for airdrops.
const FaucetAddress = "faucet"

// Errors returned by SubmitSigned.
var (
	ErrForeignTransaction = errors.New("transaction does not belong to this account")
	ErrAlreadySubmitted   = errors.New("transaction already submitted")
)

// SendRequest is a transfer out of a wallet account. Mint is empty for SOL.
// Amount is in whole units (SOL or tokens).
type SendRequest struct {
	Account int    `json:"account"`
	To      string `json:"to"`
	Amount  string `json:"amount"`
	Mint    string `json:"mint,omitempty"`
}

// TxResult describes a submitted transaction.
type TxResult struct {
	ID        string         `json:"id"`
	Signature string         `json:"signature"`
	Kind      storage.TxKind `json:"kind"`
	From      string         `json:"from"`
	To        string         `json:"to,omitempty"`
	Mint      string         `json:"mint,omitempty"`
	Amount    uint64         `json:"amount"`
	Decimals  uint8          `json:"decimals"`
	UIAmount  string         `json:"uiAmount"`
	Explorer  string         `json:"explorer"`
}

// DepositResult is either a submitted deposit or, without an external
// signer, the unsigned transaction to sign elsewhere.
type DepositResult struct {
	Transaction *TxResult `json:"transaction,omitempty"`
	Unsigned    string    `json:"unsigned,omitempty"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Lamports    uint64    `json:"lamports"`
}

// MintResult describes a created Token-2022 mint.
type MintResult struct {
	Mint            string `json:"mint"`
	Authority       string `json:"authority"`
	TokenAccount    string `json:"tokenAccount"`
	Name            string `json:"name"`
	Symbol          string `json:"symbol"`
	URI             string `json:"uri"`
	Description     string `json:"description,omitempty"`
	Decimals        uint8  `json:"decimals"`
	Supply          uint64 `json:"supply"`
	CreateSignature string `json:"createSignature"`
	MintSignature   string `json:"mintSignature"`
	Explorer        string `json:"explorer"`
}

// SwapResult is a submitted SOL to USDC swap.
type SwapResult struct {
	TxResult
	OutputMint     string `json:"outputMint"`
	OutAmount      uint64 `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct,omitempty"`
}

// submission is what gets recorded for a transaction before it is sent.
type submission struct {
	kind     storage.TxKind
	from     string
	to       string
	mint     string
	amount   uint64
	decimals uint8
	memo     string
	// debit lowers the sender's snapshot by amount after submission.
	debit bool
}

// Send transfers SOL, or Token-2022 tokens when req.Mint is set, from an
// account. The amount is validated against the cached snapshot before any
// network call, so a zero, negative or unaffordable amount never reaches
// the cluster.
func (s *Service) Send(ctx context.Context, req SendRequest) (*TxResult, error) {
	return s.send(ctx, req, storage.TxKindSend)
}

// Withdraw sends SOL from account i to the external wallet.
func (s *Service) Withdraw(ctx context.Context, i int, amount string) (*TxResult, error) {
	if s.external.Address.IsZero() {
		return nil, ErrNoExternalWallet
	}
	return s.send(ctx, SendRequest{Account: i, To: s.external.Address.String(), Amount: amount}, storage.TxKindWithdraw)
}

func (s *Service) send(ctx context.Context, req SendRequest, kind storage.TxKind) (*TxResult, error) {
	if err := RequirePositiveAmount(req.Amount); err != nil {
		return nil, err
	}

	key, from, err := s.keyFor(req.Account)
	if err != nil {
		return nil, err
	}
	defer SecureClear(key)

	to, err := parseRecipient(req.To)
	if err != nil {
		return nil, err
	}

	mint := strings.TrimSpace(req.Mint)
	var mintKey solana.PublicKey
	if mint != "" {
		mintKey, err = solana.PublicKeyFromBase58(mint)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidMint, mint)
		}
		if err := token2022.RequireOnCurve(to); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
		}
	}

	snap, err := s.snapshot(from.String(), mint)
	if errors.Is(err, ErrNoBalance) && mint != "" && s.tokensSynced(from) {
		// The last token refresh found no account for this mint.
		return nil, fmt.Errorf("%w: requested %s, available 0", ErrInsufficientFunds, strings.TrimSpace(req.Amount))
	}
	if err != nil {
		return nil, err
	}
	amount, err := CheckTransfer(req.Amount, snap.Decimals, snap.Amount)
	if err != nil {
		return nil, err
	}

	client, err := s.backend()
	if err != nil {
		return nil, err
	}
	bh, err := client.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get blockhash: %w", err)
	}

	var tx *solana.Transaction
	if mint == "" {
		tx, err = BuildSOLTransfer(from, to, amount, bh.Hash)
	} else {
		tx, err = BuildTokenTransfer(from, to, mintKey, amount, snap.Decimals, bh.Hash)
	}
	if err != nil {
		return nil, err
	}

	return s.submit(ctx, tx, submission{
		kind:     kind,
		from:     from.String(),
		to:       to.String(),
		mint:     mint,
		amount:   amount,
		decimals: snap.Decimals,
		debit:    true,
	}, backend.SendOptions{}, key)
}

// Deposit moves SOL from the external wallet into account i. The amount is
// checked against the external wallet's snapshot first. With an external
// signer the transfer is submitted; otherwise the unsigned transaction is
// returned for SubmitSigned.
func (s *Service) Deposit(ctx context.Context, i int, amount string) (*DepositResult, error) {
	if err := RequirePositiveAmount(amount); err != nil {
		return nil, err
	}
	if s.external.Address.IsZero() {
		return nil, ErrNoExternalWallet
	}
	to, err := s.addressOf(i)
	if err != nil {
		return nil, err
	}

	from := s.external.Address
	snap, err := s.snapshot(from.String(), storage.NativeMint)
	if err != nil {
		return nil, err
	}
	lamports, err := CheckTransfer(amount, helpers.SOLDecimals, snap.Amount)
	if err != nil {
		return nil, err
	}

	client, err := s.backend()
	if err != nil {
		return nil, err
	}
	bh, err := client.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get blockhash: %w", err)
	}
	tx, err := BuildSOLTransfer(from, to, lamports, bh.Hash)
	if err != nil {
		return nil, err
	}

	result := &DepositResult{From: from.String(), To: to.String(), Lamports: lamports}
	if s.external.Signer == nil {
		_, unsigned, err := EncodeTransaction(tx)
		if err != nil {
			return nil, err
		}
		result.Unsigned = unsigned
		return result, nil
	}

	res, err := s.submit(ctx, tx, submission{
		kind:     storage.TxKindDeposit,
		from:     from.String(),
		to:       to.String(),
		amount:   lamports,
		decimals: helpers.SOLDecimals,
		debit:    true,
	}, backend.SendOptions{}, s.external.Signer)
	if err != nil {
		return nil, err
	}
	result.Transaction = res
	return result, nil
}

// SubmitSigned broadcasts a transaction signed outside the daemon and records
// it against account i. kind defaults to deposit. A deposit must transfer SOL
// into account i, from the external wallet when one is configured; any other
// kind must carry account i's signature. A signature already in the activity
// log is refused.
func (s *Service) SubmitSigned(ctx context.Context, i int, kind storage.TxKind, txBase64 string) (*TxResult, error) {
	acct, err := s.addressOf(i)
	if err != nil {
		return nil, err
	}
	if kind == "" {
		kind = storage.TxKindDeposit
	}

	tx, err := DecodeTransaction(strings.TrimSpace(txBase64))
	if err != nil {
		return nil, err
	}
	if !FullySigned(tx) {
		return nil, errors.New("transaction is not fully signed")
	}
	if err := tx.VerifySignatures(); err != nil {
		return nil, fmt.Errorf("invalid signature: %w", err)
	}

	sub, err := s.signedSubmission(tx, acct, kind)
	if err != nil {
		return nil, err
	}

	sig := tx.Signatures[0].String()
	if _, err := s.store.GetTransactionBySignature(sig); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadySubmitted, sig)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	return s.submit(ctx, tx, sub, backend.SendOptions{})
}

// signedSubmission checks that tx moves funds for acct and describes it.
func (s *Service) signedSubmission(tx *solana.Transaction, acct solana.PublicKey, kind storage.TxKind) (submission, error) {
	from, to, lamports, isTransfer := systemTransfer(tx)

	if kind == storage.TxKindDeposit {
		if !isTransfer || !to.Equals(acct) {
			return submission{}, fmt.Errorf("%w: deposit does not pay %s", ErrForeignTransaction, acct)
		}
		if !s.external.Address.IsZero() && !from.Equals(s.external.Address) {
			return submission{}, fmt.Errorf("%w: deposit is not from the external wallet %s", ErrForeignTransaction, s.external.Address)
		}
		return submission{
			kind:     kind,
			from:     from.String(),
			to:       acct.String(),
			amount:   lamports,
			decimals: helpers.SOLDecimals,
			debit:    true,
		}, nil
	}

	if !tx.IsSigner(acct) {
		return submission{}, fmt.Errorf("%w: %s did not sign", ErrForeignTransaction, acct)
	}
	sub := submission{
		kind:     kind,
		from:     acct.String(),
		decimals: helpers.SOLDecimals,
	}
	if isTransfer && from.Equals(acct) {
		sub.to = to.String()
		sub.amount = lamports
		sub.debit = true
	}
	return sub, nil
}

// MintToken creates a Token-2022 mint with on-chain metadata, authority
// account i, and mints the initial supply to the account's associated token
// account. The second transaction is only sent once the first is confirmed.
func (s *Service) MintToken(ctx context.Context, i int, req MintRequest) (*MintResult, error) {
	req = req.WithDefaults(s.tokenDefaults)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	supply, err := req.Supply()
	if err != nil {
		return nil, err
	}

	key, payer, err := s.keyFor(i)
	if err != nil {
		return nil, err
	}
	defer SecureClear(key)

	client, err := s.backend()
	if err != nil {
		return nil, err
	}

	mintKey, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate mint key: %w", err)
	}
	defer SecureClear(mintKey)
	mint := mintKey.PublicKey()
	decimals := *req.Decimals

	rent, err := client.GetMinimumBalanceForRentExemption(ctx, req.Metadata(mint, payer).MintAccountSpace())
	if err != nil {
		return nil, fmt.Errorf("failed to get rent: %w", err)
	}
	bh, err := client.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get blockhash: %w", err)
	}

	createTx, err := BuildCreateMintTransaction(payer, mint, req, rent, bh.Hash)
	if err != nil {
		return nil, err
	}
	created, err := s.submit(ctx, createTx, submission{
		kind:     storage.TxKindMint,
		from:     payer.String(),
		to:       mint.String(),
		mint:     mint.String(),
		decimals: decimals,
		memo:     "create mint " + req.Symbol,
	}, backend.SendOptions{}, key, mintKey)
	if err != nil {
		return nil, err
	}

	if err := s.awaitConfirmation(ctx, client, created); err != nil {
		return nil, fmt.Errorf("mint account not confirmed: %w", err)
	}

	bh, err = client.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get blockhash: %w", err)
	}
	mintTx, ata, err := BuildMintToTransaction(payer, mint, supply, bh.Hash)
	if err != nil {
		return nil, err
	}
	minted, err := s.submit(ctx, mintTx, submission{
		kind:     storage.TxKindMint,
		from:     payer.String(),
		to:       ata.String(),
		mint:     mint.String(),
		amount:   supply,
		decimals: decimals,
		memo:     "mint " + req.Symbol,
	}, backend.SendOptions{}, key)
	if err != nil {
		return nil, err
	}

	result := &MintResult{
		Mint:            mint.String(),
		Authority:       payer.String(),
		TokenAccount:    ata.String(),
		Name:            req.Name,
		Symbol:          req.Symbol,
		URI:             req.URI,
		Description:     req.Description,
		Decimals:        decimals,
		Supply:          supply,
		CreateSignature: created.Signature,
		MintSignature:   minted.Signature,
		Explorer:        s.params.ExplorerAddressURL(mint.String()),
	}

	if err := s.store.SaveMintedToken(&storage.MintedToken{
		Mint:            result.Mint,
		Authority:       result.Authority,
		Name:            result.Name,
		Symbol:          result.Symbol,
		URI:             result.URI,
		Description:     result.Description,
		Decimals:        decimals,
		Supply:          supply,
		TokenAccount:    result.TokenAccount,
		CreateSignature: result.CreateSignature,
		MintSignature:   result.MintSignature,
	}); err != nil {
		s.log.Error("Failed to record minted token", "mint", result.Mint, "error", err)
	}

	s.log.Info("Token minted", "mint", result.Mint, "symbol", result.Symbol, "supply", supply)
	s.publish(EventTokenMinted, result)
	return result, nil
}

func (s *Service) awaitConfirmation(ctx context.Context, client backend.Client, res *TxResult) error {
	sig, err := solana.SignatureFromBase58(res.Signature)
	if err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	status, err := backend.WaitForConfirmation(waitCtx, client, sig, s.pollInterval)
	if err != nil {
		if errors.Is(err, backend.ErrTxFailed) {
			if markErr := s.store.MarkTransactionFailed(res.ID, err.Error()); markErr != nil {
				s.log.Warn("Failed to mark transaction failed", "id", res.ID, "error", markErr)
			}
			s.publish(EventTxFailed, &TxEvent{
				ID: res.ID, Signature: res.Signature, Kind: res.Kind,
				Status: storage.TxStatusFailed, Error: err.Error(), At: time.Now(),
			})
		}
		return err
	}

	if err := s.store.MarkTransactionConfirmed(res.ID, status.Slot); err != nil {
		s.log.Warn("Failed to mark transaction confirmed", "id", res.ID, "error", err)
	}
	s.publish(EventTxConfirmed, &TxEvent{
		ID: res.ID, Signature: res.Signature, Kind: res.Kind,
		Status: storage.TxStatusConfirmed, Slot: status.Slot, At: time.Now(),
	})
	return nil
}

// SwapSOLToUSDC swaps amount SOL from account i to USDC through the
// aggregator. Mainnet only.
func (s *Service) SwapSOLToUSDC(ctx context.Context, i int, amount string) (*SwapResult, error) {
	if s.params.Network != chain.Mainnet {
		return nil, ErrMainnetOnly
	}
	if s.swapper == nil {
		return nil, ErrNoSwapProvider
	}
	if err := RequirePositiveAmount(amount); err != nil {
		return nil, err
	}

	key, from, err := s.keyFor(i)
	if err != nil {
		return nil, err
	}
	defer SecureClear(key)

	snap, err := s.snapshot(from.String(), storage.NativeMint)
	if err != nil {
		return nil, err
	}
	lamports, err := CheckTransfer(amount, helpers.SOLDecimals, snap.Amount)
	if err != nil {
		return nil, err
	}

	usdc, ok := chain.GetToken(s.params.Network, "USDC")
	if !ok {
		return nil, fmt.Errorf("USDC mint unknown on %s", s.params.Network)
	}

	quote, err := s.swapper.Quote(ctx, chain.WrappedSOLMint, usdc.Mint, lamports, s.slippageBps)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}
	encoded, err := s.swapper.SwapTransaction(ctx, quote, from.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get swap transaction: %w", err)
	}
	tx, err := DecodeTransaction(encoded)
	if err != nil {
		return nil, err
	}

	maxRetries := uint(2)
	res, err := s.submit(ctx, tx, submission{
		kind:     storage.TxKindSwap,
		from:     from.String(),
		to:       usdc.Mint,
		amount:   lamports,
		decimals: helpers.SOLDecimals,
		memo:     fmt.Sprintf("SOL->USDC out=%s", helpers.FormatAmount(quote.OutAmount, usdc.Decimals)),
		debit:    true,
	}, backend.SendOptions{SkipPreflight: true, MaxRetries: &maxRetries}, key)
	if err != nil {
		return nil, err
	}

	return &SwapResult{
		TxResult:       *res,
		OutputMint:     usdc.Mint,
		OutAmount:      quote.OutAmount,
		PriceImpactPct: quote.PriceImpactPct,
	}, nil
}

// Airdrop requests amount SOL from the cluster faucet for account i.
func (s *Service) Airdrop(ctx context.Context, i int, amount string) (*TxResult, error) {
	if !s.params.AirdropEnabled {
		return nil, backend.ErrAirdropDisabled
	}
	lamports, err := ParseSOL(amount)
	if err != nil {
		return nil, err
	}
	to, err := s.addressOf(i)
	if err != nil {
		return nil, err
	}
	client, err := s.backend()
	if err != nil {
		return nil, err
	}

	sig, err := client.RequestAirdrop(ctx, to, lamports)
	if err != nil {
		return nil, fmt.Errorf("airdrop failed: %w", err)
	}

	return s.record(sig, submission{
		kind:     storage.TxKindAirdrop,
		from:     FaucetAddress,
		to:       to.String(),
		amount:   lamports,
		decimals: helpers.SOLDecimals,
	}), nil
}

// submit signs tx with keys, sends it and records it as pending.
func (s *Service) submit(ctx context.Context, tx *solana.Transaction, sub submission, opts backend.SendOptions, keys ...solana.PrivateKey) (*TxResult, error) {
	client, err := s.backend()
	if err != nil {
		return nil, err
	}

	if err := SignTransaction(tx, keys...); err != nil {
		return nil, err
	}
	if !FullySigned(tx) {
		return nil, errors.New("transaction is missing signatures")
	}
	raw, _, err := EncodeTransaction(tx)
	if err != nil {
		return nil, err
	}

	sig, err := client.SendTransaction(ctx, raw, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	if sub.debit && sub.amount > 0 {
		if err := s.store.DebitBalance(sub.from, sub.mint, sub.amount); err != nil {
			s.log.Warn("Failed to debit snapshot", "address", sub.from, "error", err)
		}
	}

	return s.record(sig, sub), nil
}

// record stores a pending transaction row and announces it. A storage error
// is logged, the transaction is already on its way.
func (s *Service) record(sig solana.Signature, sub submission) *TxResult {
	row := &storage.Transaction{
		Signature: sig.String(),
		Kind:      sub.kind,
		From:      sub.from,
		To:        sub.to,
		Mint:      sub.mint,
		Amount:    sub.amount,
		Decimals:  sub.decimals,
		Memo:      sub.memo,
	}
	if err := s.store.CreateTransaction(row); err != nil {
		s.log.Error("Failed to record transaction", "sig", row.Signature, "error", err)
	}

	res := &TxResult{
		ID:        row.ID,
		Signature: row.Signature,
		Kind:      row.Kind,
		From:      row.From,
		To:        row.To,
		Mint:      row.Mint,
		Amount:    row.Amount,
		Decimals:  row.Decimals,
		UIAmount:  helpers.FormatAmount(row.Amount, row.Decimals),
		Explorer:  s.params.ExplorerTxURL(row.Signature),
	}

	s.log.Info("Transaction submitted", "kind", res.Kind, "sig", res.Signature, "amount", res.UIAmount)
	s.publish(EventTxSubmitted, res)
	return res
}

// TxEvent is the payload of confirmation events.
type TxEvent struct {
	ID        string           `json:"id"`
	Signature string           `json:"signature"`
	Kind      storage.TxKind   `json:"kind"`
	Status    storage.TxStatus `json:"status"`
	Slot      uint64           `json:"slot,omitempty"`
	Error     string           `json:"error,omitempty"`
	At        time.Time        `json:"at"`
}
