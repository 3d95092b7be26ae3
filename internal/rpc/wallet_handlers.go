package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Klingon-tech/klingsol/internal/chain"
	"github.com/Klingon-tech/klingsol/internal/storage"
	"github.com/Klingon-tech/klingsol/internal/wallet"
)

// DefaultHistoryLimit is used by wallet_history when no limit is given.
const DefaultHistoryLimit = 50

var errNoWalletService = errors.New("wallet service not initialized")

// ========================================
// Wallet lifecycle handlers
// ========================================

func (s *Server) walletStatus(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, errNoWalletService
	}
	return s.wallet.Status(), nil
}

// WalletGenerateResult is the response for wallet_generate.
type WalletGenerateResult struct {
	Mnemonic string `json:"mnemonic"`
}

func (s *Server) walletGenerate(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, errNoWalletService
	}

	mnemonic, err := s.wallet.GenerateMnemonic()
	if err != nil {
		return nil, fmt.Errorf("failed to generate mnemonic: %w", err)
	}

	return &WalletGenerateResult{
		Mnemonic: mnemonic,
	}, nil
}

// WalletValidateMnemonicParams is the parameters for wallet_validateMnemonic.
type WalletValidateMnemonicParams struct {
	Mnemonic string `json:"mnemonic"`
}

// WalletValidateMnemonicResult is the response for wallet_validateMnemonic.
type WalletValidateMnemonicResult struct {
	Valid bool `json:"valid"`
	Words int  `json:"words"`
}

func (s *Server) walletValidateMnemonic(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, errNoWalletService
	}

	var p WalletValidateMnemonicParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}

	normalized := wallet.NormalizeMnemonic(p.Mnemonic)
	return &WalletValidateMnemonicResult{
		Valid: s.wallet.ValidateMnemonic(normalized),
		Words: len(strings.Fields(normalized)),
	}, nil
}

// WalletCreateParams is the parameters for wallet_create.
type WalletCreateParams struct {
	Password string `json:"password"`
	Label    string `json:"label,omitempty"`
}

func (s *Server) walletCreate(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, errNoWalletService
	}

	var p WalletCreateParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if p.Password == "" {
		return nil, &Error{Code: InvalidParams, Message: "password is required"}
	}

	acct, err := s.wallet.CreateWallet(p.Password, p.Label)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	return acct, nil
}

// WalletImportParams is the parameters for wallet_import.
type WalletImportParams struct {
	Mnemonic string `json:"mnemonic"`
	Index    uint32 `json:"index"`
	Password string `json:"password"`
	Label    string `json:"label,omitempty"`
}

func (s *Server) walletImport(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, errNoWalletService
	}

	var p WalletImportParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if p.Mnemonic == "" {
		return nil, &Error{Code: InvalidParams, Message: "mnemonic is required"}
	}
	if p.Password == "" {
		return nil, &Error{Code: InvalidParams, Message: "password is required"}
	}

	acct, err := s.wallet.ImportWallet(p.Mnemonic, p.Index, p.Password, p.Label)
	if err != nil {
		return nil, fmt.Errorf("failed to import wallet: %w", err)
	}
	return acct, nil
}

// WalletDeriveParams is the parameters for wallet_derive.
type WalletDeriveParams struct {
	From     int    `json:"from"`
	Password string `json:"password"`
	Label    string `json:"label,omitempty"`
}

func (s *Server) walletDerive(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, errNoWalletService
	}

	var p WalletDeriveParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if p.Password == "" {
		return nil, &Error{Code: InvalidParams, Message: "password is required"}
	}

	acct, err := s.wallet.DeriveAccount(p.From, p.Password, p.Label)
	if err != nil {
		return nil, fmt.Errorf("failed to derive account: %w", err)
	}
	return acct, nil
}

// WalletUnlockParams is the parameters for wallet_unlock.
type WalletUnlockParams struct {
	Password string `json:"password"`
}

func (s *Server) walletUnlock(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, errNoWalletService
	}

	var p WalletUnlockParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if p.Password == "" {
		return nil, &Error{Code: InvalidParams, Message: "password is required"}
	}

	if err := s.wallet.Unlock(p.Password); err != nil {
		return nil, fmt.Errorf("failed to unlock wallet: %w", err)
	}

	return map[string]interface{}{
		"success":  true,
		"accounts": len(s.wallet.Accounts()),
	}, nil
}

func (s *Server) walletLock(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, errNoWalletService
	}

	s.wallet.Lock()
	return map[string]interface{}{
		"success": true,
	}, nil
}

// WalletAccountsResult is the response for wallet_accounts.
type WalletAccountsResult struct {
	Accounts []wallet.AccountInfo `json:"accounts"`
	Count    int                  `json:"count"`
}

func (s *Server) walletAccounts(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, errNoWalletService
	}

	accounts := s.wallet.Accounts()
	return &WalletAccountsResult{
		Accounts: accounts,
		Count:    len(accounts),
	}, nil
}

// AccountParams selects an account by list position.
type AccountParams struct {
	Account int `json:"account"`
}

// WalletAccountParams is the parameters for wallet_account. Secrets reveals
// the private key and mnemonic and requires the wallet password.
type WalletAccountParams struct {
	Account  int    `json:"account"`
	Secrets  bool   `json:"secrets,omitempty"`
	Password string `json:"password,omitempty"`
}

// WalletAccountResult is the response for wallet_account.
type WalletAccountResult struct {
	wallet.AccountInfo
	Explorer string `json:"explorer"`

	PrivateKey string          `json:"privateKey,omitempty"`
	Mnemonic   string          `json:"mnemonic,omitempty"`
	Keypair    json.RawMessage `json:"keypair,omitempty"`
}

func (s *Server) walletAccount(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, errNoWalletService
	}

	var p WalletAccountParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}

	if p.Secrets {
		if p.Password == "" {
			return nil, &Error{Code: InvalidParams, Message: "password is required to reveal secrets"}
		}
		secrets, err := s.wallet.RevealAccount(p.Account, p.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to reveal account: %w", err)
		}
		return &WalletAccountResult{
			AccountInfo: secrets.AccountInfo,
			Explorer:    s.wallet.Params().ExplorerAddressURL(secrets.Address),
			PrivateKey:  secrets.PrivateKey,
			Mnemonic:    secrets.Mnemonic,
			Keypair:     secrets.Keypair,
		}, nil
	}

	accounts := s.wallet.Accounts()
	if p.Account < 0 || p.Account >= len(accounts) {
		return nil, fmt.Errorf("%w: %d", wallet.ErrAccountNotFound, p.Account)
	}

	acct := accounts[p.Account]
	return &WalletAccountResult{
		AccountInfo: acct,
		Explorer:    s.wallet.Params().ExplorerAddressURL(acct.Address),
	}, nil
}

// WalletExportParams is the parameters for wallet_export.
type WalletExportParams struct {
	Password string `json:"password"`
}

func (s *Server) walletExport(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, errNoWalletService
	}

	var p WalletExportParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if p.Password == "" {
		return nil, &Error{Code: InvalidParams, Message: "password is required"}
	}

	data, err := s.wallet.ExportRecords(p.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to export wallet: %w", err)
	}
	return json.RawMessage(data), nil
}

// WalletImportRecordsParams is the parameters for wallet_importRecords.
// Records is an export document from wallet_export, or a bare record array.
type WalletImportRecordsParams struct {
	Records  json.RawMessage `json:"records"`
	Password string          `json:"password"`
}

// WalletImportRecordsResult is the response for wallet_importRecords.
type WalletImportRecordsResult struct {
	Added []wallet.AccountInfo `json:"added"`
	Count int                  `json:"count"`
}

func (s *Server) walletImportRecords(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, errNoWalletService
	}

	var p WalletImportRecordsParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if len(p.Records) == 0 {
		return nil, &Error{Code: InvalidParams, Message: "records is required"}
	}
	if p.Password == "" {
		return nil, &Error{Code: InvalidParams, Message: "password is required"}
	}

	added, err := s.wallet.ImportRecords(p.Records, p.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to import records: %w", err)
	}
	return &WalletImportRecordsResult{
		Added: added,
		Count: len(added),
	}, nil
}

// ========================================
// Balance handlers
// ========================================

// WalletBalanceParams is the parameters for wallet_balance.
type WalletBalanceParams struct {
	Account int `json:"account"`
	// External reports the configured external wallet instead of an account.
	External bool `json:"external,omitempty"`
}

func (s *Server) walletBalance(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, errNoWalletService
	}

	var p WalletBalanceParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}

	if p.External {
		bal, err := s.wallet.RefreshExternalBalance(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get external balance: %w", err)
		}
		return bal, nil
	}

	bal, err := s.wallet.RefreshBalance(ctx, p.Account)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return bal, nil
}

// WalletBalancesResult is the response for wallet_balances.
type WalletBalancesResult struct {
	Account  int                `json:"account"`
	Balances []*storage.Balance `json:"balances"`
	Count    int                `json:"count"`
}

// walletBalances returns the stored snapshots without contacting the cluster.
func (s *Server) walletBalances(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, errNoWalletService
	}

	var p AccountParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}

	balances, err := s.wallet.Balances(p.Account)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	return &WalletBalancesResult{
		Account:  p.Account,
		Balances: balances,
		Count:    len(balances),
	}, nil
}

// WalletTokensResult is the response for wallet_tokens.
type WalletTokensResult struct {
	Account int                   `json:"account"`
	Tokens  []wallet.TokenBalance `json:"tokens"`
	Count   int                   `json:"count"`
}

func (s *Server) walletTokens(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, errNoWalletService
	}

	var p AccountParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}

	tokens, err := s.wallet.Tokens(ctx, p.Account)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	if tokens == nil {
		tokens = []wallet.TokenBalance{}
	}
	return &WalletTokensResult{
		Account: p.Account,
		Tokens:  tokens,
		Count:   len(tokens),
	}, nil
}

// ========================================
// Transfer handlers
// ========================================

// withSnapshot runs op against the stored balance snapshot. Only when no
// snapshot exists yet is refresh called and op retried, so a rejected
// amount never causes a network round trip once balances have synced.
func withSnapshot[T any](ctx context.Context, refresh func(context.Context) error, op func() (T, error)) (T, error) {
	res, err := op()
	if !errors.Is(err, wallet.ErrNoBalance) {
		return res, err
	}
	if err := refresh(ctx); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to refresh balance: %w", err)
	}
	return op()
}

// WalletSendParams is the parameters for wallet_send.
type WalletSendParams struct {
	Account int    `json:"account"`
	To      string `json:"to"`
	Amount  string `json:"amount"`
	// Mint or Token selects an SPL token; both empty sends SOL.
	Mint  string `json:"mint,omitempty"`
	Token string `json:"token,omitempty"`
}

func (s *Server) walletSend(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, errNoWalletService
	}

	var p WalletSendParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if p.To == "" {
		return nil, &Error{Code: InvalidParams, Message: "to is required"}
	}
	if p.Amount == "" {
		return nil, &Error{Code: InvalidParams, Message: "amount is required"}
	}

	mint := p.Mint
	if mint == "" && p.Token != "" && !strings.EqualFold(p.Token, "SOL") {
		info, ok := chain.GetToken(s.wallet.Network(), strings.ToUpper(p.Token))
		if !ok {
			return nil, &Error{Code: InvalidParams, Message: fmt.Sprintf("unknown token %q on %s", p.Token, s.wallet.Network())}
		}
		mint = info.Mint
	}

	req := wallet.SendRequest{Account: p.Account, To: p.To, Amount: p.Amount, Mint: mint}
	refresh := func(ctx context.Context) error {
		if mint != "" {
			_, err := s.wallet.Tokens(ctx, p.Account)
			return err
		}
		_, err := s.wallet.RefreshBalance(ctx, p.Account)
		return err
	}

	res, err := withSnapshot(ctx, refresh, func() (*wallet.TxResult, error) {
		return s.wallet.Send(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("send failed: %w", err)
	}
	return res, nil
}

// AmountParams is the parameters of the single-amount transfer methods.
type AmountParams struct {
	Account int    `json:"account"`
	Amount  string `json:"amount"`
}

func (s *Server) walletWithdraw(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, errNoWalletService
	}

	var p AmountParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}

	refresh := func(ctx context.Context) error {
		_, err := s.wallet.RefreshBalance(ctx, p.Account)
		return err
	}
	res, err := withSnapshot(ctx, refresh, func() (*wallet.TxResult, error) {
		return s.wallet.Withdraw(ctx, p.Account, p.Amount)
	})
	if err != nil {
		return nil, fmt.Errorf("withdraw failed: %w", err)
	}
	return res, nil
}

func (s *Server) walletDeposit(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, errNoWalletService
	}

	var p AmountParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}

	refresh := func(ctx context.Context) error {
		_, err := s.wallet.RefreshExternalBalance(ctx)
		return err
	}
	res, err := withSnapshot(ctx, refresh, func() (*wallet.DepositResult, error) {
		return s.wallet.Deposit(ctx, p.Account, p.Amount)
	})
	if err != nil {
		return nil, fmt.Errorf("deposit failed: %w", err)
	}
	return res, nil
}

// WalletSubmitSignedParams is the parameters for wallet_submitSigned.
type WalletSubmitSignedParams struct {
	Account     int    `json:"account"`
	Kind        string `json:"kind,omitempty"`
	Transaction string `json:"transaction"` // base64 wire transaction
}

func (s *Server) walletSubmitSigned(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, errNoWalletService
	}

	var p WalletSubmitSignedParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if p.Transaction == "" {
		return nil, &Error{Code: InvalidParams, Message: "transaction is required"}
	}

	res, err := s.wallet.SubmitSigned(ctx, p.Account, storage.TxKind(p.Kind), p.Transaction)
	if err != nil {
		return nil, fmt.Errorf("submit failed: %w", err)
	}
	return res, nil
}

func (s *Server) walletAirdrop(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, errNoWalletService
	}

	var p AmountParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if p.Amount == "" {
		p.Amount = "1"
	}

	res, err := s.wallet.Airdrop(ctx, p.Account, p.Amount)
	if err != nil {
		return nil, fmt.Errorf("airdrop failed: %w", err)
	}
	return res, nil
}

// ========================================
// Token and swap handlers
// ========================================

// WalletMintParams is the parameters for wallet_mint. Empty fields take the
// configured token defaults.
type WalletMintParams struct {
	Account int `json:"account"`
	wallet.MintRequest
}

func (s *Server) walletMint(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, errNoWalletService
	}

	var p WalletMintParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}

	res, err := s.wallet.MintToken(ctx, p.Account, p.MintRequest)
	if err != nil {
		return nil, fmt.Errorf("mint failed: %w", err)
	}
	return res, nil
}

func (s *Server) walletMinted(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, errNoWalletService
	}

	var p AccountParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}

	tokens, err := s.wallet.MintedTokens(p.Account)
	if err != nil {
		return nil, fmt.Errorf("failed to list minted tokens: %w", err)
	}
	if tokens == nil {
		tokens = []*storage.MintedToken{}
	}
	return tokens, nil
}

func (s *Server) walletSwap(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, errNoWalletService
	}

	var p AmountParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}

	refresh := func(ctx context.Context) error {
		_, err := s.wallet.RefreshBalance(ctx, p.Account)
		return err
	}
	res, err := withSnapshot(ctx, refresh, func() (*wallet.SwapResult, error) {
		return s.wallet.SwapSOLToUSDC(ctx, p.Account, p.Amount)
	})
	if err != nil {
		return nil, fmt.Errorf("swap failed: %w", err)
	}
	return res, nil
}

// ========================================
// Activity handlers
// ========================================

// WalletHistoryParams is the parameters for wallet_history.
type WalletHistoryParams struct {
	Account int `json:"account"`
	Limit   int `json:"limit,omitempty"`
}

// WalletHistoryResult is the response for wallet_history.
type WalletHistoryResult struct {
	Account      int                    `json:"account"`
	Transactions []*storage.Transaction `json:"transactions"`
	Count        int                    `json:"count"`
}

func (s *Server) walletHistory(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, errNoWalletService
	}

	var p WalletHistoryParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if p.Limit <= 0 {
		p.Limit = DefaultHistoryLimit
	}

	txs, err := s.wallet.History(p.Account, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	if txs == nil {
		txs = []*storage.Transaction{}
	}
	return &WalletHistoryResult{
		Account:      p.Account,
		Transactions: txs,
		Count:        len(txs),
	}, nil
}
