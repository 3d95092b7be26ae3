package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/Klingon-tech/klingsol/internal/backend"
	"github.com/Klingon-tech/klingsol/internal/chain"
	"github.com/Klingon-tech/klingsol/internal/price"
	"github.com/Klingon-tech/klingsol/internal/programs/token2022"
	"github.com/Klingon-tech/klingsol/internal/storage"
	"github.com/Klingon-tech/klingsol/internal/swap"
	"github.com/Klingon-tech/klingsol/pkg/helpers"
	"github.com/Klingon-tech/klingsol/pkg/logging"
)

// Service errors
var (
	ErrWalletLocked     = errors.New("wallet is locked")
	ErrNoWallet         = errors.New("no wallet found, create or import one first")
	ErrAccountNotFound  = errors.New("account not found")
	ErrDuplicateAccount = errors.New("account already exists")
	ErrNoExternalWallet = errors.New("no external wallet configured")
	ErrMainnetOnly      = errors.New("swaps are only available on mainnet")
	ErrNoSwapProvider   = errors.New("swap provider not configured")
)

// Events published by the service.
const (
	EventBalanceUpdated = "balance_updated"
	EventTxSubmitted    = "tx_submitted"
	EventTxConfirmed    = "tx_confirmed"
	EventTxFailed       = "tx_failed"
	EventTokenMinted    = "token_minted"
)

// EventSink receives wallet events, typically the WebSocket hub.
type EventSink interface {
	Publish(event string, data interface{})
}

// ExternalWallet is the user's own wallet outside the daemon. Signer is nil
// when deposits must be signed elsewhere.
type ExternalWallet struct {
	Address solana.PublicKey
	Signer  solana.PrivateKey
}

// ServiceConfig holds configuration for the wallet service.
type ServiceConfig struct {
	DataDir string
	Network chain.Network

	Backend backend.Client
	Storage *storage.Storage
	Prices  price.Source
	Swapper swap.Provider

	SlippageBps   uint16
	External      ExternalWallet
	TokenDefaults *MintRequest

	// ConfirmTimeout bounds the wait between the two mint transactions.
	ConfirmTimeout time.Duration
	PollInterval   time.Duration

	Events EventSink
	Logger *logging.Logger
}

// Service manages the keystore and builds, signs and submits transactions
// for the accounts in it.
type Service struct {
	dataDir  string
	params   *chain.Params
	keystore *Keystore

	client  backend.Client
	store   *storage.Storage
	prices  price.Source
	swapper swap.Provider

	slippageBps    uint16
	external       ExternalWallet
	tokenDefaults  MintRequest
	confirmTimeout time.Duration
	pollInterval   time.Duration

	events EventSink
	log    *logging.Logger

	mu       sync.RWMutex
	records  []Record // nil while locked
	accounts []AccountInfo
}

// AccountInfo is the public view of an account. Index is its position in
// the record list and is what account-scoped operations take.
type AccountInfo struct {
	Index           int       `json:"index"`
	Address         string    `json:"address"`
	DerivationIndex uint32    `json:"derivationIndex"`
	DerivationPath  string    `json:"derivationPath"`
	Label           string    `json:"label,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// AccountSecrets is an account together with its private key, mnemonic and
// the secret key as a Solana CLI keypair array.
type AccountSecrets struct {
	AccountInfo
	PrivateKey string          `json:"privateKey"`
	Mnemonic   string          `json:"mnemonic,omitempty"`
	Keypair    json.RawMessage `json:"keypair"`
}

// NewAccount is returned when an account is added. Mnemonic is only set
// for freshly generated wallets so it can be backed up.
type NewAccount struct {
	AccountInfo
	Mnemonic string `json:"mnemonic,omitempty"`
}

// Status summarizes the service state.
type Status struct {
	Network         chain.Network `json:"network"`
	HasWallet       bool          `json:"hasWallet"`
	Unlocked        bool          `json:"unlocked"`
	Accounts        int           `json:"accounts"`
	ExternalAddress string        `json:"externalAddress,omitempty"`
	ExternalSigner  bool          `json:"externalSigner"`
	Connected       bool          `json:"connected"`
}

// BalanceInfo is a refreshed SOL balance.
type BalanceInfo struct {
	Account   int       `json:"account"`
	Address   string    `json:"address"`
	Lamports  uint64    `json:"lamports"`
	SOL       string    `json:"sol"`
	USD       string    `json:"usd,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TokenBalance is a Token-2022 account owned by a wallet account.
type TokenBalance struct {
	Mint         string `json:"mint"`
	TokenAccount string `json:"tokenAccount"`
	Amount       uint64 `json:"amount"`
	Decimals     uint8  `json:"decimals"`
	UIAmount     string `json:"uiAmount"`
	Name         string `json:"name,omitempty"`
	Symbol       string `json:"symbol,omitempty"`
	URI          string `json:"uri,omitempty"`
}

// NewService creates a wallet service. Storage is required; the backend may
// be nil, in which case every network operation returns backend.ErrNotConnected.
func NewService(cfg *ServiceConfig) (*Service, error) {
	if cfg == nil || cfg.Storage == nil {
		return nil, errors.New("wallet service requires storage")
	}

	network := cfg.Network
	if network == "" {
		network = chain.DefaultNetwork
	}
	params, ok := chain.Get(network)
	if !ok {
		return nil, fmt.Errorf("unknown network: %s", network)
	}
	if err := cfg.Storage.CheckNetwork(string(network)); err != nil {
		return nil, err
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "."
	}

	tokenDefaults := DefaultMintRequest()
	if cfg.TokenDefaults != nil {
		tokenDefaults = cfg.TokenDefaults.WithDefaults(tokenDefaults)
	}

	confirmTimeout := cfg.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = 60 * time.Second
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	slippage := cfg.SlippageBps
	if slippage == 0 {
		slippage = swap.DefaultSlippageBps
	}

	log := cfg.Logger
	if log == nil {
		log = logging.GetDefault()
	}

	s := &Service{
		dataDir:        dataDir,
		params:         params,
		keystore:       NewKeystore(dataDir),
		client:         cfg.Backend,
		store:          cfg.Storage,
		prices:         cfg.Prices,
		swapper:        cfg.Swapper,
		slippageBps:    slippage,
		external:       cfg.External,
		tokenDefaults:  tokenDefaults,
		confirmTimeout: confirmTimeout,
		pollInterval:   pollInterval,
		events:         cfg.Events,
		log:            log.Component("wallet"),
	}

	stored, err := s.store.ListAccounts()
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	s.accounts = lo.Map(stored, func(a *storage.AccountRecord, _ int) AccountInfo {
		return AccountInfo{
			Index:           a.Position,
			Address:         a.Address,
			DerivationIndex: a.DerivationIndex,
			DerivationPath:  a.DerivationPath,
			Label:           a.Label,
			CreatedAt:       a.CreatedAt,
		}
	})

	return s, nil
}

// SetEvents sets the event sink. Used when the sink is created after the service.
func (s *Service) SetEvents(sink EventSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = sink
}

func (s *Service) publish(event string, data interface{}) {
	s.mu.RLock()
	sink := s.events
	s.mu.RUnlock()
	if sink != nil {
		sink.Publish(event, data)
	}
}

// Network returns the cluster the service operates on.
func (s *Service) Network() chain.Network {
	return s.params.Network
}

// Params returns the cluster parameters.
func (s *Service) Params() *chain.Params {
	return s.params
}

// Storage returns the activity database.
func (s *Service) Storage() *storage.Storage {
	return s.store
}

// Backend returns the cluster client, or nil if none was configured.
func (s *Service) Backend() backend.Client {
	return s.client
}

// External returns the configured external wallet address, or the zero key.
func (s *Service) External() solana.PublicKey {
	return s.external.Address
}

func (s *Service) backend() (backend.Client, error) {
	if s.client == nil {
		return nil, backend.ErrNotConnected
	}
	return s.client, nil
}

// GenerateMnemonic generates a new 12-word mnemonic.
func (s *Service) GenerateMnemonic() (string, error) {
	return GenerateMnemonic()
}

// ValidateMnemonic checks if a mnemonic is valid.
func (s *Service) ValidateMnemonic(mnemonic string) bool {
	return ValidateMnemonic(mnemonic)
}

// HasWallet returns true if a keystore exists.
func (s *Service) HasWallet() bool {
	return s.keystore.Exists()
}

// Status returns a summary of the service state.
func (s *Service) Status() *Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &Status{
		Network:        s.params.Network,
		HasWallet:      s.keystore.Exists(),
		Unlocked:       s.records != nil,
		Accounts:       len(s.accounts),
		ExternalSigner: s.external.Signer != nil,
		Connected:      s.client != nil && s.client.IsConnected(),
	}
	if !s.external.Address.IsZero() {
		st.ExternalAddress = s.external.Address.String()
	}
	return st
}

// CreateWallet generates a new mnemonic and adds its first account. The
// keystore is created with password if it does not exist yet.
func (s *Service) CreateWallet(password, label string) (*NewAccount, error) {
	mnemonic, err := GenerateMnemonic()
	if err != nil {
		return nil, fmt.Errorf("failed to generate mnemonic: %w", err)
	}

	rec, err := NewRecord(mnemonic, "", 0)
	if err != nil {
		return nil, err
	}
	rec.Label = label

	info, err := s.addRecord(password, rec)
	if err != nil {
		return nil, err
	}
	s.log.Info("Wallet created", "address", info.Address)
	return &NewAccount{AccountInfo: *info, Mnemonic: rec.Mnemonic}, nil
}

// ImportWallet adds the account at index derived from an existing mnemonic.
func (s *Service) ImportWallet(mnemonic string, index uint32, password, label string) (*NewAccount, error) {
	if !ValidateMnemonic(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}
	if err := chain.ValidateAccountIndex(index); err != nil {
		return nil, err
	}

	rec, err := NewRecord(mnemonic, "", index)
	if err != nil {
		return nil, err
	}
	rec.Label = label

	info, err := s.addRecord(password, rec)
	if err != nil {
		return nil, err
	}
	s.log.Info("Wallet imported", "address", info.Address, "index", index)
	return &NewAccount{AccountInfo: *info}, nil
}

// DeriveAccount adds the next unused index of the mnemonic behind account from.
func (s *Service) DeriveAccount(from int, password, label string) (*NewAccount, error) {
	var info *AccountInfo
	_, err := s.update(password, func(records []Record) ([]Record, error) {
		if from < 0 || from >= len(records) {
			return nil, fmt.Errorf("%w: %d", ErrAccountNotFound, from)
		}
		mnemonic := records[from].Mnemonic
		if mnemonic == "" {
			return nil, fmt.Errorf("account %d has no mnemonic", from)
		}

		siblings := lo.Filter(records, func(r Record, _ int) bool { return r.Mnemonic == mnemonic })
		last := lo.MaxBy(siblings, func(a, b Record) bool { return a.Index > b.Index })
		next := last.Index + 1
		if err := chain.ValidateAccountIndex(next); err != nil {
			return nil, err
		}

		rec, err := NewRecord(mnemonic, "", next)
		if err != nil {
			return nil, err
		}
		rec.Label = label

		updated := append(records, *rec)
		info = recordInfo(*rec, len(updated)-1)
		return updated, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Account derived", "address", info.Address, "index", info.DerivationIndex)
	return &NewAccount{AccountInfo: *info}, nil
}

func (s *Service) addRecord(password string, rec *Record) (*AccountInfo, error) {
	var info *AccountInfo
	_, err := s.update(password, func(records []Record) ([]Record, error) {
		if lo.ContainsBy(records, func(r Record) bool { return r.PublicKey == rec.PublicKey }) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAccount, rec.PublicKey)
		}
		updated := append(records, *rec)
		info = recordInfo(*rec, len(updated)-1)
		return updated, nil
	})
	return info, err
}

// update loads the keystore (or starts an empty one), applies fn, saves the
// result and leaves the wallet unlocked with it.
func (s *Service) update(password string, fn func([]Record) ([]Record, error)) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []Record
	if s.keystore.Exists() {
		loaded, err := s.keystore.Load(password)
		if err != nil {
			return nil, fmt.Errorf("failed to unlock wallet: %w", err)
		}
		records = loaded
	} else if err := ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("weak password: %w", err)
	}

	updated, err := fn(records)
	if err != nil {
		return nil, err
	}

	if err := s.keystore.Save(updated, password); err != nil {
		return nil, err
	}
	if err := s.setRecordsLocked(updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) setRecordsLocked(records []Record) error {
	if records == nil {
		records = []Record{}
	}
	clear(s.records)
	s.records = records
	s.accounts = lo.Map(records, func(r Record, i int) AccountInfo { return *recordInfo(r, i) })

	rows := lo.Map(s.accounts, func(a AccountInfo, _ int) *storage.AccountRecord {
		return &storage.AccountRecord{
			Address:         a.Address,
			Position:        a.Index,
			DerivationIndex: a.DerivationIndex,
			DerivationPath:  a.DerivationPath,
			Label:           a.Label,
			CreatedAt:       a.CreatedAt,
		}
	})
	if err := s.store.ReplaceAccounts(rows); err != nil {
		return fmt.Errorf("failed to save accounts: %w", err)
	}
	return nil
}

func recordInfo(r Record, position int) *AccountInfo {
	path := r.DerivationPath
	if path == "" {
		path = chain.DerivationPath(r.Index)
	}
	info := &AccountInfo{
		Index:           position,
		Address:         r.PublicKey,
		DerivationIndex: r.Index,
		DerivationPath:  path,
		Label:           r.Label,
	}
	if r.CreatedAt > 0 {
		info.CreatedAt = time.Unix(r.CreatedAt, 0)
	}
	return info
}

// Unlock decrypts the keystore.
func (s *Service) Unlock(password string) error {
	if !s.keystore.Exists() {
		return ErrNoWallet
	}

	records, err := s.keystore.Load(password)
	if err != nil {
		return fmt.Errorf("failed to unlock wallet: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.setRecordsLocked(records); err != nil {
		return err
	}
	s.log.Info("Wallet unlocked", "accounts", len(records))
	return nil
}

// Lock drops the decrypted records from memory. The entries are zeroed
// first so no slice still sharing them keeps the secrets reachable.
func (s *Service) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.records)
	s.records = nil
}

// Accounts returns the public info of every account. Available while locked.
func (s *Service) Accounts() []AccountInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AccountInfo, len(s.accounts))
	copy(out, s.accounts)
	return out
}

// RevealAccount re-checks password and returns account i with its secrets.
// It works while the wallet is locked.
func (s *Service) RevealAccount(i int, password string) (*AccountSecrets, error) {
	if !s.keystore.Exists() {
		return nil, ErrNoWallet
	}
	records, err := s.keystore.Load(password)
	if err != nil {
		return nil, fmt.Errorf("failed to unlock wallet: %w", err)
	}
	defer clear(records)

	if i < 0 || i >= len(records) {
		return nil, fmt.Errorf("%w: %d", ErrAccountNotFound, i)
	}
	rec := records[i]

	key, err := rec.Keypair()
	if err != nil {
		return nil, err
	}
	defer SecureClear(key)
	keypair, err := MarshalKeypair(key)
	if err != nil {
		return nil, err
	}

	return &AccountSecrets{
		AccountInfo: *recordInfo(rec, i),
		PrivateKey:  rec.PrivateKey,
		Mnemonic:    rec.Mnemonic,
		Keypair:     keypair,
	}, nil
}

// ExportRecords re-checks password and returns the plaintext export document.
func (s *Service) ExportRecords(password string) ([]byte, error) {
	if !s.keystore.Exists() {
		return nil, ErrNoWallet
	}
	records, err := s.keystore.Load(password)
	if err != nil {
		return nil, fmt.Errorf("failed to unlock wallet: %w", err)
	}
	return ExportRecords(records)
}

// ImportRecords merges an export document (or a bare record array) into the
// keystore and returns the accounts it added. Records whose public key is
// already present are skipped. The keystore is created with password if it
// does not exist yet.
func (s *Service) ImportRecords(data []byte, password string) ([]AccountInfo, error) {
	imported, err := ImportRecords(data)
	if err != nil {
		return nil, err
	}

	added := []AccountInfo{}
	_, err = s.update(password, func(records []Record) ([]Record, error) {
		for _, rec := range imported {
			if lo.ContainsBy(records, func(r Record) bool { return r.PublicKey == rec.PublicKey }) {
				continue
			}
			if rec.DerivationPath == "" {
				rec.DerivationPath = chain.DerivationPath(rec.Index)
			}
			if rec.CreatedAt == 0 {
				rec.CreatedAt = time.Now().Unix()
			}
			records = append(records, rec)
			added = append(added, *recordInfo(rec, len(records)-1))
		}
		return records, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Records imported", "added", len(added), "skipped", len(imported)-len(added))
	return added, nil
}

// addressOf returns the address of account i. Works while locked.
func (s *Service) addressOf(i int) (solana.PublicKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i < 0 || i >= len(s.accounts) {
		return solana.PublicKey{}, fmt.Errorf("%w: %d", ErrAccountNotFound, i)
	}
	return solana.PublicKeyFromBase58(s.accounts[i].Address)
}

// keyFor returns the private key and address of account i. The caller owns
// the returned key and should clear it.
func (s *Service) keyFor(i int) (solana.PrivateKey, solana.PublicKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.records == nil {
		return nil, solana.PublicKey{}, ErrWalletLocked
	}
	if i < 0 || i >= len(s.records) {
		return nil, solana.PublicKey{}, fmt.Errorf("%w: %d", ErrAccountNotFound, i)
	}
	key, err := s.records[i].Keypair()
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	return key, key.PublicKey(), nil
}

// RefreshBalance fetches the SOL balance of account i and stores it as the
// snapshot transfers are validated against.
func (s *Service) RefreshBalance(ctx context.Context, i int) (*BalanceInfo, error) {
	addr, err := s.addressOf(i)
	if err != nil {
		return nil, err
	}

	snap, err := s.refreshNative(ctx, addr)
	if err != nil {
		return nil, err
	}

	info := &BalanceInfo{
		Account:   i,
		Address:   snap.Address,
		Lamports:  snap.Amount,
		SOL:       helpers.LamportsToSOL(snap.Amount),
		UpdatedAt: snap.UpdatedAt,
	}
	if s.prices != nil {
		p, err := s.prices.SOLPrice(ctx)
		if err != nil {
			s.log.Warn("SOL price unavailable", "error", err)
		} else {
			info.USD = price.ToUSD(snap.Amount, p).StringFixed(2)
		}
	}

	s.publish(EventBalanceUpdated, info)
	return info, nil
}

// RefreshExternalBalance refreshes the snapshot of the external wallet, which
// deposits are validated against.
func (s *Service) RefreshExternalBalance(ctx context.Context) (*storage.Balance, error) {
	if s.external.Address.IsZero() {
		return nil, ErrNoExternalWallet
	}
	return s.refreshNative(ctx, s.external.Address)
}

func (s *Service) refreshNative(ctx context.Context, addr solana.PublicKey) (*storage.Balance, error) {
	client, err := s.backend()
	if err != nil {
		return nil, err
	}

	lamports, err := client.GetBalance(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	snap := &storage.Balance{
		Address:   addr.String(),
		Mint:      storage.NativeMint,
		Amount:    lamports,
		Decimals:  helpers.SOLDecimals,
		UpdatedAt: time.Now(),
	}
	if err := s.store.SaveBalance(snap); err != nil {
		return nil, fmt.Errorf("failed to save balance: %w", err)
	}
	return snap, nil
}

// Balances returns every stored snapshot of account i, SOL first, without
// contacting the network.
func (s *Service) Balances(i int) ([]*storage.Balance, error) {
	addr, err := s.addressOf(i)
	if err != nil {
		return nil, err
	}
	balances, err := s.store.ListBalances(addr.String())
	if err != nil {
		return nil, err
	}
	if balances == nil {
		balances = []*storage.Balance{}
	}
	return balances, nil
}

func (s *Service) snapshot(address, mint string) (*storage.Balance, error) {
	b, err := s.store.GetBalance(address, mint)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoBalance
	}
	return b, err
}

// tokensSynced reports whether Tokens has stored the token snapshots of
// owner at least once, so a missing mint snapshot means none is held.
func (s *Service) tokensSynced(owner solana.PublicKey) bool {
	_, err := s.store.TokensSyncedAt(owner.String())
	return err == nil
}

// Tokens lists the Token-2022 accounts of account i and replaces its token
// snapshots with them, dropping mints no longer held. Mint metadata is
// fetched concurrently; a mint without metadata is still listed.
func (s *Service) Tokens(ctx context.Context, i int) ([]TokenBalance, error) {
	owner, err := s.addressOf(i)
	if err != nil {
		return nil, err
	}
	client, err := s.backend()
	if err != nil {
		return nil, err
	}

	accounts, err := client.GetTokenAccountsByOwner(ctx, owner, token2022.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("failed to list token accounts: %w", err)
	}

	tokens := lo.Map(accounts, func(ta backend.TokenAccount, _ int) TokenBalance {
		tb := TokenBalance{
			Mint:         ta.Mint.String(),
			TokenAccount: ta.Address.String(),
			Amount:       ta.Amount,
			Decimals:     ta.Decimals,
			UIAmount:     ta.UIAmount,
		}
		if known, ok := chain.GetTokenByMint(s.params.Network, tb.Mint); ok {
			tb.Name, tb.Symbol = known.Name, known.Symbol
		}
		return tb
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for idx := range tokens {
		tb := &tokens[idx]
		mint := accounts[idx].Mint
		g.Go(func() error {
			data, err := client.GetAccountData(gctx, mint)
			if err != nil {
				s.log.Debug("Mint lookup failed", "mint", mint, "error", err)
				return nil
			}
			md, err := token2022.ParseTokenMetadata(data)
			if err != nil {
				return nil
			}
			tb.Name, tb.Symbol, tb.URI = md.Name, md.Symbol, md.URI
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := time.Now()
	snaps := lo.Map(tokens, func(tb TokenBalance, _ int) *storage.Balance {
		return &storage.Balance{
			Address:      owner.String(),
			Mint:         tb.Mint,
			Amount:       tb.Amount,
			Decimals:     tb.Decimals,
			TokenAccount: tb.TokenAccount,
			UpdatedAt:    now,
		}
	})
	if err := s.store.ReplaceTokenBalances(owner.String(), snaps); err != nil {
		return nil, fmt.Errorf("failed to save token balances: %w", err)
	}

	return tokens, nil
}

// RefreshAll refreshes SOL and token snapshots of every account, and the
// SOL snapshot of the external wallet when one is configured.
func (s *Service) RefreshAll(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(4)

	if !s.external.Address.IsZero() {
		g.Go(func() error {
			if _, err := s.RefreshExternalBalance(ctx); err != nil {
				return fmt.Errorf("external wallet: %w", err)
			}
			return nil
		})
	}

	for _, acct := range s.Accounts() {
		idx := acct.Index
		g.Go(func() error {
			if _, err := s.RefreshBalance(ctx, idx); err != nil {
				return fmt.Errorf("account %d: %w", idx, err)
			}
			if _, err := s.Tokens(ctx, idx); err != nil {
				return fmt.Errorf("account %d tokens: %w", idx, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// History returns the most recent activity of account i.
func (s *Service) History(i, limit int) ([]*storage.Transaction, error) {
	addr, err := s.addressOf(i)
	if err != nil {
		return nil, err
	}
	return s.store.ListTransactions(addr.String(), limit)
}

// MintedTokens returns the tokens minted by account i.
func (s *Service) MintedTokens(i int) ([]*storage.MintedToken, error) {
	addr, err := s.addressOf(i)
	if err != nil {
		return nil, err
	}
	return s.store.ListMintedTokens(addr.String())
}

// NodeInfo returns the RPC node version and slot.
func (s *Service) NodeInfo(ctx context.Context) (*backend.NodeInfo, error) {
	client, err := s.backend()
	if err != nil {
		return nil, err
	}
	return client.GetNodeInfo(ctx)
}

func parseRecipient(s string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(s))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %q", ErrInvalidRecipient, s)
	}
	return pk, nil
}
