package storage

import (
	"database/sql"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "klingsol-storage-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := New(&Config{DataDir: tmpDir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func TestNew(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "klingsol-storage-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	store, err := New(&Config{DataDir: tmpDir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()

	dbPath := filepath.Join(tmpDir, DatabaseFileName)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if store.Path() != dbPath {
		t.Errorf("Path() = %s, want %s", store.Path(), dbPath)
	}
}

func TestNewWithTildeExpansion(t *testing.T) {
	home, _ := os.UserHomeDir()
	expanded := expandPath("~/.test")
	expected := filepath.Join(home, ".test")

	if expanded != expected {
		t.Errorf("expandPath(~/.test) = %s, want %s", expanded, expected)
	}
}

func TestStorageSchema(t *testing.T) {
	store := newTestStorage(t)

	for _, table := range []string{"settings", "accounts", "balances", "transactions", "minted_tokens"} {
		var name string
		err := store.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("%s table not found: %v", table, err)
		}
	}
}

func TestReopenRunsMigrations(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "klingsol-storage-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	for i := 0; i < 2; i++ {
		store, err := New(&Config{DataDir: tmpDir})
		if err != nil {
			t.Fatalf("New() #%d error = %v", i, err)
		}
		store.Close()
	}
}

func TestAccountFields(t *testing.T) {
	store := newTestStorage(t)

	acct := &AccountRecord{
		Address:         "7EcDhSYGxXyscszYEp35KHN8vvw3svAuLKTzXwCFLtV",
		Position:        0,
		DerivationIndex: 0,
		DerivationPath:  "m/44'/501'/0'/0'",
		Label:           "main",
	}
	if err := store.ReplaceAccounts([]*AccountRecord{acct}); err != nil {
		t.Fatalf("ReplaceAccounts() error = %v", err)
	}

	acct.Label = "renamed"
	if err := store.ReplaceAccounts([]*AccountRecord{acct}); err != nil {
		t.Fatalf("ReplaceAccounts() update error = %v", err)
	}

	accts, err := store.ListAccounts()
	if err != nil {
		t.Fatalf("ListAccounts() error = %v", err)
	}
	if len(accts) != 1 {
		t.Fatalf("ListAccounts() = %d rows, want 1", len(accts))
	}
	got := accts[0]
	if got.Label != "renamed" || got.DerivationPath != acct.DerivationPath || got.CreatedAt.IsZero() {
		t.Errorf("ListAccounts()[0] = %+v", got)
	}
}

func TestReplaceAccounts(t *testing.T) {
	store := newTestStorage(t)

	first := []*AccountRecord{
		{Address: "A", Position: 0, DerivationPath: "m/44'/501'/0'/0'"},
		{Address: "B", Position: 1, DerivationIndex: 1, DerivationPath: "m/44'/501'/1'/0'"},
	}
	if err := store.ReplaceAccounts(first); err != nil {
		t.Fatalf("ReplaceAccounts() error = %v", err)
	}

	second := []*AccountRecord{
		{Address: "B", Position: 0, DerivationIndex: 1, DerivationPath: "m/44'/501'/1'/0'"},
	}
	if err := store.ReplaceAccounts(second); err != nil {
		t.Fatalf("ReplaceAccounts() error = %v", err)
	}

	accts, err := store.ListAccounts()
	if err != nil {
		t.Fatalf("ListAccounts() error = %v", err)
	}
	if len(accts) != 1 || accts[0].Address != "B" || accts[0].Position != 0 {
		t.Errorf("ListAccounts() = %+v", accts)
	}
}

func TestBalances(t *testing.T) {
	store := newTestStorage(t)

	if _, err := store.GetBalance("A", NativeMint); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBalance() before save error = %v, want ErrNotFound", err)
	}

	if err := store.SaveBalance(&Balance{Address: "A", Mint: NativeMint, Amount: 2_000_000_000, Decimals: 9}); err != nil {
		t.Fatalf("SaveBalance() error = %v", err)
	}
	if err := store.SaveBalance(&Balance{Address: "A", Mint: "M", Amount: 500, Decimals: 2, TokenAccount: "ATA"}); err != nil {
		t.Fatalf("SaveBalance() error = %v", err)
	}

	b, err := store.GetBalance("A", NativeMint)
	if err != nil {
		t.Fatalf("GetBalance() error = %v", err)
	}
	if b.Amount != 2_000_000_000 || b.Decimals != 9 {
		t.Errorf("GetBalance() = %+v", b)
	}

	if err := store.DebitBalance("A", NativeMint, 500_000_000); err != nil {
		t.Fatalf("DebitBalance() error = %v", err)
	}
	b, _ = store.GetBalance("A", NativeMint)
	if b.Amount != 1_500_000_000 {
		t.Errorf("after debit amount = %d, want 1500000000", b.Amount)
	}

	if err := store.DebitBalance("A", "M", 1000); err != nil {
		t.Fatalf("DebitBalance() error = %v", err)
	}
	b, _ = store.GetBalance("A", "M")
	if b.Amount != 0 {
		t.Errorf("overdebit amount = %d, want 0", b.Amount)
	}

	list, err := store.ListBalances("A")
	if err != nil {
		t.Fatalf("ListBalances() error = %v", err)
	}
	if len(list) != 2 || list[0].Mint != NativeMint {
		t.Errorf("ListBalances() = %+v", list)
	}

	if err := store.DebitBalance("A", "missing", 1); err != nil {
		t.Errorf("DebitBalance(missing) error = %v", err)
	}
}

func TestBalancesFullUint64Range(t *testing.T) {
	store := newTestStorage(t)

	tests := []struct {
		name   string
		amount uint64
	}{
		{"zero", 0},
		{"max int64", math.MaxInt64},
		{"above int64", math.MaxInt64 + 1},
		{"max uint64", math.MaxUint64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.SaveBalance(&Balance{Address: "A", Mint: "M", Amount: tt.amount, Decimals: 6}); err != nil {
				t.Fatalf("SaveBalance() error = %v", err)
			}
			b, err := store.GetBalance("A", "M")
			if err != nil {
				t.Fatalf("GetBalance() error = %v", err)
			}
			if b.Amount != tt.amount {
				t.Errorf("Amount = %d, want %d", b.Amount, tt.amount)
			}
		})
	}

	if err := store.DebitBalance("A", "M", 1); err != nil {
		t.Fatalf("DebitBalance() error = %v", err)
	}
	b, _ := store.GetBalance("A", "M")
	if b.Amount != math.MaxUint64-1 {
		t.Errorf("after debit amount = %d, want %d", b.Amount, uint64(math.MaxUint64-1))
	}
}

func TestReplaceTokenBalances(t *testing.T) {
	store := newTestStorage(t)

	if _, err := store.TokensSyncedAt("A"); !errors.Is(err, ErrNotFound) {
		t.Errorf("TokensSyncedAt() before sync error = %v, want ErrNotFound", err)
	}

	if err := store.SaveBalance(&Balance{Address: "A", Mint: NativeMint, Amount: 7, Decimals: 9}); err != nil {
		t.Fatalf("SaveBalance() error = %v", err)
	}
	first := []*Balance{
		{Mint: "M1", Amount: 1, Decimals: 6},
		{Mint: "M2", Amount: 2, Decimals: 6},
	}
	if err := store.ReplaceTokenBalances("A", first); err != nil {
		t.Fatalf("ReplaceTokenBalances() error = %v", err)
	}
	if err := store.ReplaceTokenBalances("A", []*Balance{{Mint: "M2", Amount: 5, Decimals: 6}}); err != nil {
		t.Fatalf("ReplaceTokenBalances() second error = %v", err)
	}

	list, err := store.ListBalances("A")
	if err != nil {
		t.Fatalf("ListBalances() error = %v", err)
	}
	if len(list) != 2 || list[0].Mint != NativeMint || list[0].Amount != 7 || list[1].Mint != "M2" || list[1].Amount != 5 {
		t.Errorf("ListBalances() = %+v", list)
	}
	if _, err := store.GetBalance("A", "M1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBalance(M1) error = %v, want ErrNotFound", err)
	}

	synced, err := store.TokensSyncedAt("A")
	if err != nil {
		t.Fatalf("TokensSyncedAt() error = %v", err)
	}
	if time.Since(synced) > time.Minute {
		t.Errorf("TokensSyncedAt() = %v", synced)
	}
}

func TestMigrateIntegerBalances(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "klingsol-storage-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	db, err := sql.Open("sqlite3", filepath.Join(tmpDir, DatabaseFileName))
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	_, err = db.Exec(`
		CREATE TABLE balances (
			address TEXT NOT NULL,
			mint TEXT NOT NULL DEFAULT '',
			amount INTEGER NOT NULL,
			decimals INTEGER NOT NULL,
			token_account TEXT,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (address, mint)
		);
		INSERT INTO balances VALUES ('A', '', 5, 9, NULL, 0);
		CREATE TABLE settings (key TEXT PRIMARY KEY, value TEXT, updated_at INTEGER);
		INSERT INTO settings VALUES ('tokens_synced:A', '1', 0);
	`)
	db.Close()
	if err != nil {
		t.Fatalf("failed to create old schema: %v", err)
	}

	store, err := New(&Config{DataDir: tmpDir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()

	var colType string
	if err := store.db.QueryRow("SELECT type FROM pragma_table_info('balances') WHERE name = 'amount'").Scan(&colType); err != nil {
		t.Fatalf("pragma_table_info error = %v", err)
	}
	if colType != "TEXT" {
		t.Errorf("amount column type = %s, want TEXT", colType)
	}
	if _, err := store.GetBalance("A", NativeMint); !errors.Is(err, ErrNotFound) {
		t.Errorf("old snapshot survived migration: %v", err)
	}
	if _, err := store.TokensSyncedAt("A"); !errors.Is(err, ErrNotFound) {
		t.Errorf("TokensSyncedAt() after migration error = %v, want ErrNotFound", err)
	}
	if err := store.SaveBalance(&Balance{Address: "A", Mint: "M", Amount: math.MaxUint64}); err != nil {
		t.Errorf("SaveBalance(max) after migration error = %v", err)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	store := newTestStorage(t)

	tx := &Transaction{
		Signature: "sig1",
		Kind:      TxKindSend,
		From:      "A",
		To:        "B",
		Amount:    1000,
		Decimals:  9,
		Memo:      "rent",
	}
	if err := store.CreateTransaction(tx); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	if tx.ID == "" {
		t.Fatal("CreateTransaction() did not assign an ID")
	}
	if tx.Status != TxStatusPending {
		t.Errorf("Status = %s, want pending", tx.Status)
	}

	pending, err := store.ListPendingTransactions()
	if err != nil {
		t.Fatalf("ListPendingTransactions() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("ListPendingTransactions() = %d rows, want 1", len(pending))
	}

	if err := store.MarkTransactionConfirmed(tx.ID, 42); err != nil {
		t.Fatalf("MarkTransactionConfirmed() error = %v", err)
	}

	got, err := store.GetTransactionBySignature("sig1")
	if err != nil {
		t.Fatalf("GetTransactionBySignature() error = %v", err)
	}
	if got.Status != TxStatusConfirmed || got.Slot != 42 || got.ConfirmedAt == nil {
		t.Errorf("confirmed tx = %+v", got)
	}
	if got.Memo != "rent" {
		t.Errorf("Memo = %q, want rent", got.Memo)
	}

	if err := store.MarkTransactionFailed("missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkTransactionFailed(missing) error = %v, want ErrNotFound", err)
	}
}

func TestListTransactions(t *testing.T) {
	store := newTestStorage(t)

	base := time.Now().Add(-time.Hour)
	for i, tc := range []struct{ from, to string }{{"A", "B"}, {"B", "A"}, {"C", "D"}, {"A", ""}} {
		tx := &Transaction{
			Signature: "sig" + string(rune('0'+i)),
			Kind:      TxKindSend,
			From:      tc.from,
			To:        tc.to,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.CreateTransaction(tx); err != nil {
			t.Fatalf("CreateTransaction() error = %v", err)
		}
	}

	txs, err := store.ListTransactions("A", 0)
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("ListTransactions(A) = %d rows, want 3", len(txs))
	}
	if txs[0].Signature != "sig3" {
		t.Errorf("newest first: got %s", txs[0].Signature)
	}

	txs, _ = store.ListTransactions("A", 2)
	if len(txs) != 2 {
		t.Errorf("ListTransactions(A, 2) = %d rows", len(txs))
	}
}

func TestExpirePendingTransactions(t *testing.T) {
	store := newTestStorage(t)

	old := &Transaction{Signature: "old", Kind: TxKindSend, From: "A", CreatedAt: time.Now().Add(-time.Hour)}
	fresh := &Transaction{Signature: "fresh", Kind: TxKindSend, From: "A"}
	for _, tx := range []*Transaction{old, fresh} {
		if err := store.CreateTransaction(tx); err != nil {
			t.Fatalf("CreateTransaction() error = %v", err)
		}
	}

	n, err := store.ExpirePendingTransactions(time.Now().Add(-10 * time.Minute))
	if err != nil {
		t.Fatalf("ExpirePendingTransactions() error = %v", err)
	}
	if n != 1 {
		t.Errorf("expired %d, want 1", n)
	}

	stats, err := store.TransactionStats()
	if err != nil {
		t.Fatalf("TransactionStats() error = %v", err)
	}
	if stats[TxStatusFailed] != 1 || stats[TxStatusPending] != 1 {
		t.Errorf("TransactionStats() = %v", stats)
	}
}

func TestMintedTokens(t *testing.T) {
	store := newTestStorage(t)

	tok := &MintedToken{
		Mint:            "MINT",
		Authority:       "A",
		Name:            "OPOS",
		Symbol:          "OPOS",
		Description:     "Only Possible On Solana",
		Decimals:        9,
		TokenAccount:    "ATA",
		CreateSignature: "sig-create",
	}
	if err := store.SaveMintedToken(tok); err != nil {
		t.Fatalf("SaveMintedToken() error = %v", err)
	}

	tok.Supply = 100_000_000_000
	tok.MintSignature = "sig-mint"
	if err := store.SaveMintedToken(tok); err != nil {
		t.Fatalf("SaveMintedToken() update error = %v", err)
	}

	list, err := store.ListMintedTokens("A")
	if err != nil {
		t.Fatalf("ListMintedTokens() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListMintedTokens(A) = %d", len(list))
	}
	if got := list[0]; got.Supply != 100_000_000_000 || got.MintSignature != "sig-mint" {
		t.Errorf("ListMintedTokens()[0] = %+v", got)
	}

	big := &MintedToken{Mint: "BIG", Authority: "A", Name: "Big", Symbol: "BIG", Supply: math.MaxUint64, TokenAccount: "ATA2", CreateSignature: "sig-big"}
	if err := store.SaveMintedToken(big); err != nil {
		t.Fatalf("SaveMintedToken(max supply) error = %v", err)
	}
	list, _ = store.ListMintedTokens("")
	if len(list) != 2 {
		t.Fatalf("ListMintedTokens() = %d, want 2", len(list))
	}
	for _, tok := range list {
		if tok.Mint == "BIG" && tok.Supply != math.MaxUint64 {
			t.Errorf("max supply = %d", tok.Supply)
		}
	}

	list, _ = store.ListMintedTokens("other")
	if len(list) != 0 {
		t.Errorf("ListMintedTokens(other) = %d", len(list))
	}
}

func TestSettingsAndNetwork(t *testing.T) {
	store := newTestStorage(t)

	if _, err := store.GetSetting("x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSetting(x) error = %v, want ErrNotFound", err)
	}

	if err := store.CheckNetwork("devnet"); err != nil {
		t.Fatalf("CheckNetwork(devnet) first use error = %v", err)
	}
	if err := store.CheckNetwork("devnet"); err != nil {
		t.Errorf("CheckNetwork(devnet) again error = %v", err)
	}
	if err := store.CheckNetwork("mainnet"); err == nil {
		t.Error("CheckNetwork(mainnet) expected mismatch error")
	}
}
