package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// NativeMint is the mint value used for SOL balances.
const NativeMint = ""

// Balance is the last observed balance of an address for one mint.
type Balance struct {
	Address      string    `json:"address"`
	Mint         string    `json:"mint"`
	Amount       uint64    `json:"amount"`
	Decimals     uint8     `json:"decimals"`
	TokenAccount string    `json:"tokenAccount,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// SaveBalance saves or updates a balance snapshot.
func (s *Storage) SaveBalance(b *Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return saveBalance(s.db, b)
}

func saveBalance(db execer, b *Balance) error {
	updated := b.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err := db.Exec(`
		INSERT INTO balances (address, mint, amount, decimals, token_account, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(address, mint) DO UPDATE SET
			amount = excluded.amount,
			decimals = excluded.decimals,
			token_account = excluded.token_account,
			updated_at = excluded.updated_at
	`, b.Address, b.Mint, formatAmount(b.Amount), b.Decimals, b.TokenAccount, updated.Unix())
	if err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return nil
}

// ReplaceTokenBalances swaps the token snapshots of address for balances in
// one transaction. Mints missing from balances are dropped, the SOL snapshot
// is kept, and the sync time returned by TokensSyncedAt is updated.
func (s *Storage) ReplaceTokenBalances(address string, balances []*Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM balances WHERE address = ? AND mint != ''", address); err != nil {
		return fmt.Errorf("failed to clear token balances: %w", err)
	}
	for _, b := range balances {
		if b.Mint == NativeMint {
			continue
		}
		b.Address = address
		if err := saveBalance(tx, b); err != nil {
			return err
		}
	}
	if err := setSetting(tx, tokensSyncedKey(address), strconv.FormatInt(time.Now().Unix(), 10)); err != nil {
		return err
	}

	return tx.Commit()
}

// TokensSyncedAt returns when the token snapshots of address were last
// replaced, or ErrNotFound if they never were.
func (s *Storage) TokensSyncedAt(address string) (time.Time, error) {
	value, err := s.GetSetting(tokensSyncedKey(address))
	if err != nil {
		return time.Time{}, err
	}
	unix, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid token sync time %q: %w", value, err)
	}
	return time.Unix(unix, 0), nil
}

func tokensSyncedKey(address string) string {
	return SettingTokensSyncedPrefix + address
}

// GetBalance retrieves the snapshot for address and mint.
func (s *Storage) GetBalance(address, mint string) (*Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT address, mint, amount, decimals, token_account, updated_at
		FROM balances WHERE address = ? AND mint = ?
	`, address, mint)
	return scanBalance(row)
}

// ListBalances returns all snapshots for address, SOL first.
func (s *Storage) ListBalances(address string) ([]*Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT address, mint, amount, decimals, token_account, updated_at
		FROM balances WHERE address = ? ORDER BY mint
	`, address)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer rows.Close()

	var out []*Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// DebitBalance lowers a snapshot after a submission, flooring at zero.
// A missing snapshot is left alone.
func (s *Storage) DebitBalance(address, mint string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRow("SELECT amount FROM balances WHERE address = ? AND mint = ?", address, mint).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	}
	current, err := parseAmount(raw)
	if err != nil {
		return err
	}

	remaining := uint64(0)
	if current > amount {
		remaining = current - amount
	}
	if _, err := tx.Exec(`
		UPDATE balances SET amount = ?, updated_at = ?
		WHERE address = ? AND mint = ?
	`, formatAmount(remaining), time.Now().Unix(), address, mint); err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}

	return tx.Commit()
}

func scanBalance(row scanner) (*Balance, error) {
	var b Balance
	var amount string
	var tokenAccount sql.NullString
	var updatedAt int64

	err := row.Scan(&b.Address, &b.Mint, &amount, &b.Decimals, &tokenAccount, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan balance: %w", err)
	}

	if b.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	b.TokenAccount = tokenAccount.String
	b.UpdatedAt = time.Unix(updatedAt, 0)
	return &b, nil
}

// Amounts are stored as decimal text; sqlite integers are signed 64-bit.
func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseAmount(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid stored amount %q: %w", s, err)
	}
	return v, nil
}
