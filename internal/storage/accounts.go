package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// AccountRecord is the public part of a wallet account.
type AccountRecord struct {
	Address         string    `json:"address"`
	Position        int       `json:"position"`
	DerivationIndex uint32    `json:"derivationIndex"`
	DerivationPath  string    `json:"derivationPath"`
	Label           string    `json:"label,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func saveAccount(db execer, acct *AccountRecord) error {
	created := acct.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := db.Exec(`
		INSERT INTO accounts (address, position, derivation_index, derivation_path, label, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			position = excluded.position,
			derivation_index = excluded.derivation_index,
			derivation_path = excluded.derivation_path,
			label = excluded.label
	`,
		acct.Address,
		acct.Position,
		acct.DerivationIndex,
		acct.DerivationPath,
		acct.Label,
		created.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// ReplaceAccounts replaces the whole account table in one transaction,
// so positions always match the keystore's record order.
func (s *Storage) ReplaceAccounts(accts []*AccountRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM accounts"); err != nil {
		return fmt.Errorf("failed to clear accounts: %w", err)
	}
	for _, acct := range accts {
		if err := saveAccount(tx, acct); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListAccounts returns all accounts ordered by position.
func (s *Storage) ListAccounts() ([]*AccountRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT address, position, derivation_index, derivation_path, label, created_at
		FROM accounts ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accts []*AccountRecord
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accts = append(accts, acct)
	}
	return accts, rows.Err()
}

// Helper functions

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row scanner) (*AccountRecord, error) {
	var acct AccountRecord
	var label sql.NullString
	var createdAt int64

	err := row.Scan(
		&acct.Address,
		&acct.Position,
		&acct.DerivationIndex,
		&acct.DerivationPath,
		&label,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	acct.Label = label.String
	acct.CreatedAt = time.Unix(createdAt, 0)
	return &acct, nil
}

func timeToUnixOrNull(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.Unix()
}

func nullTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}
