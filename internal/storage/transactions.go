package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TxStatus is the lifecycle state of a submitted transaction.
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
)

// TxKind says which wallet operation produced a transaction.
type TxKind string

const (
	TxKindSend     TxKind = "send"
	TxKindWithdraw TxKind = "withdraw"
	TxKindDeposit  TxKind = "deposit"
	TxKindMint     TxKind = "mint"
	TxKindSwap     TxKind = "swap"
	TxKindAirdrop  TxKind = "airdrop"
)

// Transaction is one submitted transaction in the activity log.
type Transaction struct {
	ID        string   `json:"id"`
	Signature string   `json:"signature"`
	Kind      TxKind   `json:"kind"`
	Status    TxStatus `json:"status"`

	From     string `json:"from"`
	To       string `json:"to,omitempty"`
	Mint     string `json:"mint,omitempty"`
	Amount   uint64 `json:"amount"`
	Decimals uint8  `json:"decimals"`
	Memo     string `json:"memo,omitempty"`

	Slot         uint64 `json:"slot,omitempty"`
	ErrorMessage string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
}

const txColumns = `id, signature, kind, status, from_address, to_address, mint, amount, decimals, memo,
	slot, error_message, created_at, updated_at, confirmed_at`

// CreateTransaction inserts a transaction. ID, status and timestamps are
// filled in when empty.
func (s *Storage) CreateTransaction(tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.Status == "" {
		tx.Status = TxStatusPending
	}
	now := time.Now()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO transactions (
			id, signature, kind, status, from_address, to_address, mint, amount, decimals, memo,
			slot, error_message, created_at, updated_at, confirmed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		tx.ID, tx.Signature, tx.Kind, tx.Status,
		tx.From, tx.To, tx.Mint, formatAmount(tx.Amount), tx.Decimals, tx.Memo,
		tx.Slot, tx.ErrorMessage,
		tx.CreatedAt.Unix(), tx.UpdatedAt.Unix(), timeToUnixOrNull(tx.ConfirmedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetTransactionBySignature retrieves a transaction by its signature.
func (s *Storage) GetTransactionBySignature(sig string) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow("SELECT "+txColumns+" FROM transactions WHERE signature = ?", sig)
	return scanTransaction(row)
}

// ListTransactions returns the activity of address, newest first.
// Transactions where address is sender or recipient are both included.
func (s *Storage) ListTransactions(address string, limit int) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + txColumns + ` FROM transactions
		WHERE from_address = ? OR to_address = ?
		ORDER BY created_at DESC, rowid DESC`
	args := []interface{}{address, address}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return s.queryTransactions(query, args...)
}

// ListPendingTransactions returns transactions awaiting confirmation, oldest first.
func (s *Storage) ListPendingTransactions() ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryTransactions("SELECT "+txColumns+" FROM transactions WHERE status = ? ORDER BY created_at", TxStatusPending)
}

func (s *Storage) queryTransactions(query string, args ...interface{}) ([]*Transaction, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// MarkTransactionConfirmed marks a transaction as confirmed at slot.
func (s *Storage) MarkTransactionConfirmed(id string, slot uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	res, err := s.db.Exec(`
		UPDATE transactions
		SET status = 'confirmed', slot = ?, updated_at = ?, confirmed_at = ?
		WHERE id = ?
	`, slot, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to confirm transaction: %w", err)
	}
	return requireRow(res)
}

// MarkTransactionFailed marks a transaction as failed with a reason.
func (s *Storage) MarkTransactionFailed(id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE transactions
		SET status = 'failed', error_message = ?, updated_at = ?
		WHERE id = ?
	`, reason, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to fail transaction: %w", err)
	}
	return requireRow(res)
}

// ExpirePendingTransactions fails pending transactions created before cutoff
// and returns how many were expired.
func (s *Storage) ExpirePendingTransactions(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE transactions
		SET status = 'failed', error_message = 'expired without confirmation', updated_at = ?
		WHERE status = 'pending' AND created_at < ?
	`, time.Now().Unix(), cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to expire transactions: %w", err)
	}
	return res.RowsAffected()
}

// TransactionStats returns the number of transactions per status.
func (s *Storage) TransactionStats() (map[TxStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT status, COUNT(*) FROM transactions GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[TxStatus]int)
	for rows.Next() {
		var status TxStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTransaction(row scanner) (*Transaction, error) {
	var tx Transaction
	var amount string
	var to, memo, errMsg sql.NullString
	var slot, confirmedAt sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&tx.ID, &tx.Signature, &tx.Kind, &tx.Status,
		&tx.From, &to, &tx.Mint, &amount, &tx.Decimals, &memo,
		&slot, &errMsg, &createdAt, &updatedAt, &confirmedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	if tx.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	tx.To = to.String
	tx.Memo = memo.String
	tx.ErrorMessage = errMsg.String
	if slot.Valid {
		tx.Slot = uint64(slot.Int64)
	}
	tx.CreatedAt = time.Unix(createdAt, 0)
	tx.UpdatedAt = time.Unix(updatedAt, 0)
	tx.ConfirmedAt = nullTime(confirmedAt)

	return &tx, nil
}
