package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// MintedToken is a Token-2022 mint created by one of the wallet's accounts.
type MintedToken struct {
	Mint            string    `json:"mint"`
	Authority       string    `json:"authority"`
	Name            string    `json:"name"`
	Symbol          string    `json:"symbol"`
	URI             string    `json:"uri,omitempty"`
	Description     string    `json:"description,omitempty"`
	Decimals        uint8     `json:"decimals"`
	Supply          uint64    `json:"supply"`
	TokenAccount    string    `json:"tokenAccount"`
	CreateSignature string    `json:"createSignature"`
	MintSignature   string    `json:"mintSignature,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// SaveMintedToken saves or updates a minted token.
func (s *Storage) SaveMintedToken(t *MintedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := t.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO minted_tokens (
			mint, authority, name, symbol, uri, description, decimals, supply,
			token_account, create_signature, mint_signature, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(mint) DO UPDATE SET
			supply = excluded.supply,
			mint_signature = excluded.mint_signature
	`,
		t.Mint, t.Authority, t.Name, t.Symbol, t.URI, t.Description, t.Decimals, formatAmount(t.Supply),
		t.TokenAccount, t.CreateSignature, t.MintSignature, created.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save minted token: %w", err)
	}
	return nil
}

// ListMintedTokens returns tokens minted by authority, newest first.
// An empty authority lists all.
func (s *Storage) ListMintedTokens(authority string) ([]*MintedToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT mint, authority, name, symbol, uri, description, decimals, supply,
			token_account, create_signature, mint_signature, created_at
		FROM minted_tokens`
	var args []interface{}
	if authority != "" {
		query += " WHERE authority = ?"
		args = append(args, authority)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list minted tokens: %w", err)
	}
	defer rows.Close()

	var out []*MintedToken
	for rows.Next() {
		t, err := scanMintedToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanMintedToken(row scanner) (*MintedToken, error) {
	var t MintedToken
	var supply string
	var uri, desc, mintSig sql.NullString
	var createdAt int64

	err := row.Scan(
		&t.Mint, &t.Authority, &t.Name, &t.Symbol, &uri, &desc, &t.Decimals, &supply,
		&t.TokenAccount, &t.CreateSignature, &mintSig, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan minted token: %w", err)
	}

	if t.Supply, err = parseAmount(supply); err != nil {
		return nil, err
	}
	t.URI = uri.String
	t.Description = desc.String
	t.MintSignature = mintSig.String
	t.CreatedAt = time.Unix(createdAt, 0)
	return &t, nil
}
