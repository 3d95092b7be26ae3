// Package storage provides persistent storage using SQLite.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage provides persistent storage for the wallet daemon.
type Storage struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// DatabaseFileName is the SQLite file inside the data directory.
const DatabaseFileName = "klingsol.db"

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Config holds storage configuration.
type Config struct {
	DataDir string
}

// New creates a new Storage instance.
func New(cfg *Config) (*Storage, error) {
	dataDir := expandPath(cfg.DataDir)

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFileName)

	// Open database
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Storage{
		db:     db,
		dbPath: dbPath,
	}

	// Initialize schema
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Token amounts are uint64 and kept as decimal TEXT, since sqlite integers
// are signed 64-bit.
const balancesSchema = `
	-- Last observed balances. mint is '' for native SOL.
	CREATE TABLE IF NOT EXISTS balances (
		address TEXT NOT NULL,
		mint TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		decimals INTEGER NOT NULL,
		token_account TEXT,
		updated_at INTEGER NOT NULL,

		PRIMARY KEY (address, mint)
	);

	CREATE INDEX IF NOT EXISTS idx_balances_address ON balances(address);
`

// initSchema creates all database tables.
func (s *Storage) initSchema() error {
	schema := `
	-- Settings/config table
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at INTEGER
	);

	-- Public view of the keystore, readable while the wallet is locked.
	-- position is the account's index in the record list.
	CREATE TABLE IF NOT EXISTS accounts (
		address TEXT PRIMARY KEY,
		position INTEGER NOT NULL UNIQUE,
		derivation_index INTEGER NOT NULL,
		derivation_path TEXT NOT NULL,
		label TEXT,
		created_at INTEGER NOT NULL
	);

	` + balancesSchema + `

	-- Submitted transactions (send, withdraw, deposit, mint, swap, airdrop)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		signature TEXT UNIQUE NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',

		from_address TEXT NOT NULL,
		to_address TEXT,
		mint TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL DEFAULT '0',
		decimals INTEGER NOT NULL DEFAULT 9,

		slot INTEGER,
		error_message TEXT,

		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		confirmed_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status);
	CREATE INDEX IF NOT EXISTS idx_transactions_from ON transactions(from_address, created_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_to ON transactions(to_address, created_at);

	-- Token-2022 mints created by this wallet
	CREATE TABLE IF NOT EXISTS minted_tokens (
		mint TEXT PRIMARY KEY,
		authority TEXT NOT NULL,
		name TEXT NOT NULL,
		symbol TEXT NOT NULL,
		uri TEXT,
		description TEXT,
		decimals INTEGER NOT NULL,
		supply TEXT NOT NULL,
		token_account TEXT NOT NULL,
		create_signature TEXT NOT NULL,
		mint_signature TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_minted_tokens_authority ON minted_tokens(authority);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return err
	}

	// Run migrations for existing databases
	return s.runMigrations()
}

// runMigrations runs schema migrations for existing databases.
// These are ALTER TABLE statements that add columns to existing tables.
// Errors are ignored since columns may already exist.
func (s *Storage) runMigrations() error {
	migrations := []string{
		"ALTER TABLE transactions ADD COLUMN memo TEXT",
	}

	for _, migration := range migrations {
		// Ignore errors - column may already exist
		_, _ = s.db.Exec(migration)
	}

	return s.migrateBalances()
}

// migrateBalances recreates a balances table from before amounts were
// stored as TEXT. Snapshots are refetched on the next refresh.
func (s *Storage) migrateBalances() error {
	var colType string
	err := s.db.QueryRow("SELECT type FROM pragma_table_info('balances') WHERE name = 'amount'").Scan(&colType)
	if err != nil {
		return fmt.Errorf("failed to inspect balances: %w", err)
	}
	if strings.EqualFold(colType, "TEXT") {
		return nil
	}

	if _, err := s.db.Exec("DROP TABLE balances"); err != nil {
		return fmt.Errorf("failed to drop balances: %w", err)
	}
	if _, err := s.db.Exec(balancesSchema); err != nil {
		return fmt.Errorf("failed to recreate balances: %w", err)
	}
	// Token snapshots are gone, so no owner counts as synced any more
	if _, err := s.db.Exec("DELETE FROM settings WHERE key LIKE ?", SettingTokensSyncedPrefix+"%"); err != nil {
		return fmt.Errorf("failed to reset token sync markers: %w", err)
	}
	return nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}

// Path returns the database file path.
func (s *Storage) Path() string {
	return s.dbPath
}
