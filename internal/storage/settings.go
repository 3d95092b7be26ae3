package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Well-known setting keys.
const (
	// SettingNetwork pins the data directory to one cluster.
	SettingNetwork = "network"

	// SettingTokensSyncedPrefix plus an address records when that
	// address's token snapshots were last replaced.
	SettingTokensSyncedPrefix = "tokens_synced:"
)

// SetSetting stores a key/value setting.
func (s *Storage) SetSetting(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return setSetting(s.db, key, value)
}

func setSetting(db execer, key, value string) error {
	_, err := db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

// GetSetting returns a setting, or ErrNotFound.
func (s *Storage) GetSetting(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value sql.NullString
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value.String, nil
}

// CheckNetwork records network on first use and returns an error if the
// data directory was previously used with a different cluster.
func (s *Storage) CheckNetwork(network string) error {
	stored, err := s.GetSetting(SettingNetwork)
	if err == ErrNotFound {
		return s.SetSetting(SettingNetwork, network)
	}
	if err != nil {
		return err
	}
	if stored != network {
		return fmt.Errorf("data directory belongs to %s, not %s", stored, network)
	}
	return nil
}
