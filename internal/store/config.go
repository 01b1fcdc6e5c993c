package store

import (
	"database/sql"

	"github.com/agentkanban/agentkanban/internal/storeerr"
)

// GetConfigValue reads a single key from the config table. The second
// return value is false when the key is unset (not an error).
func (s *Store) GetConfigValue(key string) (string, bool, error) {
	var val string
	row := s.db.QueryRow(`SELECT value FROM config WHERE key = ?`, key)
	if err := row.Scan(&val); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, storeerr.Wrap(storeerr.ErrBackend, "get config value", err)
	}
	return val, true, nil
}

// SetConfigValue upserts a key-value config pair.
func (s *Store) SetConfigValue(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO config (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return storeerr.Wrap(storeerr.ErrBackend, "set config value", err)
	}
	return nil
}
