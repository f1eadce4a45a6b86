package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
)

// GetSetting returns a setting value, falling back to its default.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ensureContext(ctx), "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		if def, ok := defaultSettings[key]; ok {
			return def, nil
		}
		return "", fmt.Errorf("setting %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", persistence("get setting "+key, err)
	}
	return value, nil
}

// SetSetting stores a setting value. Only known keys are accepted.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if !slices.Contains(SettingKeys(), key) {
		return fmt.Errorf("%w: unknown setting %q", ErrInvalid, key)
	}
	_, err := s.execWithRetry(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return persistence("set setting "+key, err)
	}
	return nil
}

// Settings returns every known setting.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	values := make(map[string]string, len(defaultSettings))
	for _, key := range SettingKeys() {
		value, err := s.GetSetting(ctx, key)
		if err != nil {
			return nil, err
		}
		values[key] = value
	}
	return values, nil
}
