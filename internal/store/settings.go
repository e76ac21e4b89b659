package store

import "netbill.id/panel/pkg/database"

type SettingsStore struct {
	db *database.DB
}

func NewSettingsStore(db *database.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the setting value, or fallback when the key is absent or
// empty. Engine code never fails on a missing setting.
func (s *SettingsStore) Get(key, fallback string) string {
	var value string
	err := s.db.QueryRow("SELECT COALESCE(value, '') FROM settings WHERE key = $1", key).Scan(&value)
	if err != nil || value == "" {
		return fallback
	}
	return value
}
