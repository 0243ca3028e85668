package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"go.klb.dev/unisync/internal/settings"
)

// SettingsRepository persists the single Settings document as a JSON blob,
// implementing settings.Port.
type SettingsRepository struct {
	DB *sql.DB
}

func (r *SettingsRepository) Load() (settings.Settings, error) {
	var doc string
	err := r.DB.QueryRow(`SELECT document FROM settings WHERE id = 1`).Scan(&doc)
	if err == sql.ErrNoRows {
		return settings.Default(), nil
	}
	if err != nil {
		return settings.Settings{}, fmt.Errorf("sqlite: load settings: %w", err)
	}
	var s settings.Settings
	if err := json.Unmarshal([]byte(doc), &s); err != nil {
		return settings.Settings{}, fmt.Errorf("sqlite: decode settings: %w", err)
	}
	return s, nil
}

func (r *SettingsRepository) Save(s settings.Settings) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("sqlite: encode settings: %w", err)
	}
	_, err = r.DB.Exec(
		`INSERT INTO settings (id, document) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET document = excluded.document`,
		string(doc),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save settings: %w", err)
	}
	return nil
}
