package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"go.klb.dev/unisync/internal/security"
)

// KeyslotRepository persists the single KeySlot document as a JSON blob,
// the SQL-backed half of security.KeyMaterialPort.
type KeyslotRepository struct {
	DB *sql.DB
}

func (r *KeyslotRepository) LoadKeyslot() (security.KeySlot, error) {
	var doc string
	err := r.DB.QueryRow(`SELECT document FROM key_slot WHERE id = 1`).Scan(&doc)
	if err != nil {
		return security.KeySlot{}, fmt.Errorf("sqlite: load keyslot: %w", err)
	}
	var slot security.KeySlot
	if err := json.Unmarshal([]byte(doc), &slot); err != nil {
		return security.KeySlot{}, fmt.Errorf("sqlite: decode keyslot: %w", err)
	}
	return slot, nil
}

func (r *KeyslotRepository) StoreKeyslot(slot security.KeySlot) error {
	doc, err := json.Marshal(slot)
	if err != nil {
		return fmt.Errorf("sqlite: encode keyslot: %w", err)
	}
	_, err = r.DB.Exec(
		`INSERT INTO key_slot (id, document) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET document = excluded.document`,
		string(doc),
	)
	if err != nil {
		return fmt.Errorf("sqlite: store keyslot: %w", err)
	}
	return nil
}

func (r *KeyslotRepository) DeleteKeyslot() error {
	_, err := r.DB.Exec(`DELETE FROM key_slot WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("sqlite: delete keyslot: %w", err)
	}
	return nil
}
