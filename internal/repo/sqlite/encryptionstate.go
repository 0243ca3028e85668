package sqlite

import (
	"database/sql"
	"fmt"

	"go.klb.dev/unisync/internal/security"
)

// EncryptionStatePort implements security.EncryptionStatePort over the
// single-row encryption_state table.
type EncryptionStatePort struct {
	DB *sql.DB
}

func (p *EncryptionStatePort) LoadState() (security.EncryptionState, error) {
	var state string
	err := p.DB.QueryRow(`SELECT state FROM encryption_state WHERE id = 1`).Scan(&state)
	if err == sql.ErrNoRows {
		return security.EncryptionStateUninitialized, nil
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: load encryption state: %w", err)
	}
	return security.EncryptionState(state), nil
}

func (p *EncryptionStatePort) PersistInitialized() error {
	_, err := p.DB.Exec(
		`INSERT INTO encryption_state (id, state) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET state = excluded.state`,
		string(security.EncryptionStateInitialized),
	)
	if err != nil {
		return fmt.Errorf("sqlite: persist initialized: %w", err)
	}
	return nil
}
