package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"go.klb.dev/unisync/internal/trust"
)

// PairedDeviceRepository implements trust.PairedDeviceRepository.
type PairedDeviceRepository struct {
	DB *sql.DB
}

func (r *PairedDeviceRepository) GetByPeerID(peerID string) (trust.PairedDevice, bool, error) {
	row := r.DB.QueryRow(
		`SELECT peer_id, pairing_state, identity_fingerprint, paired_at, last_seen_at FROM paired_device WHERE peer_id = ?`, peerID)
	d, err := scanPairedDevice(row)
	if err == sql.ErrNoRows {
		return trust.PairedDevice{}, false, nil
	}
	if err != nil {
		return trust.PairedDevice{}, false, fmt.Errorf("sqlite: get paired device: %w", err)
	}
	return d, true, nil
}

func (r *PairedDeviceRepository) ListAll() ([]trust.PairedDevice, error) {
	rows, err := r.DB.Query(`SELECT peer_id, pairing_state, identity_fingerprint, paired_at, last_seen_at FROM paired_device`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list paired devices: %w", err)
	}
	defer rows.Close()

	var out []trust.PairedDevice
	for rows.Next() {
		d, err := scanPairedDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *PairedDeviceRepository) Upsert(device trust.PairedDevice) error {
	_, err := r.DB.Exec(
		`INSERT INTO paired_device (peer_id, pairing_state, identity_fingerprint, paired_at, last_seen_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(peer_id) DO UPDATE SET pairing_state=excluded.pairing_state, identity_fingerprint=excluded.identity_fingerprint,
		   paired_at=excluded.paired_at, last_seen_at=excluded.last_seen_at`,
		device.PeerID, string(device.PairingState), device.IdentityFingerprint, device.PairedAt.UnixMilli(), device.LastSeenAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upsert paired device: %w", err)
	}
	return nil
}

func (r *PairedDeviceRepository) SetState(peerID string, state trust.PairingState) error {
	_, err := r.DB.Exec(`UPDATE paired_device SET pairing_state = ? WHERE peer_id = ?`, string(state), peerID)
	if err != nil {
		return fmt.Errorf("sqlite: set pairing state: %w", err)
	}
	return nil
}

func (r *PairedDeviceRepository) UpdateLastSeen(peerID string, at time.Time) error {
	_, err := r.DB.Exec(`UPDATE paired_device SET last_seen_at = ? WHERE peer_id = ?`, at.UnixMilli(), peerID)
	if err != nil {
		return fmt.Errorf("sqlite: update last seen: %w", err)
	}
	return nil
}

func (r *PairedDeviceRepository) Delete(peerID string) error {
	_, err := r.DB.Exec(`DELETE FROM paired_device WHERE peer_id = ?`, peerID)
	if err != nil {
		return fmt.Errorf("sqlite: delete paired device: %w", err)
	}
	return nil
}

func scanPairedDevice(row rowScanner) (trust.PairedDevice, error) {
	var d trust.PairedDevice
	var state string
	var pairedAt, lastSeenAt int64
	if err := row.Scan(&d.PeerID, &state, &d.IdentityFingerprint, &pairedAt, &lastSeenAt); err != nil {
		return trust.PairedDevice{}, err
	}
	d.PairingState = trust.PairingState(state)
	d.PairedAt = time.UnixMilli(pairedAt)
	d.LastSeenAt = time.UnixMilli(lastSeenAt)
	return d, nil
}
