package network

import (
	"errors"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"go.klb.dev/unisync/internal/trust"
)

type fakeDeviceRepository struct {
	byPeerID map[string]trust.PairedDevice
	err      error
}

func (f *fakeDeviceRepository) GetByPeerID(peerID string) (trust.PairedDevice, bool, error) {
	if f.err != nil {
		return trust.PairedDevice{}, false, f.err
	}
	d, ok := f.byPeerID[peerID]
	return d, ok, nil
}
func (f *fakeDeviceRepository) ListAll() ([]trust.PairedDevice, error) { return nil, nil }
func (f *fakeDeviceRepository) Upsert(device trust.PairedDevice) error { return nil }
func (f *fakeDeviceRepository) SetState(peerID string, state trust.PairingState) error {
	return nil
}
func (f *fakeDeviceRepository) UpdateLastSeen(peerID string, at time.Time) error { return nil }
func (f *fakeDeviceRepository) Delete(peerID string) error                      { return nil }

func TestAllowPairingAlwaysAllowed(t *testing.T) {
	r := &ConnectionPolicyResolver{Devices: &fakeDeviceRepository{}}
	d, err := r.Allow(peer.ID("peer-a"), ProtocolPairing)
	if err != nil || !d.Allowed {
		t.Fatalf("Allow(pairing) = %+v, %v; want allowed", d, err)
	}
}

func TestAllowBusinessDeniesUnknownPeerAsPending(t *testing.T) {
	r := &ConnectionPolicyResolver{Devices: &fakeDeviceRepository{byPeerID: map[string]trust.PairedDevice{}}}
	d, err := r.Allow(peer.ID("peer-a"), ProtocolBusiness)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected an unknown peer to be denied the business protocol")
	}
	if d.PairingState != trust.StatePending {
		t.Fatalf("PairingState = %q, want %q", d.PairingState, trust.StatePending)
	}
	if d.Reason != DenyNotTrusted {
		t.Fatalf("Reason = %q, want %q", d.Reason, DenyNotTrusted)
	}
}

func TestAllowBusinessDeniesRevokedPeer(t *testing.T) {
	r := &ConnectionPolicyResolver{Devices: &fakeDeviceRepository{byPeerID: map[string]trust.PairedDevice{
		"peer-a": {PeerID: "peer-a", PairingState: trust.StateRevoked},
	}}}
	d, err := r.Allow(peer.ID("peer-a"), ProtocolBusiness)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected a revoked peer to be denied the business protocol")
	}
	if d.PairingState != trust.StateRevoked {
		t.Fatalf("PairingState = %q, want %q", d.PairingState, trust.StateRevoked)
	}
}

func TestAllowBusinessAllowsTrustedPeer(t *testing.T) {
	r := &ConnectionPolicyResolver{Devices: &fakeDeviceRepository{byPeerID: map[string]trust.PairedDevice{
		"peer-a": {PeerID: "peer-a", PairingState: trust.StateTrusted},
	}}}
	d, err := r.Allow(peer.ID("peer-a"), ProtocolBusiness)
	if err != nil || !d.Allowed {
		t.Fatalf("Allow(business, trusted) = %+v, %v; want allowed", d, err)
	}
}

func TestAllowPropagatesRepositoryError(t *testing.T) {
	wantErr := errors.New("boom")
	r := &ConnectionPolicyResolver{Devices: &fakeDeviceRepository{err: wantErr}}
	d, err := r.Allow(peer.ID("peer-a"), ProtocolBusiness)
	if !errors.Is(err, wantErr) {
		t.Fatalf("Allow err = %v, want %v", err, wantErr)
	}
	if d.Allowed {
		t.Fatal("expected denial on repository error")
	}
	if d.Reason != DenyRepoError {
		t.Fatalf("Reason = %q, want %q", d.Reason, DenyRepoError)
	}
}

func TestAllowUnknownProtocolDenied(t *testing.T) {
	r := &ConnectionPolicyResolver{Devices: &fakeDeviceRepository{}}
	d, err := r.Allow(peer.ID("peer-a"), "/uc/unknown/1")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if d.Allowed || d.Reason != DenyNotSupported {
		t.Fatalf("Allow(unknown) = %+v, want denied with DenyNotSupported", d)
	}
}
