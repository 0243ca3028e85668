package network

import (
	"github.com/libp2p/go-libp2p/core/peer"

	"go.klb.dev/unisync/internal/trust"
)

// Protocol ids for the two streams the adapter multiplexes.
const (
	ProtocolPairing  = "/uc/pairing/1"
	ProtocolBusiness = "/uc/business/1"
)

// ConnectionPolicyResolver decides whether a peer may open a given protocol
// stream. The pairing protocol is always reachable (a device must be able
// to start pairing before it is trusted); the business protocol is gated
// on an existing Trusted record.
type ConnectionPolicyResolver struct {
	Devices trust.PairedDeviceRepository
}

// Decision is the outcome of a policy check, carrying enough detail for the
// caller to build a ProtocolDenied event when Allowed is false.
type Decision struct {
	Allowed      bool
	PairingState trust.PairingState
	Reason       DenyReason
}

// Allow reports whether peerID may open protocolID.
func (r *ConnectionPolicyResolver) Allow(peerID peer.ID, protocolID string) (Decision, error) {
	switch protocolID {
	case ProtocolPairing:
		return Decision{Allowed: true}, nil
	case ProtocolBusiness:
		device, found, err := r.Devices.GetByPeerID(peerID.String())
		if err != nil {
			return Decision{Allowed: false, Reason: DenyRepoError}, err
		}
		if !found {
			return Decision{Allowed: false, PairingState: trust.StatePending, Reason: DenyNotTrusted}, nil
		}
		if device.PairingState != trust.StateTrusted {
			return Decision{Allowed: false, PairingState: device.PairingState, Reason: DenyNotTrusted}, nil
		}
		return Decision{Allowed: true, PairingState: device.PairingState}, nil
	default:
		return Decision{Allowed: false, Reason: DenyNotSupported}, nil
	}
}
