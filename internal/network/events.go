package network

import (
	"github.com/libp2p/go-libp2p/core/peer"

	"go.klb.dev/unisync/internal/trust"
)

// EventKind enumerates the events the adapter emits on its Events channel.
type EventKind int

const (
	EventPeerDiscovered EventKind = iota
	EventPeerLost
	EventPeerReady
	EventPeerNotReady
	EventPairingMessageReceived
	EventPairingFailed
	EventProtocolDenied
	EventError
)

// Direction distinguishes a stream the adapter accepted from one it dialed.
type Direction int

const (
	DirectionInbound Direction = iota
	DirectionOutbound
)

// DenyReason enumerates why a policy resolver refused a protocol stream.
type DenyReason string

const (
	DenyNotTrusted   DenyReason = "NotTrusted"
	DenyNotSupported DenyReason = "NotSupported"
	DenyRepoError    DenyReason = "RepoError"
)

// Event is the single type flowing out of Adapter.Events.
type Event struct {
	Kind EventKind

	PeerID       peer.ID
	Protocol     string
	Err          error
	PairingState trust.PairingState
	Direction    Direction
	Reason       DenyReason
}
