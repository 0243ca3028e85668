// Package pairing implements the pairing protocol state machine as a pure
// function of (state, event, now), plus the orchestrator that drives it, the
// short-code/PIN derivations, and the pairing wire message types.
package pairing

import (
	"time"

	"go.klb.dev/unisync/internal/trust"
)

// Role distinguishes the two sides of a pairing exchange.
type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

// StateKind enumerates the state machine's states.
type StateKind int

const (
	Idle StateKind = iota
	WaitingForRequest
	WaitingForChallenge
	WaitingUserVerification
	ResponseSent
	WaitingForResponse
	PersistingTrust
	Paired
	Failed
	Cancelled
)

func (k StateKind) String() string {
	names := [...]string{
		"Idle", "WaitingForRequest", "WaitingForChallenge",
		"WaitingUserVerification", "ResponseSent", "WaitingForResponse",
		"PersistingTrust", "Paired", "Failed", "Cancelled",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// IsTerminal reports whether a state is Paired, Failed, or Cancelled.
func (k StateKind) IsTerminal() bool {
	return k == Paired || k == Failed || k == Cancelled
}

// State is the pure value owned and mutated only via Transition.
type State struct {
	Kind StateKind

	SessionID string
	Role      Role
	Attempt   int

	// WaitingUserVerification fields.
	ShortCode       string
	PeerFingerprint string
	PeerName        string
	ExpiresAt       time.Time

	// Terminal fields.
	PeerDeviceID string
	Reason       string
	By           string

	// Carried across transitions so later steps can build messages and
	// persist trust without a side lookup: local/peer identity captured at
	// Request/Challenge time.
	Transcript Transcript

	PairedDevice *trust.PairedDevice
}

// Transcript accumulates everything both sides need to derive the same
// short_code and to persist a PairedDevice at the end.
type Transcript struct {
	LocalDeviceID    string
	LocalDeviceName  string
	LocalPubkey      []byte
	LocalNonce       []byte
	PeerID           string // network-layer peer id (libp2p peer.ID string)
	PeerDeviceID     string
	PeerDeviceName   string
	PeerPubkey       []byte
	PeerNonce        []byte
	ProtocolVersion  int
	PIN              string // responder-generated, never sent in the clear
	PINHash          []byte // 49-byte encoded pin hash, as sent by the initiator
}

// TimerKind enumerates the per-step timers the orchestrator must arm/cancel.
type TimerKind int

const (
	TimerWaitingChallenge TimerKind = iota
	TimerWaitingResponse
	TimerWaitingConfirm
	TimerUserVerification
)

func (k TimerKind) String() string {
	switch k {
	case TimerWaitingChallenge:
		return "WaitingChallenge"
	case TimerWaitingResponse:
		return "WaitingResponse"
	case TimerWaitingConfirm:
		return "WaitingConfirm"
	case TimerUserVerification:
		return "UserVerification"
	default:
		return "Unknown"
	}
}

// EventKind enumerates the events the machine reacts to.
type EventKind int

const (
	EvStartPairing EventKind = iota
	EvRecvRequest
	EvRecvChallenge
	EvRecvResponse
	EvRecvConfirm
	EvRecvReject
	EvRecvCancel
	EvRecvBusy
	EvUserAccept
	EvUserReject
	EvUserCancel
	EvTimeout
	EvTransportError
	EvPersistOk
	EvPersistErr
)

// Event is the single input type to Transition. Only the fields relevant to
// Kind are read.
type Event struct {
	Kind EventKind
	Now  time.Time

	// EvStartPairing
	Role   Role
	PeerID string

	// EvRecvRequest / EvRecvChallenge / EvRecvResponse / EvRecvConfirm
	Request   *RequestMessage
	Challenge *ChallengeMessage
	Response  *ResponseMessage
	Confirm   *ConfirmMessage

	// EvUserAccept, responder side generating a Challenge, or initiator side
	// confirming short-code match.
	LocalDeviceID   string
	LocalDeviceName string
	LocalPubkey     []byte
	LocalNonce      []byte
	PIN             string // responder: the PIN to embed in Challenge
	ProtocolVersion int

	// EvTimeout
	TimeoutKind TimerKind

	// EvPersistErr
	Err error

	// EvUserCancel / EvUserReject
	By string
}

// ActionKind enumerates side effects the orchestrator must execute.
type ActionKind int

const (
	ActSend ActionKind = iota
	ActStartTimer
	ActCancelTimer
	ActShowVerification
	ActPersistPairedDevice
	ActEmitResult
	ActLogTransition
	ActNoOp
)

// Action is one side effect emitted by a transition.
type Action struct {
	Kind ActionKind

	PeerID  string
	Message Message

	SessionID string
	TimerKind TimerKind
	Deadline  time.Time

	ShortCode string
	LocalFP   string
	PeerFP    string
	PeerName  string

	Device trust.PairedDevice

	Success bool
	Error   string

	From, To StateKind
}
