package pairing

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.klb.dev/unisync/internal/trust"
)

// NetworkPort is the narrow send capability the orchestrator needs from the
// network adapter; it never imports the network package itself to keep the
// dependency one-directional.
type NetworkPort interface {
	Send(ctx context.Context, peerID string, msg Message) error
}

// Identity supplies the local device's stable pairing identity.
type Identity interface {
	DeviceID() string
	DeviceName() string
	PublicKey() []byte
}

// VerificationCallback is invoked when a session reaches
// WaitingUserVerification so a UI can prompt for short-code confirmation.
type VerificationCallback func(sessionID, shortCode, peerFingerprint, peerName string)

// ResultCallback is invoked exactly once per session when it reaches a
// terminal outcome.
type ResultCallback func(sessionID string, success bool, errMsg string)

// Orchestrator owns every in-flight pairing session, dispatches inbound
// wire messages and user decisions into the pure state machine, and
// executes the resulting actions.
type Orchestrator struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry

	devices  trust.PairedDeviceRepository
	net      NetworkPort
	identity Identity
	log      *slog.Logger

	onVerify VerificationCallback
	onResult ResultCallback
}

type sessionEntry struct {
	machine    *Machine
	timers     map[TimerKind]*time.Timer
	peerID     string
	terminalAt time.Time
}

func (e *sessionEntry) noteTerminal() {
	if e.machine.Done() && e.terminalAt.IsZero() {
		e.terminalAt = time.Now()
	}
}

// NewOrchestrator wires an Orchestrator to its collaborators. onVerify and
// onResult may be nil.
func NewOrchestrator(devices trust.PairedDeviceRepository, net NetworkPort, identity Identity, log *slog.Logger, onVerify VerificationCallback, onResult ResultCallback) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		sessions: make(map[string]*sessionEntry),
		devices:  devices,
		net:      net,
		identity: identity,
		log:      log,
		onVerify: onVerify,
		onResult: onResult,
	}
}

// SetNetwork wires the send capability after construction, for callers that
// must build the orchestrator before the network adapter exists (the
// adapter needs the orchestrator as its own pairing dispatcher).
func (o *Orchestrator) SetNetwork(net NetworkPort) {
	o.mu.Lock()
	o.net = net
	o.mu.Unlock()
}

// LocalDeviceID returns the local identity's device id, the value stamped
// on captured clipboard events and outbound sync messages.
func (o *Orchestrator) LocalDeviceID() string { return o.identity.DeviceID() }

func randomNonce() []byte {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return b
}

// StartPairing begins an initiator-side session against peerID and returns
// the newly minted session id.
func (o *Orchestrator) StartPairing(ctx context.Context, peerID string) (string, error) {
	ev := Event{
		Kind:            EvStartPairing,
		Role:            RoleInitiator,
		PeerID:          peerID,
		LocalDeviceID:   o.identity.DeviceID(),
		LocalDeviceName: o.identity.DeviceName(),
		LocalPubkey:     o.identity.PublicKey(),
		LocalNonce:      randomNonce(),
	}

	o.mu.Lock()
	m := NewMachine()
	actions := m.Handle(ev)
	sid := m.State().SessionID
	if sid == "" {
		o.mu.Unlock()
		return "", fmt.Errorf("pairing: start rejected from current state")
	}
	o.sessions[sid] = &sessionEntry{machine: m, timers: make(map[TimerKind]*time.Timer), peerID: peerID}
	o.mu.Unlock()

	o.execute(ctx, sid, actions)
	return sid, nil
}

// HandleMessage routes an inbound wire message to its session, creating a
// new responder-side session on a Request.
func (o *Orchestrator) HandleMessage(ctx context.Context, peerID string, msg Message) error {
	sid := msg.SessionID()

	switch m := msg.(type) {
	case *RequestMessage:
		return o.dispatchNew(ctx, sid, peerID, Event{Kind: EvRecvRequest, PeerID: peerID, Request: m})
	case *ChallengeMessage:
		return o.dispatch(ctx, sid, Event{Kind: EvRecvChallenge, Challenge: m})
	case *ResponseMessage:
		return o.dispatch(ctx, sid, Event{Kind: EvRecvResponse, Response: m})
	case *ConfirmMessage:
		return o.dispatch(ctx, sid, Event{Kind: EvRecvConfirm, Confirm: m})
	case *RejectMessage:
		return o.dispatch(ctx, sid, Event{Kind: EvRecvReject})
	case *CancelMessage:
		return o.dispatch(ctx, sid, Event{Kind: EvRecvCancel})
	case *BusyMessage:
		return o.dispatch(ctx, sid, Event{Kind: EvRecvBusy})
	default:
		return fmt.Errorf("pairing: unknown message type")
	}
}

// UserAccept drives the responder's PIN-generation accept or the
// initiator's short-code confirmation, depending on the session's current
// state.
func (o *Orchestrator) UserAccept(ctx context.Context, sessionID string) error {
	o.mu.Lock()
	entry, ok := o.sessions[sessionID]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("pairing: unknown session %s", sessionID)
	}
	kind := entry.machine.State().Kind
	o.mu.Unlock()

	ev := Event{
		Kind:            EvUserAccept,
		LocalDeviceID:   o.identity.DeviceID(),
		LocalDeviceName: o.identity.DeviceName(),
		LocalPubkey:     o.identity.PublicKey(),
		LocalNonce:      randomNonce(),
		ProtocolVersion: ProtocolVersion,
	}

	if kind == WaitingForRequest {
		pin, err := GeneratePIN()
		if err != nil {
			return fmt.Errorf("pairing: generate pin: %w", err)
		}
		ev.PIN = pin
	} else {
		o.mu.Lock()
		ev.PIN = entry.machine.State().Transcript.PIN
		o.mu.Unlock()
	}

	return o.dispatch(ctx, sessionID, ev)
}

// UserReject cancels the short-code verification step on the initiator side.
func (o *Orchestrator) UserReject(ctx context.Context, sessionID string) error {
	return o.dispatch(ctx, sessionID, Event{Kind: EvUserReject, By: "user"})
}

// UserCancel aborts an in-flight session from any non-terminal state.
func (o *Orchestrator) UserCancel(ctx context.Context, sessionID string) error {
	return o.dispatch(ctx, sessionID, Event{Kind: EvUserCancel, By: "user"})
}

// CleanupExpiredSessions drops terminal sessions older than ttl from memory;
// it does not touch persisted trust records.
func (o *Orchestrator) CleanupExpiredSessions(ttl time.Duration) {
	cutoff := time.Now().Add(-ttl)
	o.mu.Lock()
	defer o.mu.Unlock()
	for sid, entry := range o.sessions {
		if entry.machine.Done() && !entry.terminalAt.IsZero() && entry.terminalAt.Before(cutoff) {
			for _, t := range entry.timers {
				t.Stop()
			}
			delete(o.sessions, sid)
		}
	}
}

func (o *Orchestrator) dispatchNew(ctx context.Context, sid, peerID string, ev Event) error {
	o.mu.Lock()
	if _, exists := o.sessions[sid]; !exists {
		o.sessions[sid] = &sessionEntry{machine: NewMachine(), timers: make(map[TimerKind]*time.Timer), peerID: peerID}
	}
	entry := o.sessions[sid]
	actions := entry.machine.Handle(ev)
	entry.noteTerminal()
	o.mu.Unlock()

	o.execute(ctx, sid, actions)
	return nil
}

func (o *Orchestrator) dispatch(ctx context.Context, sid string, ev Event) error {
	o.mu.Lock()
	entry, ok := o.sessions[sid]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("pairing: unknown session %s", sid)
	}
	actions := entry.machine.Handle(ev)
	entry.noteTerminal()
	o.mu.Unlock()

	o.execute(ctx, sid, actions)
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, sid string, actions []Action) {
	for _, a := range actions {
		switch a.Kind {
		case ActSend:
			if err := o.net.Send(ctx, a.PeerID, a.Message); err != nil {
				o.log.Warn("pairing: send failed", "session", sid, "peer", a.PeerID, "err", err)
				o.dispatchAsync(sid, Event{Kind: EvTransportError})
			}

		case ActStartTimer:
			o.armTimer(sid, a.TimerKind, a.Deadline)

		case ActCancelTimer:
			o.stopTimer(sid, a.TimerKind)

		case ActShowVerification:
			if o.onVerify != nil {
				o.onVerify(sid, a.ShortCode, a.PeerFP, a.PeerName)
			}

		case ActPersistPairedDevice:
			if err := o.devices.Upsert(a.Device); err != nil {
				o.dispatchAsync(sid, Event{Kind: EvPersistErr, Err: err})
			} else {
				o.dispatchAsync(sid, Event{Kind: EvPersistOk})
			}

		case ActEmitResult:
			if o.onResult != nil {
				o.onResult(sid, a.Success, a.Error)
			}

		case ActLogTransition:
			o.log.Info("pairing: transition", "session", sid, "from", a.From.String(), "to", a.To.String())

		case ActNoOp:
		}
	}
}

// dispatchAsync re-enters dispatch for events raised as a consequence of
// executing a prior action (persistence results, transport failures); it
// runs synchronously but outside the caller's stack frame's lock.
func (o *Orchestrator) dispatchAsync(sid string, ev Event) {
	_ = o.dispatch(context.Background(), sid, ev)
}

func (o *Orchestrator) armTimer(sid string, kind TimerKind, deadline time.Time) {
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	t := time.AfterFunc(d, func() {
		o.dispatchAsync(sid, Event{Kind: EvTimeout, TimeoutKind: kind})
	})

	o.mu.Lock()
	if entry, ok := o.sessions[sid]; ok {
		if old, exists := entry.timers[kind]; exists {
			old.Stop()
		}
		entry.timers[kind] = t
	}
	o.mu.Unlock()
}

func (o *Orchestrator) stopTimer(sid string, kind TimerKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if entry, ok := o.sessions[sid]; ok {
		if t, exists := entry.timers[kind]; exists {
			t.Stop()
			delete(entry.timers, kind)
		}
	}
}
