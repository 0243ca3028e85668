package pairing

import (
	"time"

	"go.klb.dev/unisync/internal/trust"
	"go.klb.dev/unisync/internal/ucid"
)

// ProtocolVersion is embedded in Request/Challenge transcripts and the
// short-code derivation.
const ProtocolVersion = 1

func sendAction(peerID string, msg Message) Action {
	return Action{Kind: ActSend, PeerID: peerID, Message: msg, SessionID: msg.SessionID()}
}

func startTimer(sid string, kind TimerKind, deadline time.Time) Action {
	return Action{Kind: ActStartTimer, SessionID: sid, TimerKind: kind, Deadline: deadline}
}

func cancelTimer(sid string, kind TimerKind) Action {
	return Action{Kind: ActCancelTimer, SessionID: sid, TimerKind: kind}
}

func emitResult(sid string, success bool, errMsg string) Action {
	return Action{Kind: ActEmitResult, SessionID: sid, Success: success, Error: errMsg}
}

func logTransition(sid string, from, to StateKind) Action {
	return Action{Kind: ActLogTransition, SessionID: sid, From: from, To: to}
}

func noOp() []Action { return []Action{{Kind: ActNoOp}} }

// Transition is the pure core of the pairing protocol: (state, event, now)
// -> (state', actions). Legacy Reject/Cancel/Busy messages are accepted in
// every state and leave it unchanged, yielding NoOp plus a log action.
func Transition(s State, ev Event, now time.Time) (State, []Action) {
	switch ev.Kind {
	case EvStartPairing:
		if s.Kind == Idle && ev.Role == RoleInitiator {
			sid := ucid.New()
			next := State{
				Kind:      WaitingForChallenge,
				SessionID: sid,
				Role:      RoleInitiator,
				Transcript: Transcript{
					LocalDeviceID:   ev.LocalDeviceID,
					LocalDeviceName: ev.LocalDeviceName,
					LocalPubkey:     ev.LocalPubkey,
					LocalNonce:      ev.LocalNonce,
					PeerID:          ev.PeerID,
					ProtocolVersion: ProtocolVersion,
				},
			}
			req := &RequestMessage{
				SID:            sid,
				DeviceName:     ev.LocalDeviceName,
				DeviceID:       ev.LocalDeviceID,
				PeerID:         ev.PeerID,
				IdentityPubkey: ev.LocalPubkey,
				Nonce:          ev.LocalNonce,
			}
			return next, []Action{sendAction(ev.PeerID, req), logTransition(sid, s.Kind, next.Kind)}
		}
		return s, noOp()

	case EvRecvRequest:
		if s.Kind == Idle && ev.Request != nil {
			req := ev.Request
			next := State{
				Kind:      WaitingForRequest,
				SessionID: req.SID,
				Role:      RoleResponder,
				Transcript: Transcript{
					PeerID:          req.PeerID,
					PeerDeviceID:    req.DeviceID,
					PeerDeviceName:  req.DeviceName,
					PeerPubkey:      req.IdentityPubkey,
					PeerNonce:       req.Nonce,
					ProtocolVersion: ProtocolVersion,
				},
			}
			return next, []Action{logTransition(req.SID, s.Kind, next.Kind)}
		}
		return s, noOp()

	case EvUserAccept:
		switch s.Kind {
		case WaitingForRequest:
			pin := ev.PIN
			t := s.Transcript
			t.LocalDeviceID = ev.LocalDeviceID
			t.LocalDeviceName = ev.LocalDeviceName
			t.LocalPubkey = ev.LocalPubkey
			t.LocalNonce = ev.LocalNonce
			t.PIN = pin

			next := State{
				Kind:       WaitingForResponse,
				SessionID:  s.SessionID,
				Role:       RoleResponder,
				Transcript: t,
			}
			challenge := &ChallengeMessage{
				SID:            s.SessionID,
				PIN:            pin,
				DeviceName:     ev.LocalDeviceName,
				DeviceID:       ev.LocalDeviceID,
				IdentityPubkey: ev.LocalPubkey,
				Nonce:          ev.LocalNonce,
			}
			deadline := now.Add(defaultStepTimeout)
			return next, []Action{
				sendAction(t.PeerID, challenge),
				startTimer(s.SessionID, TimerWaitingResponse, deadline),
				logTransition(s.SessionID, s.Kind, next.Kind),
			}

		case WaitingUserVerification:
			pinHash, err := EncodePINHash(ev.PIN)
			if err != nil {
				return s, noOp()
			}
			next := State{
				Kind:       ResponseSent,
				SessionID:  s.SessionID,
				Role:       RoleInitiator,
				Transcript: s.Transcript,
			}
			resp := &ResponseMessage{SID: s.SessionID, PINHash: pinHash, Accepted: true}
			deadline := now.Add(defaultStepTimeout)
			return next, []Action{
				cancelTimer(s.SessionID, TimerUserVerification),
				sendAction(s.Transcript.PeerID, resp),
				startTimer(s.SessionID, TimerWaitingConfirm, deadline),
				logTransition(s.SessionID, s.Kind, next.Kind),
			}
		}
		return s, noOp()

	case EvRecvChallenge:
		if (s.Kind == Idle || s.Kind == WaitingForChallenge) && ev.Challenge != nil {
			ch := ev.Challenge
			t := s.Transcript
			t.PeerDeviceID = ch.DeviceID
			t.PeerDeviceName = ch.DeviceName
			t.PeerPubkey = ch.IdentityPubkey
			t.PeerNonce = ch.Nonce
			t.PIN = ch.PIN

			code := ShortCodeWithSession(s.SessionID, t, RoleInitiator)
			fp := IdentityFingerprint(t.PeerPubkey)
			expires := now.Add(defaultUserVerificationTimeout)

			next := State{
				Kind:            WaitingUserVerification,
				SessionID:       s.SessionID,
				Role:            RoleInitiator,
				Transcript:      t,
				ShortCode:       code,
				PeerFingerprint: fp,
				PeerName:        ch.DeviceName,
				ExpiresAt:       expires,
			}
			return next, []Action{
				{Kind: ActShowVerification, SessionID: s.SessionID, ShortCode: code, PeerFP: fp, PeerName: ch.DeviceName},
				startTimer(s.SessionID, TimerUserVerification, expires),
				logTransition(s.SessionID, s.Kind, next.Kind),
			}
		}
		return s, noOp()

	case EvUserReject:
		if s.Kind == WaitingUserVerification {
			next := State{Kind: Cancelled, SessionID: s.SessionID, By: "user"}
			reject := &RejectMessage{SID: s.SessionID, Reason: "user rejected"}
			return next, []Action{
				cancelTimer(s.SessionID, TimerUserVerification),
				sendAction(s.Transcript.PeerID, reject),
				logTransition(s.SessionID, s.Kind, next.Kind),
			}
		}
		return s, noOp()

	case EvRecvResponse:
		if s.Kind == WaitingForResponse && ev.Response != nil {
			resp := ev.Response
			cancel := cancelTimer(s.SessionID, TimerWaitingResponse)
			if !resp.Accepted || !VerifyPINHash(s.Transcript.PIN, resp.PINHash) {
				next := State{Kind: Failed, SessionID: s.SessionID, Reason: "pin mismatch"}
				confirm := &ConfirmMessage{SID: s.SessionID, Success: false, Error: "pin mismatch", SenderDeviceName: s.Transcript.LocalDeviceName, DeviceID: s.Transcript.LocalDeviceID}
				return next, []Action{cancel, sendAction(s.Transcript.PeerID, confirm), emitResult(s.SessionID, false, "pin mismatch"), logTransition(s.SessionID, s.Kind, next.Kind)}
			}

			device := trust.PairedDevice{
				PeerID:              s.Transcript.PeerID,
				PairingState:        trust.StateTrusted,
				IdentityFingerprint: IdentityFingerprint(s.Transcript.PeerPubkey),
				PairedAt:            now,
				LastSeenAt:          now,
			}
			next := State{Kind: PersistingTrust, SessionID: s.SessionID, Role: s.Role, Transcript: s.Transcript, PairedDevice: &device}
			confirm := &ConfirmMessage{SID: s.SessionID, Success: true, SenderDeviceName: s.Transcript.LocalDeviceName, DeviceID: s.Transcript.LocalDeviceID}
			return next, []Action{
				cancel,
				sendAction(s.Transcript.PeerID, confirm),
				{Kind: ActPersistPairedDevice, SessionID: s.SessionID, Device: device},
				logTransition(s.SessionID, s.Kind, next.Kind),
			}
		}
		return s, noOp()

	case EvRecvConfirm:
		if s.Kind == ResponseSent && ev.Confirm != nil {
			cancel := cancelTimer(s.SessionID, TimerWaitingConfirm)
			if !ev.Confirm.Success {
				next := State{Kind: Failed, SessionID: s.SessionID, Reason: ev.Confirm.Error}
				return next, []Action{cancel, emitResult(s.SessionID, false, ev.Confirm.Error), logTransition(s.SessionID, s.Kind, next.Kind)}
			}
			device := trust.PairedDevice{
				PeerID:              s.Transcript.PeerID,
				PairingState:        trust.StateTrusted,
				IdentityFingerprint: IdentityFingerprint(s.Transcript.PeerPubkey),
				PairedAt:            now,
				LastSeenAt:          now,
			}
			next := State{Kind: PersistingTrust, SessionID: s.SessionID, Role: s.Role, Transcript: s.Transcript, PairedDevice: &device}
			return next, []Action{cancel, {Kind: ActPersistPairedDevice, SessionID: s.SessionID, Device: device}, logTransition(s.SessionID, s.Kind, next.Kind)}
		}
		return s, noOp()

	case EvPersistOk:
		if s.Kind == PersistingTrust {
			next := State{Kind: Paired, SessionID: s.SessionID, PeerDeviceID: s.Transcript.PeerDeviceID}
			return next, []Action{emitResult(s.SessionID, true, ""), logTransition(s.SessionID, s.Kind, next.Kind)}
		}
		return s, noOp()

	case EvPersistErr:
		if s.Kind == PersistingTrust {
			msg := ""
			if ev.Err != nil {
				msg = ev.Err.Error()
			}
			next := State{Kind: Failed, SessionID: s.SessionID, Reason: msg}
			return next, []Action{emitResult(s.SessionID, false, msg), logTransition(s.SessionID, s.Kind, next.Kind)}
		}
		return s, noOp()

	case EvTimeout:
		if !s.Kind.IsTerminal() && timeoutApplies(s.Kind, ev.TimeoutKind) {
			next := State{Kind: Failed, SessionID: s.SessionID, Reason: "timeout"}
			return next, []Action{emitResult(s.SessionID, false, "timeout"), logTransition(s.SessionID, s.Kind, next.Kind)}
		}
		return s, noOp()

	case EvUserCancel:
		if !s.Kind.IsTerminal() && s.Kind != Idle {
			next := State{Kind: Cancelled, SessionID: s.SessionID, By: ev.By}
			cancelMsg := &CancelMessage{SID: s.SessionID, Reason: "user cancelled"}
			actions := []Action{logTransition(s.SessionID, s.Kind, next.Kind)}
			if s.Transcript.PeerID != "" {
				actions = append(actions, sendAction(s.Transcript.PeerID, cancelMsg))
			}
			return next, actions
		}
		return s, noOp()

	case EvTransportError:
		if !s.Kind.IsTerminal() && s.Kind != Idle {
			next := State{Kind: Failed, SessionID: s.SessionID, Reason: "transport error"}
			return next, []Action{emitResult(s.SessionID, false, "transport error"), logTransition(s.SessionID, s.Kind, next.Kind)}
		}
		return s, noOp()

	case EvRecvReject, EvRecvCancel, EvRecvBusy:
		return s, []Action{{Kind: ActNoOp}, logTransition(s.SessionID, s.Kind, s.Kind)}

	default:
		return s, noOp()
	}
}

func timeoutApplies(state StateKind, kind TimerKind) bool {
	switch state {
	case WaitingForResponse:
		return kind == TimerWaitingResponse
	case ResponseSent:
		return kind == TimerWaitingConfirm
	case WaitingUserVerification:
		return kind == TimerUserVerification
	case WaitingForChallenge:
		return kind == TimerWaitingChallenge
	default:
		return true // any applicable timer firing on a non-terminal state fails it
	}
}

const (
	defaultStepTimeout             = 30 * time.Second
	defaultUserVerificationTimeout = 60 * time.Second
)
