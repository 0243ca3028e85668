package pairing

import (
	"testing"
	"time"
)

func TestTransitionStartPairingFromIdle(t *testing.T) {
	s := State{Kind: Idle}
	now := time.Now()
	next, actions := Transition(s, Event{
		Kind:            EvStartPairing,
		Role:            RoleInitiator,
		PeerID:          "peer-1",
		LocalDeviceID:   "111111",
		LocalDeviceName: "laptop",
		LocalPubkey:     []byte("pubkey"),
		LocalNonce:      []byte("nonce-local-16b!"),
	}, now)

	if next.Kind != WaitingForChallenge {
		t.Fatalf("want WaitingForChallenge, got %s", next.Kind)
	}
	if next.SessionID == "" {
		t.Fatal("expected a session id to be minted")
	}

	var sawSend bool
	for _, a := range actions {
		if a.Kind == ActSend {
			sawSend = true
			req, ok := a.Message.(*RequestMessage)
			if !ok {
				t.Fatalf("expected *RequestMessage, got %T", a.Message)
			}
			if req.PeerID != "peer-1" {
				t.Errorf("request peer_id = %q, want peer-1", req.PeerID)
			}
		}
	}
	if !sawSend {
		t.Error("expected an ActSend action")
	}
}

func TestTransitionStartPairingIgnoredOutsideIdle(t *testing.T) {
	s := State{Kind: Paired}
	next, actions := Transition(s, Event{Kind: EvStartPairing, Role: RoleInitiator}, time.Now())

	if next.Kind != Paired {
		t.Fatalf("state should not change, got %s", next.Kind)
	}
	if len(actions) != 1 || actions[0].Kind != ActNoOp {
		t.Fatalf("expected a single NoOp action, got %+v", actions)
	}
}

func TestTransitionFullHappyPath(t *testing.T) {
	now := time.Now()

	initiator, actions := Transition(State{Kind: Idle}, Event{
		Kind: EvStartPairing, Role: RoleInitiator, PeerID: "responder",
		LocalDeviceID: "111111", LocalDeviceName: "alice-laptop",
		LocalPubkey: []byte("alice-pub"), LocalNonce: []byte("alice-nonce-0000"),
	}, now)
	req := findSend(t, actions).(*RequestMessage)

	responder, actions := Transition(State{Kind: Idle}, Event{
		Kind: EvRecvRequest, PeerID: "initiator", Request: req,
	}, now)
	if responder.Kind != WaitingForRequest {
		t.Fatalf("responder state = %s, want WaitingForRequest", responder.Kind)
	}
	if len(actions) != 1 || actions[0].Kind != ActLogTransition {
		t.Fatalf("unexpected actions on RecvRequest: %+v", actions)
	}

	responder, actions = Transition(responder, Event{
		Kind: EvUserAccept, PIN: "123456",
		LocalDeviceID: "222222", LocalDeviceName: "bob-phone",
		LocalPubkey: []byte("bob-pub"), LocalNonce: []byte("bob-nonce-00000"),
	}, now)
	if responder.Kind != WaitingForResponse {
		t.Fatalf("responder state = %s, want WaitingForResponse", responder.Kind)
	}
	challenge := findSend(t, actions).(*ChallengeMessage)
	if challenge.PIN != "123456" {
		t.Errorf("challenge pin = %q, want 123456", challenge.PIN)
	}

	initiator, actions = Transition(initiator, Event{
		Kind: EvRecvChallenge, Challenge: challenge,
	}, now)
	if initiator.Kind != WaitingUserVerification {
		t.Fatalf("initiator state = %s, want WaitingUserVerification", initiator.Kind)
	}
	if initiator.ShortCode == "" {
		t.Error("expected a non-empty short code")
	}

	initiator, actions = Transition(initiator, Event{
		Kind: EvUserAccept, PIN: "123456",
	}, now)
	if initiator.Kind != ResponseSent {
		t.Fatalf("initiator state = %s, want ResponseSent", initiator.Kind)
	}
	resp := findSend(t, actions).(*ResponseMessage)
	if !resp.Accepted {
		t.Error("expected response.accepted = true")
	}

	responder, actions = Transition(responder, Event{
		Kind: EvRecvResponse, Response: resp,
	}, now)
	if responder.Kind != PersistingTrust {
		t.Fatalf("responder state = %s, want PersistingTrust", responder.Kind)
	}
	if responder.PairedDevice == nil {
		t.Fatal("expected a paired device to be staged for persistence")
	}

	confirm := findSend(t, actions).(*ConfirmMessage)
	if !confirm.Success {
		t.Error("expected confirm.success = true")
	}

	initiator, _ = Transition(initiator, Event{Kind: EvRecvConfirm, Confirm: confirm}, now)
	if initiator.Kind != PersistingTrust {
		t.Fatalf("initiator state = %s, want PersistingTrust", initiator.Kind)
	}

	responder, actions = Transition(responder, Event{Kind: EvPersistOk}, now)
	if responder.Kind != Paired {
		t.Fatalf("responder state = %s, want Paired", responder.Kind)
	}
	assertEmitResult(t, actions, true)

	initiator, actions = Transition(initiator, Event{Kind: EvPersistOk}, now)
	if initiator.Kind != Paired {
		t.Fatalf("initiator state = %s, want Paired", initiator.Kind)
	}
	assertEmitResult(t, actions, true)
}

func TestTransitionPinMismatchFails(t *testing.T) {
	now := time.Now()
	s := State{
		Kind:       WaitingForResponse,
		SessionID:  "sid-1",
		Transcript: Transcript{PIN: "123456", PeerID: "peer"},
	}
	badHash, err := EncodePINHash("000000")
	if err != nil {
		t.Fatalf("EncodePINHash: %v", err)
	}
	next, actions := Transition(s, Event{
		Kind:     EvRecvResponse,
		Response: &ResponseMessage{SID: "sid-1", Accepted: true, PINHash: badHash},
	}, now)

	if next.Kind != Failed {
		t.Fatalf("state = %s, want Failed", next.Kind)
	}
	assertEmitResult(t, actions, false)
}

func TestTransitionTimeoutFromNonTerminalState(t *testing.T) {
	s := State{Kind: WaitingForResponse, SessionID: "sid-2"}
	next, actions := Transition(s, Event{Kind: EvTimeout, TimeoutKind: TimerWaitingResponse}, time.Now())
	if next.Kind != Failed {
		t.Fatalf("state = %s, want Failed", next.Kind)
	}
	assertEmitResult(t, actions, false)
}

func TestTransitionTimeoutIgnoredOnTerminalState(t *testing.T) {
	s := State{Kind: Paired, SessionID: "sid-3"}
	next, actions := Transition(s, Event{Kind: EvTimeout, TimeoutKind: TimerWaitingResponse}, time.Now())
	if next.Kind != Paired {
		t.Fatalf("terminal state mutated to %s", next.Kind)
	}
	if len(actions) != 1 || actions[0].Kind != ActNoOp {
		t.Fatalf("expected NoOp, got %+v", actions)
	}
}

func TestTransitionUserCancelSendsCancelMessage(t *testing.T) {
	s := State{Kind: WaitingForResponse, SessionID: "sid-4", Transcript: Transcript{PeerID: "peer-x"}}
	next, actions := Transition(s, Event{Kind: EvUserCancel, By: "user"}, time.Now())
	if next.Kind != Cancelled {
		t.Fatalf("state = %s, want Cancelled", next.Kind)
	}
	msg := findSend(t, actions).(*CancelMessage)
	if msg.SID != "sid-4" {
		t.Errorf("cancel session id = %q, want sid-4", msg.SID)
	}
}

func findSend(t *testing.T, actions []Action) Message {
	t.Helper()
	for _, a := range actions {
		if a.Kind == ActSend {
			return a.Message
		}
	}
	t.Fatal("no ActSend action found")
	return nil
}

func assertEmitResult(t *testing.T, actions []Action, wantSuccess bool) {
	t.Helper()
	for _, a := range actions {
		if a.Kind == ActEmitResult {
			if a.Success != wantSuccess {
				t.Errorf("emit result success = %v, want %v", a.Success, wantSuccess)
			}
			return
		}
	}
	t.Fatal("no ActEmitResult action found")
}
