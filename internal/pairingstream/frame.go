// Package pairingstream runs the length-prefixed framing and per-session
// concurrency limits for the pairing protocol stream, independent of the
// transport that carries it.
package pairingstream

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"go.klb.dev/unisync/internal/pairing"
)

// MaxFrameBytes bounds a single frame's JSON body; the 4-byte length
// prefix is not counted against this limit.
const MaxFrameBytes = 64 * 1024

// envelope makes wire messages self-describing so the reader can dispatch
// on Type without a closed type switch over concrete structs.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// WriteFrame serialises msg as a length-prefixed, self-describing JSON
// envelope: uint32 big-endian length followed by that many bytes of JSON.
func WriteFrame(w io.Writer, msg pairing.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("pairingstream: marshal payload: %w", err)
	}
	env := envelope{Type: pairing.MessageType(msg), Payload: payload}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("pairingstream: marshal envelope: %w", err)
	}
	if len(body) > MaxFrameBytes {
		return fmt.Errorf("pairingstream: frame too large (%d bytes)", len(body))
	}

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(body)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// ReadFrame reads one length-prefixed envelope and decodes it into a
// concrete pairing.Message.
func ReadFrame(r *bufio.Reader) (pairing.Message, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxFrameBytes {
		return nil, fmt.Errorf("pairingstream: frame too large (%d bytes)", n)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("pairingstream: decode envelope: %w", err)
	}
	return decodePayload(env.Type, env.Payload)
}

func decodePayload(msgType string, payload json.RawMessage) (pairing.Message, error) {
	var msg pairing.Message
	switch msgType {
	case "Request":
		msg = &pairing.RequestMessage{}
	case "Challenge":
		msg = &pairing.ChallengeMessage{}
	case "Response":
		msg = &pairing.ResponseMessage{}
	case "Confirm":
		msg = &pairing.ConfirmMessage{}
	case "Reject":
		msg = &pairing.RejectMessage{}
	case "Cancel":
		msg = &pairing.CancelMessage{}
	case "Busy":
		msg = &pairing.BusyMessage{}
	default:
		return nil, fmt.Errorf("pairingstream: unknown message type %q", msgType)
	}
	if err := json.Unmarshal(payload, msg); err != nil {
		return nil, fmt.Errorf("pairingstream: decode %s: %w", msgType, err)
	}
	return msg, nil
}
