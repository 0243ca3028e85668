package pairing

import (
	"crypto/sha256"
	"encoding/base32"
	"fmt"

	"lukechampine.com/blake3"
)

var base32Enc = base32.StdEncoding.WithPadding(base32.NoPadding)

// ShortCode derives the 6-character human-readable transcript code. Both
// initiator and responder must pass initiator-ordered nonces/pubkeys so the
// derivation agrees regardless of which side computes it.
func ShortCode(sessionID string, nonceInitiator, nonceResponder, pubkeyInitiator, pubkeyResponder []byte, protocolVersion int) string {
	h := blake3.New(32, nil)
	_, _ = h.Write([]byte(sessionID))
	_, _ = h.Write(nonceInitiator)
	_, _ = h.Write(nonceResponder)
	_, _ = h.Write(pubkeyInitiator)
	_, _ = h.Write(pubkeyResponder)
	_, _ = fmt.Fprintf(h, "%d", protocolVersion)
	sum := h.Sum(nil)
	code := base32Enc.EncodeToString(sum)
	return code[:6]
}

// ShortCodeWithSession is the form used by Transition: it has both
// the session id (from State.SessionID) and the transcript.
func ShortCodeWithSession(sessionID string, t Transcript, role Role) string {
	var nonceI, nonceR, pubI, pubR []byte
	if role == RoleInitiator {
		nonceI, pubI = t.LocalNonce, t.LocalPubkey
		nonceR, pubR = t.PeerNonce, t.PeerPubkey
	} else {
		nonceI, pubI = t.PeerNonce, t.PeerPubkey
		nonceR, pubR = t.LocalNonce, t.LocalPubkey
	}
	return ShortCode(sessionID, nonceI, nonceR, pubI, pubR, t.ProtocolVersion)
}

// IdentityFingerprint is Base32(SHA-256(pubkey)) truncated to 4 groups of 4
// characters for human display. Always hashes the full public key, never a
// truncated prefix of it.
func IdentityFingerprint(pubkey []byte) string {
	sum := sha256.Sum256(pubkey)
	encoded := base32Enc.EncodeToString(sum[:])
	const groupLen = 4
	const groups = 4
	n := groupLen * groups
	if len(encoded) < n {
		n = len(encoded)
	}
	out := make([]byte, 0, n+groups-1)
	for i := 0; i < n; i += groupLen {
		if i > 0 {
			out = append(out, '-')
		}
		end := i + groupLen
		if end > n {
			end = n
		}
		out = append(out, encoded[i:end]...)
	}
	return string(out)
}
