package pairing

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"

	"go.klb.dev/unisync/internal/security"
)

const pinHashVersion = 0x01

// GeneratePIN returns 6 decimal digits from a CSPRNG, generated on the
// responder side in WaitingForRequest -> UserAccept.
func GeneratePIN() (string, error) {
	digits := make([]byte, 6)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("pin generation: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}

// EncodePINHash builds the 49-byte wire encoding the initiator sends in
// Response: version(1) || salt(16) || hash(32).
func EncodePINHash(pin string) ([]byte, error) {
	salt, err := security.NewSalt()
	if err != nil {
		return nil, err
	}
	params := security.DefaultKDFParams()
	key := security.DeriveKey(pin, salt, params)
	keyBytes := key.Bytes()
	defer key.Clear()

	out := make([]byte, 0, 49)
	out = append(out, pinHashVersion)
	out = append(out, salt...)
	out = append(out, keyBytes[:]...)
	return out, nil
}

// VerifyPINHash recomputes Argon2id(pin, salt, params) and compares in
// constant time against the 49-byte encoding received in Response.
func VerifyPINHash(pin string, encoded []byte) bool {
	if len(encoded) != 49 || encoded[0] != pinHashVersion {
		return false
	}
	salt := encoded[1:17]
	want := encoded[17:49]

	params := security.DefaultKDFParams()
	key := security.DeriveKey(pin, salt, params)
	defer key.Clear()
	got := key.Bytes()

	return subtle.ConstantTimeCompare(got[:], want) == 1
}
