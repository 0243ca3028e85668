// Package security is the cryptographic kernel: key derivation, AEAD sealing,
// the in-memory session holding the unwrapped master key, and the use cases
// that initialize or auto-unlock that session from a passphrase.
package security

import "crypto/subtle"

// Secret32 is a 32-byte secret (MasterKey or KEK) that zeroizes on Clear.
// Every holder is responsible for calling Clear once the secret is no longer
// needed; the zero value is already cleared.
type Secret32 struct {
	b [32]byte
	set bool
}

// NewSecret32 copies b into a new Secret32. The caller retains ownership of
// b and should zero it if it was itself sensitive.
func NewSecret32(b [32]byte) Secret32 {
	return Secret32{b: b, set: true}
}

// Bytes returns a copy of the secret's bytes. Callers that keep the copy
// around are responsible for its lifetime; prefer WithBytes when possible.
func (s Secret32) Bytes() [32]byte { return s.b }

// IsSet reports whether the secret holds key material (as opposed to a
// cleared or zero-value instance).
func (s Secret32) IsSet() bool { return s.set }

// WithBytes invokes fn with a copy of the secret bytes and zeroizes the copy
// afterward, regardless of whether fn panics.
func (s Secret32) WithBytes(fn func(b [32]byte) error) error {
	cp := s.b
	defer zero(cp[:])
	return fn(cp)
}

// Clear zeroizes the secret in place.
func (s *Secret32) Clear() {
	zero(s.b[:])
	s.set = false
}

// Equal performs a constant-time comparison.
func (s Secret32) Equal(other Secret32) bool {
	return subtle.ConstantTimeCompare(s.b[:], other.b[:]) == 1
}

// String never reveals key material; it satisfies fmt.Stringer so that
// accidental %v/%s logging of a Secret32 cannot leak it.
func (s Secret32) String() string {
	if !s.set {
		return "Secret32(cleared)"
	}
	return "Secret32(redacted)"
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
