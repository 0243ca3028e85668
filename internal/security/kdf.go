package security

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// KDFParams records the Argon2id parameters used to derive a key, persisted
// alongside the salt so that the same derivation can be repeated exactly.
type KDFParams struct {
	MemoryKiB   uint32 `json:"memory_kib"`
	Iterations  uint32 `json:"iterations"`
	Parallelism uint8  `json:"parallelism"`
}

// DefaultKDFParams are used for new keyslots. They satisfy the pairing PIN
// hash requirement of mem>=64MiB, t=3, p=4 and are reused for passphrase
// KEK derivation as well.
func DefaultKDFParams() KDFParams {
	return KDFParams{MemoryKiB: 64 * 1024, Iterations: 3, Parallelism: 4}
}

const saltSize = 16

// NewSalt returns a fresh random salt of at least 16 bytes, per spec.
func NewSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("salt generation: %w", err)
	}
	return salt, nil
}

// DeriveKey runs Argon2id over passphrase/salt/params, producing a 32-byte key.
func DeriveKey(passphrase string, salt []byte, params KDFParams) Secret32 {
	out := argon2.IDKey([]byte(passphrase), salt, params.Iterations, params.MemoryKiB, params.Parallelism, 32)
	defer zero(out)
	var b [32]byte
	copy(b[:], out)
	return NewSecret32(b)
}
