package security

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"go.klb.dev/unisync/internal/ucerrors"
)

// FormatVersion tags the wire/storage layout of an EncryptedBlob.
type FormatVersion string

const FormatVersionV1 FormatVersion = "V1"

// AEADAlgo names the AEAD construction used to produce an EncryptedBlob.
type AEADAlgo string

const AEADAlgoXChaCha20Poly1305 AEADAlgo = "XChaCha20Poly1305"

// EncryptedBlob is the persisted/wire representation of a sealed secret:
// a keyslot's wrapped master key, an inline representation payload, or a
// network message body. Immutable once written.
type EncryptedBlob struct {
	FormatVersion FormatVersion `json:"format_version"`
	AEAD          AEADAlgo      `json:"aead"`
	Nonce         []byte        `json:"nonce"`
	Ciphertext    []byte        `json:"ciphertext"`
	AADFingerprint []byte       `json:"aad_fingerprint,omitempty"`
}

// Seal encrypts plaintext under key with aad bound in, using random
// XChaCha20-Poly1305 nonces (24 bytes, per spec). The AAD itself is not
// stored, only a SHA-256 fingerprint for diagnostics; a decrypt call must be
// given the same literal aad to succeed.
func Seal(key Secret32, plaintext, aad []byte) (EncryptedBlob, error) {
	var blob EncryptedBlob
	err := key.WithBytes(func(k [32]byte) error {
		aead, err := chacha20poly1305.NewX(k[:])
		if err != nil {
			return fmt.Errorf("%w: aead init: %v", ucerrors.ErrEncryptFailed, err)
		}
		nonce := make([]byte, aead.NonceSize())
		if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
			return fmt.Errorf("%w: nonce generation: %v", ucerrors.ErrEncryptFailed, err)
		}
		ct := aead.Seal(nil, nonce, plaintext, aad)
		fp := sha256.Sum256(aad)
		blob = EncryptedBlob{
			FormatVersion:  FormatVersionV1,
			AEAD:           AEADAlgoXChaCha20Poly1305,
			Nonce:          nonce,
			Ciphertext:     ct,
			AADFingerprint: fp[:],
		}
		return nil
	})
	return blob, err
}

// Open decrypts blob under key, verifying aad. Returns ErrDecryptFailed
// (wrapped) when authentication fails (tampering, truncation, wrong key or
// aad) and ErrCorruptedBlob (wrapped) for an unsupported format version or
// algorithm or a nonce of the wrong length.
func Open(key Secret32, blob EncryptedBlob, aad []byte) ([]byte, error) {
	if blob.FormatVersion != FormatVersionV1 || blob.AEAD != AEADAlgoXChaCha20Poly1305 {
		return nil, fmt.Errorf("%w: unsupported blob format %q/%q", ucerrors.ErrCorruptedBlob, blob.FormatVersion, blob.AEAD)
	}
	var plaintext []byte
	err := key.WithBytes(func(k [32]byte) error {
		aead, err := chacha20poly1305.NewX(k[:])
		if err != nil {
			return fmt.Errorf("aead init: %w", err)
		}
		if len(blob.Nonce) != aead.NonceSize() {
			return fmt.Errorf("%w: bad nonce length", ucerrors.ErrCorruptedBlob)
		}
		pt, err := aead.Open(nil, blob.Nonce, blob.Ciphertext, aad)
		if err != nil {
			return fmt.Errorf("%w: %v", ucerrors.ErrDecryptFailed, err)
		}
		plaintext = pt
		return nil
	})
	return plaintext, err
}

// AAD builders. Each matches a "uc:<scope>:v1|..." literal exactly as
// specified, since decrypt requires byte-identical AAD.
func AADKEKWrap(scope string) []byte {
	return []byte(fmt.Sprintf("uc:kek-wrap:v1|%s", scope))
}

func AADInline(eventID, repID string) []byte {
	return []byte(fmt.Sprintf("uc:inline:v1|%s|%s", eventID, repID))
}

func AADBlob(contentHash string) []byte {
	return []byte(fmt.Sprintf("uc:blob:v1|%s", contentHash))
}

func AADNetClipboard(messageID string) []byte {
	return []byte(fmt.Sprintf("uc:net:clipboard:v1|%s", messageID))
}
