package security

import (
	"bytes"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	var kb [32]byte
	for i := range kb {
		kb[i] = byte(i)
	}
	key := NewSecret32(kb)

	plaintext := []byte("the quick brown fox")
	aad := AADInline("evt-1", "rep-1")

	blob, err := Seal(key, plaintext, aad)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if blob.FormatVersion != FormatVersionV1 || blob.AEAD != AEADAlgoXChaCha20Poly1305 {
		t.Fatalf("unexpected blob tags: %+v", blob)
	}

	got, err := Open(key, blob, aad)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
	}
}

func TestOpenRejectsWrongAAD(t *testing.T) {
	var kb [32]byte
	key := NewSecret32(kb)

	blob, err := Seal(key, []byte("secret"), AADBlob("hash-a"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := Open(key, blob, AADBlob("hash-b")); err == nil {
		t.Fatal("expected Open to fail with mismatched AAD")
	}
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	var kb [32]byte
	key := NewSecret32(kb)
	aad := AADNetClipboard("msg-1")

	blob, err := Seal(key, []byte("payload"), aad)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	blob.Ciphertext[0] ^= 0xFF

	if _, err := Open(key, blob, aad); err == nil {
		t.Fatal("expected Open to fail on tampered ciphertext")
	}
}

func TestOpenRejectsUnsupportedFormat(t *testing.T) {
	var kb [32]byte
	key := NewSecret32(kb)
	blob := EncryptedBlob{FormatVersion: "V2", AEAD: AEADAlgoXChaCha20Poly1305}
	if _, err := Open(key, blob, nil); err == nil {
		t.Fatal("expected Open to reject an unknown format version")
	}
}

func TestSealProducesFreshNoncePerCall(t *testing.T) {
	var kb [32]byte
	key := NewSecret32(kb)
	a, err := Seal(key, []byte("x"), nil)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	b, err := Seal(key, []byte("x"), nil)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Equal(a.Nonce, b.Nonce) {
		t.Fatal("two Seal calls produced the same nonce")
	}
}
