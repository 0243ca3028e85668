package security

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"go.klb.dev/unisync/internal/ucerrors"
)

// Initializer implements the Initialize use case.
type Initializer struct {
	State   EncryptionStatePort
	Keys    KeyMaterialPort
	Session *Session
}

// Initialize runs the nine-step sequence from a fresh passphrase. Keyring
// and keyslot writes are not transactional; this implementation writes the
// keyring first and the keyslot second (per the detect-on-boot option named
// in the design notes) and persists the Initialized state last. A crash
// before that final write leaves the state Uninitialized, so auto-unlock
// reports no profile and a new Initialize overwrites the partial keyring
// entry and keyslot; auto-unlock fails with StatePersistenceFailed only
// when the state is Initialized but the keyslot or KEK cannot be loaded.
func (in *Initializer) Initialize(passphrase string) error {
	state, err := in.State.LoadState()
	if err != nil {
		return fmt.Errorf("%w: %v", ucerrors.ErrStatePersistenceFailed, err)
	}
	if state == EncryptionStateInitialized {
		return ucerrors.ErrAlreadyInitialized
	}

	scope := DefaultScope()

	salt, err := NewSalt()
	if err != nil {
		return fmt.Errorf("%w: %v", ucerrors.ErrEncryptFailed, err)
	}
	params := DefaultKDFParams()

	kek := DeriveKey(passphrase, salt, params)
	defer kek.Clear()

	var mkBytes [32]byte
	if _, err := io.ReadFull(rand.Reader, mkBytes[:]); err != nil {
		return fmt.Errorf("%w: master key generation: %v", ucerrors.ErrEncryptFailed, err)
	}
	mk := NewSecret32(mkBytes)
	zero(mkBytes[:])

	mkBytesForWrap := mk.Bytes()
	wrapped, err := Seal(kek, mkBytesForWrap[:], AADKEKWrap(scope.String()))
	zero(mkBytesForWrap[:])
	if err != nil {
		mk.Clear()
		return fmt.Errorf("%w: %v", ucerrors.ErrEncryptFailed, err)
	}

	if err := in.Keys.StoreKEK(scope, kek); err != nil {
		mk.Clear()
		return fmt.Errorf("%w: keyring store: %v", ucerrors.ErrStatePersistenceFailed, err)
	}

	slot := KeySlot{
		Version:          1,
		Scope:            scope,
		KDFParams:        params,
		Salt:             salt,
		WrappedMasterKey: &wrapped,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if err := in.Keys.StoreKeyslot(slot); err != nil {
		mk.Clear()
		return fmt.Errorf("%w: keyslot store: %v", ucerrors.ErrStatePersistenceFailed, err)
	}

	if err := in.State.PersistInitialized(); err != nil {
		mk.Clear()
		return fmt.Errorf("%w: %v", ucerrors.ErrStatePersistenceFailed, err)
	}

	in.Session.SetMasterKey(mk)
	return nil
}
