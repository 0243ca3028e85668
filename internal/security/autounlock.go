package security

import (
	"fmt"

	"go.klb.dev/unisync/internal/ucerrors"
)

// AutoUnlocker implements the Auto-unlock use case, run on every boot before
// anything else touches the session.
type AutoUnlocker struct {
	State   EncryptionStatePort
	Keys    KeyMaterialPort
	Session *Session
}

// AutoUnlock returns (false, nil) if no profile has ever been initialized.
// Any other failure on the unlock path is terminal for boot: the session
// stays Locked and the error is returned for the caller to surface.
func (a *AutoUnlocker) AutoUnlock() (bool, error) {
	state, err := a.State.LoadState()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ucerrors.ErrStatePersistenceFailed, err)
	}
	if state == EncryptionStateUninitialized {
		return false, nil
	}

	slot, err := a.Keys.LoadKeyslot()
	if err != nil {
		return false, fmt.Errorf("%w: load keyslot: %v", ucerrors.ErrStatePersistenceFailed, err)
	}
	if slot.WrappedMasterKey == nil {
		return false, ucerrors.ErrMissingWrappedMaster
	}

	kek, err := a.Keys.LoadKEK(slot.Scope)
	if err != nil {
		return false, fmt.Errorf("%w: load kek: %v", ucerrors.ErrStatePersistenceFailed, err)
	}
	defer kek.Clear()

	plaintext, err := Open(kek, *slot.WrappedMasterKey, AADKEKWrap(slot.Scope.String()))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ucerrors.ErrWrongPassphrase, err)
	}
	defer zero(plaintext)
	if len(plaintext) != 32 {
		return false, fmt.Errorf("%w: unexpected master key length %d", ucerrors.ErrCorruptedBlob, len(plaintext))
	}

	var b [32]byte
	copy(b[:], plaintext)
	a.Session.SetMasterKey(NewSecret32(b))
	zero(b[:])
	return true, nil
}
