package security

import (
	"errors"
	"testing"

	"go.klb.dev/unisync/internal/ucerrors"
)

type fakeState struct {
	state EncryptionState
}

func (f *fakeState) LoadState() (EncryptionState, error) { return f.state, nil }
func (f *fakeState) PersistInitialized() error {
	f.state = EncryptionStateInitialized
	return nil
}

type fakeKeys struct {
	slot    KeySlot
	hasSlot bool
	kek     Secret32
	hasKEK  bool
}

func (f *fakeKeys) LoadKeyslot() (KeySlot, error) {
	if !f.hasSlot {
		return KeySlot{}, errors.New("no keyslot")
	}
	return f.slot, nil
}

func (f *fakeKeys) StoreKeyslot(s KeySlot) error {
	f.slot = s
	f.hasSlot = true
	return nil
}

func (f *fakeKeys) DeleteKeyslot() error {
	f.hasSlot = false
	return nil
}

func (f *fakeKeys) LoadKEK(KeyScope) (Secret32, error) {
	if !f.hasKEK {
		return Secret32{}, errors.New("no kek")
	}
	return f.kek, nil
}

func (f *fakeKeys) StoreKEK(_ KeyScope, kek Secret32) error {
	f.kek = kek
	f.hasKEK = true
	return nil
}

func (f *fakeKeys) DeleteKEK(KeyScope) error {
	f.hasKEK = false
	return nil
}

func TestInitializeThenAutoUnlockYieldsSameMasterKey(t *testing.T) {
	state := &fakeState{state: EncryptionStateUninitialized}
	keys := &fakeKeys{}
	session := NewSession()

	init := &Initializer{State: state, Keys: keys, Session: session}
	if err := init.Initialize("correct horse battery staple"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	mk1, err := session.GetMasterKey()
	if err != nil {
		t.Fatalf("GetMasterKey after Initialize: %v", err)
	}

	// Simulate a restart: fresh session, same persisted state.
	session2 := NewSession()
	unlocker := &AutoUnlocker{State: state, Keys: keys, Session: session2}
	unlocked, err := unlocker.AutoUnlock()
	if err != nil {
		t.Fatalf("AutoUnlock: %v", err)
	}
	if !unlocked {
		t.Fatal("expected AutoUnlock to report true")
	}
	mk2, err := session2.GetMasterKey()
	if err != nil {
		t.Fatalf("GetMasterKey after AutoUnlock: %v", err)
	}
	if !mk1.Equal(mk2) {
		t.Fatal("master key differs between Initialize and AutoUnlock")
	}
}

func TestInitializeRejectsAlreadyInitialized(t *testing.T) {
	state := &fakeState{state: EncryptionStateInitialized}
	init := &Initializer{State: state, Keys: &fakeKeys{}, Session: NewSession()}

	err := init.Initialize("whatever")
	if !errors.Is(err, ucerrors.ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestAutoUnlockOnUninitializedReturnsFalse(t *testing.T) {
	state := &fakeState{state: EncryptionStateUninitialized}
	unlocker := &AutoUnlocker{State: state, Keys: &fakeKeys{}, Session: NewSession()}

	unlocked, err := unlocker.AutoUnlock()
	if err != nil {
		t.Fatalf("AutoUnlock: %v", err)
	}
	if unlocked {
		t.Fatal("expected AutoUnlock to report false on an uninitialized profile")
	}
}

func TestAutoUnlockMissingWrappedMasterKey(t *testing.T) {
	state := &fakeState{state: EncryptionStateInitialized}
	keys := &fakeKeys{hasSlot: true, slot: KeySlot{WrappedMasterKey: nil}, hasKEK: true}
	unlocker := &AutoUnlocker{State: state, Keys: keys, Session: NewSession()}

	if _, err := unlocker.AutoUnlock(); !errors.Is(err, ucerrors.ErrMissingWrappedMaster) {
		t.Fatalf("expected ErrMissingWrappedMaster, got %v", err)
	}
}
