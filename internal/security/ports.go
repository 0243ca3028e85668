package security

// EncryptionStatePort persists the Uninitialized -> Initialized transition.
type EncryptionStatePort interface {
	LoadState() (EncryptionState, error)
	PersistInitialized() error
}

// KeyMaterialPort covers both the keyslot (SQL-backed) and the keyring
// (external secret store) halves of key material persistence. Keyring
// errors are surfaced, never masked, per the repository contract.
type KeyMaterialPort interface {
	LoadKeyslot() (KeySlot, error)
	StoreKeyslot(KeySlot) error
	DeleteKeyslot() error
	LoadKEK(scope KeyScope) (Secret32, error)
	StoreKEK(scope KeyScope, kek Secret32) error
	DeleteKEK(scope KeyScope) error
}
