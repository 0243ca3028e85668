package keymaterial

import "go.klb.dev/unisync/internal/security"

// KeyslotStore is the SQL-backed half of security.KeyMaterialPort.
type KeyslotStore interface {
	LoadKeyslot() (security.KeySlot, error)
	StoreKeyslot(security.KeySlot) error
	DeleteKeyslot() error
}

// Composite satisfies security.KeyMaterialPort by delegating the keyslot
// document to a SQL-backed store and the KEK itself to a LocalKeyring: a
// queryable keyslot row backed by an opaque, separately-secured keyring
// entry.
type Composite struct {
	Keyslots KeyslotStore
	Keyring  *LocalKeyring
}

func (c *Composite) LoadKeyslot() (security.KeySlot, error)      { return c.Keyslots.LoadKeyslot() }
func (c *Composite) StoreKeyslot(s security.KeySlot) error       { return c.Keyslots.StoreKeyslot(s) }
func (c *Composite) DeleteKeyslot() error                        { return c.Keyslots.DeleteKeyslot() }
func (c *Composite) LoadKEK(scope security.KeyScope) (security.Secret32, error) {
	return c.Keyring.LoadKEK(scope)
}
func (c *Composite) StoreKEK(scope security.KeyScope, kek security.Secret32) error {
	return c.Keyring.StoreKEK(scope, kek)
}
func (c *Composite) DeleteKEK(scope security.KeyScope) error { return c.Keyring.DeleteKEK(scope) }
