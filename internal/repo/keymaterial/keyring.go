// Package keymaterial provides the non-SQL half of security.KeyMaterialPort:
// KEK storage. An OS keyring is the intended backing store on a real
// deployment; this implementation is a permissioned local-file fallback
// for platforms or builds without one wired in.
package keymaterial

import (
	"fmt"
	"os"
	"path/filepath"

	"go.klb.dev/unisync/internal/security"
)

// LocalKeyring stores each scope's KEK as its own file under dir. Unlike a
// real OS keyring this offers no additional access control beyond file
// permissions; it exists so the daemon has a working KeyMaterialPort
// without inventing a dependency the corpus never shows.
type LocalKeyring struct {
	dir string
}

// New prepares dir as the keyring root.
func New(dir string) (*LocalKeyring, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("keymaterial: create dir: %w", err)
	}
	return &LocalKeyring{dir: dir}, nil
}

func (k *LocalKeyring) path(scope security.KeyScope) string {
	return filepath.Join(k.dir, scope.String()+".kek")
}

func (k *LocalKeyring) LoadKEK(scope security.KeyScope) (security.Secret32, error) {
	raw, err := os.ReadFile(k.path(scope))
	if err != nil {
		return security.Secret32{}, fmt.Errorf("keymaterial: load kek: %w", err)
	}
	if len(raw) != 32 {
		return security.Secret32{}, fmt.Errorf("keymaterial: kek file has wrong length %d", len(raw))
	}
	var b [32]byte
	copy(b[:], raw)
	return security.NewSecret32(b), nil
}

func (k *LocalKeyring) StoreKEK(scope security.KeyScope, kek security.Secret32) error {
	return kek.WithBytes(func(b [32]byte) error {
		if err := os.WriteFile(k.path(scope), b[:], 0o600); err != nil {
			return fmt.Errorf("keymaterial: store kek: %w", err)
		}
		return nil
	})
}

func (k *LocalKeyring) DeleteKEK(scope security.KeyScope) error {
	if err := os.Remove(k.path(scope)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("keymaterial: delete kek: %w", err)
	}
	return nil
}
