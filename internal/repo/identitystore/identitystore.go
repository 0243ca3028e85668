// Package identitystore persists the node's libp2p identity keypair to a
// single file, created on first run and stable thereafter.
package identitystore

import (
	"fmt"
	"os"

	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
)

// Store implements network.IdentityStorePort over a flat file containing
// the protobuf-marshaled private key.
type Store struct {
	path string
}

// New targets path as the identity file; it is not created until Store is
// called.
func New(path string) *Store { return &Store{path: path} }

func (s *Store) Load() (libp2pcrypto.PrivKey, bool, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("identitystore: read: %w", err)
	}
	priv, err := libp2pcrypto.UnmarshalPrivateKey(raw)
	if err != nil {
		return nil, false, fmt.Errorf("identitystore: unmarshal: %w", err)
	}
	return priv, true, nil
}

func (s *Store) Store(priv libp2pcrypto.PrivKey) error {
	raw, err := libp2pcrypto.MarshalPrivateKey(priv)
	if err != nil {
		return fmt.Errorf("identitystore: marshal: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("identitystore: write: %w", err)
	}
	return nil
}
