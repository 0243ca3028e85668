package network

import (
	"fmt"

	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

// IdentityStorePort persists the node's long-lived Ed25519 keypair; the
// concrete implementation decides where (see internal/repo/identitystore).
type IdentityStorePort interface {
	Load() (libp2pcrypto.PrivKey, bool, error)
	Store(priv libp2pcrypto.PrivKey) error
}

// LoadOrCreateIdentity returns the node's persistent libp2p identity,
// generating and storing a new Ed25519 keypair on first run. The identity
// is stable thereafter: it is never rotated by this function.
func LoadOrCreateIdentity(store IdentityStorePort) (libp2pcrypto.PrivKey, peer.ID, error) {
	priv, found, err := store.Load()
	if err != nil {
		return nil, "", fmt.Errorf("network: load identity: %w", err)
	}
	if !found {
		priv, _, err = libp2pcrypto.GenerateEd25519Key(nil)
		if err != nil {
			return nil, "", fmt.Errorf("network: generate identity: %w", err)
		}
		if err := store.Store(priv); err != nil {
			return nil, "", fmt.Errorf("network: persist identity: %w", err)
		}
	}

	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return nil, "", fmt.Errorf("network: derive peer id: %w", err)
	}
	return priv, id, nil
}

// PublicKeyBytes returns the raw Ed25519 public key, the form the pairing
// protocol exchanges and fingerprints.
func PublicKeyBytes(priv libp2pcrypto.PrivKey) ([]byte, error) {
	raw, err := priv.GetPublic().Raw()
	if err != nil {
		return nil, fmt.Errorf("network: marshal public key: %w", err)
	}
	return raw, nil
}
