package orbit

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

// Identity is the key pair a session's host is known by.
type Identity struct {
	PrivateKey crypto.PrivKey
	PeerID     peer.ID
}

// GenerateIdentity creates a fresh Ed25519 identity.
func GenerateIdentity() (*Identity, error) {
	priv, _, err := crypto.GenerateKeyPairWithReader(crypto.Ed25519, 2048, rand.Reader)
	if err != nil {
		return nil, err
	}
	return identityFromKey(priv)
}

// SaveIdentity writes the private key to path with owner-only permissions.
func SaveIdentity(id *Identity, path string) error {
	data, err := crypto.MarshalPrivateKey(id.PrivateKey)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LoadIdentity reads a key written by SaveIdentity.
func LoadIdentity(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	priv, err := crypto.UnmarshalPrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("invalid identity file %s: %w", path, err)
	}
	return identityFromKey(priv)
}

// LoadOrCreateIdentity loads the identity at path, creating and saving a
// new one when the file does not exist yet.
func LoadOrCreateIdentity(path string) (*Identity, error) {
	id, err := LoadIdentity(path)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if id, err = GenerateIdentity(); err != nil {
		return nil, err
	}
	if err := SaveIdentity(id, path); err != nil {
		return nil, fmt.Errorf("failed to save identity: %w", err)
	}
	return id, nil
}

func identityFromKey(priv crypto.PrivKey) (*Identity, error) {
	pid, err := peer.IDFromPublicKey(priv.GetPublic())
	if err != nil {
		return nil, err
	}
	return &Identity{PrivateKey: priv, PeerID: pid}, nil
}
