package identity

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const (
	// PrivateKeySize is the width of a raw secp256k1 scalar.
	PrivateKeySize = 32
	// PublicKeySize is the width of a compressed secp256k1 point.
	PublicKeySize = 33
)

// Identity holds a node's secp256k1 static keypair, the long-term identity
// used as the "S" key in the Noise XK handshake.
type Identity struct {
	PrivateKey [PrivateKeySize]byte
	PublicKey  [PublicKeySize]byte

	priv *secp256k1.PrivateKey
}

// Generate creates a new random identity.
func Generate() (*Identity, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}
	return fromPrivateKey(priv), nil
}

// FromPrivateKey recreates an identity from a raw 32-byte scalar.
func FromPrivateKey(privKey [PrivateKeySize]byte) (*Identity, error) {
	priv := secp256k1.PrivKeyFromBytes(privKey[:])
	return fromPrivateKey(priv), nil
}

func fromPrivateKey(priv *secp256k1.PrivateKey) *Identity {
	id := &Identity{priv: priv}
	copy(id.PrivateKey[:], priv.Serialize())
	copy(id.PublicKey[:], priv.PubKey().SerializeCompressed())
	return id
}

// LoadOrGenerate loads an identity's private key from path, or generates
// and persists a new one if the file does not yet exist.
func LoadOrGenerate(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != PrivateKeySize {
			return nil, fmt.Errorf("identity file %s: expected %d bytes, got %d", path, PrivateKeySize, len(data))
		}
		var privKey [PrivateKeySize]byte
		copy(privKey[:], data)
		return FromPrivateKey(privKey)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read identity: %w", err)
	}

	id, err := Generate()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create identity directory: %w", err)
	}
	if err := os.WriteFile(path, id.PrivateKey[:], 0600); err != nil {
		return nil, fmt.Errorf("save identity: %w", err)
	}
	return id, nil
}

// SecpPrivateKey returns the decoded private key, ready to hand to a
// noise.Machine.
func (id *Identity) SecpPrivateKey() *secp256k1.PrivateKey {
	return id.priv
}

// PublicKeyHex returns the compressed public key as a hex string.
func (id *Identity) PublicKeyHex() string {
	return hex.EncodeToString(id.PublicKey[:])
}

// String returns a human-readable identity summary.
func (id *Identity) String() string {
	return fmt.Sprintf("Identity{pubkey=%s...}", id.PublicKeyHex()[:16])
}
