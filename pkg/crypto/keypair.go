package crypto

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/druti2k/ai-nFt/pkg/types"
)

// Keypair is an Ed25519 signing key with its ledger address.
type Keypair struct {
	PrivateKey ed25519.PrivateKey
	Pubkey     types.Pubkey
}

// NewKeypair generates a random keypair.
func NewKeypair() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, err
	}
	return KeypairFromPrivateKey(priv)
}

// KeypairFromPrivateKey wraps a 64 byte private key.
func KeypairFromPrivateKey(priv []byte) (*Keypair, error) {
	if len(priv) != PrivateKeySize {
		return nil, fmt.Errorf("%w: private key is %d bytes", ErrInvalidKeypair, len(priv))
	}
	key := ed25519.PrivateKey(append([]byte(nil), priv...))
	pub, err := types.PubkeyFromBytes(key.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &Keypair{PrivateKey: key, Pubkey: pub}, nil
}

// LoadKeypair reads a Solana CLI keypair file.
func LoadKeypair(path string) (*Keypair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ints []int
	if err := json.Unmarshal(raw, &ints); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidKeypair, path, err)
	}
	priv := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: %s: byte %d out of range", ErrInvalidKeypair, path, i)
		}
		priv[i] = byte(v)
	}
	kp, err := KeypairFromPrivateKey(priv)
	if err != nil {
		return nil, err
	}
	derived := ed25519.NewKeyFromSeed(priv[:SeedSize])
	if !bytes.Equal(derived[SeedSize:], priv[SeedSize:]) {
		return nil, fmt.Errorf("%w: %s: public key does not match seed", ErrInvalidKeypair, path)
	}
	return kp, nil
}

// Save writes the keypair to path in the Solana CLI format, creating
// parent directories as needed.
func (kp *Keypair) Save(path string) error {
	ints := make([]int, len(kp.PrivateKey))
	for i, b := range kp.PrivateKey {
		ints[i] = int(b)
	}
	raw, err := json.Marshal(ints)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}
