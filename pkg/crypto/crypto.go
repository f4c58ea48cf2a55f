// Package crypto provides the signature checks and key handling of the
// AI-NFT ledger.
//
// Transactions are signed with Ed25519 over the serialized message. The
// node verifies every required signature before a transaction touches any
// account, and the client tools store keys in the Solana CLI keypair file
// format (a JSON array of the 64 private key bytes).
package crypto

import (
	"errors"
	"fmt"
)

// Ed25519 sizes.
const (
	PublicKeySize  = 32
	SignatureSize  = 64
	PrivateKeySize = 64
	SeedSize       = 32
)

// HashSize is the size of a SHA256 digest.
const HashSize = 32

var (
	ErrInvalidPublicKey       = errors.New("crypto: invalid public key")
	ErrInvalidSignature       = errors.New("crypto: invalid signature")
	ErrVerificationFailed     = errors.New("crypto: signature verification failed")
	ErrNoSignatures           = errors.New("crypto: transaction has no signatures")
	ErrSignatureCountMismatch = errors.New("crypto: signature count mismatch")
	ErrMissingMessage         = errors.New("crypto: missing transaction message")
	ErrInvalidSignerIndex     = errors.New("crypto: invalid signer index")
	ErrInvalidKeypair         = errors.New("crypto: invalid keypair")
)

// TransactionVerificationError names the signer whose signature failed.
type TransactionVerificationError struct {
	SignatureIndex int
	SignerPubkey   string
	Err            error
}

func (e *TransactionVerificationError) Error() string {
	return fmt.Sprintf("crypto: transaction verification failed for signer %s (signature index %d): %v",
		e.SignerPubkey, e.SignatureIndex, e.Err)
}

func (e *TransactionVerificationError) Unwrap() error {
	return e.Err
}
