package crypto

import (
	"crypto/ed25519"
	"fmt"
	"sync"

	"github.com/druti2k/ai-nFt/pkg/types"
)

// parallelThreshold is the batch size above which signatures are checked
// concurrently.
const parallelThreshold = 4

// VerifySignature reports whether signature is a valid Ed25519 signature
// of message by pubkey. Wrong lengths are reported as invalid.
func VerifySignature(pubkey, message, signature []byte) bool {
	if len(pubkey) != PublicKeySize || len(signature) != SignatureSize {
		return false
	}
	return ed25519.Verify(pubkey, message, signature)
}

// BatchVerifier collects signatures and checks them together.
type BatchVerifier struct {
	mu      sync.Mutex
	entries []batchEntry
}

type batchEntry struct {
	pubkey    []byte
	message   []byte
	signature []byte
}

// NewBatchVerifier creates a verifier sized for capacity signatures.
func NewBatchVerifier(capacity int) *BatchVerifier {
	return &BatchVerifier{entries: make([]batchEntry, 0, capacity)}
}

// Add queues one signature. The slices are not copied.
func (bv *BatchVerifier) Add(pubkey, message, signature []byte) error {
	if len(pubkey) != PublicKeySize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPublicKey, PublicKeySize, len(pubkey))
	}
	if len(signature) != SignatureSize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, SignatureSize, len(signature))
	}
	bv.mu.Lock()
	bv.entries = append(bv.entries, batchEntry{pubkey: pubkey, message: message, signature: signature})
	bv.mu.Unlock()
	return nil
}

// Len returns the number of queued signatures.
func (bv *BatchVerifier) Len() int {
	bv.mu.Lock()
	defer bv.mu.Unlock()
	return len(bv.entries)
}

// Verify checks every queued signature and returns the index of the first
// invalid one, or -1 when all are valid.
func (bv *BatchVerifier) Verify() int {
	bv.mu.Lock()
	entries := make([]batchEntry, len(bv.entries))
	copy(entries, bv.entries)
	bv.mu.Unlock()

	results := make([]bool, len(entries))
	if len(entries) <= parallelThreshold {
		for i, e := range entries {
			results[i] = ed25519.Verify(e.pubkey, e.message, e.signature)
		}
	} else {
		var wg sync.WaitGroup
		wg.Add(len(entries))
		for i := range entries {
			go func(i int) {
				defer wg.Done()
				e := entries[i]
				results[i] = ed25519.Verify(e.pubkey, e.message, e.signature)
			}(i)
		}
		wg.Wait()
	}

	for i, ok := range results {
		if !ok {
			return i
		}
	}
	return -1
}

// VerifyTransaction checks that tx carries one valid signature per
// required signer, in account key order.
func VerifyTransaction(tx *types.Transaction) error {
	if tx == nil {
		return ErrMissingMessage
	}
	n := len(tx.Signatures)
	if n == 0 {
		return ErrNoSignatures
	}
	if required := int(tx.Message.Header.NumRequiredSignatures); n != required {
		return fmt.Errorf("%w: expected %d signatures, got %d", ErrSignatureCountMismatch, required, n)
	}
	if len(tx.Message.AccountKeys) < n {
		return fmt.Errorf("%w: %d signatures for %d account keys", ErrInvalidSignerIndex, n, len(tx.Message.AccountKeys))
	}

	msg, err := tx.Message.Serialize()
	if err != nil {
		return fmt.Errorf("serialize message: %w", err)
	}

	bv := NewBatchVerifier(n)
	for i := 0; i < n; i++ {
		bv.entries = append(bv.entries, batchEntry{
			pubkey:    tx.Message.AccountKeys[i][:],
			message:   msg,
			signature: tx.Signatures[i][:],
		})
	}
	if i := bv.Verify(); i >= 0 {
		return &TransactionVerificationError{
			SignatureIndex: i,
			SignerPubkey:   tx.Message.AccountKeys[i].String(),
			Err:            ErrVerificationFailed,
		}
	}
	return nil
}
