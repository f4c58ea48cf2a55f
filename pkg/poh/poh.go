// Package poh chains the ledger's slots into a Proof of History sequence.
//
// Each entry hashes its predecessor NumHashes times. An entry that
// records transactions first mixes in the merkle root of their
// signatures:
//   - tick: hash = SHA256^numHashes(prevHash)
//   - record: hash = SHA256(prevHash || sig_merkle_root), then iterate
package poh

import (
	"errors"
	"fmt"

	"github.com/druti2k/ai-nFt/pkg/types"
)

var (
	ErrHashMismatch     = errors.New("poh: entry hash does not match expected hash")
	ErrInvalidNumHashes = errors.New("poh: invalid number of hashes (must be > 0)")
	ErrInvalidEntry     = errors.New("poh: malformed or invalid entry")
)

// Entry is one link of the chain.
type Entry struct {
	NumHashes  uint64
	Hash       types.Hash
	Signatures []types.Signature
}

// IsTick reports whether the entry records nothing.
func (e *Entry) IsTick() bool {
	return len(e.Signatures) == 0
}

// Recorder produces entries. It is not safe for concurrent use.
type Recorder struct {
	hash           types.Hash
	hashesPerEntry uint64
}

// NewRecorder starts a chain at start. hashesPerEntry below one is
// treated as one.
func NewRecorder(start types.Hash, hashesPerEntry uint64) *Recorder {
	if hashesPerEntry == 0 {
		hashesPerEntry = 1
	}
	return &Recorder{hash: start, hashesPerEntry: hashesPerEntry}
}

// Record appends an entry mixing in sigs.
func (r *Recorder) Record(sigs ...types.Signature) Entry {
	entry := Entry{
		NumHashes:  r.hashesPerEntry,
		Hash:       ComputeEntryHash(r.hash, r.hashesPerEntry, sigs),
		Signatures: append([]types.Signature(nil), sigs...),
	}
	r.hash = entry.Hash
	return entry
}

// Tick appends an entry that records nothing.
func (r *Recorder) Tick() Entry {
	return r.Record()
}

// Hash returns the hash of the last entry.
func (r *Recorder) Hash() types.Hash {
	return r.hash
}

// Verifier replays a chain from a known hash.
type Verifier struct {
	currentHash types.Hash
	tickCount   uint64
}

func NewVerifier(initialHash types.Hash) *Verifier {
	return &Verifier{currentHash: initialHash}
}

// VerifyEntry checks entry against the current hash and advances to it.
func (v *Verifier) VerifyEntry(entry *Entry) error {
	if entry == nil {
		return ErrInvalidEntry
	}
	if entry.NumHashes == 0 {
		return ErrInvalidNumHashes
	}

	expected := ComputeEntryHash(v.currentHash, entry.NumHashes, entry.Signatures)
	if entry.Hash != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, expected, entry.Hash)
	}

	v.currentHash = entry.Hash
	if entry.IsTick() {
		v.tickCount++
	}
	return nil
}

// VerifyEntries verifies a continuous run of entries. On failure the
// verifier stays at the last good entry.
func (v *Verifier) VerifyEntries(entries []Entry) error {
	for i := range entries {
		if err := v.VerifyEntry(&entries[i]); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return nil
}

func (v *Verifier) CurrentHash() types.Hash {
	return v.currentHash
}

func (v *Verifier) TickCount() uint64 {
	return v.tickCount
}
