package poh

import (
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/druti2k/ai-nFt/pkg/types"
)

func hashFromBytes(data []byte) types.Hash {
	return types.Hash(sha256.Sum256(data))
}

func sig(b byte) types.Signature {
	var s types.Signature
	s[0] = b
	return s
}

func TestComputeEntryHash_Tick(t *testing.T) {
	prev := hashFromBytes([]byte("genesis"))

	want := prev
	for i := 0; i < 3; i++ {
		want = sha256.Sum256(want[:])
	}
	if got := ComputeEntryHash(prev, 3, nil); got != want {
		t.Errorf("tick hash = %s, want %s", got, want)
	}
	if got := ComputeEntryHash(prev, 0, nil); got != prev {
		t.Errorf("zero hashes should return prev, got %s", got)
	}
}

func TestComputeEntryHash_Record(t *testing.T) {
	prev := hashFromBytes([]byte("genesis"))
	s := sig(7)

	leaf := sha256.Sum256(s[:])
	h := sha256.New()
	h.Write(prev[:])
	h.Write(leaf[:])
	var want types.Hash
	copy(want[:], h.Sum(nil))

	if got := ComputeEntryHash(prev, 1, []types.Signature{s}); got != want {
		t.Errorf("record hash = %s, want %s", got, want)
	}

	want = sha256.Sum256(want[:])
	if got := ComputeEntryHash(prev, 2, []types.Signature{s}); got != want {
		t.Errorf("record hash with 2 iterations = %s, want %s", got, want)
	}
}

func TestMerkleRoot(t *testing.T) {
	a, b, c := hashFromBytes([]byte("a")), hashFromBytes([]byte("b")), hashFromBytes([]byte("c"))

	if got := merkleRoot(nil); got != types.ZeroHash {
		t.Errorf("empty root = %s", got)
	}
	if got := merkleRoot([]types.Hash{a}); got != a {
		t.Errorf("single leaf root = %s", got)
	}

	ab := types.Hash(sha256.Sum256(append(a[:], b[:]...)))
	if got := merkleRoot([]types.Hash{a, b}); got != ab {
		t.Errorf("pair root = %s, want %s", got, ab)
	}
	// c is promoted unchanged to the second level
	abc := types.Hash(sha256.Sum256(append(ab[:], c[:]...)))
	if got := merkleRoot([]types.Hash{a, b, c}); got != abc {
		t.Errorf("odd root = %s, want %s", got, abc)
	}
}

func TestRecorderAndVerifier(t *testing.T) {
	start := hashFromBytes([]byte("genesis"))
	r := NewRecorder(start, 4)

	entries := []Entry{r.Record(sig(1)), r.Tick(), r.Record(sig(2), sig(3))}
	if r.Hash() != entries[2].Hash {
		t.Fatalf("recorder hash %s does not match last entry", r.Hash())
	}

	v := NewVerifier(start)
	if err := v.VerifyEntries(entries); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if v.CurrentHash() != r.Hash() {
		t.Errorf("verifier at %s, want %s", v.CurrentHash(), r.Hash())
	}
	if v.TickCount() != 1 {
		t.Errorf("tick count = %d, want 1", v.TickCount())
	}
}

func TestVerifier_Rejects(t *testing.T) {
	start := hashFromBytes([]byte("genesis"))
	r := NewRecorder(start, 1)
	entries := []Entry{r.Record(sig(1)), r.Record(sig(2)), r.Record(sig(3))}

	tampered := append([]Entry(nil), entries...)
	tampered[1].Signatures = []types.Signature{sig(9)}

	v := NewVerifier(start)
	err := v.VerifyEntries(tampered)
	if !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("expected ErrHashMismatch, got %v", err)
	}
	if v.CurrentHash() != entries[0].Hash {
		t.Errorf("verifier should stay at the last good entry")
	}

	if err := NewVerifier(start).VerifyEntry(nil); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("nil entry: %v", err)
	}
	if err := NewVerifier(start).VerifyEntry(&Entry{}); !errors.Is(err, ErrInvalidNumHashes) {
		t.Errorf("zero hashes: %v", err)
	}
}

func TestNewRecorder_MinimumHashes(t *testing.T) {
	start := hashFromBytes([]byte("genesis"))
	e := NewRecorder(start, 0).Tick()
	if e.NumHashes != 1 {
		t.Errorf("NumHashes = %d, want 1", e.NumHashes)
	}
}

func BenchmarkRecord(b *testing.B) {
	r := NewRecorder(hashFromBytes([]byte("genesis")), 64)
	s := sig(1)
	for i := 0; i < b.N; i++ {
		r.Record(s)
	}
}
