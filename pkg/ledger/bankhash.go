package ledger

import (
	"encoding/binary"

	"github.com/druti2k/ai-nFt/pkg/crypto"
	"github.com/druti2k/ai-nFt/pkg/types"
)

// ComputeBankHash chains a slot's state onto its parent:
// SHA256(parent || accounts_delta_hash || signature_count_le || blockhash).
func ComputeBankHash(parentBankHash, accountsDeltaHash types.Hash, signatureCount uint64, blockhash types.Hash) types.Hash {
	var sigCount [8]byte
	binary.LittleEndian.PutUint64(sigCount[:], signatureCount)
	return crypto.Hashv(parentBankHash[:], accountsDeltaHash[:], sigCount[:], blockhash[:])
}

// blockhashQueue remembers the last capacity blockhashes and the slot
// each was produced at.
type blockhashQueue struct {
	capacity int
	ring     []types.Hash
	slots    map[types.Hash]types.Slot
}

func newBlockhashQueue(capacity int) *blockhashQueue {
	return &blockhashQueue{capacity: capacity, slots: make(map[types.Hash]types.Slot, capacity)}
}

func (q *blockhashQueue) push(hash types.Hash, slot types.Slot) {
	if len(q.ring) == q.capacity {
		delete(q.slots, q.ring[0])
		q.ring = q.ring[1:]
	}
	q.ring = append(q.ring, hash)
	q.slots[hash] = slot
}

func (q *blockhashQueue) contains(hash types.Hash) bool {
	_, ok := q.slots[hash]
	return ok
}
