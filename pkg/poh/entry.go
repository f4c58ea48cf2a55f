package poh

import (
	"crypto/sha256"

	"github.com/druti2k/ai-nFt/pkg/types"
)

// ComputeEntryHash computes the hash of an entry following prevHash.
func ComputeEntryHash(prevHash types.Hash, numHashes uint64, sigs []types.Signature) types.Hash {
	if numHashes == 0 {
		return prevHash
	}

	hash := prevHash
	remaining := numHashes
	if len(sigs) > 0 {
		root := signatureMerkleRoot(sigs)
		h := sha256.New()
		h.Write(prevHash[:])
		h.Write(root[:])
		copy(hash[:], h.Sum(nil))
		remaining--
	}
	for ; remaining > 0; remaining-- {
		hash = sha256.Sum256(hash[:])
	}
	return hash
}

func signatureMerkleRoot(sigs []types.Signature) types.Hash {
	leaves := make([]types.Hash, len(sigs))
	for i, sig := range sigs {
		leaves[i] = sha256.Sum256(sig[:])
	}
	return merkleRoot(leaves)
}

// merkleRoot pairs nodes level by level, promoting an odd last node.
func merkleRoot(leaves []types.Hash) types.Hash {
	if len(leaves) == 0 {
		return types.ZeroHash
	}
	current := append([]types.Hash(nil), leaves...)
	for len(current) > 1 {
		next := make([]types.Hash, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 == len(current) {
				next[i/2] = current[i]
				continue
			}
			h := sha256.New()
			h.Write(current[i][:])
			h.Write(current[i+1][:])
			copy(next[i/2][:], h.Sum(nil))
		}
		current = next
	}
	return current[0]
}
