package accounts

import (
	"bytes"
	"sort"

	"github.com/druti2k/ai-nFt/pkg/types"
)

const (
	// merkleArity is the number of children per node in the Merkle tree.
	merkleArity = 16
)

// ComputeAccountsDeltaHash computes a 16-ary Merkle tree hash over a set of
// account changes. Deltas are sorted by pubkey first; a deleted account
// hashes as an empty account.
func ComputeAccountsDeltaHash(deltas []types.AccountDelta) types.Hash {
	if len(deltas) == 0 {
		return types.ZeroHash
	}

	sorted := make([]types.AccountDelta, len(deltas))
	copy(sorted, deltas)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Pubkey[:], sorted[j].Pubkey[:]) < 0
	})

	hashes := make([]types.Hash, len(sorted))
	for i, d := range sorted {
		account := d.NewAccount
		if account == nil {
			account = &types.Account{}
		}
		hashes[i] = account.Hash(d.Pubkey)
	}

	return computeMerkleRoot(hashes)
}

// ComputeAccountsHash hashes the full contents of db.
func ComputeAccountsHash(db AccountsDB) (types.Hash, error) {
	var deltas []types.AccountDelta
	err := db.ForEach(func(pubkey types.Pubkey, account *types.Account) error {
		deltas = append(deltas, types.AccountDelta{Pubkey: pubkey, NewAccount: account})
		return nil
	})
	if err != nil {
		return types.ZeroHash, err
	}
	return ComputeAccountsDeltaHash(deltas), nil
}

// computeMerkleRoot computes the root of a 16-ary Merkle tree.
func computeMerkleRoot(hashes []types.Hash) types.Hash {
	if len(hashes) == 0 {
		return types.ZeroHash
	}
	if len(hashes) == 1 {
		return hashes[0]
	}

	// Process level by level until we have a single root
	for len(hashes) > 1 {
		hashes = computeNextLevel(hashes)
	}

	return hashes[0]
}

// computeNextLevel computes the next level of the 16-ary Merkle tree.
func computeNextLevel(hashes []types.Hash) []types.Hash {
	numParents := (len(hashes) + merkleArity - 1) / merkleArity
	parents := make([]types.Hash, numParents)

	for i := 0; i < numParents; i++ {
		start := i * merkleArity
		end := start + merkleArity
		if end > len(hashes) {
			end = len(hashes)
		}

		parents[i] = hashChildren(hashes[start:end])
	}

	return parents
}

// hashChildren computes the hash of a group of child nodes.
func hashChildren(children []types.Hash) types.Hash {
	if len(children) == 0 {
		return types.ZeroHash
	}
	if len(children) == 1 {
		return children[0]
	}

	// Concatenate all child hashes and compute SHA256
	data := make([]byte, 0, len(children)*32)
	for _, child := range children {
		data = append(data, child[:]...)
	}

	return types.SHA256(data)
}
