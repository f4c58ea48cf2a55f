package syscall

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"

	"github.com/druti2k/ai-nFt/pkg/types"
)

// PDA constants
const (
	// MaxSeeds is the maximum number of seeds for PDA derivation
	MaxSeeds = 16
	// MaxSeedLen is the maximum length of a single seed
	MaxSeedLen = 32
	// PDAMarker is the string appended during PDA derivation
	PDAMarker = "ProgramDerivedAddress"
)

// PDA errors
var (
	ErrMaxSeedsExceeded   = errors.New("max seeds exceeded")
	ErrSeedTooLong        = errors.New("seed too long")
	ErrInvalidSeeds       = errors.New("seeds produce an address on the ed25519 curve")
	ErrPDABumpNotFound    = errors.New("no viable bump seed")
	ErrPDAAddressMismatch = errors.New("address does not match derived PDA")
)

// CreateProgramAddress derives SHA256(seeds... || program_id || marker) and
// rejects results that are valid ed25519 points, since those could have a
// private key.
func CreateProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return types.ZeroPubkey, ErrMaxSeedsExceeded
	}

	hasher := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return types.ZeroPubkey, fmt.Errorf("%w: %d bytes", ErrSeedTooLong, len(seed))
		}
		hasher.Write(seed)
	}
	hasher.Write(programID[:])
	hasher.Write([]byte(PDAMarker))

	var pda types.Pubkey
	copy(pda[:], hasher.Sum(nil))

	if IsOnCurve(pda[:]) {
		return types.ZeroPubkey, ErrInvalidSeeds
	}
	return pda, nil
}

// FindProgramAddress finds a valid PDA by trying bump seeds from 255 to 0.
func FindProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return types.ZeroPubkey, 0, ErrMaxSeedsExceeded
	}

	seedsWithBump := make([][]byte, len(seeds)+1)
	copy(seedsWithBump, seeds)
	bumpSeed := []byte{0}
	seedsWithBump[len(seeds)] = bumpSeed

	for bump := 255; bump >= 0; bump-- {
		bumpSeed[0] = uint8(bump)
		pda, err := CreateProgramAddress(seedsWithBump, programID)
		if err == nil {
			return pda, uint8(bump), nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return types.ZeroPubkey, 0, err
		}
	}
	return types.ZeroPubkey, 0, ErrPDABumpNotFound
}

// VerifyProgramAddress finds the canonical PDA for seeds and checks that it
// equals address. It returns the bump on success.
func VerifyProgramAddress(address types.Pubkey, seeds [][]byte, programID types.Pubkey) (uint8, error) {
	pda, bump, err := FindProgramAddress(seeds, programID)
	if err != nil {
		return 0, err
	}
	if pda != address {
		return 0, fmt.Errorf("%w: expected %s, got %s", ErrPDAAddressMismatch, pda, address)
	}
	return bump, nil
}

// IsOnCurve reports whether b decodes to a point on the ed25519 curve.
func IsOnCurve(b []byte) bool {
	if len(b) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// AssociatedTokenSeeds returns the seeds of a wallet's token account for
// mint, without the bump.
func AssociatedTokenSeeds(wallet, mint, tokenProgram types.Pubkey) [][]byte {
	return [][]byte{wallet[:], tokenProgram[:], mint[:]}
}

// DeriveAssociatedTokenAddress derives the ATA for a wallet and mint.
func DeriveAssociatedTokenAddress(wallet, mint, tokenProgram types.Pubkey) (types.Pubkey, uint8, error) {
	return FindProgramAddress(AssociatedTokenSeeds(wallet, mint, tokenProgram), types.AssociatedTokenProgramID)
}

// DerivePDA is a helper to derive a PDA with string seeds.
func DerivePDA(programID types.Pubkey, seeds ...string) (types.Pubkey, uint8, error) {
	byteSeeds := make([][]byte, len(seeds))
	for i, s := range seeds {
		byteSeeds[i] = []byte(s)
	}
	return FindProgramAddress(byteSeeds, programID)
}

// WithBump returns seeds with the bump byte appended, ready to be passed as
// CPI signer seeds.
func WithBump(seeds [][]byte, bump uint8) [][]byte {
	out := make([][]byte, len(seeds), len(seeds)+1)
	copy(out, seeds)
	return append(out, []byte{bump})
}
