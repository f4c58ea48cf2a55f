package syscall

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/druti2k/ai-nFt/pkg/types"
)

func TestIsOnCurve(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	assert.True(t, IsOnCurve(pub))

	assert.False(t, IsOnCurve([]byte{1, 2, 3}))
}

func TestFindProgramAddress(t *testing.T) {
	seeds := [][]byte{[]byte("metadata"), types.MetadataProgramID[:], testPubkey("mint").Bytes()}

	pda, bump, err := FindProgramAddress(seeds, types.MetadataProgramID)
	require.NoError(t, err)
	assert.False(t, IsOnCurve(pda[:]))

	again, err := CreateProgramAddress(WithBump(seeds, bump), types.MetadataProgramID)
	require.NoError(t, err)
	assert.Equal(t, pda, again)

	gotBump, err := VerifyProgramAddress(pda, seeds, types.MetadataProgramID)
	require.NoError(t, err)
	assert.Equal(t, bump, gotBump)

	_, err = VerifyProgramAddress(testPubkey("other"), seeds, types.MetadataProgramID)
	assert.ErrorIs(t, err, ErrPDAAddressMismatch)
}

func TestCreateProgramAddress_SeedLimits(t *testing.T) {
	_, err := CreateProgramAddress([][]byte{make([]byte, MaxSeedLen+1)}, types.AINFTProgramID)
	assert.ErrorIs(t, err, ErrSeedTooLong)

	tooMany := make([][]byte, MaxSeeds+1)
	_, err = CreateProgramAddress(tooMany, types.AINFTProgramID)
	assert.ErrorIs(t, err, ErrMaxSeedsExceeded)
}

func TestDeriveAssociatedTokenAddress(t *testing.T) {
	wallet := testPubkey("wallet")
	mint := testPubkey("mint")

	a, _, err := DeriveAssociatedTokenAddress(wallet, mint, types.TokenProgramID)
	require.NoError(t, err)
	b, _, err := DeriveAssociatedTokenAddress(wallet, mint, types.TokenProgramID)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, _, err := DeriveAssociatedTokenAddress(testPubkey("wallet-2"), mint, types.TokenProgramID)
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}
