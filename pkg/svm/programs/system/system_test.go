package system

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/druti2k/ai-nFt/pkg/svm/syscall"
	"github.com/druti2k/ai-nFt/pkg/types"
)

func testPubkey(seed string) types.Pubkey {
	return sha256.Sum256([]byte(seed))
}

// run executes ix against fresh account infos built from its metas.
func run(t *testing.T, ix types.Instruction, balances map[types.Pubkey]uint64) ([]*syscall.AccountInfo, error) {
	t.Helper()

	infos := make([]*syscall.AccountInfo, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		infos[i] = syscall.NewAccountInfo(meta.Pubkey, nil, meta.IsSigner, meta.IsWritable)
		*infos[i].Lamports = balances[meta.Pubkey]
	}
	ctx := syscall.NewExecutionContext(ix.ProgramID, infos, ix.Data, 200_000)
	return infos, New().Execute(ctx, &ix)
}

func TestCreateAccount(t *testing.T) {
	payer := testPubkey("payer")
	mint := testPubkey("mint")
	rent := uint64(types.RentExemptMinimum(82))

	infos, err := run(t, CreateAccount(payer, mint, types.TokenProgramID, rent, 82), map[types.Pubkey]uint64{
		payer: rent + 1_000,
	})
	require.NoError(t, err)

	assert.EqualValues(t, 1_000, *infos[0].Lamports)
	assert.EqualValues(t, rent, *infos[1].Lamports)
	assert.Len(t, infos[1].Data, 82)
	assert.Equal(t, types.TokenProgramID, infos[1].Owner)
}

func TestCreateAccount_Errors(t *testing.T) {
	payer := testPubkey("payer")
	target := testPubkey("target")
	rent := uint64(types.RentExemptMinimum(10))

	_, err := run(t, CreateAccount(payer, target, types.TokenProgramID, rent-1, 10), map[types.Pubkey]uint64{payer: rent})
	assert.ErrorIs(t, err, ErrAccountNotRentExempt)

	_, err = run(t, CreateAccount(payer, target, types.TokenProgramID, rent, 10), map[types.Pubkey]uint64{payer: rent - 1})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = run(t, CreateAccount(payer, target, types.TokenProgramID, rent, 10), map[types.Pubkey]uint64{payer: rent, target: 1})
	assert.ErrorIs(t, err, ErrAccountAlreadyExists)

	ix := CreateAccount(payer, target, types.TokenProgramID, rent, 10)
	ix.Accounts[1].IsSigner = false
	_, err = run(t, ix, map[types.Pubkey]uint64{payer: rent})
	assert.ErrorIs(t, err, ErrAccountNotSigner)
}

func TestTransfer(t *testing.T) {
	from := testPubkey("from")
	to := testPubkey("to")

	infos, err := run(t, Transfer(from, to, 300), map[types.Pubkey]uint64{from: 1_000, to: 5})
	require.NoError(t, err)
	assert.EqualValues(t, 700, *infos[0].Lamports)
	assert.EqualValues(t, 305, *infos[1].Lamports)

	_, err = run(t, Transfer(from, to, 2_000), map[types.Pubkey]uint64{from: 1_000})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestAssignAndAllocate(t *testing.T) {
	acct := testPubkey("acct")

	infos, err := run(t, Allocate(acct, 32), nil)
	require.NoError(t, err)
	assert.Len(t, infos[0].Data, 32)

	infos, err = run(t, Assign(acct, types.MetadataProgramID), nil)
	require.NoError(t, err)
	assert.Equal(t, types.MetadataProgramID, infos[0].Owner)
}

func TestExecute_UnknownInstruction(t *testing.T) {
	ix := types.Instruction{ProgramID: types.SystemProgramID, Data: []byte{99, 0, 0, 0}}
	_, err := run(t, ix, nil)
	assert.ErrorIs(t, err, ErrInvalidInstructionData)

	ix.Data = []byte{1}
	_, err = run(t, ix, nil)
	assert.ErrorIs(t, err, ErrInvalidInstructionData)
}
