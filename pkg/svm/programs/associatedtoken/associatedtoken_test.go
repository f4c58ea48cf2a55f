package associatedtoken

import (
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/druti2k/ai-nFt/pkg/svm/programs/system"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/token"
	"github.com/druti2k/ai-nFt/pkg/svm/syscall"
	"github.com/druti2k/ai-nFt/pkg/types"
)

type program interface {
	Execute(ctx *syscall.ExecutionContext, instruction *types.Instruction) error
}

type programs map[types.Pubkey]program

func (p programs) ExecuteProgram(ctx *syscall.ExecutionContext) error {
	prog, ok := p[ctx.ProgramID]
	if !ok {
		return errors.New("program not registered")
	}
	ix := ctx.Instruction()
	return prog.Execute(ctx, &ix)
}

var registry = programs{
	types.SystemProgramID:          system.New(),
	types.TokenProgramID:           token.New(),
	types.AssociatedTokenProgramID: New(),
}

func testPubkey(seed string) types.Pubkey {
	return sha256.Sum256([]byte(seed))
}

type ledger map[types.Pubkey]*types.Account

func (l ledger) run(t *testing.T, ix types.Instruction) error {
	t.Helper()

	infos := make([]*syscall.AccountInfo, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		infos[i] = syscall.NewAccountInfo(meta.Pubkey, l[meta.Pubkey], meta.IsSigner, meta.IsWritable)
	}
	ctx := syscall.NewExecutionContext(ix.ProgramID, infos, ix.Data, 200_000)
	ctx.SetExecutor(registry)
	if err := registry.ExecuteProgram(ctx); err != nil {
		return err
	}
	for _, info := range infos {
		l[info.Pubkey] = info.ToAccount()
	}
	return nil
}

func setup(t *testing.T) (l ledger, payer, wallet, mint, ata types.Pubkey) {
	l = ledger{}
	payer, wallet, mint = testPubkey("payer"), testPubkey("wallet"), testPubkey("mint")
	l[payer] = &types.Account{Lamports: 10_000_000, Owner: types.SystemProgramID}
	l[mint] = &types.Account{
		Lamports: types.RentExemptMinimum(token.MintSize),
		Data:     token.NewMint(0, wallet, nil).Serialize(),
		Owner:    types.TokenProgramID,
	}

	var err error
	ata, err = Address(wallet, mint)
	require.NoError(t, err)
	return
}

func TestCreate(t *testing.T) {
	l, payer, wallet, mint, ata := setup(t)

	require.NoError(t, l.run(t, Create(payer, ata, wallet, mint)))

	acc := l[ata]
	assert.Equal(t, types.TokenProgramID, acc.Owner)
	assert.Equal(t, types.RentExemptMinimum(token.TokenAccountSize), acc.Lamports)

	state, err := token.DeserializeTokenAccount(acc.Data)
	require.NoError(t, err)
	assert.Equal(t, wallet, state.Owner)
	assert.Equal(t, mint, state.Mint)
	assert.Zero(t, state.Amount)

	assert.Equal(t, 10_000_000-types.RentExemptMinimum(token.TokenAccountSize), l[payer].Lamports)
}

func TestCreate_AlreadyExists(t *testing.T) {
	l, payer, wallet, mint, ata := setup(t)
	require.NoError(t, l.run(t, Create(payer, ata, wallet, mint)))

	assert.ErrorIs(t, l.run(t, Create(payer, ata, wallet, mint)), ErrAccountAlreadyExists)

	before := l[payer].Lamports
	require.NoError(t, l.run(t, CreateIdempotent(payer, ata, wallet, mint)))
	assert.Equal(t, before, l[payer].Lamports)
}

func TestCreateIdempotent_WrongState(t *testing.T) {
	l, payer, wallet, mint, ata := setup(t)
	l[ata] = &types.Account{
		Lamports: types.RentExemptMinimum(token.TokenAccountSize),
		Data:     token.NewTokenAccount(mint, testPubkey("someone-else")).Serialize(),
		Owner:    types.TokenProgramID,
	}

	assert.ErrorIs(t, l.run(t, CreateIdempotent(payer, ata, wallet, mint)), ErrIllegalOwner)
}

func TestCreate_AddressMismatch(t *testing.T) {
	l, payer, wallet, mint, _ := setup(t)
	assert.ErrorIs(t, l.run(t, Create(payer, testPubkey("not-the-ata"), wallet, mint)), ErrAddressMismatch)
}

func TestCreate_UninitializedMint(t *testing.T) {
	l, payer, wallet, mint, ata := setup(t)
	l[mint].Data = make([]byte, token.MintSize)

	err := l.run(t, Create(payer, ata, wallet, mint))
	assert.ErrorIs(t, err, token.ErrNotInitialized)
	assert.Nil(t, l[ata])
}

func TestCreate_RequiresPayerSignature(t *testing.T) {
	l, payer, wallet, mint, ata := setup(t)
	ix := Create(payer, ata, wallet, mint)
	ix.Accounts[0].IsSigner = false
	assert.ErrorIs(t, l.run(t, ix), ErrPayerNotSigner)
}
