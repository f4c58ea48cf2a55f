package metadata

import (
	"crypto/sha256"
	"errors"
	"strings"
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
	types.SystemProgramID:   system.New(),
	types.MetadataProgramID: New(),
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

func (l ledger) record(t *testing.T, pubkey types.Pubkey) *Metadata {
	t.Helper()
	require.NotNil(t, l[pubkey])
	md, err := DeserializeMetadata(l[pubkey].Data)
	require.NoError(t, err)
	return md
}

func setup(t *testing.T) (l ledger, creator, mint, metadata types.Pubkey) {
	l = ledger{}
	creator, mint = testPubkey("creator"), testPubkey("mint")
	l[creator] = &types.Account{Lamports: 10_000_000, Owner: types.SystemProgramID}
	l[mint] = &types.Account{
		Lamports: types.RentExemptMinimum(token.MintSize),
		Data:     token.NewMint(0, creator, &creator).Serialize(),
		Owner:    types.TokenProgramID,
	}

	var err error
	metadata, _, err = Address(mint)
	require.NoError(t, err)
	return
}

var artArgs = CreateMetadataAccountArgs{Name: "AI Art #1", Symbol: "AIA", URI: "https://x/1.json", IsMutable: true}

func TestCreateMetadataAccount(t *testing.T) {
	l, creator, mint, metadata := setup(t)

	require.NoError(t, l.run(t, CreateMetadataAccount(metadata, mint, creator, creator, creator, artArgs)))

	acc := l[metadata]
	assert.Equal(t, types.MetadataProgramID, acc.Owner)
	assert.Equal(t, types.RentExemptMinimum(MaxMetadataLen), acc.Lamports)

	md := l.record(t, metadata)
	assert.Equal(t, Metadata{
		Key:             KeyMetadataV1,
		UpdateAuthority: creator,
		Mint:            mint,
		Name:            "AI Art #1",
		Symbol:          "AIA",
		URI:             "https://x/1.json",
		IsMutable:       true,
	}, *md)

	err := l.run(t, CreateMetadataAccount(metadata, mint, creator, creator, creator, artArgs))
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestCreateMetadataAccount_Rejections(t *testing.T) {
	l, creator, mint, metadata := setup(t)

	err := l.run(t, CreateMetadataAccount(testPubkey("elsewhere"), mint, creator, creator, creator, artArgs))
	assert.ErrorIs(t, err, ErrAddressMismatch)

	stranger := testPubkey("stranger")
	l[stranger] = &types.Account{Lamports: 10_000_000, Owner: types.SystemProgramID}
	err = l.run(t, CreateMetadataAccount(metadata, mint, stranger, stranger, stranger, artArgs))
	assert.ErrorIs(t, err, ErrInvalidMintAuthority)

	long := artArgs
	long.Symbol = strings.Repeat("S", MaxSymbolLength+1)
	err = l.run(t, CreateMetadataAccount(metadata, mint, creator, creator, creator, long))
	assert.ErrorIs(t, err, ErrFieldTooLong)

	ix := CreateMetadataAccount(metadata, mint, creator, creator, creator, artArgs)
	ix.Accounts[2].IsSigner = false
	assert.ErrorIs(t, l.run(t, ix), ErrMissingSignature)

	assert.Nil(t, l[metadata])
}

func TestUpdateMetadataAccount(t *testing.T) {
	l, creator, mint, metadata := setup(t)
	require.NoError(t, l.run(t, CreateMetadataAccount(metadata, mint, creator, creator, creator, artArgs)))

	uri := "https://x/1-v2.json"
	require.NoError(t, l.run(t, UpdateMetadataAccount(metadata, creator, UpdateMetadataAccountArgs{URI: &uri})))
	assert.Equal(t, uri, l.record(t, metadata).URI)

	stranger := testPubkey("stranger")
	err := l.run(t, UpdateMetadataAccount(metadata, stranger, UpdateMetadataAccountArgs{URI: &uri}))
	assert.ErrorIs(t, err, ErrUpdateAuthority)

	newAuthority := testPubkey("new-authority")
	frozen := false
	require.NoError(t, l.run(t, UpdateMetadataAccount(metadata, creator, UpdateMetadataAccountArgs{
		NewUpdateAuthority: &newAuthority,
		IsMutable:          &frozen,
	})))
	md := l.record(t, metadata)
	assert.Equal(t, newAuthority, md.UpdateAuthority)
	assert.False(t, md.IsMutable)

	err = l.run(t, UpdateMetadataAccount(metadata, newAuthority, UpdateMetadataAccountArgs{URI: &uri}))
	assert.ErrorIs(t, err, ErrImmutable)
}
