package ainft

import (
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/druti2k/ai-nFt/pkg/svm/programs/associatedtoken"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/metadata"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/system"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/token"
	"github.com/druti2k/ai-nFt/pkg/svm/syscall"
	"github.com/druti2k/ai-nFt/pkg/types"
)

func testPubkey(seed string) types.Pubkey {
	return sha256.Sum256([]byte(seed))
}

// recordingInvoker records sub-calls instead of executing them.
type recordingInvoker struct {
	calls []types.Instruction
	seeds [][][][]byte
	fail  map[types.Pubkey]error
}

func (r *recordingInvoker) Invoke(instruction types.Instruction, signerSeeds ...[][]byte) error {
	r.calls = append(r.calls, instruction)
	r.seeds = append(r.seeds, signerSeeds)
	return r.fail[instruction.ProgramID]
}

func (r *recordingInvoker) programs() []types.Pubkey {
	ids := make([]types.Pubkey, len(r.calls))
	for i, call := range r.calls {
		ids[i] = call.ProgramID
	}
	return ids
}

// contextFor builds a context holding fresh accounts for ix's metas.
func contextFor(ix types.Instruction) *syscall.ExecutionContext {
	infos := make([]*syscall.AccountInfo, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		infos[i] = syscall.NewAccountInfo(meta.Pubkey, nil, meta.IsSigner, meta.IsWritable)
	}
	return syscall.NewExecutionContext(ix.ProgramID, infos, ix.Data, 400_000)
}

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
	types.AssociatedTokenProgramID: associatedtoken.New(),
	types.MetadataProgramID:        metadata.New(),
	types.AINFTProgramID:           New(),
}

// ledger is a map-backed account store that applies an instruction only
// when it succeeds, like a single-instruction transaction.
type ledger map[types.Pubkey]*types.Account

func (l ledger) run(t *testing.T, ix types.Instruction) ([]string, error) {
	t.Helper()

	infos := make([]*syscall.AccountInfo, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		infos[i] = syscall.NewAccountInfo(meta.Pubkey, l[meta.Pubkey], meta.IsSigner, meta.IsWritable)
	}
	ctx := syscall.NewExecutionContext(ix.ProgramID, infos, ix.Data, 1_400_000)
	ctx.SetExecutor(registry)

	err := registry.ExecuteProgram(ctx)
	if err == nil {
		err = ctx.VerifyChanges()
	}
	if err != nil {
		return ctx.GetLogs(), err
	}
	for _, info := range infos {
		l[info.Pubkey] = info.ToAccount()
	}
	return ctx.GetLogs(), nil
}

func (l ledger) fund(pubkey types.Pubkey, lamports types.Lamports) {
	l[pubkey] = &types.Account{Lamports: lamports, Owner: types.SystemProgramID}
}

func (l ledger) tokenBalance(t *testing.T, pubkey types.Pubkey) uint64 {
	t.Helper()
	require.NotNil(t, l[pubkey], "token account %s", pubkey)
	state, err := token.DeserializeTokenAccount(l[pubkey].Data)
	require.NoError(t, err)
	return state.Amount
}
