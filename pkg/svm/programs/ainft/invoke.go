package ainft

import (
	"github.com/druti2k/ai-nFt/pkg/svm/programs/associatedtoken"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/metadata"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/system"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/token"
	"github.com/druti2k/ai-nFt/pkg/svm/syscall"
	"github.com/druti2k/ai-nFt/pkg/types"
)

// Invoker issues calls into other programs. Callee errors come back
// unchanged and nothing is retried.
type Invoker interface {
	Invoke(instruction types.Instruction, signerSeeds ...[][]byte) error
}

// ContextInvoker invokes through the host's cross-program invocation.
type ContextInvoker struct {
	Ctx *syscall.ExecutionContext
}

// Invoke implements Invoker.
func (c ContextInvoker) Invoke(instruction types.Instruction, signerSeeds ...[][]byte) error {
	return c.Ctx.InvokeSigned(instruction, signerSeeds...)
}

// NFTDecimals is the decimals of every AI-NFT mint.
const NFTDecimals = 0

func initializeMintCall(mint, authority types.Pubkey) types.Instruction {
	return token.InitializeMint2(mint, NFTDecimals, authority, &authority)
}

func createHoldingCall(payer, holding, mint types.Pubkey) types.Instruction {
	return associatedtoken.Create(payer, holding, payer, mint)
}

func createMetadataCall(metadataAccount, mint, authority types.Pubkey, args InitializeInstruction) types.Instruction {
	return metadata.CreateMetadataAccount(metadataAccount, mint, authority, authority, authority, metadata.CreateMetadataAccountArgs{
		Name:      args.Name,
		Symbol:    args.Symbol,
		URI:       args.URI,
		IsMutable: true,
	})
}

func mintToCall(mint, holding, authority types.Pubkey) types.Instruction {
	return token.MintTo(mint, holding, authority, 1)
}

func transferCall(source, destination, owner types.Pubkey, amount uint64) types.Instruction {
	return token.Transfer(source, destination, owner, amount)
}

// createAssetCalls returns the system calls that turn asset into a
// program-owned account of space bytes. An empty address is created in one
// call. One that was already sent lamports cannot be created, so it is
// topped up, allocated and assigned instead.
func createAssetCalls(payer, asset, programID types.Pubkey, balance, space uint64) []types.Instruction {
	rent := uint64(types.RentExemptMinimum(space))
	if balance == 0 {
		return []types.Instruction{system.CreateAccount(payer, asset, programID, rent, space)}
	}

	var calls []types.Instruction
	if balance < rent {
		calls = append(calls, system.Transfer(payer, asset, rent-balance))
	}
	return append(calls, system.Allocate(asset, space), system.Assign(asset, programID))
}
