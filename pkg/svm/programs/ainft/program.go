// Package ainft implements the AI-NFT program. It mints single-unit tokens
// for AI generated artwork and transfers them, delegating the ledger work
// to the token, associated token and metadata programs through
// cross-program invocation.
//
// Every instruction is decoded, its account list bound against the
// instruction's schema, and its sub-calls issued in order. A failure at any
// point aborts the whole transaction, so partial results are never
// committed.
package ainft

import (
	"github.com/druti2k/ai-nFt/pkg/svm/syscall"
	"github.com/druti2k/ai-nFt/pkg/types"
)

// Program is the AI-NFT program as registered with the runtime.
type Program struct {
	ProgramID types.Pubkey
}

// New creates the program under its well-known ID.
func New() *Program {
	return &Program{ProgramID: types.AINFTProgramID}
}

// Execute runs one instruction.
func (p *Program) Execute(ctx *syscall.ExecutionContext, instruction *types.Instruction) error {
	return Process(p.ProgramID, ctx, instruction.Data)
}

// Process decodes data and runs the matching handler with sub-calls going
// through the host.
func Process(programID types.Pubkey, ctx *syscall.ExecutionContext, data []byte) error {
	return ProcessWith(programID, ctx, ContextInvoker{Ctx: ctx}, data)
}

// ProcessWith is Process with the sub-call path supplied by the caller.
func ProcessWith(programID types.Pubkey, ctx *syscall.ExecutionContext, invoker Invoker, data []byte) error {
	ix, err := DecodeInstruction(data)
	if err != nil {
		return err
	}
	if ctx.ProgramID != programID {
		return newError(CodeInvalidInstruction, "executing as %s, expected %s", ctx.ProgramID, programID)
	}

	proc := NewProcessor(programID, ctx, invoker)
	switch ix := ix.(type) {
	case InitializeInstruction:
		syscall.Log(ctx, "Instruction: Initialize")
		return proc.Initialize(ix)
	case MintInstruction:
		syscall.Log(ctx, "Instruction: Mint")
		return proc.Mint(ix)
	case TransferInstruction:
		syscall.Log(ctx, "Instruction: Transfer")
		return proc.Transfer(ix)
	default:
		return newError(CodeInvalidInstruction, "unhandled instruction %T", ix)
	}
}
