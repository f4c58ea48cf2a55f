// Package token implements the subset of the SPL Token program that NFT
// issuance relies on: mints, token accounts, minting, transfers, burning
// and freezing.
//
// Program ID: TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA
package token

import (
	"fmt"

	"github.com/druti2k/ai-nFt/pkg/svm/syscall"
	"github.com/druti2k/ai-nFt/pkg/types"
)

// TokenProgram implements the SPL Token program.
type TokenProgram struct {
	ProgramID types.Pubkey
}

// New creates a new TokenProgram instance.
func New() *TokenProgram {
	return &TokenProgram{ProgramID: types.TokenProgramID}
}

// Execute executes a Token program instruction. The first byte of the
// instruction data is the discriminator.
func (p *TokenProgram) Execute(ctx *syscall.ExecutionContext, instruction *types.Instruction) error {
	discriminator, err := ParseInstructionDiscriminator(instruction.Data)
	if err != nil {
		return err
	}
	data := instruction.Data[1:]

	switch discriminator {
	case InstructionInitializeMint, InstructionInitializeMint2:
		var inst InitializeMintInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleInitializeMint(ctx, &inst, discriminator == InstructionInitializeMint)

	case InstructionInitializeAccount:
		if ctx.AccountCount() < 4 {
			return fmt.Errorf("%w: InitializeAccount requires 4 accounts, got %d",
				ErrInvalidNumberOfAccounts, ctx.AccountCount())
		}
		owner, err := ctx.GetAccountByIndex(2)
		if err != nil {
			return err
		}
		return handleInitializeAccount(ctx, owner.Pubkey)

	case InstructionInitializeAccount3:
		var inst InitializeAccount3Instruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleInitializeAccount(ctx, inst.Owner)

	case InstructionTransfer:
		var inst AmountInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleTransfer(ctx, inst.Amount)

	case InstructionMintTo:
		var inst AmountInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleMintTo(ctx, inst.Amount)

	case InstructionBurn:
		var inst AmountInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleBurn(ctx, inst.Amount)

	case InstructionFreezeAccount:
		return handleSetFrozen(ctx, true)

	case InstructionThawAccount:
		return handleSetFrozen(ctx, false)

	default:
		return fmt.Errorf("%w: unsupported instruction %d", ErrInvalidInstruction, discriminator)
	}
}

// GetProgramID returns the Token program's public key.
func (p *TokenProgram) GetProgramID() types.Pubkey {
	return p.ProgramID
}

// IsTokenProgram checks if a pubkey is the Token program.
func IsTokenProgram(pubkey types.Pubkey) bool {
	return pubkey == types.TokenProgramID
}
