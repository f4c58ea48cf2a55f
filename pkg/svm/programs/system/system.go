// Package system implements the native System Program: account creation,
// space allocation, owner assignment and lamport transfers.
//
// Every address starts out owned by the System Program. Programs such as
// the token and metadata programs reach it through CPI to create the
// accounts they go on to own.
package system

import (
	"fmt"

	"github.com/druti2k/ai-nFt/pkg/svm/syscall"
	"github.com/druti2k/ai-nFt/pkg/types"
)

// SystemProgram implements the System Program.
type SystemProgram struct {
	ProgramID types.Pubkey
}

// New creates a new SystemProgram instance.
func New() *SystemProgram {
	return &SystemProgram{
		ProgramID: types.SystemProgramID,
	}
}

// Execute executes a System Program instruction. The first 4 bytes are a
// little-endian discriminator; the rest is instruction specific.
func (p *SystemProgram) Execute(ctx *syscall.ExecutionContext, instruction *types.Instruction) error {
	discriminator, err := ParseInstructionDiscriminator(instruction.Data)
	if err != nil {
		return err
	}
	data := instruction.Data[4:]

	switch discriminator {
	case InstructionCreateAccount:
		var inst CreateAccountInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleCreateAccount(ctx, &inst)

	case InstructionAssign:
		var inst AssignInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleAssign(ctx, &inst)

	case InstructionTransfer:
		var inst TransferInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleTransfer(ctx, &inst)

	case InstructionAllocate:
		var inst AllocateInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleAllocate(ctx, &inst)

	default:
		return fmt.Errorf("%w: unknown instruction %d", ErrInvalidInstructionData, discriminator)
	}
}

// CreateAccount builds a CreateAccount instruction funded by payer.
func CreateAccount(payer, newAccount, owner types.Pubkey, lamports, space uint64) types.Instruction {
	inst := CreateAccountInstruction{Lamports: lamports, Space: space, Owner: owner}
	return types.Instruction{
		ProgramID: types.SystemProgramID,
		Accounts: []types.AccountMeta{
			{Pubkey: payer, IsSigner: true, IsWritable: true},
			{Pubkey: newAccount, IsSigner: true, IsWritable: true},
		},
		Data: inst.Encode(),
	}
}

// Transfer builds a lamport Transfer instruction.
func Transfer(from, to types.Pubkey, lamports uint64) types.Instruction {
	inst := TransferInstruction{Lamports: lamports}
	return types.Instruction{
		ProgramID: types.SystemProgramID,
		Accounts: []types.AccountMeta{
			{Pubkey: from, IsSigner: true, IsWritable: true},
			{Pubkey: to, IsWritable: true},
		},
		Data: inst.Encode(),
	}
}

// Assign builds an Assign instruction.
func Assign(account, owner types.Pubkey) types.Instruction {
	inst := AssignInstruction{Owner: owner}
	return types.Instruction{
		ProgramID: types.SystemProgramID,
		Accounts:  []types.AccountMeta{{Pubkey: account, IsSigner: true, IsWritable: true}},
		Data:      inst.Encode(),
	}
}

// Allocate builds an Allocate instruction.
func Allocate(account types.Pubkey, space uint64) types.Instruction {
	inst := AllocateInstruction{Space: space}
	return types.Instruction{
		ProgramID: types.SystemProgramID,
		Accounts:  []types.AccountMeta{{Pubkey: account, IsSigner: true, IsWritable: true}},
		Data:      inst.Encode(),
	}
}
