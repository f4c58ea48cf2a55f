package token

import (
	"encoding/binary"
	"fmt"

	"github.com/druti2k/ai-nFt/pkg/types"
)

// Token program instruction discriminators (first byte of instruction data).
// Only the instructions this ledger executes are listed.
const (
	InstructionInitializeMint     uint8 = 0
	InstructionInitializeAccount  uint8 = 1
	InstructionTransfer           uint8 = 3
	InstructionMintTo             uint8 = 7
	InstructionBurn               uint8 = 8
	InstructionFreezeAccount      uint8 = 10
	InstructionThawAccount        uint8 = 11
	InstructionInitializeAccount3 uint8 = 18
	InstructionInitializeMint2    uint8 = 20
)

// ParseInstructionDiscriminator returns the first byte of data.
func ParseInstructionDiscriminator(data []byte) (uint8, error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("%w: instruction data too short", ErrInvalidInstructionData)
	}
	return data[0], nil
}

// InitializeMintInstruction is shared by InitializeMint and InitializeMint2.
// Data layout after the discriminator:
//
//	decimals (1) | mint_authority (32) | freeze_option (1) | freeze_authority (32, if option == 1)
type InitializeMintInstruction struct {
	Decimals        uint8
	MintAuthority   types.Pubkey
	FreezeAuthority *types.Pubkey
}

// Decode decodes an InitializeMint instruction from bytes.
func (inst *InitializeMintInstruction) Decode(data []byte) error {
	if len(data) < 34 {
		return fmt.Errorf("%w: InitializeMint requires at least 34 bytes, got %d",
			ErrInvalidInstructionData, len(data))
	}

	inst.Decimals = data[0]
	copy(inst.MintAuthority[:], data[1:33])

	switch data[33] {
	case 0:
		inst.FreezeAuthority = nil
	case 1:
		if len(data) < 66 {
			return fmt.Errorf("%w: freeze authority truncated", ErrInvalidInstructionData)
		}
		var freeze types.Pubkey
		copy(freeze[:], data[34:66])
		inst.FreezeAuthority = &freeze
	default:
		return fmt.Errorf("%w: bad freeze authority option %d", ErrInvalidInstructionData, data[33])
	}
	return nil
}

// Encode encodes the instruction with the given discriminator.
func (inst *InitializeMintInstruction) Encode(discriminator uint8) []byte {
	data := make([]byte, 67)
	data[0] = discriminator
	data[1] = inst.Decimals
	copy(data[2:34], inst.MintAuthority[:])
	if inst.FreezeAuthority != nil {
		data[34] = 1
		copy(data[35:67], inst.FreezeAuthority[:])
	}
	return data
}

// InitializeAccount3Instruction carries the owner in the instruction data
// instead of the account list.
type InitializeAccount3Instruction struct {
	Owner types.Pubkey
}

// Decode decodes an InitializeAccount3 instruction from bytes.
func (inst *InitializeAccount3Instruction) Decode(data []byte) error {
	if len(data) < 32 {
		return fmt.Errorf("%w: InitializeAccount3 requires 32 bytes, got %d",
			ErrInvalidInstructionData, len(data))
	}
	copy(inst.Owner[:], data[:32])
	return nil
}

// Encode encodes an InitializeAccount3 instruction to bytes.
func (inst *InitializeAccount3Instruction) Encode() []byte {
	data := make([]byte, 33)
	data[0] = InstructionInitializeAccount3
	copy(data[1:], inst.Owner[:])
	return data
}

// AmountInstruction is the payload of Transfer, MintTo and Burn: a single
// little-endian u64.
type AmountInstruction struct {
	Amount uint64
}

// Decode decodes the amount from bytes.
func (inst *AmountInstruction) Decode(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("%w: amount requires 8 bytes, got %d",
			ErrInvalidInstructionData, len(data))
	}
	inst.Amount = binary.LittleEndian.Uint64(data[:8])
	return nil
}

// Encode encodes the amount with the given discriminator.
func (inst *AmountInstruction) Encode(discriminator uint8) []byte {
	data := make([]byte, 9)
	data[0] = discriminator
	binary.LittleEndian.PutUint64(data[1:], inst.Amount)
	return data
}

// InitializeMint2 builds an InitializeMint2 instruction for a mint account
// that has already been allocated with MintSize bytes.
func InitializeMint2(mint types.Pubkey, decimals uint8, mintAuthority types.Pubkey, freezeAuthority *types.Pubkey) types.Instruction {
	inst := InitializeMintInstruction{
		Decimals:        decimals,
		MintAuthority:   mintAuthority,
		FreezeAuthority: freezeAuthority,
	}
	return types.Instruction{
		ProgramID: types.TokenProgramID,
		Accounts:  []types.AccountMeta{{Pubkey: mint, IsWritable: true}},
		Data:      inst.Encode(InstructionInitializeMint2),
	}
}

// InitializeAccount3 builds an InitializeAccount3 instruction.
func InitializeAccount3(account, mint, owner types.Pubkey) types.Instruction {
	inst := InitializeAccount3Instruction{Owner: owner}
	return types.Instruction{
		ProgramID: types.TokenProgramID,
		Accounts: []types.AccountMeta{
			{Pubkey: account, IsWritable: true},
			{Pubkey: mint},
		},
		Data: inst.Encode(),
	}
}

// MintTo builds a MintTo instruction.
func MintTo(mint, destination, authority types.Pubkey, amount uint64) types.Instruction {
	inst := AmountInstruction{Amount: amount}
	return types.Instruction{
		ProgramID: types.TokenProgramID,
		Accounts: []types.AccountMeta{
			{Pubkey: mint, IsWritable: true},
			{Pubkey: destination, IsWritable: true},
			{Pubkey: authority, IsSigner: true},
		},
		Data: inst.Encode(InstructionMintTo),
	}
}

// Transfer builds a Transfer instruction.
func Transfer(source, destination, authority types.Pubkey, amount uint64) types.Instruction {
	inst := AmountInstruction{Amount: amount}
	return types.Instruction{
		ProgramID: types.TokenProgramID,
		Accounts: []types.AccountMeta{
			{Pubkey: source, IsWritable: true},
			{Pubkey: destination, IsWritable: true},
			{Pubkey: authority, IsSigner: true},
		},
		Data: inst.Encode(InstructionTransfer),
	}
}

// Burn builds a Burn instruction.
func Burn(account, mint, authority types.Pubkey, amount uint64) types.Instruction {
	inst := AmountInstruction{Amount: amount}
	return types.Instruction{
		ProgramID: types.TokenProgramID,
		Accounts: []types.AccountMeta{
			{Pubkey: account, IsWritable: true},
			{Pubkey: mint, IsWritable: true},
			{Pubkey: authority, IsSigner: true},
		},
		Data: inst.Encode(InstructionBurn),
	}
}

// FreezeAccount builds a FreezeAccount instruction.
func FreezeAccount(account, mint, freezeAuthority types.Pubkey) types.Instruction {
	return freezeThaw(InstructionFreezeAccount, account, mint, freezeAuthority)
}

// ThawAccount builds a ThawAccount instruction.
func ThawAccount(account, mint, freezeAuthority types.Pubkey) types.Instruction {
	return freezeThaw(InstructionThawAccount, account, mint, freezeAuthority)
}

func freezeThaw(discriminator uint8, account, mint, freezeAuthority types.Pubkey) types.Instruction {
	return types.Instruction{
		ProgramID: types.TokenProgramID,
		Accounts: []types.AccountMeta{
			{Pubkey: account, IsWritable: true},
			{Pubkey: mint},
			{Pubkey: freezeAuthority, IsSigner: true},
		},
		Data: []byte{discriminator},
	}
}
