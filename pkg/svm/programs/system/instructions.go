package system

import (
	"encoding/binary"
	"fmt"

	"github.com/druti2k/ai-nFt/pkg/types"
)

// System Program instruction discriminators (first 4 bytes of instruction data)
const (
	InstructionCreateAccount uint32 = 0
	InstructionAssign        uint32 = 1
	InstructionTransfer      uint32 = 2
	InstructionAllocate      uint32 = 8
)

// ParseInstructionDiscriminator reads the little-endian discriminator.
func ParseInstructionDiscriminator(data []byte) (uint32, error) {
	if len(data) < 4 {
		return 0, fmt.Errorf("%w: instruction data too short", ErrInvalidInstructionData)
	}
	return binary.LittleEndian.Uint32(data[0:4]), nil
}

// CreateAccountInstruction creates a new account with the specified
// lamports, space, and owner.
type CreateAccountInstruction struct {
	Lamports uint64
	Space    uint64
	Owner    types.Pubkey
}

// Decode decodes a CreateAccount instruction from bytes.
func (inst *CreateAccountInstruction) Decode(data []byte) error {
	// lamports (8) + space (8) + owner (32)
	if len(data) < 48 {
		return fmt.Errorf("%w: CreateAccount requires 48 bytes, got %d", ErrInvalidInstructionData, len(data))
	}
	inst.Lamports = binary.LittleEndian.Uint64(data[0:8])
	inst.Space = binary.LittleEndian.Uint64(data[8:16])
	copy(inst.Owner[:], data[16:48])
	return nil
}

// Encode encodes a CreateAccount instruction to bytes.
func (inst *CreateAccountInstruction) Encode() []byte {
	data := make([]byte, 4+48)
	binary.LittleEndian.PutUint32(data[0:4], InstructionCreateAccount)
	binary.LittleEndian.PutUint64(data[4:12], inst.Lamports)
	binary.LittleEndian.PutUint64(data[12:20], inst.Space)
	copy(data[20:52], inst.Owner[:])
	return data
}

// AssignInstruction changes the owner of an account.
type AssignInstruction struct {
	Owner types.Pubkey
}

// Decode decodes an Assign instruction from bytes.
func (inst *AssignInstruction) Decode(data []byte) error {
	if len(data) < 32 {
		return fmt.Errorf("%w: Assign requires 32 bytes, got %d", ErrInvalidInstructionData, len(data))
	}
	copy(inst.Owner[:], data[0:32])
	return nil
}

// Encode encodes an Assign instruction to bytes.
func (inst *AssignInstruction) Encode() []byte {
	data := make([]byte, 4+32)
	binary.LittleEndian.PutUint32(data[0:4], InstructionAssign)
	copy(data[4:36], inst.Owner[:])
	return data
}

// TransferInstruction transfers lamports between accounts.
type TransferInstruction struct {
	Lamports uint64
}

// Decode decodes a Transfer instruction from bytes.
func (inst *TransferInstruction) Decode(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("%w: Transfer requires 8 bytes, got %d", ErrInvalidInstructionData, len(data))
	}
	inst.Lamports = binary.LittleEndian.Uint64(data[0:8])
	return nil
}

// Encode encodes a Transfer instruction to bytes.
func (inst *TransferInstruction) Encode() []byte {
	data := make([]byte, 4+8)
	binary.LittleEndian.PutUint32(data[0:4], InstructionTransfer)
	binary.LittleEndian.PutUint64(data[4:12], inst.Lamports)
	return data
}

// AllocateInstruction allocates zeroed space in an account.
type AllocateInstruction struct {
	Space uint64
}

// Decode decodes an Allocate instruction from bytes.
func (inst *AllocateInstruction) Decode(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("%w: Allocate requires 8 bytes, got %d", ErrInvalidInstructionData, len(data))
	}
	inst.Space = binary.LittleEndian.Uint64(data[0:8])
	return nil
}

// Encode encodes an Allocate instruction to bytes.
func (inst *AllocateInstruction) Encode() []byte {
	data := make([]byte, 4+8)
	binary.LittleEndian.PutUint32(data[0:4], InstructionAllocate)
	binary.LittleEndian.PutUint64(data[4:12], inst.Space)
	return data
}
