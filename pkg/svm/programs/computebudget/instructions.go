package computebudget

import (
	"encoding/binary"
	"fmt"

	"github.com/druti2k/ai-nFt/pkg/types"
)

// Instruction tags (first byte of instruction data).
const (
	InstructionRequestHeapFrame               uint8 = 1
	InstructionSetComputeUnitLimit            uint8 = 2
	InstructionSetComputeUnitPrice            uint8 = 3
	InstructionSetLoadedAccountsDataSizeLimit uint8 = 4
)

// Instruction is one decoded Compute Budget instruction. Only the field
// matching Kind is meaningful.
type Instruction struct {
	Kind uint8

	HeapFrameSize               uint32
	ComputeUnitLimit            uint32
	ComputeUnitPrice            uint64
	LoadedAccountsDataSizeLimit uint32
}

// Decode parses instruction data.
func Decode(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return Instruction{}, fmt.Errorf("%w: empty instruction data", ErrInvalidInstructionData)
	}
	inst := Instruction{Kind: data[0]}
	body := data[1:]

	need := 4
	if inst.Kind == InstructionSetComputeUnitPrice {
		need = 8
	}
	switch inst.Kind {
	case InstructionRequestHeapFrame, InstructionSetComputeUnitLimit,
		InstructionSetComputeUnitPrice, InstructionSetLoadedAccountsDataSizeLimit:
	default:
		return Instruction{}, fmt.Errorf("%w: tag %d", ErrUnknownInstruction, inst.Kind)
	}
	if len(body) != need {
		return Instruction{}, fmt.Errorf("%w: tag %d wants %d bytes, got %d", ErrInvalidInstructionData, inst.Kind, need, len(body))
	}

	switch inst.Kind {
	case InstructionRequestHeapFrame:
		inst.HeapFrameSize = binary.LittleEndian.Uint32(body)
	case InstructionSetComputeUnitLimit:
		inst.ComputeUnitLimit = binary.LittleEndian.Uint32(body)
	case InstructionSetComputeUnitPrice:
		inst.ComputeUnitPrice = binary.LittleEndian.Uint64(body)
	case InstructionSetLoadedAccountsDataSizeLimit:
		inst.LoadedAccountsDataSizeLimit = binary.LittleEndian.Uint32(body)
	}
	return inst, nil
}

func u32Instruction(tag uint8, v uint32) types.Instruction {
	data := make([]byte, 5)
	data[0] = tag
	binary.LittleEndian.PutUint32(data[1:], v)
	return types.Instruction{ProgramID: types.ComputeBudgetProgramID, Data: data}
}

// RequestHeapFrame builds a RequestHeapFrame instruction.
func RequestHeapFrame(bytes uint32) types.Instruction {
	return u32Instruction(InstructionRequestHeapFrame, bytes)
}

// SetComputeUnitLimit builds a SetComputeUnitLimit instruction.
func SetComputeUnitLimit(units uint32) types.Instruction {
	return u32Instruction(InstructionSetComputeUnitLimit, units)
}

// SetComputeUnitPrice builds a SetComputeUnitPrice instruction. The price
// is in micro-lamports per compute unit.
func SetComputeUnitPrice(microLamports uint64) types.Instruction {
	data := make([]byte, 9)
	data[0] = InstructionSetComputeUnitPrice
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return types.Instruction{ProgramID: types.ComputeBudgetProgramID, Data: data}
}

// SetLoadedAccountsDataSizeLimit builds a SetLoadedAccountsDataSizeLimit
// instruction.
func SetLoadedAccountsDataSizeLimit(bytes uint32) types.Instruction {
	return u32Instruction(InstructionSetLoadedAccountsDataSizeLimit, bytes)
}
