// Package computebudget implements the Compute Budget Program.
//
// Its instructions carry no accounts and change no state. The runtime reads
// them from the message before anything executes and sizes the
// transaction's compute meter, priority fee and loaded data allowance from
// them. At execution time the program only charges its fixed cost.
package computebudget

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/druti2k/ai-nFt/pkg/svm/syscall"
	"github.com/druti2k/ai-nFt/pkg/types"
)

const (
	// InstructionCost is charged for every Compute Budget instruction.
	InstructionCost uint64 = 150

	MaxHeapFrameSize     uint32 = 256 * 1024
	DefaultHeapFrameSize uint32 = 32 * 1024
	HeapFrameAlignment   uint32 = 1024

	MaxLoadedAccountsDataSize uint32 = 64 * 1024 * 1024

	MicroLamportsPerLamport = 1_000_000
)

var (
	ErrInvalidInstructionData        = errors.New("invalid compute budget instruction data")
	ErrUnknownInstruction            = errors.New("unknown compute budget instruction")
	ErrDuplicateInstruction          = errors.New("duplicate compute budget instruction")
	ErrInvalidHeapFrameSize          = errors.New("invalid heap frame size")
	ErrInvalidLoadedAccountsDataSize = errors.New("invalid loaded accounts data size limit")
)

// Budget is the compute budget of one transaction.
type Budget struct {
	ComputeUnitLimit            types.ComputeUnits
	ComputeUnitPrice            uint64 // micro-lamports per compute unit
	HeapFrameSize               uint32
	LoadedAccountsDataSizeLimit uint32
}

// DefaultBudget is the budget of a transaction with no Compute Budget
// instructions.
func DefaultBudget(limit types.ComputeUnits) Budget {
	return Budget{
		ComputeUnitLimit:            limit,
		HeapFrameSize:               DefaultHeapFrameSize,
		LoadedAccountsDataSizeLimit: MaxLoadedAccountsDataSize,
	}
}

// PriorityFee is ceil(price * limit / 1e6) lamports, saturating at the
// largest representable amount.
func (b Budget) PriorityFee() types.Lamports {
	if b.ComputeUnitPrice == 0 || b.ComputeUnitLimit == 0 {
		return 0
	}
	hi, lo := bits.Mul64(b.ComputeUnitPrice, uint64(b.ComputeUnitLimit))
	lo, carry := bits.Add64(lo, MicroLamportsPerLamport-1, 0)
	hi += carry
	if hi >= MicroLamportsPerLamport {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, MicroLamportsPerLamport)
	return types.Lamports(q)
}

// Parse collects the Compute Budget instructions of msg into a budget.
// Each instruction kind may appear once. A requested compute unit limit is
// capped at maxLimit, which is also the limit when none is requested.
func Parse(msg *types.Message, maxLimit types.ComputeUnits) (Budget, error) {
	budget := DefaultBudget(maxLimit)
	seen := make(map[uint8]bool, 4)

	for i, ix := range msg.Instructions {
		if int(ix.ProgramIDIndex) >= len(msg.AccountKeys) || msg.AccountKeys[ix.ProgramIDIndex] != types.ComputeBudgetProgramID {
			continue
		}
		inst, err := Decode(ix.Data)
		if err != nil {
			return Budget{}, fmt.Errorf("instruction %d: %w", i, err)
		}
		if seen[inst.Kind] {
			return Budget{}, fmt.Errorf("instruction %d: %w: tag %d", i, ErrDuplicateInstruction, inst.Kind)
		}
		seen[inst.Kind] = true

		switch inst.Kind {
		case InstructionRequestHeapFrame:
			if inst.HeapFrameSize%HeapFrameAlignment != 0 ||
				inst.HeapFrameSize < DefaultHeapFrameSize || inst.HeapFrameSize > MaxHeapFrameSize {
				return Budget{}, fmt.Errorf("instruction %d: %w: %d", i, ErrInvalidHeapFrameSize, inst.HeapFrameSize)
			}
			budget.HeapFrameSize = inst.HeapFrameSize
		case InstructionSetComputeUnitLimit:
			budget.ComputeUnitLimit = min(types.ComputeUnits(inst.ComputeUnitLimit), maxLimit)
		case InstructionSetComputeUnitPrice:
			budget.ComputeUnitPrice = inst.ComputeUnitPrice
		case InstructionSetLoadedAccountsDataSizeLimit:
			if inst.LoadedAccountsDataSizeLimit == 0 {
				return Budget{}, fmt.Errorf("instruction %d: %w", i, ErrInvalidLoadedAccountsDataSize)
			}
			budget.LoadedAccountsDataSizeLimit = min(inst.LoadedAccountsDataSizeLimit, MaxLoadedAccountsDataSize)
		}
	}
	return budget, nil
}

// ComputeBudgetProgram implements the Compute Budget Program.
type ComputeBudgetProgram struct{}

// New creates a ComputeBudgetProgram.
func New() *ComputeBudgetProgram {
	return &ComputeBudgetProgram{}
}

// Execute charges the instruction cost. The instruction was already
// applied when the transaction's budget was parsed.
func (p *ComputeBudgetProgram) Execute(ctx *syscall.ExecutionContext, instruction *types.Instruction) error {
	if _, err := Decode(instruction.Data); err != nil {
		return err
	}
	return ctx.ConsumeComputeUnits(InstructionCost)
}
