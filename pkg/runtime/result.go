package runtime

import (
	"fmt"

	"github.com/druti2k/ai-nFt/pkg/types"
)

// TransactionError reports which instruction of a transaction failed.
type TransactionError struct {
	InstructionIndex int
	ProgramID        types.Pubkey
	Err              error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("instruction %d (program %s) failed: %v", e.InstructionIndex, e.ProgramID, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// TransactionResult is the outcome of executing one transaction.
type TransactionResult struct {
	Signature types.Signature
	// Err is nil on success. Failures inside an instruction are a
	// *TransactionError.
	Err          error
	Logs         []string
	ComputeUnits types.ComputeUnits
	Fee          types.Lamports
	// Deltas are the committed account changes, or for a simulation the
	// changes that would have been committed.
	Deltas []types.AccountDelta
}

// Success reports whether the transaction committed.
func (r *TransactionResult) Success() bool {
	return r.Err == nil
}

// InstructionIndex returns the index of the failing instruction, or -1.
func (r *TransactionResult) InstructionIndex() int {
	if te, ok := r.Err.(*TransactionError); ok {
		return te.InstructionIndex
	}
	return -1
}
