package syscall

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/druti2k/ai-nFt/pkg/types"
)

// Account modification errors
var (
	ErrExternalDataModified  = errors.New("instruction modified data of an account it does not own")
	ErrExternalLamportSpend  = errors.New("instruction spent from the balance of an account it does not own")
	ErrModifiedProgramID     = errors.New("instruction illegally modified the program id of an account")
	ErrExecutableModified    = errors.New("instruction changed the executable flag of an account")
	ErrUnbalancedInstruction = errors.New("sum of account balances before and after instruction do not match")
)

// verifyAccountChange checks what programID did to one account:
//   - only writable accounts may change;
//   - only the owner may change data or debit lamports;
//   - only the owner may reassign an account, and only with zeroed data.
func verifyAccountChange(programID types.Pubkey, pre, post *AccountInfo) error {
	lamportsChanged := *pre.Lamports != *post.Lamports
	dataChanged := !bytes.Equal(pre.Data, post.Data)
	ownerChanged := pre.Owner != post.Owner
	executableChanged := pre.Executable != post.Executable

	if !lamportsChanged && !dataChanged && !ownerChanged && !executableChanged {
		return nil
	}
	if !post.IsWritable {
		return fmt.Errorf("%w: account %s", ErrReadOnlyModified, post.Pubkey)
	}
	if executableChanged {
		return fmt.Errorf("%w: account %s", ErrExecutableModified, post.Pubkey)
	}
	if ownerChanged && (pre.Owner != programID || !isZeroed(post.Data)) {
		return fmt.Errorf("%w: account %s", ErrModifiedProgramID, post.Pubkey)
	}
	if dataChanged && pre.Owner != programID {
		return fmt.Errorf("%w: account %s", ErrExternalDataModified, post.Pubkey)
	}
	if *post.Lamports < *pre.Lamports && pre.Owner != programID {
		return fmt.Errorf("%w: account %s", ErrExternalLamportSpend, post.Pubkey)
	}
	return nil
}

func isZeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}

// snapshot records the current state of every account as the baseline
// VerifyChanges compares against.
func (ctx *ExecutionContext) snapshot() {
	ctx.pre = make(map[types.Pubkey]*AccountInfo, len(ctx.accountIndex))
	for pubkey, idx := range ctx.accountIndex {
		ctx.pre[pubkey] = ctx.Accounts[idx].Clone()
	}
}

// VerifyChanges checks every change the executing program made since the
// context was created or its last CPI returned, and that it moved lamports
// without creating or destroying any.
func (ctx *ExecutionContext) VerifyChanges() error {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()

	var before, after uint64
	for pubkey, idx := range ctx.accountIndex {
		pre, post := ctx.pre[pubkey], ctx.Accounts[idx]
		if err := verifyAccountChange(ctx.ProgramID, pre, post); err != nil {
			return err
		}
		before += *pre.Lamports
		after += *post.Lamports
	}
	if before != after {
		return fmt.Errorf("%w: %d before, %d after", ErrUnbalancedInstruction, before, after)
	}
	return nil
}
