package syscall

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/druti2k/ai-nFt/pkg/types"
)

// CPI errors
var (
	ErrCPIDepthExceeded           = errors.New("CPI depth exceeded")
	ErrCPIAccountNotFound         = errors.New("account not found in caller accounts")
	ErrCPIWritablePrivilege       = errors.New("writable privilege escalation")
	ErrCPISignerPrivilege         = errors.New("signer privilege escalation")
	ErrCPIInvalidSignerSeeds      = errors.New("invalid signer seeds")
	ErrCPIReentrancy              = errors.New("program reentrancy not allowed")
	ErrCPIInstructionDataTooLarge = errors.New("instruction data too large")
	ErrCPITooManyAccounts         = errors.New("too many accounts in CPI")
)

// CPI limits
const (
	// MaxCPIDepth is the maximum CPI call depth below the top-level
	// instruction.
	MaxCPIDepth = 4

	// MaxCPIAccounts is the maximum number of accounts in a CPI instruction.
	MaxCPIAccounts = 64

	// MaxCPIInstructionData caps the instruction payload passed to a callee.
	MaxCPIInstructionData = 10 * 1024
)

// CPI compute unit costs
const (
	CUCPIBase        uint64 = 1000
	CUCPIPerAccount  uint64 = 100
	CUCPIPerDataByte uint64 = 1
)

// Invoke performs a cross-program invocation without PDA signers.
func (ctx *ExecutionContext) Invoke(instruction types.Instruction) error {
	return ctx.InvokeSigned(instruction)
}

// InvokeSigned performs a cross-program invocation. Each entry of
// signerSeeds is one seed set; the address it derives under the calling
// program is granted signer privilege for the callee.
//
// Callee accounts are copies of the caller's. When the callee succeeds its
// changes to lamports, data and owner are copied back; when it fails the
// caller's accounts are untouched and the error is returned as is.
func (ctx *ExecutionContext) InvokeSigned(instruction types.Instruction, signerSeeds ...[][]byte) error {
	if ctx.executor == nil {
		return ErrNoProgramExecutor
	}
	if ctx.Depth >= MaxCPIDepth {
		return ErrCPIDepthExceeded
	}
	if len(instruction.Data) > MaxCPIInstructionData {
		return fmt.Errorf("%w: %d bytes", ErrCPIInstructionDataTooLarge, len(instruction.Data))
	}
	if len(instruction.Accounts) > MaxCPIAccounts {
		return fmt.Errorf("%w: %d", ErrCPITooManyAccounts, len(instruction.Accounts))
	}
	if instruction.ProgramID != ctx.ProgramID {
		for _, caller := range ctx.CallerStack {
			if caller == instruction.ProgramID {
				return fmt.Errorf("%w: %s", ErrCPIReentrancy, instruction.ProgramID)
			}
		}
	}

	// The caller's own changes so far are checked before the callee sees them.
	if err := ctx.VerifyChanges(); err != nil {
		return err
	}

	cost := CUCPIBase + uint64(len(instruction.Accounts))*CUCPIPerAccount + uint64(len(instruction.Data))*CUCPIPerDataByte
	if err := ctx.ConsumeComputeUnits(cost); err != nil {
		return err
	}

	pdaSigners, err := ctx.derivePDASigners(signerSeeds)
	if err != nil {
		return err
	}

	calleeAccounts, err := ctx.resolveCalleeAccounts(instruction.Accounts, pdaSigners)
	if err != nil {
		return err
	}

	child := ctx.childContext(instruction.ProgramID, calleeAccounts, instruction.Data)
	LogInvoke(ctx, instruction.ProgramID, child.Depth+1)

	err = ctx.executor.ExecuteProgram(child)
	if err == nil {
		err = child.VerifyChanges()
	}
	if err != nil {
		LogFailure(ctx, instruction.ProgramID, err)
		return err
	}
	LogSuccess(ctx, instruction.ProgramID)

	return ctx.propagateAccountChanges(calleeAccounts)
}

// derivePDASigners derives one address per seed set under the calling
// program.
func (ctx *ExecutionContext) derivePDASigners(signerSeeds [][][]byte) (map[types.Pubkey]bool, error) {
	pdaSigners := make(map[types.Pubkey]bool, len(signerSeeds))
	for _, seeds := range signerSeeds {
		pda, err := CreateProgramAddress(seeds, ctx.ProgramID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCPIInvalidSignerSeeds, err)
		}
		pdaSigners[pda] = true
	}
	return pdaSigners, nil
}

// resolveCalleeAccounts checks that every callee account is one of the
// caller's and that no privilege is escalated, then builds the callee's
// view. Repeated keys share one AccountInfo.
func (ctx *ExecutionContext) resolveCalleeAccounts(metas []types.AccountMeta, pdaSigners map[types.Pubkey]bool) ([]*AccountInfo, error) {
	callee := make([]*AccountInfo, len(metas))
	seen := make(map[types.Pubkey]*AccountInfo, len(metas))

	for i, meta := range metas {
		callerAcc, err := ctx.GetAccount(meta.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrCPIAccountNotFound, meta.Pubkey.String())
		}
		if meta.IsWritable && !callerAcc.IsWritable {
			return nil, fmt.Errorf("%w: account %s", ErrCPIWritablePrivilege, meta.Pubkey.String())
		}
		if meta.IsSigner && !callerAcc.IsSigner && !pdaSigners[meta.Pubkey] {
			return nil, fmt.Errorf("%w: account %s", ErrCPISignerPrivilege, meta.Pubkey.String())
		}

		if acc, ok := seen[meta.Pubkey]; ok {
			acc.IsSigner = acc.IsSigner || meta.IsSigner
			acc.IsWritable = acc.IsWritable || meta.IsWritable
			callee[i] = acc
			continue
		}

		acc := callerAcc.Clone()
		acc.IsSigner = meta.IsSigner
		acc.IsWritable = meta.IsWritable
		seen[meta.Pubkey] = acc
		callee[i] = acc
	}
	return callee, nil
}

// propagateAccountChanges copies callee modifications back to the caller.
// A change to an account the callee only had read access to is an error.
func (ctx *ExecutionContext) propagateAccountChanges(calleeAccounts []*AccountInfo) error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	for _, calleeAcc := range calleeAccounts {
		callerAcc := ctx.Accounts[ctx.accountIndex[calleeAcc.Pubkey]]

		changed := *calleeAcc.Lamports != *callerAcc.Lamports ||
			calleeAcc.Owner != callerAcc.Owner ||
			!bytes.Equal(calleeAcc.Data, callerAcc.Data)
		if !changed {
			continue
		}
		if !calleeAcc.IsWritable || !callerAcc.IsWritable {
			return fmt.Errorf("%w: account %s", ErrReadOnlyModified, calleeAcc.Pubkey.String())
		}

		*callerAcc.Lamports = *calleeAcc.Lamports
		callerAcc.Owner = calleeAcc.Owner
		if len(calleeAcc.Data) != len(callerAcc.Data) {
			callerAcc.Data = make([]byte, len(calleeAcc.Data))
		}
		copy(callerAcc.Data, calleeAcc.Data)
	}
	ctx.snapshot()
	return nil
}
