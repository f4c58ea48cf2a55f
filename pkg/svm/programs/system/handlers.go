package system

import (
	"fmt"

	"github.com/druti2k/ai-nFt/pkg/svm/syscall"
	"github.com/druti2k/ai-nFt/pkg/types"
)

// Maximum account data size allowed
const MaxAccountDataSize = 10 * 1024 * 1024 // 10 MB

// signerWritable fetches the account at index and requires it to be both a
// signer and writable.
func signerWritable(ctx *syscall.ExecutionContext, index int, role string) (*syscall.AccountInfo, error) {
	acc, err := ctx.GetAccountByIndex(index)
	if err != nil {
		return nil, err
	}
	if !acc.IsSigner {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotSigner, role)
	}
	if !acc.IsWritable {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotWritable, role)
	}
	return acc, nil
}

// handleCreateAccount handles the CreateAccount instruction.
// Account layout:
//
//	[0] funding account (signer, writable)
//	[1] new account (signer, writable)
func handleCreateAccount(ctx *syscall.ExecutionContext, inst *CreateAccountInstruction) error {
	if ctx.AccountCount() < 2 {
		return fmt.Errorf("%w: CreateAccount requires 2 accounts", ErrInvalidInstructionData)
	}

	fundingAcc, err := signerWritable(ctx, 0, "funding account")
	if err != nil {
		return err
	}
	newAcc, err := signerWritable(ctx, 1, "new account")
	if err != nil {
		return err
	}
	if fundingAcc.Pubkey == newAcc.Pubkey {
		return fmt.Errorf("%w: funding and new account are the same", ErrAccountAlreadyExists)
	}

	if *newAcc.Lamports > 0 || len(newAcc.Data) > 0 || newAcc.Owner != types.SystemProgramID {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyExists, newAcc.Pubkey)
	}

	if inst.Space > MaxAccountDataSize {
		return ErrAccountDataTooLarge
	}

	rentExemptMinimum := types.RentExemptMinimum(inst.Space)
	if inst.Lamports < uint64(rentExemptMinimum) {
		return fmt.Errorf("%w: need %d lamports for rent exemption", ErrAccountNotRentExempt, rentExemptMinimum)
	}

	if *fundingAcc.Lamports < inst.Lamports {
		return fmt.Errorf("%w: need %d lamports, have %d", ErrInsufficientFunds, inst.Lamports, *fundingAcc.Lamports)
	}

	*fundingAcc.Lamports -= inst.Lamports
	*newAcc.Lamports += inst.Lamports
	newAcc.Data = make([]byte, inst.Space)
	newAcc.Owner = inst.Owner

	return nil
}

// handleAssign handles the Assign instruction.
// Account layout:
//
//	[0] account to assign (signer, writable)
func handleAssign(ctx *syscall.ExecutionContext, inst *AssignInstruction) error {
	if ctx.AccountCount() < 1 {
		return fmt.Errorf("%w: Assign requires 1 account", ErrInvalidInstructionData)
	}

	acc, err := signerWritable(ctx, 0, "account to assign")
	if err != nil {
		return err
	}
	if acc.Owner != types.SystemProgramID {
		return fmt.Errorf("%w: account must be owned by System Program", ErrInvalidAccountOwner)
	}

	acc.Owner = inst.Owner
	return nil
}

// handleTransfer handles the Transfer instruction.
// Account layout:
//
//	[0] source account (signer, writable)
//	[1] destination account (writable)
func handleTransfer(ctx *syscall.ExecutionContext, inst *TransferInstruction) error {
	if ctx.AccountCount() < 2 {
		return fmt.Errorf("%w: Transfer requires 2 accounts", ErrInvalidInstructionData)
	}

	sourceAcc, err := signerWritable(ctx, 0, "source account")
	if err != nil {
		return err
	}
	if len(sourceAcc.Data) > 0 {
		return fmt.Errorf("%w: source account carries data", ErrInvalidAccountOwner)
	}

	destAcc, err := ctx.GetAccountByIndex(1)
	if err != nil {
		return err
	}
	if !destAcc.IsWritable {
		return fmt.Errorf("%w: destination account", ErrAccountNotWritable)
	}

	if *sourceAcc.Lamports < inst.Lamports {
		return fmt.Errorf("%w: need %d lamports, have %d", ErrInsufficientFunds, inst.Lamports, *sourceAcc.Lamports)
	}

	*sourceAcc.Lamports -= inst.Lamports
	*destAcc.Lamports += inst.Lamports
	return nil
}

// handleAllocate handles the Allocate instruction.
// Account layout:
//
//	[0] account to allocate (signer, writable)
func handleAllocate(ctx *syscall.ExecutionContext, inst *AllocateInstruction) error {
	if ctx.AccountCount() < 1 {
		return fmt.Errorf("%w: Allocate requires 1 account", ErrInvalidInstructionData)
	}

	acc, err := signerWritable(ctx, 0, "account to allocate")
	if err != nil {
		return err
	}
	if acc.Owner != types.SystemProgramID {
		return fmt.Errorf("%w: account must be owned by System Program", ErrInvalidAccountOwner)
	}
	if len(acc.Data) > 0 {
		return fmt.Errorf("%w: account already has data", ErrAccountAlreadyExists)
	}
	if inst.Space > MaxAccountDataSize {
		return ErrAccountDataTooLarge
	}

	acc.Data = make([]byte, inst.Space)
	return nil
}
