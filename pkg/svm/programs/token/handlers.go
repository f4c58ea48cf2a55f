package token

import (
	"fmt"

	"github.com/druti2k/ai-nFt/pkg/svm/syscall"
	"github.com/druti2k/ai-nFt/pkg/types"
)

// account fetches the account at index and checks the signer and writable
// requirements for role.
func account(ctx *syscall.ExecutionContext, index int, role string, signer, writable bool) (*syscall.AccountInfo, error) {
	acc, err := ctx.GetAccountByIndex(index)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidNumberOfAccounts, role)
	}
	if signer && !acc.IsSigner {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotSigner, role)
	}
	if writable && !acc.IsWritable {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotWritable, role)
	}
	return acc, nil
}

func loadMint(acc *syscall.AccountInfo) (*Mint, error) {
	if acc.Owner != types.TokenProgramID {
		return nil, fmt.Errorf("%w: mint %s", ErrInvalidAccountOwner, acc.Pubkey)
	}
	mint, err := DeserializeMint(acc.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMint, err)
	}
	if !mint.IsInitialized {
		return nil, fmt.Errorf("mint: %w", ErrNotInitialized)
	}
	return mint, nil
}

func loadTokenAccount(acc *syscall.AccountInfo, role string) (*TokenAccount, error) {
	if acc.Owner != types.TokenProgramID {
		return nil, fmt.Errorf("%w: %s %s", ErrInvalidAccountOwner, role, acc.Pubkey)
	}
	state, err := DeserializeTokenAccount(acc.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", role, err)
	}
	if !state.IsInitialized() {
		return nil, fmt.Errorf("%s: %w", role, ErrNotInitialized)
	}
	return state, nil
}

// handleInitializeMint handles InitializeMint and InitializeMint2.
// Account layout:
//
//	[0] mint (writable)
//	[1] rent sysvar (InitializeMint only)
func handleInitializeMint(ctx *syscall.ExecutionContext, inst *InitializeMintInstruction, needsRent bool) error {
	mintAcc, err := account(ctx, 0, "mint", false, true)
	if err != nil {
		return err
	}
	if needsRent {
		if _, err := account(ctx, 1, "rent sysvar", false, false); err != nil {
			return err
		}
	}

	if mintAcc.Owner != types.TokenProgramID {
		return fmt.Errorf("%w: mint %s", ErrInvalidAccountOwner, mintAcc.Pubkey)
	}
	existing, err := DeserializeMint(mintAcc.Data)
	if err != nil {
		return err
	}
	if existing.IsInitialized {
		return fmt.Errorf("mint %s: %w", mintAcc.Pubkey, ErrAlreadyInitialized)
	}
	if *mintAcc.Lamports < uint64(types.RentExemptMinimum(MintSize)) {
		return fmt.Errorf("%w: mint is not rent exempt", ErrInsufficientFunds)
	}

	mint := NewMint(inst.Decimals, inst.MintAuthority, inst.FreezeAuthority)
	copy(mintAcc.Data, mint.Serialize())
	return nil
}

// handleInitializeAccount handles InitializeAccount and InitializeAccount3.
// Account layout:
//
//	[0] account (writable)
//	[1] mint
func handleInitializeAccount(ctx *syscall.ExecutionContext, owner types.Pubkey) error {
	tokenAcc, err := account(ctx, 0, "token account", false, true)
	if err != nil {
		return err
	}
	mintAcc, err := account(ctx, 1, "mint", false, false)
	if err != nil {
		return err
	}

	if tokenAcc.Owner != types.TokenProgramID {
		return fmt.Errorf("%w: token account %s", ErrInvalidAccountOwner, tokenAcc.Pubkey)
	}
	existing, err := DeserializeTokenAccount(tokenAcc.Data)
	if err != nil {
		return err
	}
	if existing.IsInitialized() {
		return fmt.Errorf("token account %s: %w", tokenAcc.Pubkey, ErrAlreadyInitialized)
	}
	if _, err := loadMint(mintAcc); err != nil {
		return err
	}

	copy(tokenAcc.Data, NewTokenAccount(mintAcc.Pubkey, owner).Serialize())
	return nil
}

// handleTransfer handles the Transfer instruction.
// Account layout:
//
//	[0] source (writable)
//	[1] destination (writable)
//	[2] authority (signer), the source owner or its delegate
func handleTransfer(ctx *syscall.ExecutionContext, amount uint64) error {
	sourceAcc, err := account(ctx, 0, "source", false, true)
	if err != nil {
		return err
	}
	destAcc, err := account(ctx, 1, "destination", false, true)
	if err != nil {
		return err
	}
	authorityAcc, err := account(ctx, 2, "authority", true, false)
	if err != nil {
		return err
	}

	source, err := loadTokenAccount(sourceAcc, "source")
	if err != nil {
		return err
	}
	dest, err := loadTokenAccount(destAcc, "destination")
	if err != nil {
		return err
	}
	if source.IsFrozen() || dest.IsFrozen() {
		return ErrAccountFrozen
	}
	if source.Mint != dest.Mint {
		return ErrMintMismatch
	}

	isDelegate := source.Owner != authorityAcc.Pubkey &&
		source.Delegate.IsSome && source.Delegate.Value == authorityAcc.Pubkey
	if source.Owner != authorityAcc.Pubkey && !isDelegate {
		return ErrOwnerMismatch
	}

	available := source.Amount
	if isDelegate {
		available = source.DelegatedAmount
	}
	if amount > available {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, available, amount)
	}

	// Self transfers are validated but change nothing.
	if sourceAcc.Pubkey == destAcc.Pubkey {
		return nil
	}
	if dest.Amount > ^uint64(0)-amount {
		return ErrOverflow
	}

	source.Amount -= amount
	dest.Amount += amount
	if isDelegate {
		source.DelegatedAmount -= amount
		if source.DelegatedAmount == 0 {
			source.Delegate = COption{}
		}
	}

	copy(sourceAcc.Data, source.Serialize())
	copy(destAcc.Data, dest.Serialize())
	return nil
}

// handleMintTo handles the MintTo instruction.
// Account layout:
//
//	[0] mint (writable)
//	[1] destination (writable)
//	[2] mint authority (signer)
func handleMintTo(ctx *syscall.ExecutionContext, amount uint64) error {
	mintAcc, err := account(ctx, 0, "mint", false, true)
	if err != nil {
		return err
	}
	destAcc, err := account(ctx, 1, "destination", false, true)
	if err != nil {
		return err
	}
	authorityAcc, err := account(ctx, 2, "mint authority", true, false)
	if err != nil {
		return err
	}

	mint, err := loadMint(mintAcc)
	if err != nil {
		return err
	}
	dest, err := loadTokenAccount(destAcc, "destination")
	if err != nil {
		return err
	}
	if dest.IsFrozen() {
		return fmt.Errorf("destination: %w", ErrAccountFrozen)
	}
	if dest.Mint != mintAcc.Pubkey {
		return ErrMintMismatch
	}
	if !mint.MintAuthority.IsSome {
		return ErrFixedSupply
	}
	if mint.MintAuthority.Value != authorityAcc.Pubkey {
		return ErrAuthorityMismatch
	}
	if mint.Supply > ^uint64(0)-amount || dest.Amount > ^uint64(0)-amount {
		return ErrOverflow
	}

	mint.Supply += amount
	dest.Amount += amount

	copy(mintAcc.Data, mint.Serialize())
	copy(destAcc.Data, dest.Serialize())
	return nil
}

// handleBurn handles the Burn instruction.
// Account layout:
//
//	[0] source (writable)
//	[1] mint (writable)
//	[2] owner (signer)
func handleBurn(ctx *syscall.ExecutionContext, amount uint64) error {
	sourceAcc, err := account(ctx, 0, "source", false, true)
	if err != nil {
		return err
	}
	mintAcc, err := account(ctx, 1, "mint", false, true)
	if err != nil {
		return err
	}
	authorityAcc, err := account(ctx, 2, "owner", true, false)
	if err != nil {
		return err
	}

	source, err := loadTokenAccount(sourceAcc, "source")
	if err != nil {
		return err
	}
	mint, err := loadMint(mintAcc)
	if err != nil {
		return err
	}
	if source.IsFrozen() {
		return fmt.Errorf("source: %w", ErrAccountFrozen)
	}
	if source.Mint != mintAcc.Pubkey {
		return ErrMintMismatch
	}
	if source.Owner != authorityAcc.Pubkey {
		return ErrOwnerMismatch
	}
	if amount > source.Amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, source.Amount, amount)
	}

	source.Amount -= amount
	mint.Supply -= amount

	copy(sourceAcc.Data, source.Serialize())
	copy(mintAcc.Data, mint.Serialize())
	return nil
}

// handleSetFrozen handles FreezeAccount and ThawAccount.
// Account layout:
//
//	[0] token account (writable)
//	[1] mint
//	[2] freeze authority (signer)
func handleSetFrozen(ctx *syscall.ExecutionContext, freeze bool) error {
	tokenAcc, err := account(ctx, 0, "token account", false, true)
	if err != nil {
		return err
	}
	mintAcc, err := account(ctx, 1, "mint", false, false)
	if err != nil {
		return err
	}
	authorityAcc, err := account(ctx, 2, "freeze authority", true, false)
	if err != nil {
		return err
	}

	state, err := loadTokenAccount(tokenAcc, "token account")
	if err != nil {
		return err
	}
	mint, err := loadMint(mintAcc)
	if err != nil {
		return err
	}
	if state.Mint != mintAcc.Pubkey {
		return ErrMintMismatch
	}
	if !mint.FreezeAuthority.IsSome {
		return ErrMintCannotFreeze
	}
	if mint.FreezeAuthority.Value != authorityAcc.Pubkey {
		return ErrAuthorityMismatch
	}
	if state.IsFrozen() == freeze {
		return fmt.Errorf("%w: account already in requested state", ErrInvalidInstruction)
	}

	if freeze {
		state.State = AccountStateFrozen
	} else {
		state.State = AccountStateInitialized
	}
	copy(tokenAcc.Data, state.Serialize())
	return nil
}
