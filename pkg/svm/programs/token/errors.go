package token

import "errors"

// Token program errors
var (
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrInvalidMint             = errors.New("invalid mint")
	ErrMintMismatch            = errors.New("mint mismatch")
	ErrOwnerMismatch           = errors.New("owner mismatch")
	ErrAccountFrozen           = errors.New("account is frozen")
	ErrAlreadyInitialized      = errors.New("already initialized")
	ErrNotInitialized          = errors.New("not initialized")
	ErrInvalidAccountData      = errors.New("invalid account data")
	ErrInvalidInstruction      = errors.New("invalid instruction")
	ErrInvalidInstructionData  = errors.New("invalid instruction data")
	ErrInvalidAccountOwner     = errors.New("invalid account owner")
	ErrAccountNotSigner        = errors.New("account is not a signer")
	ErrAccountNotWritable      = errors.New("account is not writable")
	ErrInvalidNumberOfAccounts = errors.New("invalid number of accounts")
	ErrAuthorityMismatch       = errors.New("authority mismatch")
	ErrFixedSupply             = errors.New("fixed supply")
	ErrMintCannotFreeze        = errors.New("mint cannot freeze")
	ErrOverflow                = errors.New("overflow")
)
