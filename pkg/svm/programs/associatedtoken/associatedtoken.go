// Package associatedtoken implements the Associated Token Account program,
// which creates the canonical token account of a wallet for a mint at an
// address derived from both.
package associatedtoken

import (
	"errors"
	"fmt"

	"github.com/druti2k/ai-nFt/pkg/svm/programs/system"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/token"
	"github.com/druti2k/ai-nFt/pkg/svm/syscall"
	"github.com/druti2k/ai-nFt/pkg/types"
)

// Instruction discriminators. An empty payload means Create.
const (
	InstructionCreate           uint8 = 0
	InstructionCreateIdempotent uint8 = 1
)

var (
	ErrInvalidInstruction      = errors.New("invalid associated token instruction")
	ErrInvalidNumberOfAccounts = errors.New("invalid number of accounts")
	ErrAddressMismatch         = errors.New("associated address does not match seed derivation")
	ErrAccountAlreadyExists    = errors.New("associated token account already exists")
	ErrIllegalOwner            = errors.New("existing account has the wrong owner or mint")
	ErrInvalidTokenProgram     = errors.New("invalid token program")
	ErrPayerNotSigner          = errors.New("payer must sign and be writable")
)

// AssociatedTokenProgram implements the program.
type AssociatedTokenProgram struct {
	ProgramID types.Pubkey
}

// New creates a new AssociatedTokenProgram instance.
func New() *AssociatedTokenProgram {
	return &AssociatedTokenProgram{ProgramID: types.AssociatedTokenProgramID}
}

// Execute creates an associated token account.
//
// Account layout:
//
//	[0] payer (signer, writable)
//	[1] associated token account (writable)
//	[2] wallet
//	[3] mint
//	[4] system program
//	[5] token program
func (p *AssociatedTokenProgram) Execute(ctx *syscall.ExecutionContext, instruction *types.Instruction) error {
	idempotent := false
	switch {
	case len(instruction.Data) == 0 || instruction.Data[0] == InstructionCreate:
	case instruction.Data[0] == InstructionCreateIdempotent:
		idempotent = true
	default:
		return fmt.Errorf("%w: discriminator %d", ErrInvalidInstruction, instruction.Data[0])
	}
	if len(instruction.Data) > 1 {
		return fmt.Errorf("%w: unexpected payload", ErrInvalidInstruction)
	}
	if ctx.AccountCount() < 6 {
		return fmt.Errorf("%w: need 6, got %d", ErrInvalidNumberOfAccounts, ctx.AccountCount())
	}

	accs := make([]*syscall.AccountInfo, 6)
	for i := range accs {
		acc, err := ctx.GetAccountByIndex(i)
		if err != nil {
			return err
		}
		accs[i] = acc
	}
	payer, ata, wallet, mint, tokenProgram := accs[0], accs[1], accs[2], accs[3], accs[5]

	if !payer.IsSigner || !payer.IsWritable {
		return ErrPayerNotSigner
	}
	if tokenProgram.Pubkey != types.TokenProgramID {
		return fmt.Errorf("%w: %s", ErrInvalidTokenProgram, tokenProgram.Pubkey)
	}

	seeds := syscall.AssociatedTokenSeeds(wallet.Pubkey, mint.Pubkey, tokenProgram.Pubkey)
	bump, err := syscall.VerifyProgramAddress(ata.Pubkey, seeds, ctx.ProgramID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAddressMismatch, err)
	}

	if !ata.IsUninitialized() {
		if !idempotent {
			return fmt.Errorf("%w: %s", ErrAccountAlreadyExists, ata.Pubkey)
		}
		return checkExisting(ata, wallet.Pubkey, mint.Pubkey)
	}

	rent := uint64(types.RentExemptMinimum(token.TokenAccountSize))
	create := system.CreateAccount(payer.Pubkey, ata.Pubkey, tokenProgram.Pubkey, rent, token.TokenAccountSize)
	if err := ctx.InvokeSigned(create, syscall.WithBump(seeds, bump)); err != nil {
		return err
	}
	return ctx.Invoke(token.InitializeAccount3(ata.Pubkey, mint.Pubkey, wallet.Pubkey))
}

func checkExisting(ata *syscall.AccountInfo, wallet, mint types.Pubkey) error {
	if ata.Owner != types.TokenProgramID {
		return fmt.Errorf("%w: owned by %s", ErrIllegalOwner, ata.Owner)
	}
	state, err := token.DeserializeTokenAccount(ata.Data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIllegalOwner, err)
	}
	if state.Owner != wallet || state.Mint != mint {
		return ErrIllegalOwner
	}
	return nil
}

// Address returns the associated token account of wallet for mint.
func Address(wallet, mint types.Pubkey) (types.Pubkey, error) {
	ata, _, err := syscall.DeriveAssociatedTokenAddress(wallet, mint, types.TokenProgramID)
	return ata, err
}

// Create builds a Create instruction.
func Create(payer, ata, wallet, mint types.Pubkey) types.Instruction {
	return build(InstructionCreate, payer, ata, wallet, mint)
}

// CreateIdempotent builds a CreateIdempotent instruction, which succeeds
// without change when the account already exists.
func CreateIdempotent(payer, ata, wallet, mint types.Pubkey) types.Instruction {
	return build(InstructionCreateIdempotent, payer, ata, wallet, mint)
}

func build(discriminator uint8, payer, ata, wallet, mint types.Pubkey) types.Instruction {
	return types.Instruction{
		ProgramID: types.AssociatedTokenProgramID,
		Accounts: []types.AccountMeta{
			{Pubkey: payer, IsSigner: true, IsWritable: true},
			{Pubkey: ata, IsWritable: true},
			{Pubkey: wallet},
			{Pubkey: mint},
			{Pubkey: types.SystemProgramID},
			{Pubkey: types.TokenProgramID},
		},
		Data: []byte{discriminator},
	}
}
