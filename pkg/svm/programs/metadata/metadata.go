// Package metadata implements a token metadata program: one record per mint
// holding its display name, symbol and off-ledger URI, stored at an address
// derived from the mint.
package metadata

import (
	"errors"
	"fmt"

	"github.com/near/borsh-go"

	"github.com/druti2k/ai-nFt/pkg/svm/programs/system"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/token"
	"github.com/druti2k/ai-nFt/pkg/svm/syscall"
	"github.com/druti2k/ai-nFt/pkg/types"
)

var (
	ErrInvalidInstruction      = errors.New("invalid metadata instruction")
	ErrInvalidNumberOfAccounts = errors.New("invalid number of accounts")
	ErrAddressMismatch         = errors.New("metadata address does not match mint")
	ErrAlreadyInitialized      = errors.New("metadata account already initialized")
	ErrUninitialized           = errors.New("metadata account not initialized")
	ErrInvalidMetadata         = errors.New("invalid metadata account data")
	ErrInvalidMintAuthority    = errors.New("mint authority mismatch")
	ErrUpdateAuthority         = errors.New("update authority mismatch")
	ErrImmutable               = errors.New("metadata is immutable")
	ErrFieldTooLong            = errors.New("metadata field too long")
	ErrMissingSignature        = errors.New("missing required signature")
)

// MetadataProgram implements the metadata program.
type MetadataProgram struct {
	ProgramID types.Pubkey
}

// New creates a new MetadataProgram instance.
func New() *MetadataProgram {
	return &MetadataProgram{ProgramID: types.MetadataProgramID}
}

// Execute executes a metadata instruction.
func (p *MetadataProgram) Execute(ctx *syscall.ExecutionContext, instruction *types.Instruction) error {
	if len(instruction.Data) == 0 {
		return fmt.Errorf("%w: empty data", ErrInvalidInstruction)
	}

	switch instruction.Data[0] {
	case InstructionCreateMetadataAccount:
		var args CreateMetadataAccountArgs
		if err := borsh.Deserialize(&args, instruction.Data[1:]); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInstruction, err)
		}
		return handleCreate(ctx, &args)

	case InstructionUpdateMetadataAccount:
		var args UpdateMetadataAccountArgs
		if err := borsh.Deserialize(&args, instruction.Data[1:]); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInstruction, err)
		}
		return handleUpdate(ctx, &args)

	default:
		return fmt.Errorf("%w: discriminator %d", ErrInvalidInstruction, instruction.Data[0])
	}
}

// handleCreate creates the metadata record of a mint.
//
// Account layout:
//
//	[0] metadata (writable), the mint's metadata address
//	[1] mint
//	[2] mint authority (signer)
//	[3] payer (signer, writable)
//	[4] update authority
//	[5] system program
func handleCreate(ctx *syscall.ExecutionContext, args *CreateMetadataAccountArgs) error {
	if ctx.AccountCount() < 6 {
		return fmt.Errorf("%w: need 6, got %d", ErrInvalidNumberOfAccounts, ctx.AccountCount())
	}
	metadataAcc, _ := ctx.GetAccountByIndex(0)
	mintAcc, _ := ctx.GetAccountByIndex(1)
	mintAuthority, _ := ctx.GetAccountByIndex(2)
	payer, _ := ctx.GetAccountByIndex(3)
	updateAuthority, _ := ctx.GetAccountByIndex(4)

	if !mintAuthority.IsSigner {
		return fmt.Errorf("%w: mint authority", ErrMissingSignature)
	}
	if !payer.IsSigner || !payer.IsWritable {
		return fmt.Errorf("%w: payer must sign and be writable", ErrMissingSignature)
	}
	if err := validateFields(args.Name, args.Symbol, args.URI); err != nil {
		return err
	}

	seeds := Seeds(mintAcc.Pubkey)
	bump, err := syscall.VerifyProgramAddress(metadataAcc.Pubkey, seeds, ctx.ProgramID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAddressMismatch, err)
	}
	if !metadataAcc.IsUninitialized() {
		return fmt.Errorf("%w: %s", ErrAlreadyInitialized, metadataAcc.Pubkey)
	}

	if mintAcc.Owner != types.TokenProgramID {
		return fmt.Errorf("%w: mint %s is not a token mint", token.ErrInvalidMint, mintAcc.Pubkey)
	}
	mint, err := token.DeserializeMint(mintAcc.Data)
	if err != nil {
		return err
	}
	if !mint.IsInitialized {
		return fmt.Errorf("mint: %w", token.ErrNotInitialized)
	}
	if !mint.MintAuthority.IsSome || mint.MintAuthority.Value != mintAuthority.Pubkey {
		return ErrInvalidMintAuthority
	}

	record := Metadata{
		Key:             KeyMetadataV1,
		UpdateAuthority: updateAuthority.Pubkey,
		Mint:            mintAcc.Pubkey,
		Name:            args.Name,
		Symbol:          args.Symbol,
		URI:             args.URI,
		IsMutable:       args.IsMutable,
	}
	data, err := record.Serialize()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}

	rent := uint64(types.RentExemptMinimum(MaxMetadataLen))
	create := system.CreateAccount(payer.Pubkey, metadataAcc.Pubkey, ctx.ProgramID, rent, uint64(len(data)))
	if err := ctx.InvokeSigned(create, syscall.WithBump(seeds, bump)); err != nil {
		return err
	}
	copy(metadataAcc.Data, data)

	syscall.Log(ctx, "Create metadata %s for mint %s", metadataAcc.Pubkey, mintAcc.Pubkey)
	return nil
}

// handleUpdate updates a metadata record.
//
// Account layout:
//
//	[0] metadata (writable)
//	[1] update authority (signer)
func handleUpdate(ctx *syscall.ExecutionContext, args *UpdateMetadataAccountArgs) error {
	if ctx.AccountCount() < 2 {
		return fmt.Errorf("%w: need 2, got %d", ErrInvalidNumberOfAccounts, ctx.AccountCount())
	}
	metadataAcc, _ := ctx.GetAccountByIndex(0)
	authority, _ := ctx.GetAccountByIndex(1)

	if !authority.IsSigner {
		return fmt.Errorf("%w: update authority", ErrMissingSignature)
	}
	if metadataAcc.Owner != ctx.ProgramID {
		return fmt.Errorf("%w: owned by %s", ErrInvalidMetadata, metadataAcc.Owner)
	}
	record, err := DeserializeMetadata(metadataAcc.Data)
	if err != nil {
		return err
	}
	if record.UpdateAuthority != authority.Pubkey {
		return ErrUpdateAuthority
	}

	dataChange := args.Name != nil || args.Symbol != nil || args.URI != nil
	if dataChange && !record.IsMutable {
		return ErrImmutable
	}
	if args.Name != nil {
		record.Name = *args.Name
	}
	if args.Symbol != nil {
		record.Symbol = *args.Symbol
	}
	if args.URI != nil {
		record.URI = *args.URI
	}
	if err := validateFields(record.Name, record.Symbol, record.URI); err != nil {
		return err
	}
	if args.IsMutable != nil {
		if *args.IsMutable && !record.IsMutable {
			return fmt.Errorf("%w: cannot make mutable again", ErrImmutable)
		}
		record.IsMutable = *args.IsMutable
	}
	if args.NewUpdateAuthority != nil {
		record.UpdateAuthority = *args.NewUpdateAuthority
	}

	data, err := record.Serialize()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	metadataAcc.Data = data
	return nil
}
