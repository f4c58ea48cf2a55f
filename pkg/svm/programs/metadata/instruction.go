package metadata

import (
	"fmt"

	"github.com/near/borsh-go"

	"github.com/druti2k/ai-nFt/pkg/types"
)

// Instruction discriminators.
const (
	InstructionCreateMetadataAccount uint8 = 0
	InstructionUpdateMetadataAccount uint8 = 1
)

// CreateMetadataAccountArgs is the payload of CreateMetadataAccount.
type CreateMetadataAccountArgs struct {
	Name      string
	Symbol    string
	URI       string
	IsMutable bool
}

// UpdateMetadataAccountArgs is the payload of UpdateMetadataAccount. Nil
// fields are left unchanged.
type UpdateMetadataAccountArgs struct {
	Name               *string
	Symbol             *string
	URI                *string
	NewUpdateAuthority *types.Pubkey
	IsMutable          *bool
}

func encode(discriminator uint8, args interface{}) []byte {
	body, err := borsh.Serialize(args)
	if err != nil {
		// Both argument types are plain structs of borsh primitives.
		panic(fmt.Sprintf("metadata: encode instruction: %v", err))
	}
	return append([]byte{discriminator}, body...)
}

// CreateMetadataAccount builds a CreateMetadataAccount instruction.
func CreateMetadataAccount(metadata, mint, mintAuthority, payer, updateAuthority types.Pubkey, args CreateMetadataAccountArgs) types.Instruction {
	return types.Instruction{
		ProgramID: types.MetadataProgramID,
		Accounts: []types.AccountMeta{
			{Pubkey: metadata, IsWritable: true},
			{Pubkey: mint},
			{Pubkey: mintAuthority, IsSigner: true},
			{Pubkey: payer, IsSigner: true, IsWritable: true},
			{Pubkey: updateAuthority},
			{Pubkey: types.SystemProgramID},
		},
		Data: encode(InstructionCreateMetadataAccount, args),
	}
}

// UpdateMetadataAccount builds an UpdateMetadataAccount instruction.
func UpdateMetadataAccount(metadata, updateAuthority types.Pubkey, args UpdateMetadataAccountArgs) types.Instruction {
	return types.Instruction{
		ProgramID: types.MetadataProgramID,
		Accounts: []types.AccountMeta{
			{Pubkey: metadata, IsWritable: true},
			{Pubkey: updateAuthority, IsSigner: true},
		},
		Data: encode(InstructionUpdateMetadataAccount, args),
	}
}
