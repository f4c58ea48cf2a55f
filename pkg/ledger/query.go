package ledger

import (
	"fmt"

	"github.com/druti2k/ai-nFt/pkg/svm/programs/ainft"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/metadata"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/token"
	"github.com/druti2k/ai-nFt/pkg/types"
)

// GetAccount returns the stored account, or nil when it does not exist.
func (b *Bank) GetAccount(pubkey types.Pubkey) (*types.Account, error) {
	return b.db.GetAccount(pubkey)
}

// GetBalance returns pubkey's lamports. Missing accounts hold zero.
func (b *Bank) GetBalance(pubkey types.Pubkey) (types.Lamports, error) {
	acc, err := b.db.GetAccount(pubkey)
	if err != nil || acc == nil {
		return 0, err
	}
	return acc.Lamports, nil
}

// GetTokenAccount decodes the token account at pubkey.
func (b *Bank) GetTokenAccount(pubkey types.Pubkey) (*token.TokenAccount, error) {
	data, err := b.programData(pubkey, types.TokenProgramID)
	if err != nil {
		return nil, err
	}
	return token.DeserializeTokenAccount(data)
}

// GetMint decodes the mint at pubkey.
func (b *Bank) GetMint(pubkey types.Pubkey) (*token.Mint, error) {
	data, err := b.programData(pubkey, types.TokenProgramID)
	if err != nil {
		return nil, err
	}
	return token.DeserializeMint(data)
}

// GetAsset returns the registry record of tokenID.
func (b *Bank) GetAsset(tokenID string) (*ainft.AssetRecord, error) {
	addr, _, err := ainft.AssetAddress(types.AINFTProgramID, tokenID)
	if err != nil {
		return nil, err
	}
	data, err := b.programData(addr, types.AINFTProgramID)
	if err != nil {
		return nil, fmt.Errorf("asset %q: %w", tokenID, err)
	}
	return ainft.DeserializeAssetRecord(data)
}

// GetNFTMetadata returns the metadata record of mint.
func (b *Bank) GetNFTMetadata(mint types.Pubkey) (*metadata.Metadata, error) {
	addr, _, err := metadata.Address(mint)
	if err != nil {
		return nil, err
	}
	data, err := b.programData(addr, types.MetadataProgramID)
	if err != nil {
		return nil, fmt.Errorf("metadata of %s: %w", mint, err)
	}
	return metadata.DeserializeMetadata(data)
}

// programData returns the data of an account owned by owner.
func (b *Bank) programData(pubkey, owner types.Pubkey) ([]byte, error) {
	acc, err := b.db.GetAccount(pubkey)
	if err != nil {
		return nil, err
	}
	if acc == nil || acc.Owner != owner {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, pubkey)
	}
	return acc.Data, nil
}
