package ainft

import (
	"github.com/druti2k/ai-nFt/pkg/svm/programs/token"
	"github.com/druti2k/ai-nFt/pkg/svm/syscall"
	"github.com/druti2k/ai-nFt/pkg/types"
)

// Processor runs one AI-NFT instruction. It keeps no state between
// instructions; everything it touches is passed in through ctx.
type Processor struct {
	programID types.Pubkey
	ctx       *syscall.ExecutionContext
	invoker   Invoker
}

// NewProcessor creates a processor that issues its sub-calls through
// invoker.
func NewProcessor(programID types.Pubkey, ctx *syscall.ExecutionContext, invoker Invoker) *Processor {
	return &Processor{programID: programID, ctx: ctx, invoker: invoker}
}

// Initialize creates the mint, the initializer's holding account and the
// mint's metadata record.
func (p *Processor) Initialize(args InitializeInstruction) error {
	b, err := Bind(p.ctx, InitializeSchema)
	if err != nil {
		return err
	}
	initializer := b.Key(RoleInitializer)
	mint := b.Key(RoleMint)

	if err := p.invoker.Invoke(initializeMintCall(mint, initializer)); err != nil {
		return err
	}
	if err := p.invoker.Invoke(createHoldingCall(initializer, b.Key(RoleHolding), mint)); err != nil {
		return err
	}
	if err := p.invoker.Invoke(createMetadataCall(b.Key(RoleMetadata), mint, initializer, args)); err != nil {
		return err
	}

	syscall.Log(p.ctx, "NFT initialized successfully")
	return nil
}

// Mint issues the single unit of the mint into the holding account. With
// an asset account present the token id is registered first and a token
// id can only be minted once.
func (p *Processor) Mint(args MintInstruction) error {
	b, err := Bind(p.ctx, MintSchema)
	if err != nil {
		return err
	}
	minter := b.Key(RoleMinter)
	mint := b.Key(RoleMint)

	var rec *AssetRecord
	if b.Has(RoleAsset) {
		rec = &AssetRecord{
			TokenID:  args.TokenID,
			Owner:    minter,
			Mint:     mint,
			ImageURL: args.ImageURL,
			Metadata: args.Metadata,
		}
		if err := p.createAsset(b.Account(RoleAsset), minter, rec); err != nil {
			return err
		}
	}

	if err := p.invoker.Invoke(mintToCall(mint, b.Key(RoleHolding), minter)); err != nil {
		return err
	}
	if rec != nil {
		if err := p.writeAsset(b, rec); err != nil {
			return err
		}
	}

	syscall.Log(p.ctx, "NFT minted successfully: %s", args.TokenID)
	syscall.Log(p.ctx, "Image URL: %s", args.ImageURL)
	syscall.Log(p.ctx, "Metadata: %s", args.Metadata)
	return nil
}

// createAsset allocates the registry account for rec.TokenID, owned by this
// program and paid for by payer. An address that already holds lamports
// is topped up to the rent-exempt minimum and claimed in place.
func (p *Processor) createAsset(asset *syscall.AccountInfo, payer types.Pubkey, rec *AssetRecord) error {
	seeds := AssetSeeds(rec.TokenID)
	bump, err := syscall.VerifyProgramAddress(asset.Pubkey, seeds, p.programID)
	if err != nil {
		return newError(CodeMalformedAccountList, "asset account for token id %q: %v", rec.TokenID, err)
	}
	if asset.Owner == p.programID && len(asset.Data) > 0 {
		return newError(CodeTokenIDExists, "%q", rec.TokenID)
	}

	// The owner is a fixed-size key, so the record's size does not change
	// when writeAsset rewrites it.
	data, err := rec.Serialize()
	if err != nil {
		return newError(CodeInvalidInstruction, "encode asset record: %v", err)
	}
	space := uint64(len(data))

	var balance uint64
	if asset.Lamports != nil {
		balance = *asset.Lamports
	}
	signer := syscall.WithBump(seeds, bump)
	for _, call := range createAssetCalls(payer, asset.Pubkey, p.programID, balance, space) {
		if err := p.invoker.Invoke(call, signer); err != nil {
			return err
		}
	}
	return nil
}

// writeAsset records the owner of the holding account that received the
// unit and stores rec in the asset account.
func (p *Processor) writeAsset(b Bindings, rec *AssetRecord) error {
	holding, err := token.DeserializeTokenAccount(b.Account(RoleHolding).Data)
	if err != nil {
		return newError(CodeMalformedAccountList, "holding account: %v", err)
	}
	rec.Owner = holding.Owner

	data, err := rec.Serialize()
	if err != nil {
		return newError(CodeInvalidInstruction, "encode asset record: %v", err)
	}
	copy(b.Account(RoleAsset).Data, data)
	return nil
}

// Transfer moves amount units from source to destination. With an asset
// account present the signer must be the recorded owner, and ownership
// follows the unit to the destination's owner.
func (p *Processor) Transfer(args TransferInstruction) error {
	b, err := Bind(p.ctx, TransferSchema)
	if err != nil {
		return err
	}
	owner := b.Key(RoleOwner)

	var rec *AssetRecord
	if b.Has(RoleAsset) {
		rec, err = p.checkAssetOwner(b, owner)
		if err != nil {
			return err
		}
	}

	if err := p.invoker.Invoke(transferCall(b.Key(RoleSource), b.Key(RoleDestination), owner, args.Amount)); err != nil {
		return err
	}

	if rec != nil {
		if err := p.moveAssetOwner(b, rec); err != nil {
			return err
		}
	}

	syscall.Log(p.ctx, "NFT transferred successfully")
	return nil
}

func (p *Processor) checkAssetOwner(b Bindings, signer types.Pubkey) (*AssetRecord, error) {
	asset := b.Account(RoleAsset)
	if asset.Owner != p.programID {
		return nil, newError(CodeMalformedAccountList, "asset account %s is not owned by the program", asset.Pubkey)
	}
	rec, err := DeserializeAssetRecord(asset.Data)
	if err != nil {
		return nil, newError(CodeMalformedAccountList, "asset account %s: %v", asset.Pubkey, err)
	}
	if rec.Owner != signer {
		return nil, newError(CodeNotOwner, "token id %q is owned by %s", rec.TokenID, rec.Owner)
	}

	source, err := token.DeserializeTokenAccount(b.Account(RoleSource).Data)
	if err != nil || source.Mint != rec.Mint {
		return nil, newError(CodeMalformedAccountList, "source does not hold token id %q", rec.TokenID)
	}
	return rec, nil
}

// moveAssetOwner hands the record to the destination's owner once the
// source no longer holds the unit. A zero amount transfer changes nothing.
func (p *Processor) moveAssetOwner(b Bindings, rec *AssetRecord) error {
	source, err := token.DeserializeTokenAccount(b.Account(RoleSource).Data)
	if err != nil {
		return err
	}
	dest, err := token.DeserializeTokenAccount(b.Account(RoleDestination).Data)
	if err != nil {
		return err
	}
	if source.Amount != 0 || dest.Amount == 0 {
		return nil
	}

	rec.Owner = dest.Owner
	data, err := rec.Serialize()
	if err != nil {
		return newError(CodeInvalidInstruction, "encode asset record: %v", err)
	}
	b.Account(RoleAsset).Data = data
	return nil
}
