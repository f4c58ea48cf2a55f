package client

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/druti2k/ai-nFt/pkg/crypto"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/ainft"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/associatedtoken"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/computebudget"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/metadata"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/system"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/token"
	"github.com/druti2k/ai-nFt/pkg/types"
)

// Submitter signs and lands transactions on some network.
type Submitter interface {
	GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
	AccountExists(ctx context.Context, pubkey types.Pubkey) (bool, error)
	Submit(ctx context.Context, payer *crypto.Keypair, signers []*crypto.Keypair, ixs ...types.Instruction) (types.Signature, error)
}

// Submit signs the instructions with payer and signers against the
// latest blockhash and sends them.
func (c *Client) Submit(ctx context.Context, payer *crypto.Keypair, signers []*crypto.Keypair, ixs ...types.Instruction) (types.Signature, error) {
	blockhash, err := c.GetLatestBlockhash(ctx)
	if err != nil {
		return types.ZeroSignature, err
	}
	tx := types.NewTransaction(payer.Pubkey, blockhash, ixs...)
	keys := []ed25519.PrivateKey{payer.PrivateKey}
	for _, kp := range signers {
		keys = append(keys, kp.PrivateKey)
	}
	if err := tx.Sign(keys...); err != nil {
		return types.ZeroSignature, err
	}
	return c.SendTransaction(ctx, tx)
}

var _ Submitter = (*Client)(nil)

// NFTs builds and submits AI-NFT program transactions.
type NFTs struct {
	submitter   Submitter
	programID   types.Pubkey
	priorityFee uint64
	log         *logrus.Entry
}

func NewNFTs(submitter Submitter, programID types.Pubkey) *NFTs {
	return &NFTs{
		submitter: submitter,
		programID: programID,
		log:       logrus.StandardLogger().WithField("type", "client/nft"),
	}
}

// WithPriorityFee makes every transaction bid microLamports per compute
// unit. Zero sends no Compute Budget instruction.
func (n *NFTs) WithPriorityFee(microLamports uint64) *NFTs {
	n.priorityFee = microLamports
	return n
}

func (n *NFTs) submit(ctx context.Context, payer *crypto.Keypair, signers []*crypto.Keypair, ixs ...types.Instruction) (types.Signature, error) {
	if n.priorityFee > 0 {
		ixs = append([]types.Instruction{computebudget.SetComputeUnitPrice(n.priorityFee)}, ixs...)
	}
	return n.submitter.Submit(ctx, payer, signers, ixs...)
}

// Collection is the set of accounts created for one asset class.
type Collection struct {
	Signature types.Signature
	Mint      types.Pubkey
	Holding   types.Pubkey
	Metadata  types.Pubkey
}

// InitializeNFT creates the mint account and initializes it with its
// holding account and metadata. The payer becomes the mint authority.
func (n *NFTs) InitializeNFT(ctx context.Context, payer, mint *crypto.Keypair, args ainft.InitializeInstruction) (*Collection, error) {
	holding, err := associatedtoken.Address(payer.Pubkey, mint.Pubkey)
	if err != nil {
		return nil, err
	}
	meta, _, err := metadata.Address(mint.Pubkey)
	if err != nil {
		return nil, err
	}
	rent, err := n.submitter.GetMinimumBalanceForRentExemption(ctx, token.MintSize)
	if err != nil {
		return nil, fmt.Errorf("mint rent: %w", err)
	}

	sig, err := n.submit(ctx, payer, []*crypto.Keypair{mint},
		system.CreateAccount(payer.Pubkey, mint.Pubkey, types.TokenProgramID, rent, token.MintSize),
		ainft.NewInitializeInstruction(n.programID, ainft.InitializeAccounts{
			Initializer: payer.Pubkey,
			Mint:        mint.Pubkey,
			Holding:     holding,
			Metadata:    meta,
		}, args),
	)
	if err != nil {
		return nil, err
	}

	n.log.WithFields(logrus.Fields{
		"mint":      mint.Pubkey.String(),
		"signature": sig.String(),
	}).Info("initialized nft")
	return &Collection{Signature: sig, Mint: mint.Pubkey, Holding: holding, Metadata: meta}, nil
}

// MintNFT issues the unit of mint into the minter's holding account. A
// non-empty TokenID also records the asset in the registry.
func (n *NFTs) MintNFT(ctx context.Context, minter *crypto.Keypair, mint types.Pubkey, args ainft.MintInstruction) (types.Signature, error) {
	holding, err := associatedtoken.Address(minter.Pubkey, mint)
	if err != nil {
		return types.ZeroSignature, err
	}
	meta, _, err := metadata.Address(mint)
	if err != nil {
		return types.ZeroSignature, err
	}
	accts := ainft.MintAccounts{Minter: minter.Pubkey, Mint: mint, Holding: holding, Metadata: meta}
	if args.TokenID != "" {
		if accts.Asset, _, err = ainft.AssetAddress(n.programID, args.TokenID); err != nil {
			return types.ZeroSignature, err
		}
	}

	sig, err := n.submit(ctx, minter, nil, ainft.NewMintInstruction(n.programID, accts, args))
	if err != nil {
		return types.ZeroSignature, err
	}
	n.log.WithFields(logrus.Fields{
		"mint":      mint.String(),
		"token_id":  args.TokenID,
		"signature": sig.String(),
	}).Info("minted nft")
	return sig, nil
}

// TransferNFT moves the unit of mint from owner to recipient, creating
// the recipient's holding account first when it does not exist.
func (n *NFTs) TransferNFT(ctx context.Context, owner *crypto.Keypair, mint, recipient types.Pubkey, tokenID string) (types.Signature, error) {
	source, err := associatedtoken.Address(owner.Pubkey, mint)
	if err != nil {
		return types.ZeroSignature, err
	}
	destination, err := associatedtoken.Address(recipient, mint)
	if err != nil {
		return types.ZeroSignature, err
	}
	accts := ainft.TransferAccounts{Owner: owner.Pubkey, Source: source, Destination: destination}
	if tokenID != "" {
		if accts.Asset, _, err = ainft.AssetAddress(n.programID, tokenID); err != nil {
			return types.ZeroSignature, err
		}
	}

	var ixs []types.Instruction
	exists, err := n.submitter.AccountExists(ctx, destination)
	if err != nil {
		return types.ZeroSignature, err
	}
	if !exists {
		ixs = append(ixs, associatedtoken.Create(owner.Pubkey, destination, recipient, mint))
	}
	ixs = append(ixs, ainft.NewTransferInstruction(n.programID, accts, 1))

	sig, err := n.submit(ctx, owner, nil, ixs...)
	if err != nil {
		return types.ZeroSignature, err
	}
	n.log.WithFields(logrus.Fields{
		"mint":        mint.String(),
		"to":          recipient.String(),
		"created_ata": !exists,
		"signature":   sig.String(),
	}).Info("transferred nft")
	return sig, nil
}
