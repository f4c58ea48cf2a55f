package client

import (
	"context"
	"fmt"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/common"
	solanatypes "github.com/blocto/solana-go-sdk/types"
	"github.com/sirupsen/logrus"

	"github.com/druti2k/ai-nFt/pkg/crypto"
	"github.com/druti2k/ai-nFt/pkg/types"
)

// ClusterSubmitter lands AI-NFT transactions on a Solana cluster where
// the program is deployed.
type ClusterSubmitter struct {
	rpc *client.Client
	log *logrus.Entry
}

func NewClusterSubmitter(endpoint string) *ClusterSubmitter {
	return &ClusterSubmitter{
		rpc: client.NewClient(endpoint),
		log: logrus.StandardLogger().WithField("type", "client/cluster"),
	}
}

var _ Submitter = (*ClusterSubmitter)(nil)

func (s *ClusterSubmitter) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	return s.rpc.GetMinimumBalanceForRentExemption(ctx, size)
}

func (s *ClusterSubmitter) AccountExists(ctx context.Context, pubkey types.Pubkey) (bool, error) {
	info, err := s.rpc.GetAccountInfo(ctx, pubkey.String())
	if err != nil {
		return false, err
	}
	return info.Lamports > 0 || info.Owner != (common.PublicKey{}), nil
}

func (s *ClusterSubmitter) Submit(ctx context.Context, payer *crypto.Keypair, signers []*crypto.Keypair, ixs ...types.Instruction) (types.Signature, error) {
	accounts := make([]solanatypes.Account, 0, len(signers)+1)
	for _, kp := range append([]*crypto.Keypair{payer}, signers...) {
		acc, err := solanatypes.AccountFromBytes(kp.PrivateKey)
		if err != nil {
			return types.ZeroSignature, fmt.Errorf("signer %s: %w", kp.Pubkey, err)
		}
		accounts = append(accounts, acc)
	}

	latest, err := s.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return types.ZeroSignature, fmt.Errorf("GetLatestBlockhash: %w", err)
	}

	tx, err := solanatypes.NewTransaction(solanatypes.NewTransactionParam{
		Message: solanatypes.NewMessage(solanatypes.NewMessageParam{
			FeePayer:        publicKey(payer.Pubkey),
			RecentBlockhash: latest.Blockhash,
			Instructions:    toClusterInstructions(ixs),
		}),
		Signers: accounts,
	})
	if err != nil {
		return types.ZeroSignature, fmt.Errorf("NewTransaction: %w", err)
	}

	sig, err := s.rpc.SendTransaction(ctx, tx)
	if err != nil {
		return types.ZeroSignature, fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	s.log.WithField("signature", sig).Debug("submitted to cluster")
	return types.SignatureFromBase58(sig)
}

func publicKey(pk types.Pubkey) common.PublicKey {
	return common.PublicKey(pk)
}

func toClusterInstructions(ixs []types.Instruction) []solanatypes.Instruction {
	out := make([]solanatypes.Instruction, len(ixs))
	for i, ix := range ixs {
		metas := make([]solanatypes.AccountMeta, len(ix.Accounts))
		for j, meta := range ix.Accounts {
			metas[j] = solanatypes.AccountMeta{
				PubKey:     publicKey(meta.Pubkey),
				IsSigner:   meta.IsSigner,
				IsWritable: meta.IsWritable,
			}
		}
		out[i] = solanatypes.Instruction{
			ProgramID: publicKey(ix.ProgramID),
			Accounts:  metas,
			Data:      ix.Data,
		}
	}
	return out
}
