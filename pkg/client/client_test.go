package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ybbus/jsonrpc"

	"github.com/druti2k/ai-nFt/pkg/accounts"
	"github.com/druti2k/ai-nFt/pkg/crypto"
	"github.com/druti2k/ai-nFt/pkg/ledger"
	"github.com/druti2k/ai-nFt/pkg/rpc"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/ainft"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/associatedtoken"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/computebudget"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/system"
	"github.com/druti2k/ai-nFt/pkg/types"
)

func newNode(t *testing.T) *Client {
	t.Helper()
	faucet, err := crypto.NewKeypair()
	require.NoError(t, err)
	bank, err := ledger.NewBank(accounts.NewMemoryDB(), ledger.DefaultConfig(), ledger.WithFaucet(faucet))
	require.NoError(t, err)

	ts := httptest.NewServer(rpc.NewServer(nil, bank).Handler())
	t.Cleanup(ts.Close)
	return New(ts.URL)
}

func keypair(t *testing.T) *crypto.Keypair {
	t.Helper()
	kp, err := crypto.NewKeypair()
	require.NoError(t, err)
	return kp
}

func TestClient_Queries(t *testing.T) {
	ctx := context.Background()
	c := newNode(t)
	alice := keypair(t)

	slot, err := c.GetSlot(ctx)
	require.NoError(t, err)
	assert.Zero(t, slot)

	_, err = c.GetAccountInfo(ctx, alice.Pubkey)
	assert.ErrorIs(t, err, ErrNotFound)
	exists, err := c.AccountExists(ctx, alice.Pubkey)
	require.NoError(t, err)
	assert.False(t, exists)

	sig, err := c.RequestAirdrop(ctx, alice.Pubkey, 2_000_000_000)
	require.NoError(t, err)
	status, err := c.GetSignatureStatus(ctx, sig)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Nil(t, status.Err)

	balance, err := c.GetBalance(ctx, alice.Pubkey)
	require.NoError(t, err)
	assert.EqualValues(t, 2_000_000_000, balance)

	acc, err := c.GetAccountInfo(ctx, alice.Pubkey)
	require.NoError(t, err)
	assert.Equal(t, types.SystemProgramID, acc.Owner)

	rent, err := c.GetMinimumBalanceForRentExemption(ctx, 82)
	require.NoError(t, err)
	assert.EqualValues(t, types.RentExemptMinimum(82), rent)

	_, err = c.RequestAirdrop(ctx, alice.Pubkey, 0)
	assert.Error(t, err)
}

// stalledNode returns the URL of a server that holds every request until
// the test ends.
func stalledNode(t *testing.T) string {
	t.Helper()
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(ts.Close)
	t.Cleanup(func() { close(release) })
	return ts.URL
}

func TestClient_HonoursContext(t *testing.T) {
	c := New(stalledNode(t))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.GetSlot(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.GetBalance(cancelled, types.SystemProgramID)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_HTTPTimeout(t *testing.T) {
	c := NewWithRPCOptions(stalledNode(t), &jsonrpc.RPCClientOpts{
		HTTPClient: &http.Client{Timeout: 50 * time.Millisecond},
	})

	start := time.Now()
	_, err := c.GetSlot(context.Background())
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClient_TransactionErrors(t *testing.T) {
	ctx := context.Background()
	c := newNode(t)
	alice := keypair(t)
	_, err := c.RequestAirdrop(ctx, alice.Pubkey, 1_000_000)
	require.NoError(t, err)

	_, err = c.Submit(ctx, alice, nil, system.Transfer(alice.Pubkey, keypair(t).Pubkey, 5_000_000))
	require.ErrorIs(t, err, ErrTransactionFailed)
	var txErr *TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.NotNil(t, txErr.Err)
	assert.NotEmpty(t, txErr.Logs)

	blockhash, err := c.GetLatestBlockhash(ctx)
	require.NoError(t, err)
	tx := types.NewTransaction(alice.Pubkey, blockhash, system.Transfer(alice.Pubkey, keypair(t).Pubkey, 10))
	require.NoError(t, tx.Sign(alice.PrivateKey))
	sim, err := c.SimulateTransaction(ctx, tx)
	require.NoError(t, err)
	assert.Nil(t, sim.Err)
}

func TestNFTs_Lifecycle(t *testing.T) {
	ctx := context.Background()
	c := newNode(t)
	nfts := NewNFTs(c, types.AINFTProgramID)

	alice, bob, mint := keypair(t), keypair(t), keypair(t)
	_, err := c.RequestAirdrop(ctx, alice.Pubkey, 10_000_000_000)
	require.NoError(t, err)

	col, err := nfts.InitializeNFT(ctx, alice, mint, ainft.InitializeInstruction{
		Name: "Dream", Symbol: "AIN", URI: "ipfs://dream",
	})
	require.NoError(t, err)
	assert.Equal(t, mint.Pubkey, col.Mint)

	md, err := c.GetNFTMetadata(ctx, mint.Pubkey)
	require.NoError(t, err)
	assert.Equal(t, "Dream", md.Name)
	assert.Equal(t, alice.Pubkey.String(), md.UpdateAuthority)

	_, err = nfts.MintNFT(ctx, alice, mint.Pubkey, ainft.MintInstruction{
		TokenID: "42", ImageURL: "https://img/42.png", Metadata: "a cat in space",
	})
	require.NoError(t, err)

	bal, err := c.GetTokenAccountBalance(ctx, col.Holding)
	require.NoError(t, err)
	assert.Equal(t, "1", bal.Amount)

	_, err = nfts.TransferNFT(ctx, alice, mint.Pubkey, bob.Pubkey, "42")
	require.NoError(t, err)

	asset, err := c.GetAsset(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, bob.Pubkey.String(), asset.Owner)
	assert.Equal(t, "a cat in space", asset.Metadata)

	bobATA, err := associatedtoken.Address(bob.Pubkey, mint.Pubkey)
	require.NoError(t, err)
	bal, err = c.GetTokenAccountBalance(ctx, bobATA)
	require.NoError(t, err)
	assert.Equal(t, "1", bal.Amount)

	// alice no longer holds the unit
	_, err = nfts.TransferNFT(ctx, alice, mint.Pubkey, bob.Pubkey, "42")
	assert.ErrorIs(t, err, ErrTransactionFailed)

	_, err = c.GetAsset(ctx, "43")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToClusterInstructions(t *testing.T) {
	from, to := keypair(t).Pubkey, keypair(t).Pubkey
	out := toClusterInstructions([]types.Instruction{system.Transfer(from, to, 7)})

	require.Len(t, out, 1)
	assert.Equal(t, common.SystemProgramID, out[0].ProgramID)
	require.Len(t, out[0].Accounts, 2)
	assert.Equal(t, common.PublicKey(from), out[0].Accounts[0].PubKey)
	assert.True(t, out[0].Accounts[0].IsSigner)
	assert.True(t, out[0].Accounts[1].IsWritable)
}

type recordingSubmitter struct {
	Submitter
	ixs []types.Instruction
}

func (r *recordingSubmitter) Submit(_ context.Context, _ *crypto.Keypair, _ []*crypto.Keypair, ixs ...types.Instruction) (types.Signature, error) {
	r.ixs = ixs
	return types.Signature{}, nil
}

func TestNFTs_PriorityFee(t *testing.T) {
	rec := &recordingSubmitter{}
	minter := keypair(t)
	mint := keypair(t).Pubkey

	nfts := NewNFTs(rec, types.AINFTProgramID)
	_, err := nfts.MintNFT(context.Background(), minter, mint, ainft.MintInstruction{})
	require.NoError(t, err)
	require.Len(t, rec.ixs, 1)
	assert.Equal(t, types.AINFTProgramID, rec.ixs[0].ProgramID)

	_, err = nfts.WithPriorityFee(5_000).MintNFT(context.Background(), minter, mint, ainft.MintInstruction{})
	require.NoError(t, err)
	require.Len(t, rec.ixs, 2)
	assert.Equal(t, computebudget.SetComputeUnitPrice(5_000), rec.ixs[0])
}
