package runtime

import (
	"crypto/ed25519"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/druti2k/ai-nFt/pkg/accounts"
	"github.com/druti2k/ai-nFt/pkg/crypto"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/ainft"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/associatedtoken"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/computebudget"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/metadata"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/system"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/token"
	"github.com/druti2k/ai-nFt/pkg/types"
)

var blockhash = types.SHA256([]byte("blockhash"))

type harness struct {
	db   *accounts.MemoryDB
	exec *Executor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	registry := NewProgramRegistry()
	RegisterNativePrograms(registry)

	db := accounts.NewMemoryDB()
	for _, id := range registry.ListPrograms() {
		require.NoError(t, db.SetAccount(id, &types.Account{Lamports: 1, Owner: types.NativeLoaderID, Executable: true}))
	}
	return &harness{db: db, exec: NewExecutor(db, registry, DefaultOptions())}
}

func (h *harness) keypair(t *testing.T, lamports types.Lamports) *crypto.Keypair {
	t.Helper()
	kp, err := crypto.NewKeypair()
	require.NoError(t, err)
	if lamports > 0 {
		require.NoError(t, h.db.SetAccount(kp.Pubkey, types.NewAccount(lamports, types.SystemProgramID)))
	}
	return kp
}

func (h *harness) send(t *testing.T, payer *crypto.Keypair, signers []*crypto.Keypair, ixs ...types.Instruction) *TransactionResult {
	t.Helper()
	tx := types.NewTransaction(payer.Pubkey, blockhash, ixs...)
	keys := []ed25519.PrivateKey{payer.PrivateKey}
	for _, kp := range signers {
		keys = append(keys, kp.PrivateKey)
	}
	require.NoError(t, tx.Sign(keys...))
	return h.exec.ExecuteTransaction(tx)
}

func (h *harness) account(t *testing.T, pubkey types.Pubkey) *types.Account {
	t.Helper()
	acc, err := h.db.GetAccount(pubkey)
	require.NoError(t, err)
	return acc
}

func (h *harness) balance(t *testing.T, pubkey types.Pubkey) types.Lamports {
	t.Helper()
	if acc := h.account(t, pubkey); acc != nil {
		return acc.Lamports
	}
	return 0
}

func (h *harness) tokenAmount(t *testing.T, pubkey types.Pubkey) uint64 {
	t.Helper()
	acc := h.account(t, pubkey)
	require.NotNil(t, acc)
	state, err := token.DeserializeTokenAccount(acc.Data)
	require.NoError(t, err)
	return state.Amount
}

type nft struct {
	mint     *crypto.Keypair
	holding  types.Pubkey
	metadata types.Pubkey
}

func initializeInstructions(t *testing.T, owner, mint types.Pubkey) ([]types.Instruction, types.Pubkey, types.Pubkey) {
	t.Helper()
	holding, err := associatedtoken.Address(owner, mint)
	require.NoError(t, err)
	meta, _, err := metadata.Address(mint)
	require.NoError(t, err)

	rent := uint64(types.RentExemptMinimum(token.MintSize))
	return []types.Instruction{
		system.CreateAccount(owner, mint, types.TokenProgramID, rent, token.MintSize),
		ainft.NewInitializeInstruction(types.AINFTProgramID, ainft.InitializeAccounts{
			Initializer: owner,
			Mint:        mint,
			Holding:     holding,
			Metadata:    meta,
		}, ainft.InitializeInstruction{Name: "AI Art #1", Symbol: "AIA", URI: "https://x/1.json"}),
	}, holding, meta
}

func (h *harness) initialize(t *testing.T, owner *crypto.Keypair) nft {
	t.Helper()
	mint := h.keypair(t, 0)
	ixs, holding, meta := initializeInstructions(t, owner.Pubkey, mint.Pubkey)
	res := h.send(t, owner, []*crypto.Keypair{mint}, ixs...)
	require.NoError(t, res.Err, "logs: %v", res.Logs)
	return nft{mint: mint, holding: holding, metadata: meta}
}

func TestExecuteTransaction_InitializeMintTransfer(t *testing.T) {
	h := newHarness(t)
	alice := h.keypair(t, 10_000_000_000)
	bob := h.keypair(t, 0)

	n := h.initialize(t, alice)
	mintState, err := token.DeserializeMint(h.account(t, n.mint.Pubkey).Data)
	require.NoError(t, err)
	assert.True(t, mintState.IsInitialized)
	assert.Zero(t, h.tokenAmount(t, n.holding))

	asset, _, err := ainft.AssetAddress(types.AINFTProgramID, "1")
	require.NoError(t, err)
	res := h.send(t, alice, nil, ainft.NewMintInstruction(types.AINFTProgramID, ainft.MintAccounts{
		Minter:   alice.Pubkey,
		Mint:     n.mint.Pubkey,
		Holding:  n.holding,
		Metadata: n.metadata,
		Asset:    asset,
	}, ainft.MintInstruction{TokenID: "1", ImageURL: "https://x/1.png", Metadata: "{seed:42}"}))
	require.NoError(t, res.Err, "logs: %v", res.Logs)
	assert.Contains(t, res.Logs, "Program log: NFT minted successfully: 1")
	assert.EqualValues(t, 1, h.tokenAmount(t, n.holding))

	bobATA, err := associatedtoken.Address(bob.Pubkey, n.mint.Pubkey)
	require.NoError(t, err)
	res = h.send(t, alice, nil,
		associatedtoken.Create(alice.Pubkey, bobATA, bob.Pubkey, n.mint.Pubkey),
		ainft.NewTransferInstruction(types.AINFTProgramID, ainft.TransferAccounts{
			Owner:       alice.Pubkey,
			Source:      n.holding,
			Destination: bobATA,
			Asset:       asset,
		}, 1),
	)
	require.NoError(t, res.Err, "logs: %v", res.Logs)

	assert.Zero(t, h.tokenAmount(t, n.holding))
	assert.EqualValues(t, 1, h.tokenAmount(t, bobATA))
	rec, err := ainft.DeserializeAssetRecord(h.account(t, asset).Data)
	require.NoError(t, err)
	assert.Equal(t, bob.Pubkey, rec.Owner)
}

func TestExecuteTransaction_FailedSubCallCommitsNothing(t *testing.T) {
	h := newHarness(t)
	alice := h.keypair(t, 10_000_000_000)
	mint := h.keypair(t, 0)

	rent := uint64(types.RentExemptMinimum(token.MintSize))
	res := h.send(t, alice, []*crypto.Keypair{mint}, system.CreateAccount(alice.Pubkey, mint.Pubkey, types.TokenProgramID, rent, token.MintSize))
	require.NoError(t, res.Err)
	balance := h.balance(t, alice.Pubkey)

	// A holding address that is not alice's associated token account makes
	// the associated token sub-call fail after the mint was initialized.
	meta, _, err := metadata.Address(mint.Pubkey)
	require.NoError(t, err)
	res = h.send(t, alice, nil, ainft.NewInitializeInstruction(types.AINFTProgramID, ainft.InitializeAccounts{
		Initializer: alice.Pubkey,
		Mint:        mint.Pubkey,
		Holding:     h.keypair(t, 0).Pubkey,
		Metadata:    meta,
	}, ainft.InitializeInstruction{Name: "n", Symbol: "s", URI: "u"}))

	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, associatedtoken.ErrAddressMismatch)
	assert.Equal(t, 0, res.InstructionIndex())
	assert.Empty(t, res.Deltas)

	stored := h.account(t, mint.Pubkey)
	require.NotNil(t, stored)
	assert.Equal(t, make([]byte, token.MintSize), stored.Data)
	assert.Nil(t, h.account(t, meta))
	assert.Equal(t, balance, h.balance(t, alice.Pubkey))
}

func TestExecuteTransaction_SecondInstructionFailureRollsBackFirst(t *testing.T) {
	h := newHarness(t)
	alice := h.keypair(t, 10_000_000_000)
	mint := h.keypair(t, 0)

	ixs, _, _ := initializeInstructions(t, alice.Pubkey, mint.Pubkey)
	ixs[1].Accounts[3].Pubkey = types.SystemProgramID

	res := h.send(t, alice, []*crypto.Keypair{mint}, ixs...)
	assert.ErrorIs(t, res.Err, ainft.ErrMalformedAccountList)
	assert.Equal(t, 1, res.InstructionIndex())
	assert.Nil(t, h.account(t, mint.Pubkey))
	assert.EqualValues(t, 10_000_000_000, h.balance(t, alice.Pubkey))
}

func TestExecuteTransaction_ChargesFee(t *testing.T) {
	h := newHarness(t)
	alice := h.keypair(t, 1_000_000)
	bob := h.keypair(t, 0)

	res := h.send(t, alice, nil, system.Transfer(alice.Pubkey, bob.Pubkey, 1_000))
	require.NoError(t, res.Err)
	assert.Equal(t, types.LamportsPerSignature, res.Fee)
	assert.Equal(t, types.Lamports(1_000_000-1_000)-types.LamportsPerSignature, h.balance(t, alice.Pubkey))
	assert.EqualValues(t, 1_000, h.balance(t, bob.Pubkey))
	assert.Len(t, res.Deltas, 2)

	poor := h.keypair(t, 10)
	res = h.send(t, poor, nil, system.Transfer(poor.Pubkey, bob.Pubkey, 1))
	assert.ErrorIs(t, res.Err, ErrInsufficientFundsForFee)
}

func TestExecuteTransaction_ComputeBudget(t *testing.T) {
	h := newHarness(t)
	alice := h.keypair(t, 10_000_000_000)
	bob := h.keypair(t, 0)

	res := h.send(t, alice, nil,
		computebudget.SetComputeUnitLimit(100_000),
		computebudget.SetComputeUnitPrice(1_000_000),
		system.Transfer(alice.Pubkey, bob.Pubkey, 1_000),
	)
	require.NoError(t, res.Err)
	assert.Equal(t, types.LamportsPerSignature+100_000, res.Fee)
	assert.Equal(t, 10_000_000_000-1_000-res.Fee, h.balance(t, alice.Pubkey))
	assert.EqualValues(t, 2*computebudget.InstructionCost, res.ComputeUnits)

	// a limit below the cost of the instructions runs the meter dry
	res = h.send(t, alice, nil,
		computebudget.SetComputeUnitLimit(100),
		system.Transfer(alice.Pubkey, bob.Pubkey, 1_000),
	)
	assert.Error(t, res.Err)
	assert.EqualValues(t, 1_000, h.balance(t, bob.Pubkey))

	res = h.send(t, alice, nil,
		computebudget.SetComputeUnitPrice(1),
		computebudget.SetComputeUnitPrice(2),
	)
	assert.ErrorIs(t, res.Err, computebudget.ErrDuplicateInstruction)
	assert.Equal(t, -1, res.InstructionIndex())
}

func TestExecuteTransaction_LoadedDataLimit(t *testing.T) {
	h := newHarness(t)
	alice := h.keypair(t, 10_000_000_000)
	n := h.initialize(t, alice)

	before := h.balance(t, alice.Pubkey)
	res := h.send(t, alice, nil,
		computebudget.SetLoadedAccountsDataSizeLimit(16),
		system.Transfer(alice.Pubkey, n.mint.Pubkey, 1),
	)
	assert.ErrorIs(t, res.Err, ErrLoadedDataSizeExceeded)
	assert.Equal(t, before, h.balance(t, alice.Pubkey))
}

func TestExecuteTransaction_Rejections(t *testing.T) {
	h := newHarness(t)
	alice := h.keypair(t, 1_000_000)
	bob := h.keypair(t, 0)

	tx := types.NewTransaction(alice.Pubkey, blockhash, system.Transfer(alice.Pubkey, bob.Pubkey, 5))
	assert.Error(t, tx.Sign(bob.PrivateKey))
	res := h.exec.ExecuteTransaction(tx)
	assert.ErrorIs(t, res.Err, crypto.ErrVerificationFailed)

	res = h.exec.ExecuteTransaction(nil)
	assert.ErrorIs(t, res.Err, ErrNilTransaction)

	unknown := h.keypair(t, 0).Pubkey
	res = h.send(t, alice, nil, types.Instruction{ProgramID: unknown})
	assert.ErrorIs(t, res.Err, ErrProgramNotFound)
	assert.Equal(t, 0, res.InstructionIndex())

	assert.EqualValues(t, 1_000_000, h.balance(t, alice.Pubkey))
}

func TestSimulateTransaction_DoesNotCommit(t *testing.T) {
	h := newHarness(t)
	alice := h.keypair(t, 1_000_000)
	bob := h.keypair(t, 0)

	tx := types.NewTransaction(alice.Pubkey, blockhash, system.Transfer(alice.Pubkey, bob.Pubkey, 500))
	require.NoError(t, tx.Sign(alice.PrivateKey))

	res := h.exec.SimulateTransaction(tx)
	require.NoError(t, res.Err)
	assert.Len(t, res.Deltas, 2)
	assert.NotEmpty(t, res.Logs)
	assert.Nil(t, h.account(t, bob.Pubkey))
}

func TestExecuteTransaction_Concurrent(t *testing.T) {
	h := newHarness(t)
	sink := h.keypair(t, 0)

	payers := make([]*crypto.Keypair, 16)
	for i := range payers {
		payers[i] = h.keypair(t, 100_000)
	}

	var wg sync.WaitGroup
	results := make([]*TransactionResult, len(payers))
	for i, payer := range payers {
		tx := types.NewTransaction(payer.Pubkey, blockhash, system.Transfer(payer.Pubkey, sink.Pubkey, 10))
		require.NoError(t, tx.Sign(payer.PrivateKey))
		wg.Add(1)
		go func(i int, tx *types.Transaction) {
			defer wg.Done()
			results[i] = h.exec.ExecuteTransaction(tx)
		}(i, tx)
	}
	wg.Wait()

	for _, res := range results {
		require.NoError(t, res.Err)
	}
	assert.EqualValues(t, 160, h.balance(t, sink.Pubkey))
}
