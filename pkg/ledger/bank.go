// Package ledger is the single-node AI-NFT ledger: a bank that orders
// transactions into slots over an accounts database.
//
// Every committed transaction closes a slot. The slot's blockhash is the
// hash of a Proof of History entry recording the transaction signature,
// and its bank hash chains the parent bank hash with the accounts delta
// hash. Transactions must reference one of the last MaxRecentBlockhashes
// blockhashes, and a signature is executed at most once while its
// blockhash is recent.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/druti2k/ai-nFt/pkg/accounts"
	"github.com/druti2k/ai-nFt/pkg/crypto"
	"github.com/druti2k/ai-nFt/pkg/metrics"
	"github.com/druti2k/ai-nFt/pkg/poh"
	"github.com/druti2k/ai-nFt/pkg/runtime"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/ainft"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/system"
	"github.com/druti2k/ai-nFt/pkg/types"
)

// MaxRecentBlockhashes is how many slots a blockhash stays valid for.
const MaxRecentBlockhashes = 150

// HashesPerSlot is the number of PoH hashes in each slot's entry.
const HashesPerSlot = 64

var (
	ErrBlockhashNotFound = errors.New("blockhash not found")
	ErrAlreadyProcessed  = errors.New("transaction already processed")
	ErrFaucetDisabled    = errors.New("faucet is disabled")
	ErrAccountNotFound   = errors.New("account not found")
)

// Config configures a Bank.
type Config struct {
	LamportsPerSignature types.Lamports
	ComputeUnitLimit     types.ComputeUnits
	// FaucetLamports funds the faucet at genesis.
	FaucetLamports types.Lamports
}

// DefaultConfig returns the defaults used by ainftd.
func DefaultConfig() Config {
	return Config{
		LamportsPerSignature: types.LamportsPerSignature,
		ComputeUnitLimit:     types.MaxComputeUnitsPerTransaction,
		FaucetLamports:       500_000_000 * 1_000_000_000,
	}
}

// Option configures optional Bank collaborators.
type Option func(*Bank)

// WithMetrics records per-transaction metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bank) { b.metrics = m }
}

// WithFaucet enables Airdrop, paid from kp. A fresh ledger funds kp at
// genesis.
func WithFaucet(kp *crypto.Keypair) Option {
	return func(b *Bank) { b.faucet = kp }
}

// Bank orders and executes transactions.
type Bank struct {
	db        accounts.AccountsDB
	executor  *runtime.Executor
	simulator *runtime.Executor
	statuses  *StatusCache
	metrics   *metrics.Metrics
	faucet    *crypto.Keypair
	airdropMu sync.Mutex
	log       *logrus.Entry

	mu        sync.RWMutex
	slot      types.Slot
	blockhash types.Hash
	bankHash  types.Hash
	recent    *blockhashQueue
	poh       *poh.Recorder
	// entries holds the PoH entries of the recent slots, chained from
	// entriesStart.
	entries      []poh.Entry
	entriesStart types.Hash
}

// NewBank opens a bank over db, applying genesis first when db is empty.
func NewBank(db accounts.AccountsDB, cfg Config, opts ...Option) (*Bank, error) {
	registry := runtime.NewProgramRegistry()
	runtime.RegisterNativePrograms(registry)

	execOpts := runtime.Options{
		ComputeUnitLimit:     cfg.ComputeUnitLimit,
		LamportsPerSignature: cfg.LamportsPerSignature,
	}
	simOpts := execOpts
	simOpts.SkipSignatureVerification = true

	b := &Bank{
		db:        db,
		executor:  runtime.NewExecutor(db, registry, execOpts),
		simulator: runtime.NewExecutor(db, registry, simOpts),
		statuses:  NewStatusCache(),
		recent:    newBlockhashQueue(MaxRecentBlockhashes),
		log:       logrus.StandardLogger().WithField("type", "ledger/bank"),
	}
	for _, opt := range opts {
		opt(b)
	}

	if !IsGenesisApplied(db) {
		g := Genesis{FaucetLamports: cfg.FaucetLamports}
		if b.faucet != nil {
			g.Faucet = b.faucet.Pubkey
		}
		if err := ApplyGenesis(db, registry, g); err != nil {
			return nil, fmt.Errorf("apply genesis: %w", err)
		}
		b.log.WithField("programs", len(registry.ListPrograms())).Info("genesis applied")
	}

	// Slots restart at zero on every open; the first blockhash commits to
	// the stored state.
	accountsHash, err := accounts.ComputeAccountsHash(db)
	if err != nil {
		return nil, fmt.Errorf("hash accounts: %w", err)
	}
	b.bankHash = accountsHash
	b.blockhash = crypto.Hashv([]byte("ainft-genesis"), accountsHash[:])
	b.recent.push(b.blockhash, 0)
	b.poh = poh.NewRecorder(b.blockhash, HashesPerSlot)
	b.entriesStart = b.blockhash
	if b.metrics != nil {
		b.metrics.CurrentSlot.Set(0)
	}
	return b, nil
}

// Slot returns the current slot.
func (b *Bank) Slot() types.Slot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.slot
}

// BankHash returns the bank hash of the current slot.
func (b *Bank) BankHash() types.Hash {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bankHash
}

// LatestBlockhash returns the newest blockhash and the last slot at which
// a transaction referencing it is still accepted.
func (b *Bank) LatestBlockhash() (types.Hash, types.Slot) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.blockhash, b.slot + MaxRecentBlockhashes
}

// RecentEntries returns the PoH entries of the recent slots and the hash
// they chain from.
func (b *Bank) RecentEntries() (types.Hash, []poh.Entry) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.entriesStart, append([]poh.Entry(nil), b.entries...)
}

// IsBlockhashValid reports whether hash is recent enough to be used.
func (b *Bank) IsBlockhashValid(hash types.Hash) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.recent.contains(hash)
}

// Registry returns the bank's program registry.
func (b *Bank) Registry() *runtime.ProgramRegistry {
	return b.executor.Registry()
}

// AccountsDB returns the underlying accounts database.
func (b *Bank) AccountsDB() accounts.AccountsDB {
	return b.db
}

// SignatureStatus returns the recorded outcome of sig.
func (b *Bank) SignatureStatus(sig types.Signature) (SignatureStatus, bool) {
	return b.statuses.Get(sig)
}

// ProcessTransaction executes tx and, when it succeeds, closes a slot.
// The returned error covers rejections before execution. Execution
// failures are reported in the result and recorded in the status cache.
func (b *Bank) ProcessTransaction(tx *types.Transaction) (*runtime.TransactionResult, error) {
	if tx == nil {
		return nil, runtime.ErrNilTransaction
	}
	if !b.IsBlockhashValid(tx.Message.RecentBlockhash) {
		return nil, fmt.Errorf("%w: %s", ErrBlockhashNotFound, tx.Message.RecentBlockhash)
	}
	sig := tx.ID()
	if !b.statuses.Reserve(sig) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyProcessed, sig)
	}

	start := time.Now()
	result := b.executor.ExecuteTransaction(tx)

	var txErr *runtime.TransactionError
	if result.Err != nil && !errors.As(result.Err, &txErr) {
		b.statuses.Release(sig)
		return result, result.Err
	}

	b.mu.Lock()
	if result.Success() {
		b.advance(sig, uint64(len(tx.Signatures)), result.Deltas)
	}
	slot := b.slot
	b.mu.Unlock()

	b.statuses.Complete(sig, SignatureStatus{Slot: slot, Err: result.Err})
	if slot > MaxRecentBlockhashes {
		b.statuses.Purge(slot - MaxRecentBlockhashes)
	}
	b.record(tx, result, time.Since(start))

	entry := b.log.WithFields(logrus.Fields{
		"signature": sig.String(),
		"slot":      slot,
		"units":     result.ComputeUnits,
	})
	if result.Success() {
		entry.Debug("transaction committed")
	} else {
		entry.WithError(result.Err).Info("transaction failed")
	}
	return result, nil
}

// advance closes the current slot. Callers hold b.mu.
func (b *Bank) advance(sig types.Signature, signatureCount uint64, deltas []types.AccountDelta) {
	parent := b.bankHash
	b.slot++
	entry := b.poh.Record(sig)
	b.blockhash = entry.Hash
	b.entries = append(b.entries, entry)
	if len(b.entries) > MaxRecentBlockhashes {
		b.entriesStart = b.entries[0].Hash
		b.entries = b.entries[1:]
	}
	b.bankHash = ComputeBankHash(parent, accounts.ComputeAccountsDeltaHash(deltas), signatureCount, b.blockhash)
	b.recent.push(b.blockhash, b.slot)
}

func (b *Bank) record(tx *types.Transaction, result *runtime.TransactionResult, d time.Duration) {
	if b.metrics == nil {
		return
	}
	b.metrics.RecordTransaction(result.Success(), len(tx.Message.Instructions), uint64(result.ComputeUnits), d)
	b.metrics.CurrentSlot.SetUint64(uint64(b.Slot()))
	if !result.Success() {
		return
	}
	for _, ix := range tx.Message.Instructions {
		if int(ix.ProgramIDIndex) >= len(tx.Message.AccountKeys) || len(ix.Data) == 0 {
			continue
		}
		if tx.Message.AccountKeys[ix.ProgramIDIndex] != types.AINFTProgramID {
			continue
		}
		switch ix.Data[0] {
		case ainft.TagMint:
			b.metrics.NFTsMinted.Inc()
		case ainft.TagTransfer:
			b.metrics.NFTTransfers.Inc()
		}
	}
}

// SimulateTransaction executes tx without committing it. With
// verifySignatures false the signatures are not checked, and with
// replaceBlockhash the blockhash check is skipped.
func (b *Bank) SimulateTransaction(tx *types.Transaction, verifySignatures, replaceBlockhash bool) (*runtime.TransactionResult, error) {
	if tx == nil {
		return nil, runtime.ErrNilTransaction
	}
	if !replaceBlockhash && !b.IsBlockhashValid(tx.Message.RecentBlockhash) {
		return nil, fmt.Errorf("%w: %s", ErrBlockhashNotFound, tx.Message.RecentBlockhash)
	}
	if verifySignatures {
		return b.executor.SimulateTransaction(tx), nil
	}
	return b.simulator.SimulateTransaction(tx), nil
}

// Airdrop transfers lamports from the faucet to pubkey.
func (b *Bank) Airdrop(pubkey types.Pubkey, lamports types.Lamports) (types.Signature, error) {
	if b.faucet == nil {
		return types.ZeroSignature, ErrFaucetDisabled
	}
	// Serialized so two identical airdrops never share a blockhash.
	b.airdropMu.Lock()
	defer b.airdropMu.Unlock()

	blockhash, _ := b.LatestBlockhash()
	tx := types.NewTransaction(b.faucet.Pubkey, blockhash, system.Transfer(b.faucet.Pubkey, pubkey, uint64(lamports)))
	if err := tx.Sign(b.faucet.PrivateKey); err != nil {
		return types.ZeroSignature, err
	}
	result, err := b.ProcessTransaction(tx)
	if err != nil {
		return types.ZeroSignature, fmt.Errorf("airdrop: %w", err)
	}
	if !result.Success() {
		return result.Signature, fmt.Errorf("airdrop: %w", result.Err)
	}
	if b.metrics != nil {
		b.metrics.Airdrops.Inc()
	}
	b.log.WithFields(logrus.Fields{"to": pubkey.String(), "lamports": lamports}).Info("airdrop")
	return result.Signature, nil
}
