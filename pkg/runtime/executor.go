// Package runtime executes AI-NFT ledger transactions.
//
// A transaction is executed against a private working set of accounts.
// Each instruction gets its own execution context over that working set,
// sharing one compute meter and log collector, and cross-program
// invocations resolve through the program registry. The working set is
// committed to the accounts database in one batch only when every
// instruction succeeds.
package runtime

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/druti2k/ai-nFt/pkg/crypto"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/computebudget"
	"github.com/druti2k/ai-nFt/pkg/svm/syscall"
	"github.com/druti2k/ai-nFt/pkg/types"
)

var (
	ErrNilTransaction          = errors.New("nil transaction")
	ErrNoInstructions          = errors.New("transaction has no instructions")
	ErrInvalidFeePayer         = errors.New("fee payer must be a writable signer")
	ErrInsufficientFundsForFee = errors.New("insufficient funds for fee")
	ErrProgramNotExecutable    = errors.New("program is not executable")
	ErrLoadedDataSizeExceeded  = errors.New("loaded accounts data size exceeds the limit")
)

// AccountsDB is the storage the executor reads from and commits to.
type AccountsDB interface {
	GetAccount(pubkey types.Pubkey) (*types.Account, error)
	Commit(deltas []types.AccountDelta) error
}

// Options configures an Executor.
type Options struct {
	// ComputeUnitLimit caps the compute units of one transaction.
	ComputeUnitLimit types.ComputeUnits
	// LamportsPerSignature is the fee charged per required signature.
	LamportsPerSignature types.Lamports
	// SkipSignatureVerification is used by simulation.
	SkipSignatureVerification bool
}

// DefaultOptions returns the mainnet-like defaults.
func DefaultOptions() Options {
	return Options{
		ComputeUnitLimit:     types.MaxComputeUnitsPerTransaction,
		LamportsPerSignature: types.LamportsPerSignature,
	}
}

// Executor runs transactions.
type Executor struct {
	db       AccountsDB
	registry *ProgramRegistry
	locks    *AccountLocks
	opts     Options
	log      *logrus.Entry
}

// NewExecutor creates an executor over db. Programs are looked up in
// registry.
func NewExecutor(db AccountsDB, registry *ProgramRegistry, opts Options) *Executor {
	return &Executor{
		db:       db,
		registry: registry,
		locks:    NewAccountLocks(),
		opts:     opts,
		log:      logrus.StandardLogger().WithField("type", "runtime/executor"),
	}
}

// Registry returns the executor's program registry.
func (e *Executor) Registry() *ProgramRegistry {
	return e.registry
}

// ExecuteTransaction verifies, executes and commits tx. Any failure leaves
// the accounts database untouched.
func (e *Executor) ExecuteTransaction(tx *types.Transaction) *TransactionResult {
	return e.execute(tx, true)
}

// SimulateTransaction executes tx without committing it. Signatures are
// checked unless the executor was configured to skip them.
func (e *Executor) SimulateTransaction(tx *types.Transaction) *TransactionResult {
	return e.execute(tx, false)
}

func (e *Executor) execute(tx *types.Transaction, commit bool) *TransactionResult {
	start := time.Now()
	result := &TransactionResult{}
	if tx == nil {
		result.Err = ErrNilTransaction
		return result
	}
	result.Signature = tx.ID()
	log := e.log.WithField("signature", result.Signature.String())

	if err := e.check(tx); err != nil {
		result.Err = err
		log.WithError(err).Debug("transaction rejected")
		return result
	}

	budget, err := computebudget.Parse(&tx.Message, e.opts.ComputeUnitLimit)
	if err != nil {
		result.Err = err
		log.WithError(err).Debug("invalid compute budget")
		return result
	}

	unlock := e.locks.Lock(&tx.Message)
	defer unlock()

	ws, err := e.load(&tx.Message, budget.LoadedAccountsDataSizeLimit)
	if err != nil {
		result.Err = err
		return result
	}

	fee := e.opts.LamportsPerSignature*types.Lamports(tx.Message.Header.NumRequiredSignatures) + budget.PriorityFee()
	payer := ws.accounts[0]
	if *payer.Lamports < uint64(fee) {
		result.Err = fmt.Errorf("%w: balance %d, fee %d", ErrInsufficientFundsForFee, *payer.Lamports, fee)
		return result
	}
	*payer.Lamports -= uint64(fee)

	meter := syscall.NewComputeMeter(uint64(budget.ComputeUnitLimit))
	logs := syscall.NewLogCollector()
	defer func() {
		result.Logs = logs.Logs()
		result.ComputeUnits = types.ComputeUnits(meter.Consumed())
	}()

	for i, compiled := range tx.Message.Instructions {
		ix, err := tx.Message.Decompile(compiled)
		if err == nil {
			err = e.executeInstruction(ws, ix, meter, logs)
		}
		if err != nil {
			result.Err = &TransactionError{InstructionIndex: i, ProgramID: ix.ProgramID, Err: err}
			log.WithError(err).WithField("instruction", i).Debug("transaction failed")
			return result
		}
	}

	result.Fee = fee
	result.Deltas = ws.deltas()

	if commit {
		if err := e.db.Commit(result.Deltas); err != nil {
			result.Err = fmt.Errorf("commit: %w", err)
			result.Deltas = nil
			return result
		}
	}
	log.WithFields(logrus.Fields{
		"instructions": len(tx.Message.Instructions),
		"deltas":       len(result.Deltas),
		"elapsed":      time.Since(start),
	}).Debug("transaction executed")
	return result
}

// check does the stateless validation of tx.
func (e *Executor) check(tx *types.Transaction) error {
	msg := &tx.Message
	if len(msg.Instructions) == 0 {
		return ErrNoInstructions
	}
	if len(msg.AccountKeys) == 0 || !msg.IsSigner(0) || !msg.IsWritable(0) {
		return ErrInvalidFeePayer
	}
	if e.opts.SkipSignatureVerification {
		return nil
	}
	return crypto.VerifyTransaction(tx)
}

// workingSet is a transaction's private copy of its accounts.
type workingSet struct {
	keys     []types.Pubkey
	accounts []*syscall.AccountInfo
	original []*types.Account
	index    map[types.Pubkey]int
}

func (e *Executor) load(msg *types.Message, dataLimit uint32) (*workingSet, error) {
	ws := &workingSet{index: make(map[types.Pubkey]int, len(msg.AccountKeys))}
	var loaded uint64
	for i, key := range msg.AccountKeys {
		if _, dup := ws.index[key]; dup {
			return nil, fmt.Errorf("account %s appears twice in the message", key)
		}
		stored, err := e.db.GetAccount(key)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", key, err)
		}
		if stored != nil {
			if loaded += uint64(len(stored.Data)); loaded > uint64(dataLimit) {
				return nil, fmt.Errorf("%w: %d bytes", ErrLoadedDataSizeExceeded, loaded)
			}
		}
		ws.index[key] = i
		ws.keys = append(ws.keys, key)
		ws.original = append(ws.original, stored.Clone())
		ws.accounts = append(ws.accounts, syscall.NewAccountInfo(key, stored, msg.IsSigner(i), msg.IsWritable(i)))
	}
	return ws, nil
}

// executeInstruction runs one top-level instruction over copies of the
// working set's accounts and writes the copies back once the instruction
// and its account changes check out.
func (e *Executor) executeInstruction(ws *workingSet, ix types.Instruction, meter *syscall.ComputeMeter, logs *syscall.LogCollector) error {
	if !e.registry.HasProgram(ix.ProgramID) {
		return fmt.Errorf("%w: %s", ErrProgramNotFound, ix.ProgramID)
	}
	if prog := ws.accounts[ws.index[ix.ProgramID]]; !prog.Executable {
		return fmt.Errorf("%w: %s", ErrProgramNotExecutable, ix.ProgramID)
	}

	infos := make([]*syscall.AccountInfo, len(ix.Accounts))
	shared := make(map[types.Pubkey]*syscall.AccountInfo, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		if acc, ok := shared[meta.Pubkey]; ok {
			infos[i] = acc
			continue
		}
		acc := ws.accounts[ws.index[meta.Pubkey]].Clone()
		acc.IsSigner = meta.IsSigner
		acc.IsWritable = meta.IsWritable
		shared[meta.Pubkey] = acc
		infos[i] = acc
	}

	ctx := syscall.NewExecutionContextWith(ix.ProgramID, infos, ix.Data, meter, logs)
	ctx.SetExecutor(e.registry)

	syscall.LogInvoke(ctx, ix.ProgramID, 1)
	err := e.registry.ExecuteProgram(ctx)
	if err == nil {
		err = ctx.VerifyChanges()
	}
	if err != nil {
		syscall.LogFailure(ctx, ix.ProgramID, err)
		return err
	}
	syscall.LogSuccess(ctx, ix.ProgramID)

	for key, acc := range shared {
		dst := ws.accounts[ws.index[key]]
		*dst.Lamports = *acc.Lamports
		dst.Owner = acc.Owner
		dst.Data = acc.Data
	}
	return nil
}

// deltas returns the changed writable accounts. An account left with no
// lamports and no data is removed.
func (ws *workingSet) deltas() []types.AccountDelta {
	var out []types.AccountDelta
	for i, info := range ws.accounts {
		if !info.IsWritable {
			continue
		}
		before := ws.original[i]
		after := info.ToAccount()
		if after.Lamports == 0 && len(after.Data) == 0 {
			after = nil
		}
		if accountsEqual(before, after) {
			continue
		}
		out = append(out, types.AccountDelta{Pubkey: ws.keys[i], OldAccount: before, NewAccount: after})
	}
	return out
}

func accountsEqual(a, b *types.Account) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Lamports == b.Lamports &&
		a.Owner == b.Owner &&
		a.Executable == b.Executable &&
		bytes.Equal(a.Data, b.Data)
}
