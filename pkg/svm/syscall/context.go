// Package syscall is the environment native programs execute in. It holds
// the per-instruction account views, the shared compute meter and log
// collector, program derived addresses and cross-program invocation.
package syscall

import (
	"errors"
	"fmt"
	"sync"

	"github.com/druti2k/ai-nFt/pkg/types"
)

// Context errors
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountNotWritable  = errors.New("account is not writable")
	ErrAccountNotSigner    = errors.New("account is not a signer")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrComputeExhausted    = errors.New("compute units exhausted")
	ErrMaxLogsExceeded     = errors.New("maximum log entries exceeded")
	ErrLogTooLong          = errors.New("log message too long")
	ErrInvalidAccountIndex = errors.New("invalid account index")
	ErrReadOnlyModified    = errors.New("read-only account was modified")
	ErrNoProgramExecutor   = errors.New("no program executor attached")
)

// Limits for execution
const (
	MaxLogMessages      = 128
	MaxLogMessageLength = 10000
	MaxAccountDataSize  = 10 * 1024 * 1024 // 10MB
)

// AccountInfo represents account information available to a program.
type AccountInfo struct {
	Pubkey     types.Pubkey
	Lamports   *uint64 // Pointer allows modification detection
	Data       []byte
	Owner      types.Pubkey
	Executable bool
	RentEpoch  uint64
	IsSigner   bool
	IsWritable bool
}

// NewAccountInfo builds an AccountInfo over a copy of account. A nil
// account yields an empty system-owned entry, which is how programs see an
// address that does not exist yet.
func NewAccountInfo(pubkey types.Pubkey, account *types.Account, isSigner, isWritable bool) *AccountInfo {
	lamports := uint64(0)
	info := &AccountInfo{
		Pubkey:     pubkey,
		Lamports:   &lamports,
		Owner:      types.SystemProgramID,
		IsSigner:   isSigner,
		IsWritable: isWritable,
	}
	if account != nil {
		lamports = uint64(account.Lamports)
		info.Owner = account.Owner
		info.Executable = account.Executable
		info.RentEpoch = account.RentEpoch
		if len(account.Data) > 0 {
			info.Data = make([]byte, len(account.Data))
			copy(info.Data, account.Data)
		}
	}
	return info
}

// ToAccount converts the info back into a stored account.
func (a *AccountInfo) ToAccount() *types.Account {
	acc := &types.Account{
		Lamports:   types.Lamports(*a.Lamports),
		Owner:      a.Owner,
		Executable: a.Executable,
		RentEpoch:  a.RentEpoch,
	}
	if len(a.Data) > 0 {
		acc.Data = make([]byte, len(a.Data))
		copy(acc.Data, a.Data)
	}
	return acc
}

// Clone creates a deep copy of AccountInfo.
func (a *AccountInfo) Clone() *AccountInfo {
	if a == nil {
		return nil
	}
	lamports := *a.Lamports
	clone := &AccountInfo{
		Pubkey:     a.Pubkey,
		Lamports:   &lamports,
		Owner:      a.Owner,
		Executable: a.Executable,
		RentEpoch:  a.RentEpoch,
		IsSigner:   a.IsSigner,
		IsWritable: a.IsWritable,
	}
	if a.Data != nil {
		clone.Data = make([]byte, len(a.Data))
		copy(clone.Data, a.Data)
	}
	return clone
}

// IsUninitialized reports whether nothing has been allocated at the address.
func (a *AccountInfo) IsUninitialized() bool {
	return *a.Lamports == 0 && len(a.Data) == 0 && a.Owner == types.SystemProgramID
}

// ProgramExecutor runs the program named by ctx.ProgramID against ctx.
// The runtime's program registry implements it; it is attached to each
// top-level context so that CPI can reach other programs without a
// process-wide hook.
type ProgramExecutor interface {
	ExecuteProgram(ctx *ExecutionContext) error
}

// ComputeMeter is the compute budget shared by a top-level instruction and
// every CPI it makes.
type ComputeMeter struct {
	mu        sync.Mutex
	remaining uint64
	limit     uint64
}

// NewComputeMeter creates a meter with the given limit.
func NewComputeMeter(limit uint64) *ComputeMeter {
	return &ComputeMeter{remaining: limit, limit: limit}
}

// Consume deducts units, draining the meter if not enough remain.
func (m *ComputeMeter) Consume(units uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if units > m.remaining {
		m.remaining = 0
		return ErrComputeExhausted
	}
	m.remaining -= units
	return nil
}

// Remaining returns the units left.
func (m *ComputeMeter) Remaining() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remaining
}

// Consumed returns the units used so far.
func (m *ComputeMeter) Consumed() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limit - m.remaining
}

// LogCollector gathers program log lines for one transaction.
type LogCollector struct {
	mu      sync.Mutex
	logs    []string
	maxLogs int
}

// NewLogCollector creates an empty collector.
func NewLogCollector() *LogCollector {
	return &LogCollector{
		logs:    make([]string, 0, 16),
		maxLogs: MaxLogMessages,
	}
}

// Add appends a line.
func (c *LogCollector) Add(message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.logs) >= c.maxLogs {
		return ErrMaxLogsExceeded
	}
	if len(message) > MaxLogMessageLength {
		return ErrLogTooLong
	}
	c.logs = append(c.logs, message)
	return nil
}

// Logs returns a copy of the collected lines.
func (c *LogCollector) Logs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	logs := make([]string, len(c.logs))
	copy(logs, c.logs)
	return logs
}

// ExecutionContext holds the state a native program sees while executing a
// single instruction.
type ExecutionContext struct {
	mu sync.RWMutex

	// Program being executed
	ProgramID types.Pubkey

	// Accounts available to the instruction, in instruction order
	Accounts []*AccountInfo

	accountIndex map[types.Pubkey]int

	// pre holds account state as of the last verification point.
	pre map[types.Pubkey]*AccountInfo

	InstructionData []byte

	meter    *ComputeMeter
	logs     *LogCollector
	executor ProgramExecutor

	// Depth of CPI calls
	Depth int

	// Stack of callers for CPI
	CallerStack []types.Pubkey

	Slot uint64

	// Rent parameters
	RentLamportsPerByteYear uint64
	RentExemptionThreshold  float64
}

// NewExecutionContext creates a top-level execution context with its own
// compute meter and log collector.
func NewExecutionContext(programID types.Pubkey, accounts []*AccountInfo, instructionData []byte, computeUnits uint64) *ExecutionContext {
	return newContext(programID, accounts, instructionData, NewComputeMeter(computeUnits), NewLogCollector())
}

// NewExecutionContextWith creates a top-level context that reports into an
// existing meter and log collector, as the runtime does for every
// instruction of a transaction.
func NewExecutionContextWith(programID types.Pubkey, accounts []*AccountInfo, instructionData []byte, meter *ComputeMeter, logs *LogCollector) *ExecutionContext {
	return newContext(programID, accounts, instructionData, meter, logs)
}

func newContext(programID types.Pubkey, accounts []*AccountInfo, data []byte, meter *ComputeMeter, logs *LogCollector) *ExecutionContext {
	ctx := &ExecutionContext{
		ProgramID:       programID,
		Accounts:        accounts,
		InstructionData: data,
		meter:           meter,
		logs:            logs,
		accountIndex:    make(map[types.Pubkey]int, len(accounts)),
		CallerStack:     make([]types.Pubkey, 0, MaxCPIDepth),
		// Default rent parameters (mainnet values)
		RentLamportsPerByteYear: 3480,
		RentExemptionThreshold:  2.0,
	}
	for i, acc := range accounts {
		if _, dup := ctx.accountIndex[acc.Pubkey]; !dup {
			ctx.accountIndex[acc.Pubkey] = i
		}
	}
	ctx.snapshot()
	return ctx
}

// SetExecutor attaches the executor used to run CPI callees.
func (ctx *ExecutionContext) SetExecutor(executor ProgramExecutor) {
	ctx.executor = executor
}

// ConsumeComputeUnits deducts compute units.
func (ctx *ExecutionContext) ConsumeComputeUnits(units uint64) error {
	return ctx.meter.Consume(units)
}

// GetComputeUnitsRemaining returns remaining compute units.
func (ctx *ExecutionContext) GetComputeUnitsRemaining() uint64 {
	return ctx.meter.Remaining()
}

// GetComputeUnitsConsumed returns consumed compute units.
func (ctx *ExecutionContext) GetComputeUnitsConsumed() uint64 {
	return ctx.meter.Consumed()
}

// AddLog adds a raw log line.
func (ctx *ExecutionContext) AddLog(message string) error {
	return ctx.logs.Add(message)
}

// GetLogs returns all log lines collected so far.
func (ctx *ExecutionContext) GetLogs() []string {
	return ctx.logs.Logs()
}

// GetAccount returns an account by pubkey.
func (ctx *ExecutionContext) GetAccount(pubkey types.Pubkey) (*AccountInfo, error) {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()

	idx, ok := ctx.accountIndex[pubkey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, pubkey.String())
	}
	return ctx.Accounts[idx], nil
}

// GetAccountByIndex returns an account by index.
func (ctx *ExecutionContext) GetAccountByIndex(index int) (*AccountInfo, error) {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()

	if index < 0 || index >= len(ctx.Accounts) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAccountIndex, index)
	}
	return ctx.Accounts[index], nil
}

// AccountCount returns the number of accounts.
func (ctx *ExecutionContext) AccountCount() int {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return len(ctx.Accounts)
}

// TransferLamports transfers lamports between accounts.
func (ctx *ExecutionContext) TransferLamports(from, to types.Pubkey, amount uint64) error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	fromIdx, ok := ctx.accountIndex[from]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, from.String())
	}
	toIdx, ok := ctx.accountIndex[to]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, to.String())
	}

	fromAcc := ctx.Accounts[fromIdx]
	toAcc := ctx.Accounts[toIdx]

	if !fromAcc.IsWritable {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, from.String())
	}
	if !toAcc.IsWritable {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, to.String())
	}
	if *fromAcc.Lamports < amount {
		return ErrInsufficientFunds
	}

	*fromAcc.Lamports -= amount
	*toAcc.Lamports += amount
	return nil
}

// ResizeAccountData resizes an account's data buffer.
func (ctx *ExecutionContext) ResizeAccountData(pubkey types.Pubkey, newSize int) error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	idx, ok := ctx.accountIndex[pubkey]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, pubkey.String())
	}

	acc := ctx.Accounts[idx]
	if !acc.IsWritable {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, pubkey.String())
	}
	if newSize > MaxAccountDataSize {
		return fmt.Errorf("data size %d exceeds maximum %d", newSize, MaxAccountDataSize)
	}

	oldData := acc.Data
	acc.Data = make([]byte, newSize)
	copy(acc.Data, oldData)
	return nil
}

// CheckAccountOwnership verifies an account is owned by the expected program.
func (ctx *ExecutionContext) CheckAccountOwnership(pubkey types.Pubkey, expectedOwner types.Pubkey) error {
	acc, err := ctx.GetAccount(pubkey)
	if err != nil {
		return err
	}
	if acc.Owner != expectedOwner {
		return fmt.Errorf("account %s owned by %s, expected %s",
			pubkey.String(), acc.Owner.String(), expectedOwner.String())
	}
	return nil
}

// GetCaller returns the program that invoked this one.
func (ctx *ExecutionContext) GetCaller() (types.Pubkey, bool) {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	if len(ctx.CallerStack) == 0 {
		return types.ZeroPubkey, false
	}
	return ctx.CallerStack[len(ctx.CallerStack)-1], true
}

// IsTopLevel returns true if this is the top-level execution (not a CPI call).
func (ctx *ExecutionContext) IsTopLevel() bool {
	return ctx.Depth == 0
}

// Instruction reassembles the instruction ctx executes from its accounts
// and data, with the privileges each account was granted.
func (ctx *ExecutionContext) Instruction() types.Instruction {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()

	metas := make([]types.AccountMeta, len(ctx.Accounts))
	for i, acc := range ctx.Accounts {
		metas[i] = types.AccountMeta{Pubkey: acc.Pubkey, IsSigner: acc.IsSigner, IsWritable: acc.IsWritable}
	}
	return types.Instruction{ProgramID: ctx.ProgramID, Accounts: metas, Data: ctx.InstructionData}
}

// childContext creates the context a CPI callee runs in. Meter, logs and
// executor are shared with the caller.
func (ctx *ExecutionContext) childContext(programID types.Pubkey, accounts []*AccountInfo, data []byte) *ExecutionContext {
	child := newContext(programID, accounts, data, ctx.meter, ctx.logs)
	child.executor = ctx.executor
	child.Depth = ctx.Depth + 1
	child.CallerStack = append(append(child.CallerStack, ctx.CallerStack...), ctx.ProgramID)
	child.Slot = ctx.Slot
	child.RentLamportsPerByteYear = ctx.RentLamportsPerByteYear
	child.RentExemptionThreshold = ctx.RentExemptionThreshold
	return child
}
