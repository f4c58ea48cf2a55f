package runtime

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/druti2k/ai-nFt/pkg/svm/programs/ainft"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/associatedtoken"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/computebudget"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/metadata"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/system"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/token"
	"github.com/druti2k/ai-nFt/pkg/svm/syscall"
	"github.com/druti2k/ai-nFt/pkg/types"
)

// ErrProgramNotFound is returned when an instruction names a program that
// is not registered.
var ErrProgramNotFound = errors.New("program not found")

// Program is a native program.
type Program interface {
	Execute(ctx *syscall.ExecutionContext, instruction *types.Instruction) error
}

// ProgramFunc adapts a function to Program.
type ProgramFunc func(ctx *syscall.ExecutionContext, instruction *types.Instruction) error

// Execute implements Program.
func (f ProgramFunc) Execute(ctx *syscall.ExecutionContext, instruction *types.Instruction) error {
	return f(ctx, instruction)
}

// ProgramRegistry maps program IDs to programs. It is the executor the
// runtime hands to every execution context, so cross-program invocations
// resolve through it too.
type ProgramRegistry struct {
	mu       sync.RWMutex
	programs map[types.Pubkey]Program
	names    map[types.Pubkey]string
}

// NewProgramRegistry creates an empty registry.
func NewProgramRegistry() *ProgramRegistry {
	return &ProgramRegistry{
		programs: make(map[types.Pubkey]Program),
		names:    make(map[types.Pubkey]string),
	}
}

// RegisterProgram registers program under id.
func (r *ProgramRegistry) RegisterProgram(id types.Pubkey, name string, program Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs[id] = program
	r.names[id] = name
}

// GetProgram returns the program registered under id.
func (r *ProgramRegistry) GetProgram(id types.Pubkey) (Program, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.programs[id]
	return p, ok
}

// GetProgramName returns the display name of id.
func (r *ProgramRegistry) GetProgramName(id types.Pubkey) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[id]
	return name, ok
}

// HasProgram reports whether id is registered.
func (r *ProgramRegistry) HasProgram(id types.Pubkey) bool {
	_, ok := r.GetProgram(id)
	return ok
}

// ListPrograms returns the registered IDs in byte order.
func (r *ProgramRegistry) ListPrograms() []types.Pubkey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]types.Pubkey, 0, len(r.programs))
	for id := range r.programs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return string(ids[i][:]) < string(ids[j][:]) })
	return ids
}

// ExecuteProgram implements syscall.ProgramExecutor.
func (r *ProgramRegistry) ExecuteProgram(ctx *syscall.ExecutionContext) error {
	program, ok := r.GetProgram(ctx.ProgramID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrProgramNotFound, ctx.ProgramID)
	}
	ix := ctx.Instruction()
	return program.Execute(ctx, &ix)
}

// RegisterNativePrograms registers the programs built into the ledger.
func RegisterNativePrograms(registry *ProgramRegistry) {
	registry.RegisterProgram(types.SystemProgramID, "System Program", system.New())
	registry.RegisterProgram(types.TokenProgramID, "Token Program", token.New())
	registry.RegisterProgram(types.AssociatedTokenProgramID, "Associated Token Program", associatedtoken.New())
	registry.RegisterProgram(types.MetadataProgramID, "Token Metadata Program", metadata.New())
	registry.RegisterProgram(types.ComputeBudgetProgramID, "Compute Budget Program", computebudget.New())
	registry.RegisterProgram(types.AINFTProgramID, "AI-NFT Program", ainft.New())
}
