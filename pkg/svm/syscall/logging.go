package syscall

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/druti2k/ai-nFt/pkg/types"
)

// Log compute unit costs
const (
	CULogBase    uint64 = 100
	CULogPerByte uint64 = 1
)

// Log records a "Program log:" line on behalf of the executing program.
// Overflowing the log buffer is not an error for the program.
func Log(ctx *ExecutionContext, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	if err := ctx.ConsumeComputeUnits(CULogBase + uint64(len(message))*CULogPerByte); err != nil {
		return
	}
	_ = ctx.AddLog("Program log: " + message)
}

// LogData records a "Program data:" line with each part base64 encoded.
func LogData(ctx *ExecutionContext, data ...[]byte) {
	parts := make([]string, len(data))
	for i, d := range data {
		parts[i] = base64.StdEncoding.EncodeToString(d)
	}
	_ = ctx.AddLog("Program data: " + strings.Join(parts, " "))
}

// LogHex is a helper to log data as hex.
func LogHex(ctx *ExecutionContext, prefix string, data []byte) error {
	return ctx.AddLog(fmt.Sprintf("%s: %s", prefix, hex.EncodeToString(data)))
}

// LogInvoke records the start of a program invocation at the given stack
// height (1 for a top-level instruction).
func LogInvoke(ctx *ExecutionContext, programID types.Pubkey, height int) {
	_ = ctx.AddLog(fmt.Sprintf("Program %s invoke [%d]", programID, height))
}

// LogSuccess records a successful program return.
func LogSuccess(ctx *ExecutionContext, programID types.Pubkey) {
	_ = ctx.AddLog(fmt.Sprintf("Program %s success", programID))
}

// LogFailure records a failed program return.
func LogFailure(ctx *ExecutionContext, programID types.Pubkey, err error) {
	_ = ctx.AddLog(fmt.Sprintf("Program %s failed: %v", programID, err))
}
