package ainft

import "fmt"

// ErrorCode is the numeric code a failed AI-NFT instruction reports.
type ErrorCode uint32

const (
	CodeInvalidInstruction ErrorCode = iota
	CodeNotOwner
	CodeTokenIDExists
	CodeMissingRequiredSignature
	CodeMalformedAccountList
)

func (c ErrorCode) String() string {
	switch c {
	case CodeInvalidInstruction:
		return "invalid instruction"
	case CodeNotOwner:
		return "not owner"
	case CodeTokenIDExists:
		return "token id already exists"
	case CodeMissingRequiredSignature:
		return "missing required signature"
	case CodeMalformedAccountList:
		return "malformed account list"
	default:
		return fmt.Sprintf("unknown error %d", uint32(c))
	}
}

// ProgramError is an error raised by the AI-NFT program itself. Failures
// of the programs it invokes are returned as they are, not as a
// ProgramError.
type ProgramError struct {
	Code   ErrorCode
	Detail string
}

func (e *ProgramError) Error() string {
	if e.Detail == "" {
		return "ainft: " + e.Code.String()
	}
	return fmt.Sprintf("ainft: %s: %s", e.Code, e.Detail)
}

// Is matches any ProgramError with the same code, so errors.Is works
// against the sentinels below regardless of detail.
func (e *ProgramError) Is(target error) bool {
	t, ok := target.(*ProgramError)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidInstruction       = &ProgramError{Code: CodeInvalidInstruction}
	ErrNotOwner                 = &ProgramError{Code: CodeNotOwner}
	ErrTokenIDExists            = &ProgramError{Code: CodeTokenIDExists}
	ErrMissingRequiredSignature = &ProgramError{Code: CodeMissingRequiredSignature}
	ErrMalformedAccountList     = &ProgramError{Code: CodeMalformedAccountList}
)

func newError(code ErrorCode, format string, args ...interface{}) *ProgramError {
	return &ProgramError{Code: code, Detail: fmt.Sprintf(format, args...)}
}
