// Package rpc serves the AI-NFT ledger over JSON-RPC 2.0 using the
// Solana method names where one exists.
package rpc

import (
	"encoding/json"
)

const JSONRPCVersion = "2.0"

// Version is reported by getVersion.
const Version = "0.1.0"

// Standard JSON-RPC 2.0 error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603

	// Solana-specific error codes
	SendTransactionError = -32002
	KeyNotFound          = -32010
	UnsupportedEncoding  = -32011
	AirdropError         = -32012
)

// RPCRequest represents a JSON-RPC 2.0 request.
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id"`
}

// RPCResponse represents a JSON-RPC 2.0 response.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// RPCError represents a JSON-RPC 2.0 error.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return e.Message
}

func NewRPCError(code int, message string) *RPCError {
	return &RPCError{Code: code, Message: message}
}

func NewRPCErrorWithData(code int, message string, data interface{}) *RPCError {
	return &RPCError{Code: code, Message: message, Data: data}
}

// Context carries the slot a result was read at.
type Context struct {
	Slot       uint64 `json:"slot"`
	APIVersion string `json:"apiVersion,omitempty"`
}

// ContextualResult wraps a result with context.
type ContextualResult struct {
	Context Context     `json:"context"`
	Value   interface{} `json:"value"`
}

// AccountInfoResult is the value of getAccountInfo. Data is
// [data, encoding].
type AccountInfoResult struct {
	Lamports   uint64        `json:"lamports"`
	Data       []interface{} `json:"data"`
	Owner      string        `json:"owner"`
	Executable bool          `json:"executable"`
	RentEpoch  uint64        `json:"rentEpoch"`
	Space      uint64        `json:"space"`
}

type VersionResult struct {
	SolanaCore   string `json:"solana-core"`
	AINFTVersion string `json:"ainft-version"`
}

type BlockhashResult struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// TokenAmountResult is the value of getTokenAccountBalance.
type TokenAmountResult struct {
	Amount         string `json:"amount"`
	Decimals       uint8  `json:"decimals"`
	UIAmountString string `json:"uiAmountString"`
}

// SignatureStatusResult is one entry of getSignatureStatuses. Err is nil
// for committed transactions.
type SignatureStatusResult struct {
	Slot               uint64      `json:"slot"`
	Confirmations      *uint64     `json:"confirmations"`
	Err                interface{} `json:"err"`
	ConfirmationStatus string      `json:"confirmationStatus"`
}

// SimulateResult is the value of simulateTransaction.
type SimulateResult struct {
	Err           interface{} `json:"err"`
	Logs          []string    `json:"logs"`
	UnitsConsumed uint64      `json:"unitsConsumed"`
}

// AssetResult is the value of getAsset.
type AssetResult struct {
	TokenID  string `json:"tokenId"`
	Owner    string `json:"owner"`
	Mint     string `json:"mint"`
	ImageURL string `json:"imageUrl"`
	Metadata string `json:"metadata"`
}

// MetadataResult is the value of getNftMetadata.
type MetadataResult struct {
	Mint            string `json:"mint"`
	UpdateAuthority string `json:"updateAuthority"`
	Name            string `json:"name"`
	Symbol          string `json:"symbol"`
	URI             string `json:"uri"`
	IsMutable       bool   `json:"isMutable"`
}

// AccountInfoOptions are the options of getAccountInfo.
type AccountInfoOptions struct {
	Encoding  string     `json:"encoding,omitempty"`
	DataSlice *DataSlice `json:"dataSlice,omitempty"`
}

// DataSlice limits the returned account data.
type DataSlice struct {
	Offset uint64 `json:"offset"`
	Length uint64 `json:"length"`
}

// SendTransactionOptions are the options of sendTransaction.
type SendTransactionOptions struct {
	Encoding      string `json:"encoding,omitempty"`
	SkipPreflight bool   `json:"skipPreflight,omitempty"`
}

// SimulateTransactionOptions are the options of simulateTransaction.
type SimulateTransactionOptions struct {
	Encoding               string `json:"encoding,omitempty"`
	SigVerify              bool   `json:"sigVerify,omitempty"`
	ReplaceRecentBlockhash bool   `json:"replaceRecentBlockhash,omitempty"`
}

// TransactionErrorData is attached to a failed sendTransaction.
type TransactionErrorData struct {
	Err  interface{} `json:"err"`
	Logs []string    `json:"logs"`
}
