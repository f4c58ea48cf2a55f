package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/druti2k/ai-nFt/pkg/ledger"
	"github.com/druti2k/ai-nFt/pkg/runtime"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/ainft"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/metadata"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/token"
	"github.com/druti2k/ai-nFt/pkg/types"
)

// Handler is the function signature for RPC method handlers.
type Handler func(params json.RawMessage) (interface{}, *RPCError)

// Ledger is the state the handlers serve. *ledger.Bank implements it.
type Ledger interface {
	Slot() types.Slot
	LatestBlockhash() (types.Hash, types.Slot)
	GetAccount(pubkey types.Pubkey) (*types.Account, error)
	GetBalance(pubkey types.Pubkey) (types.Lamports, error)
	GetTokenAccount(pubkey types.Pubkey) (*token.TokenAccount, error)
	GetMint(pubkey types.Pubkey) (*token.Mint, error)
	GetAsset(tokenID string) (*ainft.AssetRecord, error)
	GetNFTMetadata(mint types.Pubkey) (*metadata.Metadata, error)
	Airdrop(pubkey types.Pubkey, lamports types.Lamports) (types.Signature, error)
	ProcessTransaction(tx *types.Transaction) (*runtime.TransactionResult, error)
	SimulateTransaction(tx *types.Transaction, verifySignatures, replaceBlockhash bool) (*runtime.TransactionResult, error)
	SignatureStatus(sig types.Signature) (ledger.SignatureStatus, bool)
}

var _ Ledger = (*ledger.Bank)(nil)

// Handlers maps method names to handlers over a Ledger.
type Handlers struct {
	ledger   Ledger
	handlers map[string]Handler
}

func NewHandlers(l Ledger) *Handlers {
	h := &Handlers{ledger: l, handlers: make(map[string]Handler)}
	h.registerHandlers()
	return h
}

// GetHandler returns the handler for a method, or nil if not found.
func (h *Handlers) GetHandler(method string) Handler {
	return h.handlers[method]
}

func (h *Handlers) registerHandlers() {
	h.handlers["getHealth"] = h.handleGetHealth
	h.handlers["getVersion"] = h.handleGetVersion
	h.handlers["getSlot"] = h.handleGetSlot
	h.handlers["getLatestBlockhash"] = h.handleGetLatestBlockhash
	h.handlers["getAccountInfo"] = h.handleGetAccountInfo
	h.handlers["getBalance"] = h.handleGetBalance
	h.handlers["getTokenAccountBalance"] = h.handleGetTokenAccountBalance
	h.handlers["getMinimumBalanceForRentExemption"] = h.handleGetMinimumBalanceForRentExemption
	h.handlers["requestAirdrop"] = h.handleRequestAirdrop
	h.handlers["sendTransaction"] = h.handleSendTransaction
	h.handlers["simulateTransaction"] = h.handleSimulateTransaction
	h.handlers["getSignatureStatuses"] = h.handleGetSignatureStatuses
	h.handlers["getAsset"] = h.handleGetAsset
	h.handlers["getNftMetadata"] = h.handleGetNFTMetadata
}

// parseParams decodes the positional params into targets. The first
// required targets must be present; the rest are optional.
func parseParams(params json.RawMessage, required int, targets ...interface{}) *RPCError {
	var raw []json.RawMessage
	if len(params) > 0 {
		if err := json.Unmarshal(params, &raw); err != nil {
			return NewRPCError(InvalidParams, "invalid params: expected array")
		}
	}
	if len(raw) < required {
		return NewRPCError(InvalidParams, fmt.Sprintf("expected at least %d params, got %d", required, len(raw)))
	}
	for i, target := range targets {
		if i >= len(raw) {
			break
		}
		if err := json.Unmarshal(raw[i], target); err != nil {
			return NewRPCError(InvalidParams, fmt.Sprintf("invalid param %d: %v", i, err))
		}
	}
	return nil
}

func parsePubkey(params json.RawMessage, options ...interface{}) (types.Pubkey, *RPCError) {
	var s string
	if rpcErr := parseParams(params, 1, append([]interface{}{&s}, options...)...); rpcErr != nil {
		return types.ZeroPubkey, rpcErr
	}
	pubkey, err := types.PubkeyFromBase58(s)
	if err != nil {
		return types.ZeroPubkey, NewRPCError(InvalidParams, fmt.Sprintf("invalid pubkey: %v", err))
	}
	return pubkey, nil
}

func (h *Handlers) context() Context {
	return Context{Slot: uint64(h.ledger.Slot()), APIVersion: Version}
}

func internal(err error) *RPCError {
	return NewRPCError(InternalError, err.Error())
}

func (h *Handlers) handleGetHealth(json.RawMessage) (interface{}, *RPCError) {
	return "ok", nil
}

func (h *Handlers) handleGetVersion(json.RawMessage) (interface{}, *RPCError) {
	return VersionResult{SolanaCore: "1.18.0", AINFTVersion: Version}, nil
}

func (h *Handlers) handleGetSlot(json.RawMessage) (interface{}, *RPCError) {
	return uint64(h.ledger.Slot()), nil
}

func (h *Handlers) handleGetLatestBlockhash(json.RawMessage) (interface{}, *RPCError) {
	blockhash, lastValid := h.ledger.LatestBlockhash()
	return ContextualResult{
		Context: h.context(),
		Value:   BlockhashResult{Blockhash: blockhash.String(), LastValidBlockHeight: uint64(lastValid)},
	}, nil
}

// Params: [pubkey, {encoding, dataSlice}]
func (h *Handlers) handleGetAccountInfo(params json.RawMessage) (interface{}, *RPCError) {
	var options AccountInfoOptions
	pubkey, rpcErr := parsePubkey(params, &options)
	if rpcErr != nil {
		return nil, rpcErr
	}

	account, err := h.ledger.GetAccount(pubkey)
	if err != nil {
		return nil, internal(err)
	}
	if account == nil {
		return ContextualResult{Context: h.context(), Value: nil}, nil
	}

	data, err := EncodeAccountData(SliceData(account.Data, options.DataSlice), options.Encoding)
	if err != nil {
		return nil, NewRPCError(UnsupportedEncoding, err.Error())
	}
	return ContextualResult{
		Context: h.context(),
		Value: AccountInfoResult{
			Lamports:   uint64(account.Lamports),
			Data:       data,
			Owner:      account.Owner.String(),
			Executable: account.Executable,
			RentEpoch:  account.RentEpoch,
			Space:      uint64(len(account.Data)),
		},
	}, nil
}

// Params: [pubkey]
func (h *Handlers) handleGetBalance(params json.RawMessage) (interface{}, *RPCError) {
	pubkey, rpcErr := parsePubkey(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := h.ledger.GetBalance(pubkey)
	if err != nil {
		return nil, internal(err)
	}
	return ContextualResult{Context: h.context(), Value: uint64(balance)}, nil
}

// Params: [pubkey]
func (h *Handlers) handleGetTokenAccountBalance(params json.RawMessage) (interface{}, *RPCError) {
	pubkey, rpcErr := parsePubkey(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	account, err := h.ledger.GetTokenAccount(pubkey)
	if err != nil {
		return nil, NewRPCError(InvalidParams, fmt.Sprintf("invalid param: %v", err))
	}
	mint, err := h.ledger.GetMint(account.Mint)
	if err != nil {
		return nil, internal(err)
	}
	return ContextualResult{
		Context: h.context(),
		Value: TokenAmountResult{
			Amount:         strconv.FormatUint(account.Amount, 10),
			Decimals:       mint.Decimals,
			UIAmountString: uiAmount(account.Amount, mint.Decimals),
		},
	}, nil
}

func uiAmount(amount uint64, decimals uint8) string {
	s := strconv.FormatUint(amount, 10)
	if decimals == 0 {
		return s
	}
	for len(s) <= int(decimals) {
		s = "0" + s
	}
	whole, frac := s[:len(s)-int(decimals)], s[len(s)-int(decimals):]
	for len(frac) > 0 && frac[len(frac)-1] == '0' {
		frac = frac[:len(frac)-1]
	}
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

// Params: [dataLength]
func (h *Handlers) handleGetMinimumBalanceForRentExemption(params json.RawMessage) (interface{}, *RPCError) {
	var size uint64
	if rpcErr := parseParams(params, 1, &size); rpcErr != nil {
		return nil, rpcErr
	}
	return uint64(types.RentExemptMinimum(size)), nil
}

// Params: [pubkey, lamports]
func (h *Handlers) handleRequestAirdrop(params json.RawMessage) (interface{}, *RPCError) {
	var lamports uint64
	pubkey, rpcErr := parsePubkey(params, &lamports)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if lamports == 0 {
		return nil, NewRPCError(InvalidParams, "lamports must be positive")
	}
	sig, err := h.ledger.Airdrop(pubkey, types.Lamports(lamports))
	if err != nil {
		return nil, NewRPCError(AirdropError, err.Error())
	}
	return sig.String(), nil
}

func decodeTransactionParam(params json.RawMessage, options interface{}, encoding func() string) (*types.Transaction, *RPCError) {
	var encoded string
	if rpcErr := parseParams(params, 1, &encoded, options); rpcErr != nil {
		return nil, rpcErr
	}
	tx, err := DecodeTransaction(encoded, encoding())
	if err != nil {
		return nil, NewRPCError(InvalidParams, err.Error())
	}
	return tx, nil
}

// Params: [encodedTransaction, {encoding, skipPreflight}]
func (h *Handlers) handleSendTransaction(params json.RawMessage) (interface{}, *RPCError) {
	var options SendTransactionOptions
	tx, rpcErr := decodeTransactionParam(params, &options, func() string { return options.Encoding })
	if rpcErr != nil {
		return nil, rpcErr
	}

	result, err := h.ledger.ProcessTransaction(tx)
	if err != nil {
		return nil, NewRPCError(SendTransactionError, err.Error())
	}
	if !result.Success() {
		return nil, NewRPCErrorWithData(SendTransactionError,
			fmt.Sprintf("Transaction failed: %v", result.Err),
			TransactionErrorData{Err: transactionErr(result.Err), Logs: result.Logs})
	}
	return result.Signature.String(), nil
}

// Params: [encodedTransaction, {encoding, sigVerify, replaceRecentBlockhash}]
func (h *Handlers) handleSimulateTransaction(params json.RawMessage) (interface{}, *RPCError) {
	var options SimulateTransactionOptions
	tx, rpcErr := decodeTransactionParam(params, &options, func() string {
		if options.Encoding == "" {
			return EncodingBase64
		}
		return options.Encoding
	})
	if rpcErr != nil {
		return nil, rpcErr
	}

	result, err := h.ledger.SimulateTransaction(tx, options.SigVerify, options.ReplaceRecentBlockhash)
	if err != nil {
		return nil, NewRPCError(InvalidParams, err.Error())
	}
	return ContextualResult{
		Context: h.context(),
		Value: SimulateResult{
			Err:           transactionErr(result.Err),
			Logs:          result.Logs,
			UnitsConsumed: uint64(result.ComputeUnits),
		},
	}, nil
}

// transactionErr renders err the way Solana reports transaction errors.
func transactionErr(err error) interface{} {
	if err == nil {
		return nil
	}
	var txErr *runtime.TransactionError
	if errors.As(err, &txErr) {
		return map[string]interface{}{
			"InstructionError": []interface{}{txErr.InstructionIndex, txErr.Err.Error()},
		}
	}
	return err.Error()
}

// Params: [[signature, ...]]
func (h *Handlers) handleGetSignatureStatuses(params json.RawMessage) (interface{}, *RPCError) {
	var encoded []string
	if rpcErr := parseParams(params, 1, &encoded); rpcErr != nil {
		return nil, rpcErr
	}
	if len(encoded) > 256 {
		return nil, NewRPCError(InvalidParams, "too many signatures, max 256")
	}

	current := h.ledger.Slot()
	statuses := make([]*SignatureStatusResult, len(encoded))
	for i, s := range encoded {
		sig, err := types.SignatureFromBase58(s)
		if err != nil {
			return nil, NewRPCError(InvalidParams, fmt.Sprintf("invalid signature %q: %v", s, err))
		}
		status, ok := h.ledger.SignatureStatus(sig)
		if !ok {
			continue
		}
		confirmations := uint64(current - status.Slot)
		statuses[i] = &SignatureStatusResult{
			Slot:               uint64(status.Slot),
			Confirmations:      &confirmations,
			Err:                transactionErr(status.Err),
			ConfirmationStatus: "confirmed",
		}
	}
	return ContextualResult{Context: h.context(), Value: statuses}, nil
}

// Params: [tokenId]
func (h *Handlers) handleGetAsset(params json.RawMessage) (interface{}, *RPCError) {
	var tokenID string
	if rpcErr := parseParams(params, 1, &tokenID); rpcErr != nil {
		return nil, rpcErr
	}
	rec, err := h.ledger.GetAsset(tokenID)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return ContextualResult{Context: h.context(), Value: nil}, nil
	}
	if err != nil {
		return nil, internal(err)
	}
	return ContextualResult{
		Context: h.context(),
		Value: AssetResult{
			TokenID:  rec.TokenID,
			Owner:    rec.Owner.String(),
			Mint:     rec.Mint.String(),
			ImageURL: rec.ImageURL,
			Metadata: rec.Metadata,
		},
	}, nil
}

// Params: [mint]
func (h *Handlers) handleGetNFTMetadata(params json.RawMessage) (interface{}, *RPCError) {
	mint, rpcErr := parsePubkey(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	md, err := h.ledger.GetNFTMetadata(mint)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return ContextualResult{Context: h.context(), Value: nil}, nil
	}
	if err != nil {
		return nil, internal(err)
	}
	return ContextualResult{
		Context: h.context(),
		Value: MetadataResult{
			Mint:            md.Mint.String(),
			UpdateAuthority: md.UpdateAuthority.String(),
			Name:            md.Name,
			Symbol:          md.Symbol,
			URI:             md.URI,
			IsMutable:       md.IsMutable,
		},
	}, nil
}
