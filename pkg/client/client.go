// Package client talks to an ainftd node over JSON-RPC and builds the
// AI-NFT transactions the node executes.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"

	"github.com/druti2k/ai-nFt/pkg/rpc"
	"github.com/druti2k/ai-nFt/pkg/types"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrTransactionFailed = errors.New("transaction failed")
	ErrAirdropFailed     = errors.New("airdrop failed")
)

// TransactionError is returned when the node rejects or fails a
// transaction. It unwraps to ErrTransactionFailed.
type TransactionError struct {
	Message string
	Err     interface{}
	Logs    []string
}

func (e *TransactionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *TransactionError) Unwrap() error { return ErrTransactionFailed }

// Client is a JSON-RPC client for an ainftd node.
type Client struct {
	log    *logrus.Entry
	client jsonrpc.RPCClient
}

// DefaultTimeout bounds one round trip when the RPC options carry no HTTP
// client of their own.
const DefaultTimeout = 30 * time.Second

// New returns a client using the specified endpoint.
func New(endpoint string) *Client {
	return NewWithRPCOptions(endpoint, nil)
}

// NewWithRPCOptions returns a client configured with the specified RPC options.
func NewWithRPCOptions(endpoint string, opts *jsonrpc.RPCClientOpts) *Client {
	var o jsonrpc.RPCClientOpts
	if opts != nil {
		o = *opts
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		log:    logrus.StandardLogger().WithField("type", "client"),
		client: jsonrpc.NewClientWithOpts(endpoint, &o),
	}
}

// call issues one request. The JSON-RPC client has no context support, so
// the round trip runs on its own goroutine and call returns as soon as ctx
// is done. The abandoned request ends at the HTTP client's timeout.
func (c *Client) call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	type result struct {
		raw json.RawMessage
		err error
	}
	done := make(chan result, 1)
	go func() {
		var r result
		r.err = c.client.CallFor(&r.raw, method, params...)
		done <- r
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", method, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return c.handleRPCError(method, r.err)
		}
		if err := json.Unmarshal(r.raw, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
		return nil
	}
}

func (c *Client) handleRPCError(method string, err error) error {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return fmt.Errorf("%s: %w", method, err)
	}

	switch rpcErr.Code {
	case rpc.SendTransactionError:
		txErr := &TransactionError{Message: rpcErr.Message}
		if raw, merr := json.Marshal(rpcErr.Data); merr == nil {
			var data rpc.TransactionErrorData
			if json.Unmarshal(raw, &data) == nil {
				txErr.Err = data.Err
				txErr.Logs = data.Logs
			}
		}
		c.log.WithField("method", method).WithError(txErr).Debug("transaction rejected")
		return txErr
	case rpc.AirdropError:
		return fmt.Errorf("%w: %s", ErrAirdropFailed, rpcErr.Message)
	}
	return fmt.Errorf("%s: rpc error %d: %s", method, rpcErr.Code, rpcErr.Message)
}

// contextual decodes the value of a {context, value} result.
type contextual struct {
	Context rpc.Context     `json:"context"`
	Value   json.RawMessage `json:"value"`
}

func (c *Client) callValue(ctx context.Context, out interface{}, method string, params ...interface{}) (found bool, err error) {
	var res contextual
	if err := c.call(ctx, &res, method, params...); err != nil {
		return false, err
	}
	if len(res.Value) == 0 || string(res.Value) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(res.Value, out); err != nil {
		return false, fmt.Errorf("%s: decode value: %w", method, err)
	}
	return true, nil
}

func (c *Client) GetSlot(ctx context.Context) (slot uint64, err error) {
	err = c.call(ctx, &slot, "getSlot")
	return slot, err
}

func (c *Client) GetLatestBlockhash(ctx context.Context) (types.Hash, error) {
	var res rpc.BlockhashResult
	if _, err := c.callValue(ctx, &res, "getLatestBlockhash"); err != nil {
		return types.Hash{}, err
	}
	return types.HashFromBase58(res.Blockhash)
}

func (c *Client) GetBalance(ctx context.Context, pubkey types.Pubkey) (uint64, error) {
	var balance uint64
	_, err := c.callValue(ctx, &balance, "getBalance", pubkey.String())
	return balance, err
}

// GetAccountInfo returns ErrNotFound for accounts that do not exist.
func (c *Client) GetAccountInfo(ctx context.Context, pubkey types.Pubkey) (*types.Account, error) {
	var res rpc.AccountInfoResult
	found, err := c.callValue(ctx, &res, "getAccountInfo", pubkey.String(), rpc.AccountInfoOptions{Encoding: rpc.EncodingBase64Zstd})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: account %s", ErrNotFound, pubkey)
	}
	if len(res.Data) != 2 {
		return nil, fmt.Errorf("getAccountInfo: malformed data")
	}
	encoded, _ := res.Data[0].(string)
	encoding, _ := res.Data[1].(string)
	data, err := rpc.DecodeAccountData(encoded, encoding)
	if err != nil {
		return nil, err
	}
	owner, err := types.PubkeyFromBase58(res.Owner)
	if err != nil {
		return nil, err
	}
	return &types.Account{
		Lamports:   types.Lamports(res.Lamports),
		Data:       data,
		Owner:      owner,
		Executable: res.Executable,
		RentEpoch:  res.RentEpoch,
	}, nil
}

func (c *Client) AccountExists(ctx context.Context, pubkey types.Pubkey) (bool, error) {
	_, err := c.GetAccountInfo(ctx, pubkey)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (c *Client) GetTokenAccountBalance(ctx context.Context, pubkey types.Pubkey) (rpc.TokenAmountResult, error) {
	var res rpc.TokenAmountResult
	_, err := c.callValue(ctx, &res, "getTokenAccountBalance", pubkey.String())
	return res, err
}

func (c *Client) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (lamports uint64, err error) {
	err = c.call(ctx, &lamports, "getMinimumBalanceForRentExemption", size)
	return lamports, err
}

func (c *Client) RequestAirdrop(ctx context.Context, pubkey types.Pubkey, lamports uint64) (types.Signature, error) {
	var sig string
	if err := c.call(ctx, &sig, "requestAirdrop", pubkey.String(), lamports); err != nil {
		return types.ZeroSignature, err
	}
	return types.SignatureFromBase58(sig)
}

// SendTransaction submits a signed transaction. Execution failures are
// returned as *TransactionError.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) (types.Signature, error) {
	encoded, err := rpc.EncodeTransaction(tx, rpc.EncodingBase64)
	if err != nil {
		return types.ZeroSignature, err
	}
	var sig string
	if err := c.call(ctx, &sig, "sendTransaction", encoded, rpc.SendTransactionOptions{Encoding: rpc.EncodingBase64}); err != nil {
		return types.ZeroSignature, err
	}
	return types.SignatureFromBase58(sig)
}

func (c *Client) SimulateTransaction(ctx context.Context, tx *types.Transaction) (rpc.SimulateResult, error) {
	var res rpc.SimulateResult
	encoded, err := rpc.EncodeTransaction(tx, rpc.EncodingBase64)
	if err != nil {
		return res, err
	}
	_, err = c.callValue(ctx, &res, "simulateTransaction", encoded, rpc.SimulateTransactionOptions{Encoding: rpc.EncodingBase64})
	return res, err
}

// GetSignatureStatus returns nil when the node has no record of sig.
func (c *Client) GetSignatureStatus(ctx context.Context, sig types.Signature) (*rpc.SignatureStatusResult, error) {
	var statuses []*rpc.SignatureStatusResult
	// a lone slice argument would be sent as the params array itself
	if _, err := c.callValue(ctx, &statuses, "getSignatureStatuses", []interface{}{[]string{sig.String()}}); err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, nil
	}
	return statuses[0], nil
}

// GetAsset returns the registry record of tokenID, or ErrNotFound.
func (c *Client) GetAsset(ctx context.Context, tokenID string) (*rpc.AssetResult, error) {
	var res rpc.AssetResult
	found, err := c.callValue(ctx, &res, "getAsset", tokenID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: asset %q", ErrNotFound, tokenID)
	}
	return &res, nil
}

// GetNFTMetadata returns the metadata of mint, or ErrNotFound.
func (c *Client) GetNFTMetadata(ctx context.Context, mint types.Pubkey) (*rpc.MetadataResult, error) {
	var res rpc.MetadataResult
	found, err := c.callValue(ctx, &res, "getNftMetadata", mint.String())
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: metadata of %s", ErrNotFound, mint)
	}
	return &res, nil
}
