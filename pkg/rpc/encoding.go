package rpc

import (
	"encoding/base64"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/mr-tron/base58"

	"github.com/druti2k/ai-nFt/pkg/types"
)

// Encoding types supported by Solana RPC
const (
	EncodingBase58     = "base58"
	EncodingBase64     = "base64"
	EncodingBase64Zstd = "base64+zstd"
)

// base58 is only offered for small payloads.
const maxBase58Data = 128

var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// EncodeAccountData encodes data as the [data, encoding] pair Solana
// clients expect. The empty encoding selects base64.
func EncodeAccountData(data []byte, encoding string) ([]interface{}, error) {
	switch encoding {
	case EncodingBase58:
		if len(data) > maxBase58Data {
			return nil, fmt.Errorf("data too large for base58 encoding, use base64")
		}
		return []interface{}{base58.Encode(data), EncodingBase58}, nil
	case EncodingBase64, "":
		return []interface{}{base64.StdEncoding.EncodeToString(data), EncodingBase64}, nil
	case EncodingBase64Zstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		return []interface{}{base64.StdEncoding.EncodeToString(compressed), EncodingBase64Zstd}, nil
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}

// DecodeAccountData reverses EncodeAccountData.
func DecodeAccountData(encoded string, encoding string) ([]byte, error) {
	switch encoding {
	case EncodingBase58:
		return base58.Decode(encoded)
	case EncodingBase64, "":
		return base64.StdEncoding.DecodeString(encoded)
	case EncodingBase64Zstd:
		compressed, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, err
		}
		return zstdDecoder.DecodeAll(compressed, nil)
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}

// DecodeTransaction parses a wire transaction. The empty encoding selects
// base58, the sendTransaction default.
func DecodeTransaction(encoded string, encoding string) (*types.Transaction, error) {
	var (
		raw []byte
		err error
	)
	switch encoding {
	case EncodingBase58, "":
		raw, err = base58.Decode(encoded)
	case EncodingBase64:
		raw, err = base64.StdEncoding.DecodeString(encoded)
	default:
		return nil, fmt.Errorf("unsupported transaction encoding: %s", encoding)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return types.DeserializeTransaction(raw)
}

// EncodeTransaction serializes tx for sendTransaction.
func EncodeTransaction(tx *types.Transaction, encoding string) (string, error) {
	raw, err := tx.Serialize()
	if err != nil {
		return "", err
	}
	switch encoding {
	case EncodingBase58:
		return base58.Encode(raw), nil
	case EncodingBase64, "":
		return base64.StdEncoding.EncodeToString(raw), nil
	default:
		return "", fmt.Errorf("unsupported transaction encoding: %s", encoding)
	}
}

// SliceData returns the part of data selected by slice, or all of it.
func SliceData(data []byte, slice *DataSlice) []byte {
	if slice == nil {
		return data
	}
	dataLen := uint64(len(data))
	if slice.Offset >= dataLen {
		return []byte{}
	}
	end := slice.Offset + slice.Length
	if end > dataLen {
		end = dataLen
	}
	return data[slice.Offset:end]
}
