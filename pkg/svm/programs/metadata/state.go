package metadata

import (
	"fmt"

	"github.com/near/borsh-go"

	"github.com/druti2k/ai-nFt/pkg/svm/syscall"
	"github.com/druti2k/ai-nFt/pkg/types"
)

// Field limits, in bytes.
const (
	MaxNameLength   = 32
	MaxSymbolLength = 10
	MaxURILength    = 200

	// MaxMetadataLen is the serialized size of a record with every string
	// at its limit. Accounts are funded for this size so updates never need
	// more lamports.
	MaxMetadataLen = 1 + 32 + 32 + (4 + MaxNameLength) + (4 + MaxSymbolLength) + (4 + MaxURILength) + 1
)

// KeyMetadataV1 tags an initialized metadata account.
const KeyMetadataV1 uint8 = 4

// Metadata is the record stored at a mint's metadata address.
type Metadata struct {
	Key             uint8
	UpdateAuthority types.Pubkey
	Mint            types.Pubkey
	Name            string
	Symbol          string
	URI             string
	IsMutable       bool
}

// Serialize encodes the record with borsh.
func (m *Metadata) Serialize() ([]byte, error) {
	return borsh.Serialize(*m)
}

// DeserializeMetadata decodes a metadata account's data.
func DeserializeMetadata(data []byte) (*Metadata, error) {
	if len(data) == 0 || data[0] != KeyMetadataV1 {
		return nil, ErrUninitialized
	}
	var m Metadata
	if err := borsh.Deserialize(&m, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	return &m, nil
}

// Seeds returns the seeds of a mint's metadata address, without the bump.
func Seeds(mint types.Pubkey) [][]byte {
	return [][]byte{[]byte("metadata"), types.MetadataProgramID[:], mint[:]}
}

// Address derives the metadata address of mint.
func Address(mint types.Pubkey) (types.Pubkey, uint8, error) {
	return syscall.FindProgramAddress(Seeds(mint), types.MetadataProgramID)
}

func validateFields(name, symbol, uri string) error {
	switch {
	case len(name) > MaxNameLength:
		return fmt.Errorf("%w: name is %d bytes", ErrFieldTooLong, len(name))
	case len(symbol) > MaxSymbolLength:
		return fmt.Errorf("%w: symbol is %d bytes", ErrFieldTooLong, len(symbol))
	case len(uri) > MaxURILength:
		return fmt.Errorf("%w: uri is %d bytes", ErrFieldTooLong, len(uri))
	}
	return nil
}
