package ainft

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/near/borsh-go"

	"github.com/druti2k/ai-nFt/pkg/svm/syscall"
	"github.com/druti2k/ai-nFt/pkg/types"
)

// AccountKindAsset prefixes the data of an asset registry account.
const AccountKindAsset uint8 = 1

var errNotAssetRecord = errors.New("account is not an asset record")

// AssetRecord tracks one minted token id: who owns it and what it points
// to. It lives at the address AssetAddress derives from the token id.
type AssetRecord struct {
	TokenID  string
	Owner    types.Pubkey
	Mint     types.Pubkey
	ImageURL string
	Metadata string
}

// Serialize encodes the record behind its kind byte.
func (r *AssetRecord) Serialize() ([]byte, error) {
	body, err := borsh.Serialize(*r)
	if err != nil {
		return nil, err
	}
	return append([]byte{AccountKindAsset}, body...), nil
}

// DeserializeAssetRecord decodes an asset registry account's data.
func DeserializeAssetRecord(data []byte) (*AssetRecord, error) {
	if len(data) == 0 || data[0] != AccountKindAsset {
		return nil, errNotAssetRecord
	}
	var r AssetRecord
	if err := borsh.Deserialize(&r, data[1:]); err != nil {
		return nil, fmt.Errorf("%w: %v", errNotAssetRecord, err)
	}
	return &r, nil
}

// AssetSeeds returns the seeds of a token id's registry address. The id is
// hashed so ids of any length fit in one seed.
func AssetSeeds(tokenID string) [][]byte {
	h := sha256.Sum256([]byte(tokenID))
	return [][]byte{[]byte("asset"), h[:]}
}

// AssetAddress derives the registry address of tokenID under programID.
func AssetAddress(programID types.Pubkey, tokenID string) (types.Pubkey, uint8, error) {
	return syscall.FindProgramAddress(AssetSeeds(tokenID), programID)
}
