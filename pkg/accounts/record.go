package accounts

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/druti2k/ai-nFt/pkg/types"
)

// ErrCorruptRecord is returned for a stored account that does not decode.
var ErrCorruptRecord = errors.New("corrupt account record")

// A stored account record is a fixed header followed by the data:
//
//	owner [32] | lamports u64 | rent epoch u64 | executable u8 | data len u32 | data
//
// Integers are little-endian. Badger values and snapshot entries both use it.
const recordHeaderSize = 32 + 8 + 8 + 1 + 4

// EncodeAccount returns the stored record for account.
func EncodeAccount(account *types.Account) ([]byte, error) {
	if account == nil {
		return nil, errors.New("encode account: nil account")
	}
	if uint64(len(account.Data)) > uint64(^uint32(0)) {
		return nil, fmt.Errorf("encode account: %d data bytes do not fit a record", len(account.Data))
	}

	rec := make([]byte, recordHeaderSize+len(account.Data))
	copy(rec, account.Owner[:])
	binary.LittleEndian.PutUint64(rec[32:], uint64(account.Lamports))
	binary.LittleEndian.PutUint64(rec[40:], account.RentEpoch)
	if account.Executable {
		rec[48] = 1
	}
	binary.LittleEndian.PutUint32(rec[49:], uint32(len(account.Data)))
	copy(rec[recordHeaderSize:], account.Data)
	return rec, nil
}

// DecodeAccount parses a stored record. The record must be exactly as long
// as its header says.
func DecodeAccount(rec []byte) (*types.Account, error) {
	if len(rec) < recordHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorruptRecord, len(rec))
	}
	size := binary.LittleEndian.Uint32(rec[49:])
	if uint64(len(rec)-recordHeaderSize) != uint64(size) {
		return nil, fmt.Errorf("%w: header says %d data bytes, record has %d", ErrCorruptRecord, size, len(rec)-recordHeaderSize)
	}
	if rec[48] > 1 {
		return nil, fmt.Errorf("%w: executable flag %d", ErrCorruptRecord, rec[48])
	}

	account := &types.Account{
		Lamports:   types.Lamports(binary.LittleEndian.Uint64(rec[32:])),
		RentEpoch:  binary.LittleEndian.Uint64(rec[40:]),
		Executable: rec[48] == 1,
	}
	copy(account.Owner[:], rec)
	if size > 0 {
		account.Data = append([]byte(nil), rec[recordHeaderSize:]...)
	}
	return account, nil
}
