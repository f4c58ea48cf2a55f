package token

import (
	"encoding/binary"
	"fmt"

	"github.com/druti2k/ai-nFt/pkg/types"
)

// Account state sizes
const (
	MintSize         = 82
	TokenAccountSize = 165
)

// Token account states
const (
	AccountStateUninitialized uint8 = 0
	AccountStateInitialized   uint8 = 1
	AccountStateFrozen        uint8 = 2
)

// COption is an optional pubkey laid out as a 4 byte tag followed by 32 bytes.
type COption struct {
	IsSome bool
	Value  types.Pubkey
}

// Some returns a populated COption.
func Some(pubkey types.Pubkey) COption {
	return COption{IsSome: true, Value: pubkey}
}

// COptionU64 is an optional u64 laid out as a 4 byte tag followed by 8 bytes.
type COptionU64 struct {
	IsSome bool
	Value  uint64
}

// Mint is the 82 byte mint account layout:
//
//	mint_authority COption<Pubkey> (36) | supply u64 (8) | decimals u8 (1) |
//	is_initialized bool (1) | freeze_authority COption<Pubkey> (36)
type Mint struct {
	MintAuthority   COption
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority COption
}

// TokenAccount is the 165 byte token account layout:
//
//	mint (32) | owner (32) | amount u64 (8) | delegate COption<Pubkey> (36) |
//	state u8 (1) | is_native COption<u64> (12) | delegated_amount u64 (8) |
//	close_authority COption<Pubkey> (36)
type TokenAccount struct {
	Mint            types.Pubkey
	Owner           types.Pubkey
	Amount          uint64
	Delegate        COption
	State           uint8
	IsNative        COptionU64
	DelegatedAmount uint64
	CloseAuthority  COption
}

// DeserializeMint deserializes a Mint from bytes.
func DeserializeMint(data []byte) (*Mint, error) {
	if len(data) != MintSize {
		return nil, fmt.Errorf("%w: mint data must be %d bytes, got %d",
			ErrInvalidAccountData, MintSize, len(data))
	}

	mint := &Mint{}
	offset := 0
	mint.MintAuthority, offset = deserializeCOption(data, offset)
	mint.Supply = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8
	mint.Decimals = data[offset]
	offset++
	mint.IsInitialized = data[offset] != 0
	offset++
	mint.FreezeAuthority, _ = deserializeCOption(data, offset)

	return mint, nil
}

// Serialize serializes the Mint to bytes.
func (m *Mint) Serialize() []byte {
	data := make([]byte, MintSize)
	offset := serializeCOption(data, 0, m.MintAuthority)
	binary.LittleEndian.PutUint64(data[offset:offset+8], m.Supply)
	offset += 8
	data[offset] = m.Decimals
	offset++
	if m.IsInitialized {
		data[offset] = 1
	}
	offset++
	serializeCOption(data, offset, m.FreezeAuthority)
	return data
}

// DeserializeTokenAccount deserializes a TokenAccount from bytes.
func DeserializeTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) != TokenAccountSize {
		return nil, fmt.Errorf("%w: token account data must be %d bytes, got %d",
			ErrInvalidAccountData, TokenAccountSize, len(data))
	}

	account := &TokenAccount{}
	offset := 0
	copy(account.Mint[:], data[offset:offset+32])
	offset += 32
	copy(account.Owner[:], data[offset:offset+32])
	offset += 32
	account.Amount = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8
	account.Delegate, offset = deserializeCOption(data, offset)
	account.State = data[offset]
	offset++
	account.IsNative, offset = deserializeCOptionU64(data, offset)
	account.DelegatedAmount = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8
	account.CloseAuthority, _ = deserializeCOption(data, offset)

	return account, nil
}

// Serialize serializes the TokenAccount to bytes.
func (a *TokenAccount) Serialize() []byte {
	data := make([]byte, TokenAccountSize)
	offset := 0
	copy(data[offset:offset+32], a.Mint[:])
	offset += 32
	copy(data[offset:offset+32], a.Owner[:])
	offset += 32
	binary.LittleEndian.PutUint64(data[offset:offset+8], a.Amount)
	offset += 8
	offset = serializeCOption(data, offset, a.Delegate)
	data[offset] = a.State
	offset++
	offset = serializeCOptionU64(data, offset, a.IsNative)
	binary.LittleEndian.PutUint64(data[offset:offset+8], a.DelegatedAmount)
	offset += 8
	serializeCOption(data, offset, a.CloseAuthority)
	return data
}

// IsFrozen returns true if the account is frozen.
func (a *TokenAccount) IsFrozen() bool {
	return a.State == AccountStateFrozen
}

// IsInitialized returns true once InitializeAccount has run.
func (a *TokenAccount) IsInitialized() bool {
	return a.State != AccountStateUninitialized
}

func deserializeCOption(data []byte, offset int) (COption, int) {
	var opt COption
	if binary.LittleEndian.Uint32(data[offset:offset+4]) == 1 {
		opt.IsSome = true
		copy(opt.Value[:], data[offset+4:offset+36])
	}
	return opt, offset + 36
}

// serializeCOption assumes data is zeroed, which Serialize guarantees.
func serializeCOption(data []byte, offset int, opt COption) int {
	if opt.IsSome {
		binary.LittleEndian.PutUint32(data[offset:offset+4], 1)
		copy(data[offset+4:offset+36], opt.Value[:])
	}
	return offset + 36
}

func deserializeCOptionU64(data []byte, offset int) (COptionU64, int) {
	var opt COptionU64
	if binary.LittleEndian.Uint32(data[offset:offset+4]) == 1 {
		opt.IsSome = true
		opt.Value = binary.LittleEndian.Uint64(data[offset+4 : offset+12])
	}
	return opt, offset + 12
}

func serializeCOptionU64(data []byte, offset int, opt COptionU64) int {
	if opt.IsSome {
		binary.LittleEndian.PutUint32(data[offset:offset+4], 1)
		binary.LittleEndian.PutUint64(data[offset+4:offset+12], opt.Value)
	}
	return offset + 12
}

// NewMint creates an initialized Mint.
func NewMint(decimals uint8, mintAuthority types.Pubkey, freezeAuthority *types.Pubkey) *Mint {
	mint := &Mint{
		MintAuthority: Some(mintAuthority),
		Decimals:      decimals,
		IsInitialized: true,
	}
	if freezeAuthority != nil {
		mint.FreezeAuthority = Some(*freezeAuthority)
	}
	return mint
}

// NewTokenAccount creates an initialized, empty TokenAccount.
func NewTokenAccount(mint, owner types.Pubkey) *TokenAccount {
	return &TokenAccount{
		Mint:  mint,
		Owner: owner,
		State: AccountStateInitialized,
	}
}
