package types

import (
	"crypto/sha256"
	"encoding/binary"
)

// Account is the stored state behind one address. Only Owner may change
// Data or debit Lamports.
type Account struct {
	Lamports   Lamports
	Data       []byte
	Owner      Pubkey
	Executable bool
	RentEpoch  uint64
}

// NewAccount returns a data-less account holding lamports.
func NewAccount(lamports Lamports, owner Pubkey) *Account {
	return &Account{Lamports: lamports, Owner: owner}
}

// NewDataAccount returns an account that stores data. The slice is not
// copied.
func NewDataAccount(lamports Lamports, data []byte, owner Pubkey) *Account {
	return &Account{Lamports: lamports, Data: data, Owner: owner}
}

// Clone returns a copy that shares no memory with a.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.Data != nil {
		c.Data = append([]byte(nil), a.Data...)
	}
	return &c
}

// IsEmpty reports whether the account can be dropped from storage.
func (a *Account) IsEmpty() bool {
	return a.Lamports == 0 && len(a.Data) == 0
}

// Hash is the leaf the accounts delta hash is built from. It commits to
// every field plus the address:
//
//	sha256(lamports u64 | rent epoch u64 | data | executable u8 | owner | address)
func (a *Account) Hash(address Pubkey) Hash {
	var fixed [16]byte
	binary.LittleEndian.PutUint64(fixed[:8], uint64(a.Lamports))
	binary.LittleEndian.PutUint64(fixed[8:], a.RentEpoch)

	var executable byte
	if a.Executable {
		executable = 1
	}

	h := sha256.New()
	h.Write(fixed[:])
	h.Write(a.Data)
	h.Write([]byte{executable})
	h.Write(a.Owner[:])
	h.Write(address[:])

	var out Hash
	h.Sum(out[:0])
	return out
}

// Rent: every account is charged for its data plus a fixed overhead, and
// holding two years of rent makes it exempt.
const (
	rentLamportsPerByteYear = 3480
	rentExemptYears         = 2
	rentAccountOverhead     = 128
)

// RentExemptMinimum is the balance an account of dataSize bytes needs to
// be rent exempt.
func RentExemptMinimum(dataSize uint64) Lamports {
	return Lamports((dataSize + rentAccountOverhead) * rentLamportsPerByteYear * rentExemptYears)
}

// AccountMeta is one account reference of an instruction.
type AccountMeta struct {
	Pubkey     Pubkey
	IsSigner   bool
	IsWritable bool
}

// AccountDelta is the effect of a committed transaction on one address.
// OldAccount is nil for a created account and NewAccount is nil for a
// removed one.
type AccountDelta struct {
	Pubkey     Pubkey
	OldAccount *Account
	NewAccount *Account
}
