package ainft

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/druti2k/ai-nFt/pkg/types"
)

// Instruction tags.
const (
	TagInitialize uint8 = 0
	TagMint       uint8 = 1
	TagTransfer   uint8 = 2
)

// Instruction is one of InitializeInstruction, MintInstruction or
// TransferInstruction.
type Instruction interface {
	Tag() uint8
	encode(w *writer)
}

// InitializeInstruction declares a new asset class and its off-ledger
// metadata pointer.
type InitializeInstruction struct {
	Name   string
	Symbol string
	URI    string
}

// MintInstruction issues the single unit of an asset class.
type MintInstruction struct {
	TokenID  string
	ImageURL string
	Metadata string
}

// TransferInstruction moves Amount units between holding accounts.
type TransferInstruction struct {
	Amount uint64
}

func (InitializeInstruction) Tag() uint8 { return TagInitialize }
func (MintInstruction) Tag() uint8       { return TagMint }
func (TransferInstruction) Tag() uint8   { return TagTransfer }

func (i InitializeInstruction) encode(w *writer) {
	w.string(i.Name)
	w.string(i.Symbol)
	w.string(i.URI)
}

func (i MintInstruction) encode(w *writer) {
	w.string(i.TokenID)
	w.string(i.ImageURL)
	w.string(i.Metadata)
}

func (i TransferInstruction) encode(w *writer) {
	w.u64(i.Amount)
}

// EncodeInstruction serializes ix: a u8 tag followed by the variant's
// fields, strings as a u32 little-endian length and bytes.
func EncodeInstruction(ix Instruction) []byte {
	w := &writer{}
	w.buf = append(w.buf, ix.Tag())
	ix.encode(w)
	return w.buf
}

// DecodeInstruction parses data produced by EncodeInstruction. Any
// malformation, including trailing bytes, is ErrInvalidInstruction.
func DecodeInstruction(data []byte) (Instruction, error) {
	r := &reader{buf: data}
	tag, ok := r.u8()
	if !ok {
		return nil, newError(CodeInvalidInstruction, "empty instruction data")
	}

	var ix Instruction
	switch tag {
	case TagInitialize:
		var v InitializeInstruction
		ok = r.string(&v.Name) && r.string(&v.Symbol) && r.string(&v.URI)
		ix = v
	case TagMint:
		var v MintInstruction
		ok = r.string(&v.TokenID) && r.string(&v.ImageURL) && r.string(&v.Metadata)
		ix = v
	case TagTransfer:
		var v TransferInstruction
		v.Amount, ok = r.u64()
		ix = v
	default:
		return nil, newError(CodeInvalidInstruction, "unknown tag %d", tag)
	}

	if !ok {
		return nil, newError(CodeInvalidInstruction, "truncated payload for tag %d", tag)
	}
	if r.remaining() != 0 {
		return nil, newError(CodeInvalidInstruction, "%d trailing bytes", r.remaining())
	}
	return ix, nil
}

type writer struct {
	buf []byte
}

func (w *writer) u64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

func (w *writer) string(s string) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(len(s)))
	w.buf = append(w.buf, s...)
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

func (r *reader) u8() (uint8, bool) {
	if r.remaining() < 1 {
		return 0, false
	}
	v := r.buf[r.off]
	r.off++
	return v, true
}

func (r *reader) u64() (uint64, bool) {
	if r.remaining() < 8 {
		return 0, false
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, true
}

func (r *reader) string(dst *string) bool {
	if r.remaining() < 4 {
		return false
	}
	n := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	if uint64(n) > uint64(r.remaining()) {
		return false
	}
	b := r.buf[r.off : r.off+int(n)]
	if !utf8.Valid(b) {
		return false
	}
	*dst = string(b)
	r.off += int(n)
	return true
}

// InitializeAccounts are the accounts of an Initialize instruction.
// Holding is the initializer's associated token account for Mint and
// Metadata is the mint's metadata address.
type InitializeAccounts struct {
	Initializer types.Pubkey
	Mint        types.Pubkey
	Holding     types.Pubkey
	Metadata    types.Pubkey
}

// MintAccounts are the accounts of a Mint instruction. Asset is the token
// id's registry record; the zero key leaves the registry out.
type MintAccounts struct {
	Minter   types.Pubkey
	Mint     types.Pubkey
	Holding  types.Pubkey
	Metadata types.Pubkey
	Asset    types.Pubkey
}

// TransferAccounts are the accounts of a Transfer instruction. Asset is
// optional as in MintAccounts.
type TransferAccounts struct {
	Owner       types.Pubkey
	Source      types.Pubkey
	Destination types.Pubkey
	Asset       types.Pubkey
}

// NewInitializeInstruction builds an Initialize instruction. The
// initializer pays for the accounts created, so it is passed writable.
func NewInitializeInstruction(programID types.Pubkey, accts InitializeAccounts, args InitializeInstruction) types.Instruction {
	return types.Instruction{
		ProgramID: programID,
		Accounts: []types.AccountMeta{
			{Pubkey: accts.Initializer, IsSigner: true, IsWritable: true},
			{Pubkey: accts.Mint, IsWritable: true},
			{Pubkey: accts.Holding, IsWritable: true},
			{Pubkey: types.SysvarRentID},
			{Pubkey: types.TokenProgramID},
			{Pubkey: accts.Metadata, IsWritable: true},
			{Pubkey: types.MetadataProgramID},
			{Pubkey: types.SystemProgramID},
		},
		Data: EncodeInstruction(args),
	}
}

// NewMintInstruction builds a Mint instruction.
func NewMintInstruction(programID types.Pubkey, accts MintAccounts, args MintInstruction) types.Instruction {
	metas := []types.AccountMeta{
		{Pubkey: accts.Minter, IsSigner: true, IsWritable: true},
		{Pubkey: accts.Mint, IsWritable: true},
		{Pubkey: accts.Holding, IsWritable: true},
		{Pubkey: types.SysvarRentID},
		{Pubkey: types.TokenProgramID},
		{Pubkey: accts.Metadata, IsWritable: true},
		{Pubkey: types.MetadataProgramID},
		{Pubkey: types.SystemProgramID},
	}
	if !accts.Asset.IsZero() {
		metas = append(metas, types.AccountMeta{Pubkey: accts.Asset, IsWritable: true})
	}
	return types.Instruction{ProgramID: programID, Accounts: metas, Data: EncodeInstruction(args)}
}

// NewTransferInstruction builds a Transfer instruction.
func NewTransferInstruction(programID types.Pubkey, accts TransferAccounts, amount uint64) types.Instruction {
	metas := []types.AccountMeta{
		{Pubkey: accts.Owner, IsSigner: true},
		{Pubkey: accts.Source, IsWritable: true},
		{Pubkey: accts.Destination, IsWritable: true},
		{Pubkey: types.TokenProgramID},
	}
	if !accts.Asset.IsZero() {
		metas = append(metas, types.AccountMeta{Pubkey: accts.Asset, IsWritable: true})
	}
	return types.Instruction{ProgramID: programID, Accounts: metas, Data: EncodeInstruction(TransferInstruction{Amount: amount})}
}
