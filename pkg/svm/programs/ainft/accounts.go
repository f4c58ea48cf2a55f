package ainft

import (
	"github.com/druti2k/ai-nFt/pkg/svm/syscall"
	"github.com/druti2k/ai-nFt/pkg/types"
)

// Role names.
const (
	RoleInitializer     = "initializer"
	RoleMinter          = "minter"
	RoleOwner           = "owner"
	RoleMint            = "mint"
	RoleHolding         = "holding"
	RoleSource          = "source"
	RoleDestination     = "destination"
	RoleRent            = "rent"
	RoleTokenProgram    = "token_program"
	RoleMetadata        = "metadata"
	RoleMetadataProgram = "metadata_program"
	RoleSystemProgram   = "system_program"
	RoleAsset           = "asset"
)

// Role is the capability and identity a slot of an instruction's account
// list must satisfy.
type Role struct {
	Name     string
	Signer   bool
	Writable bool
	// Identity, if set, checks the bound key against the slots bound
	// before it.
	Identity func(key types.Pubkey, bound Bindings) error
	// Optional roles may be left off the end of the account list.
	Optional bool
}

// Schema is an ordered list of roles.
type Schema []Role

// Bindings maps role names to the accounts bound to them.
type Bindings struct {
	accounts map[string]*syscall.AccountInfo
}

// Has reports whether role was bound; false for an absent optional role.
func (b Bindings) Has(role string) bool {
	_, ok := b.accounts[role]
	return ok
}

// Account returns the account bound to role, or nil.
func (b Bindings) Account(role string) *syscall.AccountInfo {
	return b.accounts[role]
}

// Key returns the key bound to role.
func (b Bindings) Key(role string) types.Pubkey {
	if acc := b.accounts[role]; acc != nil {
		return acc.Pubkey
	}
	return types.ZeroPubkey
}

func isProgram(id types.Pubkey, role string) func(types.Pubkey, Bindings) error {
	return func(key types.Pubkey, _ Bindings) error {
		if key != id {
			return newError(CodeMalformedAccountList, "%s must be %s, got %s", role, id, key)
		}
		return nil
	}
}

var (
	rentIdentity            = isProgram(types.SysvarRentID, RoleRent)
	tokenProgramIdentity    = isProgram(types.TokenProgramID, RoleTokenProgram)
	metadataProgramIdentity = isProgram(types.MetadataProgramID, RoleMetadataProgram)
	systemProgramIdentity   = isProgram(types.SystemProgramID, RoleSystemProgram)
)

// creationSchema is shared by Initialize and Mint, which differ only in
// who the signer is.
func creationSchema(signer string) Schema {
	return Schema{
		{Name: signer, Signer: true},
		{Name: RoleMint, Writable: true},
		{Name: RoleHolding, Writable: true},
		{Name: RoleRent, Identity: rentIdentity},
		{Name: RoleTokenProgram, Identity: tokenProgramIdentity},
		{Name: RoleMetadata, Writable: true},
		{Name: RoleMetadataProgram, Identity: metadataProgramIdentity},
		{Name: RoleSystemProgram, Identity: systemProgramIdentity},
	}
}

var (
	InitializeSchema = creationSchema(RoleInitializer)

	MintSchema = append(creationSchema(RoleMinter), Role{Name: RoleAsset, Writable: true, Optional: true})

	TransferSchema = Schema{
		{Name: RoleOwner, Signer: true},
		{Name: RoleSource, Writable: true},
		{Name: RoleDestination, Writable: true},
		{Name: RoleTokenProgram, Identity: tokenProgramIdentity},
		{Name: RoleAsset, Writable: true, Optional: true},
	}
)

// Bind matches ctx's accounts against schema in order. Each slot is checked
// for signer, then writable, then identity, and the first violation is
// returned with no bindings.
func Bind(ctx *syscall.ExecutionContext, schema Schema) (Bindings, error) {
	required := 0
	for _, role := range schema {
		if !role.Optional {
			required++
		}
	}
	n := ctx.AccountCount()
	if n < required || n > len(schema) {
		return Bindings{}, newError(CodeMalformedAccountList, "expected %d to %d accounts, got %d", required, len(schema), n)
	}

	bound := Bindings{accounts: make(map[string]*syscall.AccountInfo, n)}
	for i, role := range schema[:n] {
		acc, err := ctx.GetAccountByIndex(i)
		if err != nil {
			return Bindings{}, newError(CodeMalformedAccountList, "%s: %v", role.Name, err)
		}
		if role.Signer && !acc.IsSigner {
			return Bindings{}, newError(CodeMissingRequiredSignature, "%s %s", role.Name, acc.Pubkey)
		}
		if role.Writable && !acc.IsWritable {
			return Bindings{}, newError(CodeMalformedAccountList, "%s %s must be writable", role.Name, acc.Pubkey)
		}
		if role.Identity != nil {
			if err := role.Identity(acc.Pubkey, bound); err != nil {
				return Bindings{}, err
			}
		}
		bound.accounts[role.Name] = acc
	}
	return bound, nil
}
