package ledger

import (
	"fmt"

	"github.com/near/borsh-go"

	"github.com/druti2k/ai-nFt/pkg/accounts"
	"github.com/druti2k/ai-nFt/pkg/runtime"
	"github.com/druti2k/ai-nFt/pkg/types"
)

// Rent is the rent sysvar. Its borsh encoding matches the cluster's
// layout: u64, f64, u8.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
	BurnPercent         uint8
}

// DefaultRent mirrors types.RentExemptMinimum.
var DefaultRent = Rent{LamportsPerByteYear: 3480, ExemptionThreshold: 2, BurnPercent: 50}

// Genesis describes the initial state of a fresh ledger.
type Genesis struct {
	Faucet         types.Pubkey
	FaucetLamports types.Lamports
}

// IsGenesisApplied reports whether db already holds a ledger.
func IsGenesisApplied(db accounts.AccountsDB) bool {
	return db.HasAccount(types.SystemProgramID)
}

// ApplyGenesis installs the registry's programs as executable accounts,
// the rent sysvar and the funded faucet, in one batch.
func ApplyGenesis(db accounts.AccountsDB, registry *runtime.ProgramRegistry, g Genesis) error {
	var deltas []types.AccountDelta
	for _, id := range registry.ListPrograms() {
		name, _ := registry.GetProgramName(id)
		deltas = append(deltas, types.AccountDelta{
			Pubkey: id,
			NewAccount: &types.Account{
				Lamports:   1,
				Data:       []byte(name),
				Owner:      types.NativeLoaderID,
				Executable: true,
			},
		})
	}

	rent, err := borsh.Serialize(DefaultRent)
	if err != nil {
		return fmt.Errorf("encode rent sysvar: %w", err)
	}
	deltas = append(deltas, types.AccountDelta{
		Pubkey:     types.SysvarRentID,
		NewAccount: types.NewDataAccount(types.RentExemptMinimum(uint64(len(rent))), rent, types.SysvarRentID),
	})

	if !g.Faucet.IsZero() && g.FaucetLamports > 0 {
		deltas = append(deltas, types.AccountDelta{
			Pubkey:     g.Faucet,
			NewAccount: types.NewAccount(g.FaucetLamports, types.SystemProgramID),
		})
	}
	return db.Commit(deltas)
}

// ReadRent decodes the rent sysvar from db.
func ReadRent(db accounts.AccountsDB) (*Rent, error) {
	acc, err := db.GetAccount(types.SysvarRentID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("%w: rent sysvar", ErrAccountNotFound)
	}
	var rent Rent
	if err := borsh.Deserialize(&rent, acc.Data); err != nil {
		return nil, fmt.Errorf("decode rent sysvar: %w", err)
	}
	return &rent, nil
}
