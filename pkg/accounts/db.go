// Package accounts provides account storage for the AI-NFT ledger.
package accounts

import (
	"github.com/druti2k/ai-nFt/pkg/types"
)

// AccountsDB defines the interface for account storage.
type AccountsDB interface {
	// GetAccount retrieves an account by pubkey.
	// Returns nil, nil if account does not exist.
	GetAccount(pubkey types.Pubkey) (*types.Account, error)

	// SetAccount stores an account.
	SetAccount(pubkey types.Pubkey, account *types.Account) error

	// DeleteAccount removes an account.
	DeleteAccount(pubkey types.Pubkey) error

	// Commit applies a batch of account changes atomically. A delta with a
	// nil NewAccount deletes the account.
	Commit(deltas []types.AccountDelta) error

	// ForEach calls fn for every stored account until fn returns an error.
	ForEach(fn func(pubkey types.Pubkey, account *types.Account) error) error

	// HasAccount returns true if the account exists.
	HasAccount(pubkey types.Pubkey) bool

	// GetAccountsCount returns the total number of accounts.
	GetAccountsCount() uint64

	// Close closes the database.
	Close() error
}
