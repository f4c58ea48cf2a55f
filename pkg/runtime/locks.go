package runtime

import (
	"bytes"
	"sort"
	"sync"

	"github.com/druti2k/ai-nFt/pkg/types"
)

// AccountLocks serializes transactions that touch the same accounts.
// Writers are exclusive; readers share. Locks are always taken in pubkey
// order so two transactions can never wait on each other.
type AccountLocks struct {
	mu    sync.Mutex
	locks map[types.Pubkey]*sync.RWMutex
}

// NewAccountLocks creates an empty lock table.
func NewAccountLocks() *AccountLocks {
	return &AccountLocks{locks: make(map[types.Pubkey]*sync.RWMutex)}
}

func (l *AccountLocks) get(pubkey types.Pubkey) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[pubkey]
	if !ok {
		m = new(sync.RWMutex)
		l.locks[pubkey] = m
	}
	return m
}

type lockEntry struct {
	pubkey   types.Pubkey
	writable bool
}

// Lock acquires the locks of msg's accounts and returns the function that
// releases them.
func (l *AccountLocks) Lock(msg *types.Message) (unlock func()) {
	entries := make([]lockEntry, 0, len(msg.AccountKeys))
	seen := make(map[types.Pubkey]int, len(msg.AccountKeys))
	for i, key := range msg.AccountKeys {
		w := msg.IsWritable(i)
		if j, ok := seen[key]; ok {
			entries[j].writable = entries[j].writable || w
			continue
		}
		seen[key] = len(entries)
		entries = append(entries, lockEntry{pubkey: key, writable: w})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].pubkey[:], entries[j].pubkey[:]) < 0
	})

	held := make([]func(), 0, len(entries))
	for _, e := range entries {
		m := l.get(e.pubkey)
		if e.writable {
			m.Lock()
			held = append(held, m.Unlock)
		} else {
			m.RLock()
			held = append(held, m.RUnlock)
		}
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
}
