package ledger

import (
	"sync"

	"github.com/druti2k/ai-nFt/pkg/types"
)

// SignatureStatus is the recorded outcome of a transaction.
type SignatureStatus struct {
	Slot types.Slot
	// Err is nil when the transaction committed.
	Err error
}

// StatusCache remembers the outcome of recent transactions by signature.
// A signature is reserved while its transaction executes so concurrent
// duplicates are rejected.
type StatusCache struct {
	mu       sync.Mutex
	statuses map[types.Signature]*SignatureStatus
	order    []types.Signature
}

func NewStatusCache() *StatusCache {
	return &StatusCache{statuses: make(map[types.Signature]*SignatureStatus)}
}

// Reserve claims sig. It returns false if sig is executing or already
// has a status.
func (c *StatusCache) Reserve(sig types.Signature) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.statuses[sig]; ok {
		return false
	}
	c.statuses[sig] = nil
	return true
}

// Release drops a reservation that produced no status.
func (c *StatusCache) Release(sig types.Signature) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.statuses[sig] == nil {
		delete(c.statuses, sig)
	}
}

// Complete records the status of a reserved signature.
func (c *StatusCache) Complete(sig types.Signature, status SignatureStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[sig] = &status
	c.order = append(c.order, sig)
}

// Get returns the status of sig. Executing and unknown signatures report
// false.
func (c *StatusCache) Get(sig types.Signature) (SignatureStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.statuses[sig]
	if s == nil {
		return SignatureStatus{}, false
	}
	return *s, true
}

// Purge forgets statuses recorded before minSlot.
func (c *StatusCache) Purge(minSlot types.Slot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, sig := range c.order {
		if s := c.statuses[sig]; s != nil && s.Slot >= minSlot {
			break
		}
		delete(c.statuses, sig)
		n++
	}
	c.order = c.order[n:]
}

// Len returns the number of recorded statuses.
func (c *StatusCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}
