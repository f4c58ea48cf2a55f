package metrics

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// HealthStatus is the result of running every registered check.
type HealthStatus struct {
	Healthy   bool      `json:"healthy"`
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
	Checks    []Check   `json:"checks,omitempty"`
}

// Check is one named check result.
type Check struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// HealthCheckFunc performs a single check.
type HealthCheckFunc func(ctx context.Context) Check

// HealthChecker aggregates named checks and a readiness flag.
type HealthChecker struct {
	mu        sync.RWMutex
	checks    map[string]HealthCheckFunc
	ready     atomic.Bool
	startTime time.Time
}

// NewHealthChecker creates a checker with a heap usage check bounded by
// maxMemoryBytes. Zero disables the memory check.
func NewHealthChecker(maxMemoryBytes uint64) *HealthChecker {
	h := &HealthChecker{
		checks:    make(map[string]HealthCheckFunc),
		startTime: time.Now(),
	}
	if maxMemoryBytes > 0 {
		h.RegisterCheck("memory", memoryCheck(maxMemoryBytes))
	}
	return h
}

// RegisterCheck adds or replaces the check called name.
func (h *HealthChecker) RegisterCheck(name string, check HealthCheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// SetReady flips the readiness probe.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// Check runs every registered check in name order.
func (h *HealthChecker) Check(ctx context.Context) *HealthStatus {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	funcs := make(map[string]HealthCheckFunc, len(h.checks))
	for name, fn := range h.checks {
		funcs[name] = fn
	}
	h.mu.RUnlock()
	sort.Strings(names)

	status := &HealthStatus{
		Healthy:   true,
		Ready:     h.IsReady(),
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
	for _, name := range names {
		check := funcs[name](ctx)
		check.Name = name
		if !check.Healthy {
			status.Healthy = false
		}
		status.Checks = append(status.Checks, check)
	}
	return status
}

func memoryCheck(limit uint64) HealthCheckFunc {
	return func(context.Context) Check {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		if m.Alloc > limit {
			return Check{Message: fmt.Sprintf("heap %d bytes exceeds %d", m.Alloc, limit)}
		}
		return Check{Healthy: true}
	}
}

// AccountsCounter is implemented by accounts databases.
type AccountsCounter interface {
	GetAccountsCount() uint64
}

// ProbeCheck reports unhealthy when probe fails.
func ProbeCheck(probe func(ctx context.Context) error) HealthCheckFunc {
	return func(ctx context.Context) Check {
		if err := probe(ctx); err != nil {
			return Check{Message: err.Error()}
		}
		return Check{Healthy: true}
	}
}
