package metrics

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// Collector refreshes gauges from some source.
type Collector interface {
	Collect()
}

// CollectorFunc adapts a function to Collector.
type CollectorFunc func()

func (f CollectorFunc) Collect() { f() }

// RuntimeCollector samples Go runtime statistics.
func RuntimeCollector(m *Metrics) Collector {
	return CollectorFunc(func() {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		m.MemoryBytes.SetUint64(mem.Alloc)
		m.Goroutines.Set(int64(runtime.NumGoroutine()))
	})
}

// AccountsCollector samples the number of stored accounts.
func AccountsCollector(m *Metrics, db AccountsCounter) Collector {
	return CollectorFunc(func() {
		m.AccountsCount.SetUint64(db.GetAccountsCount())
	})
}

// CollectorManager runs collectors on a fixed interval.
type CollectorManager struct {
	mu         sync.Mutex
	collectors []Collector
	interval   time.Duration
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewCollectorManager creates a manager. A non-positive interval
// defaults to 15s.
func NewCollectorManager(interval time.Duration) *CollectorManager {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &CollectorManager{interval: interval}
}

// Add registers c. Collectors added after Start are picked up on the
// next tick.
func (cm *CollectorManager) Add(c Collector) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.collectors = append(cm.collectors, c)
}

// CollectAll runs every collector once.
func (cm *CollectorManager) CollectAll() {
	cm.mu.Lock()
	collectors := append([]Collector(nil), cm.collectors...)
	cm.mu.Unlock()
	for _, c := range collectors {
		c.Collect()
	}
}

// Start collects immediately and then on every tick until ctx is done or
// Stop is called.
func (cm *CollectorManager) Start(ctx context.Context) {
	cm.mu.Lock()
	if cm.cancel != nil {
		cm.mu.Unlock()
		return
	}
	ctx, cm.cancel = context.WithCancel(ctx)
	cm.done = make(chan struct{})
	done := cm.done
	cm.mu.Unlock()

	cm.CollectAll()
	go func() {
		defer close(done)
		ticker := time.NewTicker(cm.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cm.CollectAll()
			}
		}
	}()
}

// Stop halts periodic collection and waits for the loop to exit.
func (cm *CollectorManager) Stop() {
	cm.mu.Lock()
	cancel, done := cm.cancel, cm.done
	cm.cancel, cm.done = nil, nil
	cm.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
