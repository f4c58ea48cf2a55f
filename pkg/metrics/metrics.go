// Package metrics exposes ledger node metrics in the Prometheus text
// format.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MetricType is the Prometheus type of a metric.
type MetricType string

const (
	TypeCounter   MetricType = "counter"
	TypeGauge     MetricType = "gauge"
	TypeHistogram MetricType = "histogram"
)

// Metric is implemented by Counter, Gauge and Histogram.
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
}

// Counter is a monotonically increasing value.
type Counter struct {
	name  string
	help  string
	value atomic.Uint64
}

// NewCounter creates a counter.
func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

func (c *Counter) Inc()             { c.value.Add(1) }
func (c *Counter) Add(delta uint64) { c.value.Add(delta) }
func (c *Counter) Value() uint64    { return c.value.Load() }
func (c *Counter) Name() string     { return c.name }
func (c *Counter) Help() string     { return c.help }
func (c *Counter) Type() MetricType { return TypeCounter }

// Gauge is a value that can go up and down.
type Gauge struct {
	name  string
	help  string
	value atomic.Int64
}

// NewGauge creates a gauge.
func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help}
}

func (g *Gauge) Set(value int64)        { g.value.Store(value) }
func (g *Gauge) SetUint64(value uint64) { g.value.Store(int64(value)) }
func (g *Gauge) Add(delta int64)        { g.value.Add(delta) }
func (g *Gauge) Value() int64           { return g.value.Load() }
func (g *Gauge) Name() string           { return g.name }
func (g *Gauge) Help() string           { return g.help }
func (g *Gauge) Type() MetricType       { return TypeGauge }

// DefaultHistogramBuckets are latency buckets in seconds.
var DefaultHistogramBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0,
}

// Histogram counts observations into buckets.
type Histogram struct {
	mu      sync.RWMutex
	name    string
	help    string
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

// NewHistogram creates a histogram. Nil buckets select
// DefaultHistogramBuckets.
func NewHistogram(name, help string, buckets []float64) *Histogram {
	if len(buckets) == 0 {
		buckets = DefaultHistogramBuckets
	}
	sorted := append([]float64(nil), buckets...)
	sort.Float64s(sorted)
	return &Histogram{name: name, help: help, buckets: sorted, counts: make([]uint64, len(sorted))}
}

// Observe records value. Bucket counts are cumulative.
func (h *Histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += value
	h.count++
	for i, upper := range h.buckets {
		if value <= upper {
			h.counts[i]++
		}
	}
}

// ObserveDuration records d in seconds.
func (h *Histogram) ObserveDuration(d time.Duration) {
	h.Observe(d.Seconds())
}

func (h *Histogram) Name() string     { return h.name }
func (h *Histogram) Help() string     { return h.help }
func (h *Histogram) Type() MetricType { return TypeHistogram }

// HistogramSnapshot is a point-in-time copy of a histogram.
type HistogramSnapshot struct {
	Buckets []HistogramBucket
	Sum     float64
	Count   uint64
}

// HistogramBucket is one cumulative bucket.
type HistogramBucket struct {
	UpperBound float64
	Count      uint64
}

// Snapshot copies the histogram's state.
func (h *Histogram) Snapshot() HistogramSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	snap := HistogramSnapshot{Buckets: make([]HistogramBucket, len(h.buckets)), Sum: h.sum, Count: h.count}
	for i, upper := range h.buckets {
		snap.Buckets[i] = HistogramBucket{UpperBound: upper, Count: h.counts[i]}
	}
	return snap
}

// Metrics holds the ledger node's metrics.
type Metrics struct {
	mu      sync.RWMutex
	metrics map[string]Metric

	TransactionsProcessed *Counter
	TransactionsFailed    *Counter
	Instructions          *Counter
	ComputeUnits          *Counter
	NFTsMinted            *Counter
	NFTTransfers          *Counter
	Airdrops              *Counter

	CurrentSlot   *Gauge
	AccountsCount *Gauge
	MemoryBytes   *Gauge
	Goroutines    *Gauge

	TransactionDuration *Histogram
}

// NewMetrics creates and registers the node metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		metrics: make(map[string]Metric),

		TransactionsProcessed: NewCounter("ainft_transactions_processed_total", "Transactions executed, successful or not"),
		TransactionsFailed:    NewCounter("ainft_transactions_failed_total", "Transactions that failed and were rolled back"),
		Instructions:          NewCounter("ainft_instructions_total", "Top-level instructions in committed transactions"),
		ComputeUnits:          NewCounter("ainft_compute_units_total", "Compute units consumed by executed transactions"),
		NFTsMinted:            NewCounter("ainft_nfts_minted_total", "Committed AI-NFT Mint instructions"),
		NFTTransfers:          NewCounter("ainft_nft_transfers_total", "Committed AI-NFT Transfer instructions"),
		Airdrops:              NewCounter("ainft_airdrops_total", "Faucet airdrops"),

		CurrentSlot:   NewGauge("ainft_current_slot", "Current ledger slot"),
		AccountsCount: NewGauge("ainft_accounts_count", "Accounts in the accounts database"),
		MemoryBytes:   NewGauge("ainft_memory_bytes", "Heap allocation in bytes"),
		Goroutines:    NewGauge("ainft_goroutines", "Number of goroutines"),

		TransactionDuration: NewHistogram("ainft_transaction_duration_seconds", "Transaction execution time in seconds", nil),
	}
	for _, metric := range []Metric{
		m.TransactionsProcessed, m.TransactionsFailed, m.Instructions, m.ComputeUnits,
		m.NFTsMinted, m.NFTTransfers, m.Airdrops,
		m.CurrentSlot, m.AccountsCount, m.MemoryBytes, m.Goroutines,
		m.TransactionDuration,
	} {
		m.Register(metric)
	}
	return m
}

// Register adds metric to the exposition.
func (m *Metrics) Register(metric Metric) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics[metric.Name()] = metric
}

// Get returns the metric called name, or nil.
func (m *Metrics) Get(name string) Metric {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics[name]
}

// RecordTransaction records one executed transaction.
func (m *Metrics) RecordTransaction(success bool, instructions int, computeUnits uint64, d time.Duration) {
	m.TransactionsProcessed.Inc()
	m.ComputeUnits.Add(computeUnits)
	m.TransactionDuration.ObserveDuration(d)
	if !success {
		m.TransactionsFailed.Inc()
		return
	}
	m.Instructions.Add(uint64(instructions))
}

// Format renders every metric in the Prometheus text format, sorted by
// name.
func (m *Metrics) Format() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.metrics))
	for name := range m.metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		writeMetric(&sb, m.metrics[name])
		sb.WriteString("\n")
	}
	return sb.String()
}

func writeMetric(sb *strings.Builder, metric Metric) {
	fmt.Fprintf(sb, "# HELP %s %s\n", metric.Name(), metric.Help())
	fmt.Fprintf(sb, "# TYPE %s %s\n", metric.Name(), metric.Type())

	switch m := metric.(type) {
	case *Counter:
		fmt.Fprintf(sb, "%s %d\n", m.Name(), m.Value())
	case *Gauge:
		fmt.Fprintf(sb, "%s %d\n", m.Name(), m.Value())
	case *Histogram:
		snap := m.Snapshot()
		for _, b := range snap.Buckets {
			fmt.Fprintf(sb, "%s_bucket{le=\"%g\"} %d\n", m.Name(), b.UpperBound, b.Count)
		}
		fmt.Fprintf(sb, "%s_bucket{le=\"+Inf\"} %d\n", m.Name(), snap.Count)
		fmt.Fprintf(sb, "%s_sum %.6f\n", m.Name(), snap.Sum)
		fmt.Fprintf(sb, "%s_count %d\n", m.Name(), snap.Count)
	}
}
