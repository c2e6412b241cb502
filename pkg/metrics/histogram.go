package metrics

import (
	"math"
	"sort"
	"sync"
)

// Histogram tracks a value distribution across fixed buckets. Safe for
// concurrent use.
type Histogram struct {
	mu      sync.RWMutex
	bounds  []float64 // upper bounds, ascending
	counts  []uint64  // per-bucket counts, last entry is overflow
	sum     float64
	count   uint64
	minimum float64
	maximum float64
}

// NewHistogram creates a histogram with the given upper bounds. The bounds
// are copied and sorted.
func NewHistogram(bounds []float64) *Histogram {
	b := make([]float64, len(bounds))
	copy(b, bounds)
	sort.Float64s(b)
	return &Histogram{
		bounds:  b,
		counts:  make([]uint64, len(b)+1),
		minimum: math.MaxFloat64,
		maximum: -math.MaxFloat64,
	}
}

// Observe records one value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.counts[sort.SearchFloat64s(h.bounds, v)]++
	h.sum += v
	h.count++
	if v < h.minimum {
		h.minimum = v
	}
	if v > h.maximum {
		h.maximum = v
	}
}

// BucketCount is one cumulative bucket of a summary.
type BucketCount struct {
	UpperBound float64 `json:"le"`
	Count      uint64  `json:"count"`
}

// HistogramSummary is a point-in-time view of a histogram.
type HistogramSummary struct {
	Count   uint64        `json:"count"`
	Sum     float64       `json:"sum"`
	Min     float64       `json:"min"`
	Max     float64       `json:"max"`
	Mean    float64       `json:"mean"`
	Buckets []BucketCount `json:"buckets"`
}

// Summary returns the cumulative bucket counts and basic statistics.
func (h *Histogram) Summary() HistogramSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.count == 0 {
		return HistogramSummary{Buckets: []BucketCount{}}
	}

	buckets := make([]BucketCount, len(h.bounds)+1)
	var cumulative uint64
	for i, bound := range h.bounds {
		cumulative += h.counts[i]
		buckets[i] = BucketCount{UpperBound: bound, Count: cumulative}
	}
	cumulative += h.counts[len(h.bounds)]
	buckets[len(h.bounds)] = BucketCount{UpperBound: math.Inf(1), Count: cumulative}

	return HistogramSummary{
		Count:   h.count,
		Sum:     h.sum,
		Min:     h.minimum,
		Max:     h.maximum,
		Mean:    h.sum / float64(h.count),
		Buckets: buckets,
	}
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Reset clears all recorded data.
func (h *Histogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.counts {
		h.counts[i] = 0
	}
	h.sum = 0
	h.count = 0
	h.minimum = math.MaxFloat64
	h.maximum = -math.MaxFloat64
}
