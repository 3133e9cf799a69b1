package scrape

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jstevewhite/rsrch/internal/domain"
)

// tierCost is a rough relative cost weight used for the aggregate cost
// counter (observability only, spec §4.5: "not part of correctness").
var tierCost = map[domain.ExtractorTier]float64{
	domain.TierPrimary:   1,
	domain.TierFallback1: 3,
	domain.TierFallback2: 5,
}

// TierMetrics tracks per-tier usage and estimated cost for a run.
type TierMetrics struct {
	Usage prometheus.Counter
	Cost  prometheus.Counter

	mu     sync.Mutex
	counts map[domain.ExtractorTier]int
}

// NewTierMetrics registers scrape-tier counters against reg. A nil reg
// leaves the counters unregistered.
func NewTierMetrics(reg prometheus.Registerer) *TierMetrics {
	usage := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rsrch_scrape_tier_uses_total",
		Help: "Total scrape attempts that resolved at each fallback tier.",
	})
	cost := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rsrch_scrape_estimated_cost_total",
		Help: "Estimated relative cost units spent across scrape tiers.",
	})
	if reg != nil {
		reg.MustRegister(usage, cost)
	}
	return &TierMetrics{Usage: usage, Cost: cost, counts: make(map[domain.ExtractorTier]int)}
}

// Observe records one resolution at tier.
func (m *TierMetrics) Observe(tier domain.ExtractorTier) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.counts[tier]++
	m.mu.Unlock()
	if m.Usage != nil {
		m.Usage.Inc()
	}
	if m.Cost != nil {
		m.Cost.Add(tierCost[tier])
	}
}

// Snapshot returns a copy of per-tier counts, for tests and reporting.
func (m *TierMetrics) Snapshot() map[domain.ExtractorTier]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[domain.ExtractorTier]int, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	return out
}
