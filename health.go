package photonoise

import (
	"log/slog"
	"sync"

	"github.com/tevino/abool"
)

const DefaultHealthyStreak = 3

// HealthMetrics is the rolling health state. The zero value is unhealthy.
type HealthMetrics struct {
	LatestStats          *StatisticalTests
	Healthy              bool
	LastViolation        *ThresholdViolation
	ConsecutiveHealthy   uint64
	ConsecutiveUnhealthy uint64
	TotalSamples         uint64
}

// HealthMonitor is a fail-closed hysteresis state machine over quality checks.
// It starts unhealthy, needs a streak of passing checks to become healthy, and
// drops back to unhealthy on the first failing check.
type HealthMonitor struct {
	mu sync.Mutex

	thresholds QualityThresholds
	streak     uint64
	log        *slog.Logger

	metrics HealthMetrics
	healthy *abool.AtomicBool
}

// NewHealthMonitor honours WithThresholds, WithHealthyStreak and WithLogger.
func NewHealthMonitor(opts ...Option) *HealthMonitor {
	o := newOptions(opts)

	return &HealthMonitor{
		thresholds: o.thresholds,
		streak:     max(o.healthyStreak, 1),
		log:        o.logger,
		healthy:    abool.New(),
	}
}

// Analyze runs the statistical tests and threshold check on raw and updates the state.
func (h *HealthMonitor) Analyze(raw RawBits) HealthMetrics {
	stats := Analyze(raw)

	h.mu.Lock()
	defer h.mu.Unlock()

	m := &h.metrics

	m.TotalSamples++
	m.LatestStats = &stats

	err := h.thresholds.Check(stats)
	if err == nil {
		m.ConsecutiveHealthy++
		m.ConsecutiveUnhealthy = 0
		m.LastViolation = nil

		if m.ConsecutiveHealthy >= h.streak {
			if !m.Healthy {
				h.log.Info("entropy source became healthy", "streak", m.ConsecutiveHealthy)
			}

			m.Healthy = true
		}

		h.log.Debug("health check passed",
			"bias", stats.BitBias,
			"variance", stats.Variance,
			"autocorrelation", stats.Autocorrelation,
		)
	} else {
		violation := err.(*ThresholdViolation)

		m.ConsecutiveUnhealthy++
		m.ConsecutiveHealthy = 0
		m.LastViolation = violation

		if m.Healthy {
			h.log.Warn("entropy source became unhealthy", "violation", violation.Error())
		}

		m.Healthy = false
	}

	h.healthy.SetTo(m.Healthy)

	return *m
}

// Metrics returns a copy of the current state.
func (h *HealthMonitor) Metrics() HealthMetrics {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.metrics
}

// AllowReseed reports the current health. It is the only gate consulted before reseeding
// and is safe to poll concurrently with Analyze.
func (h *HealthMonitor) AllowReseed() bool {
	return h.healthy.IsSet()
}

// Reset restores the initial unhealthy state with zeroed counters.
func (h *HealthMonitor) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.metrics = HealthMetrics{}
	h.healthy.UnSet()

	h.log.Info("health monitor reset")
}
