// Package metrics exposes pipeline state in the Prometheus text format.
package metrics

import (
	"fmt"
	"io"
	"sync"

	vm "github.com/VictoriaMetrics/metrics"

	"github.com/coalaura/photonoise"
)

// Source is polled on every scrape. *photonoise.Pipeline implements it.
type Source interface {
	Snapshot() photonoise.Snapshot
	AllowReseed() bool
}

// Exporter renders callback gauges over one Snapshot taken per scrape.
type Exporter struct {
	mu sync.Mutex

	source  Source
	set     *vm.Set
	current photonoise.Snapshot

	runID   string
	process bool
}

type ExporterOption func(*Exporter)

// WithRunID adds a photonoise_run_info{run_id="..."} gauge.
func WithRunID(id string) ExporterOption {
	return func(e *Exporter) {
		e.runID = id
	}
}

// WithProcessMetrics appends Go runtime and process metrics to every scrape.
func WithProcessMetrics() ExporterOption {
	return func(e *Exporter) {
		e.process = true
	}
}

func NewExporter(source Source, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		source: source,
		set:    vm.NewSet(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.register()

	return e
}

func (e *Exporter) register() {
	e.gauge("photonoise_health_status", func(s photonoise.Snapshot) float64 {
		return boolValue(s.Healthy)
	})
	e.gauge("photonoise_consecutive_healthy", func(s photonoise.Snapshot) float64 {
		return float64(s.ConsecutiveHealthy)
	})
	e.gauge("photonoise_consecutive_unhealthy", func(s photonoise.Snapshot) float64 {
		return float64(s.ConsecutiveUnhealthy)
	})
	e.gauge("photonoise_samples_total", func(s photonoise.Snapshot) float64 {
		return float64(s.TotalSamples)
	})

	e.gauge("photonoise_bit_bias", func(s photonoise.Snapshot) float64 {
		return s.BitBias
	})
	e.gauge("photonoise_byte_variance", func(s photonoise.Snapshot) float64 {
		return s.Variance
	})
	e.gauge("photonoise_autocorrelation", func(s photonoise.Snapshot) float64 {
		return s.Autocorrelation
	})
	e.gauge("photonoise_entropy_per_bit", func(s photonoise.Snapshot) float64 {
		return s.EntropyPerBit
	})
	e.gauge("photonoise_entropy_estimate_settled", func(s photonoise.Snapshot) float64 {
		return boolValue(s.EstimateSettled)
	})

	for _, kind := range []photonoise.ViolationKind{
		photonoise.ViolationBitBias,
		photonoise.ViolationLowVariance,
		photonoise.ViolationHighAutocorrelation,
	} {
		name := kind.String()

		e.gauge(fmt.Sprintf(`photonoise_last_violation{kind=%q}`, name), func(s photonoise.Snapshot) float64 {
			return boolValue(s.LastViolation == name)
		})
	}

	e.gauge("photonoise_reseeds_total", func(s photonoise.Snapshot) float64 {
		return float64(s.ReseedCount)
	})
	e.gauge("photonoise_bytes_since_reseed", func(s photonoise.Snapshot) float64 {
		return float64(s.BytesSinceReseed)
	})

	e.gauge("photonoise_pool_size_bytes", func(s photonoise.Snapshot) float64 {
		return float64(s.PoolSizeBytes)
	})
	e.gauge("photonoise_pool_bits_added_total", func(s photonoise.Snapshot) float64 {
		return float64(s.PoolTotalBitsAdded)
	})
	e.gauge("photonoise_pool_extractions_total", func(s photonoise.Snapshot) float64 {
		return float64(s.PoolExtractions)
	})

	if e.runID != "" {
		e.set.NewGauge(fmt.Sprintf(`photonoise_run_info{run_id=%q}`, e.runID), func() float64 {
			return 1
		})
	}
}

// gauge reads from the snapshot cached by WritePrometheus, which holds e.mu.
func (e *Exporter) gauge(name string, value func(photonoise.Snapshot) float64) {
	e.set.NewGauge(name, func() float64 {
		return value(e.current)
	})
}

// WritePrometheus polls the source once and writes all gauges to w.
func (e *Exporter) WritePrometheus(w io.Writer) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.current = e.source.Snapshot()

	e.set.WritePrometheus(w)

	if e.process {
		vm.WriteProcessMetrics(w)
	}
}

// Ready reports whether the source currently allows reseeding.
func (e *Exporter) Ready() bool {
	return e.source.AllowReseed()
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}

	return 0
}
