package photonoise

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

// StepResult describes what one frame did to the pipeline.
type StepResult struct {
	Extracted bool
	Pooled    bool
	Healthy   bool
	Violation *ThresholdViolation
	Reseeded  bool
	ReseedErr error
}

// RunStats summarises a Run.
type RunStats struct {
	Frames         uint64
	CaptureErrors  uint64
	Extracted      uint64
	Violations     uint64
	Reseeds        uint64
	ReseedFailures uint64
}

// Pipeline drives frames through extraction, health analysis, pooling and reseeding.
// It exclusively owns its extractor, monitor, estimator and pool; every operation is
// serialised by one mutex so capture and scraping may happen on different goroutines.
type Pipeline struct {
	mu sync.Mutex

	extractor *Extractor
	monitor   *HealthMonitor
	estimator *EntropyEstimator
	pool      *EntropyPool
	generator *Generator

	interval time.Duration
	log      *slog.Logger
}

// NewPipeline builds a pipeline that reseeds gen. All options are forwarded to the components.
func NewPipeline(gen *Generator, opts ...Option) *Pipeline {
	o := newOptions(opts)

	return &Pipeline{
		extractor: NewExtractor(opts...),
		monitor:   NewHealthMonitor(opts...),
		estimator: NewEntropyEstimator(o.estimatorWindow),
		pool:      NewEntropyPool(opts...),
		generator: gen,
		interval:  o.captureInterval,
		log:       o.logger,
	}
}

// Step processes one frame. Samples are pooled only while the monitor reports healthy,
// so nothing gathered before a full healthy streak or from a failing sample feeds a seed.
// A reseed happens only while the monitor allows it and the pool is ready.
func (p *Pipeline) Step(frame Frame) StepResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	var res StepResult

	if !frame.Valid() {
		p.log.Warn("skipping malformed frame", "frame", frame.String())

		return res
	}

	raw, ok := p.extractor.Process(frame)
	if !ok {
		return res
	}

	res.Extracted = true

	metrics := p.monitor.Analyze(raw)

	res.Healthy = metrics.Healthy
	res.Violation = metrics.LastViolation

	p.estimator.Add(raw.Bytes())

	switch {
	case metrics.Healthy:
		p.pool.Add(raw)

		res.Pooled = true
	case metrics.LastViolation != nil:
		p.log.Debug("sample rejected", "sequence", frame.Sequence(), "violation", metrics.LastViolation.Error())
	default:
		p.log.Debug("sample not pooled before healthy streak", "sequence", frame.Sequence(), "streak", metrics.ConsecutiveHealthy)
	}

	if !p.monitor.AllowReseed() || !p.pool.IsReady() {
		return res
	}

	seed, ok := p.pool.Extract()
	if !ok {
		return res
	}

	err := p.generator.Reseed(seed)

	seed.wipe()

	if err != nil {
		p.log.Warn("reseed failed", "error", err)

		res.ReseedErr = err

		return res
	}

	res.Reseeded = true

	return res
}

// Run captures from cam (which must already be open) and steps every frame until ctx is
// done, the camera reports io.EOF, or frames captures were attempted (0 means no limit).
// Failed captures are logged and skipped. Stopping through ctx is not an error.
func (p *Pipeline) Run(ctx context.Context, cam Camera, frames int) (RunStats, error) {
	var (
		stats RunStats
		tick  <-chan time.Time
	)

	if p.interval > 0 {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		tick = ticker.C
	}

	for frames <= 0 || stats.Frames+stats.CaptureErrors < uint64(frames) {
		select {
		case <-ctx.Done():
			return stats, nil
		default:
		}

		if tick != nil {
			select {
			case <-tick:
			case <-ctx.Done():
				return stats, nil
			}
		}

		frame, err := cam.Capture()
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.log.Info("sample source exhausted", "frames", stats.Frames)

				return stats, nil
			}

			if errors.Is(err, ErrCameraNotOpen) {
				return stats, err
			}

			stats.CaptureErrors++

			p.log.Warn("frame capture failed", "error", err)

			continue
		}

		stats.Frames++

		res := p.Step(frame)

		if res.Extracted {
			stats.Extracted++
		}

		if res.Violation != nil {
			stats.Violations++
		}

		if res.Reseeded {
			stats.Reseeds++
		}

		if res.ReseedErr != nil {
			stats.ReseedFailures++
		}
	}

	return stats, nil
}

// Reset returns every owned component to its initial state. The generator keeps its state.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.extractor.Reset()
	p.monitor.Reset()
	p.estimator.Reset()
	p.pool.Clear()
}

// AllowReseed reports the health gate without waiting for a running Step.
func (p *Pipeline) AllowReseed() bool {
	return p.monitor.AllowReseed()
}

func (p *Pipeline) Generator() *Generator {
	return p.generator
}
