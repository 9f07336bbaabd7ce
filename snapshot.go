package photonoise

// Snapshot is a read-only view of pipeline state for periodic polling by exporters.
type Snapshot struct {
	Healthy              bool
	ConsecutiveHealthy   uint64
	ConsecutiveUnhealthy uint64
	TotalSamples         uint64

	HasStats        bool
	BitBias         float64
	Variance        float64
	Autocorrelation float64
	LastViolation   string

	EntropyPerBit   float64
	EstimateSettled bool

	ReseedCount      uint64
	BytesSinceReseed uint64

	PoolSizeBytes      int
	PoolTotalBitsAdded uint64
	PoolExtractions    uint64
}

// Snapshot collects a consistent view between two steps.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	health := p.monitor.Metrics()

	s := Snapshot{
		Healthy:              health.Healthy,
		ConsecutiveHealthy:   health.ConsecutiveHealthy,
		ConsecutiveUnhealthy: health.ConsecutiveUnhealthy,
		TotalSamples:         health.TotalSamples,

		EntropyPerBit:   p.estimator.EstimatedEntropy(),
		EstimateSettled: p.estimator.Settled(),

		ReseedCount:      p.generator.ReseedCount(),
		BytesSinceReseed: p.generator.BytesSinceReseed(),

		PoolSizeBytes:      p.pool.SizeBytes(),
		PoolTotalBitsAdded: p.pool.TotalBitsAdded(),
		PoolExtractions:    p.pool.TotalExtractions(),
	}

	if health.LatestStats != nil {
		s.HasStats = true
		s.BitBias = health.LatestStats.BitBias
		s.Variance = health.LatestStats.Variance
		s.Autocorrelation = health.LatestStats.Autocorrelation
	}

	if health.LastViolation != nil {
		s.LastViolation = health.LastViolation.Kind.String()
	}

	return s
}
