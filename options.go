package photonoise

import (
	"log/slog"
	"time"
)

type options struct {
	logger *slog.Logger

	stride int

	thresholds    QualityThresholds
	healthyStreak uint64

	poolMinBits  int
	poolMaxBytes int
	algorithm    HashAlgorithm

	minReseedEntropy int

	estimatorWindow uint64

	captureInterval time.Duration
}

// Option configures pipeline components.
type Option func(*options)

func newOptions(opts []Option) options {
	o := options{
		logger: slog.Default(),

		stride: DefaultStride,

		thresholds:    DefaultThresholds(),
		healthyStreak: DefaultHealthyStreak,

		poolMinBits:  DefaultPoolMinBits,
		poolMaxBytes: DefaultPoolMaxBytes,
		algorithm:    HashBLAKE3,

		minReseedEntropy: DefaultMinReseedEntropy,

		estimatorWindow: DefaultEstimatorWindow,
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// WithLogger sets the structured logger used for state transitions (default slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStride sets the spatial mixing stride (default 1, minimum 1).
func WithStride(stride int) Option {
	return func(o *options) {
		o.stride = stride
	}
}

// WithThresholds overrides the quality bounds checked by the health monitor.
func WithThresholds(t QualityThresholds) Option {
	return func(o *options) {
		o.thresholds = t
	}
}

// WithHealthyStreak sets how many consecutive passing checks are required before reseeding is allowed (default 3, minimum 1).
func WithHealthyStreak(n uint64) Option {
	return func(o *options) {
		o.healthyStreak = max(n, 1)
	}
}

// WithPoolMinBits sets the number of pooled bits required before extraction (default 512).
func WithPoolMinBits(bits int) Option {
	return func(o *options) {
		o.poolMinBits = bits
	}
}

// WithPoolMaxBytes caps the entropy pool buffer (default 64 KiB). Overflow is dropped.
func WithPoolMaxBytes(n int) Option {
	return func(o *options) {
		o.poolMaxBytes = n
	}
}

// WithHashAlgorithm selects the conditioning hash (default BLAKE3).
func WithHashAlgorithm(alg HashAlgorithm) Option {
	return func(o *options) {
		o.algorithm = alg
	}
}

// WithMinReseedEntropy sets the entropy estimate a seed must carry to be accepted (default 128 bits).
func WithMinReseedEntropy(bits int) Option {
	return func(o *options) {
		o.minReseedEntropy = bits
	}
}

// WithEstimatorWindow sets the number of bits the entropy estimator observes before its estimate is considered settled (default 80,000).
func WithEstimatorWindow(bits uint64) Option {
	return func(o *options) {
		o.estimatorWindow = bits
	}
}

// WithCaptureInterval makes Pipeline.Run wait at least d between captures (default 0, no pacing).
func WithCaptureInterval(d time.Duration) Option {
	return func(o *options) {
		o.captureInterval = max(d, 0)
	}
}
