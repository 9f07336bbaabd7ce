// Package config loads photonoise settings from an optional YAML file and
// PHOTONOISE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/coalaura/photonoise"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "PHOTONOISE_"

// Sample sources.
const (
	SourceMock   = "mock"
	SourceFile   = "file"
	SourceDevice = "device"
)

// Config is the complete process configuration.
type Config struct {
	Capture    Capture    `yaml:"capture" envPrefix:"CAPTURE_"`
	Extraction Extraction `yaml:"extraction" envPrefix:"EXTRACTION_"`
	Health     Health     `yaml:"health" envPrefix:"HEALTH_"`
	Pool       Pool       `yaml:"pool" envPrefix:"POOL_"`
	Reseed     Reseed     `yaml:"reseed" envPrefix:"RESEED_"`
	Metrics    Metrics    `yaml:"metrics" envPrefix:"METRICS_"`
	Output     Output     `yaml:"output" envPrefix:"OUTPUT_"`
}

// Capture selects and configures the sample source.
type Capture struct {
	Source         string        `yaml:"source" env:"SOURCE"` // mock, file, device
	Device         string        `yaml:"device" env:"DEVICE"`
	Input          string        `yaml:"input" env:"INPUT"` // raw frame file for the file source
	MockSeed       uint64        `yaml:"mock_seed" env:"MOCK_SEED"`
	Width          int           `yaml:"width" env:"WIDTH"`
	Height         int           `yaml:"height" env:"HEIGHT"`
	ExposureMicros int           `yaml:"exposure_us" env:"EXPOSURE_US"`
	Gain           int           `yaml:"gain" env:"GAIN"`
	FPS            int           `yaml:"fps" env:"FPS"`
	Grayscale      bool          `yaml:"grayscale" env:"GRAYSCALE"`
	Interval       time.Duration `yaml:"interval" env:"INTERVAL"` // minimum pause between captures
}

type Extraction struct {
	Stride int `yaml:"stride" env:"STRIDE"`
}

// Health picks a threshold preset and optionally overrides single bounds.
// A zero bound keeps the preset's value.
type Health struct {
	Preset             string  `yaml:"preset" env:"PRESET"` // default, conservative, permissive
	MaxBitBias         float64 `yaml:"max_bit_bias" env:"MAX_BIT_BIAS"`
	MinVariance        float64 `yaml:"min_variance" env:"MIN_VARIANCE"`
	MaxAutocorrelation float64 `yaml:"max_autocorrelation" env:"MAX_AUTOCORRELATION"`
	HealthyStreak      uint64  `yaml:"healthy_streak" env:"HEALTHY_STREAK"`
	EstimatorWindow    uint64  `yaml:"estimator_window" env:"ESTIMATOR_WINDOW"`
}

type Pool struct {
	MinBits  int    `yaml:"min_bits" env:"MIN_BITS"`
	MaxBytes int    `yaml:"max_bytes" env:"MAX_BYTES"`
	Hash     string `yaml:"hash" env:"HASH"` // blake3, sha256, cshake256
}

type Reseed struct {
	MinEntropyBits int `yaml:"min_entropy_bits" env:"MIN_ENTROPY_BITS"`
}

type Metrics struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Addr    string `yaml:"addr" env:"ADDR"`
}

type Output struct {
	Frames      int `yaml:"frames" env:"FRAMES"` // 0 runs until stopped
	SampleBytes int `yaml:"sample_bytes" env:"SAMPLE_BYTES"`
}

// Default returns the built-in configuration.
func Default() *Config {
	capture := photonoise.DefaultCaptureConfig()

	return &Config{
		Capture: Capture{
			Source:         SourceMock,
			Device:         capture.Device,
			Width:          capture.Width,
			Height:         capture.Height,
			ExposureMicros: capture.ExposureMicros,
			Gain:           capture.Gain,
			FPS:            capture.FPS,
			Grayscale:      capture.Grayscale,
		},
		Extraction: Extraction{
			Stride: photonoise.DefaultStride,
		},
		Health: Health{
			Preset:          "default",
			HealthyStreak:   photonoise.DefaultHealthyStreak,
			EstimatorWindow: photonoise.DefaultEstimatorWindow,
		},
		Pool: Pool{
			// one credited bit per pooled byte, so every seed can meet the reseed minimum
			MinBits:  photonoise.DefaultMinReseedEntropy * 8,
			MaxBytes: photonoise.DefaultPoolMaxBytes,
			Hash:     photonoise.HashBLAKE3.String(),
		},
		Reseed: Reseed{
			MinEntropyBits: photonoise.DefaultMinReseedEntropy,
		},
		Metrics: Metrics{
			Addr: "127.0.0.1:9464",
		},
		Output: Output{
			SampleBytes: 32,
		},
	}
}

// Load applies, in order, the defaults, the YAML file at path (skipped when path is
// empty) and the environment, then validates the result.
func Load(path string) (*Config, error) {
	return load(path, nil)
}

// load reads overrides from environ instead of the process environment when it is non-nil.
func load(path string, environ map[string]string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		err = yaml.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	opts := env.Options{
		Prefix:      EnvPrefix,
		Environment: environ,
	}

	err := env.ParseWithOptions(cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate reports every problem at once as a *multierror.Error.
func (c *Config) Validate() error {
	var errs *multierror.Error

	switch c.Capture.Source {
	case SourceMock, SourceDevice:
	case SourceFile:
		if c.Capture.Input == "" {
			errs = multierror.Append(errs, errors.New("capture: file source requires an input path"))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("capture: unknown source %q", c.Capture.Source))
	}

	err := c.CaptureConfig().Validate()
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("capture: %w", err))
	}

	if c.Capture.Interval < 0 {
		errs = multierror.Append(errs, fmt.Errorf("capture: negative interval %s", c.Capture.Interval))
	}

	if c.Extraction.Stride < 1 {
		errs = multierror.Append(errs, fmt.Errorf("extraction: stride must be at least 1, got %d", c.Extraction.Stride))
	}

	_, err = c.Thresholds()
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("health: %w", err))
	}

	if c.Health.HealthyStreak < 1 {
		errs = multierror.Append(errs, errors.New("health: healthy_streak must be at least 1"))
	}

	if c.Pool.MinBits <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("pool: min_bits must be positive, got %d", c.Pool.MinBits))
	}

	if c.Pool.MaxBytes <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("pool: max_bytes must be positive, got %d", c.Pool.MaxBytes))
	} else if c.Pool.MaxBytes*8 < c.Pool.MinBits {
		errs = multierror.Append(errs, fmt.Errorf("pool: max_bytes %d can never hold min_bits %d", c.Pool.MaxBytes, c.Pool.MinBits))
	}

	_, err = photonoise.ParseHashAlgorithm(c.Pool.Hash)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("pool: %w", err))
	}

	if c.Reseed.MinEntropyBits < 0 || c.Reseed.MinEntropyBits > photonoise.SeedSize*8 {
		errs = multierror.Append(errs, fmt.Errorf("reseed: min_entropy_bits must be within 0-%d, got %d", photonoise.SeedSize*8, c.Reseed.MinEntropyBits))
	} else if credit := min(c.Pool.MinBits/8, photonoise.SeedSize*8); c.Pool.MinBits > 0 && credit < c.Reseed.MinEntropyBits {
		errs = multierror.Append(errs, fmt.Errorf("reseed: a pool of min_bits %d yields seeds credited with %d bits, below min_entropy_bits %d", c.Pool.MinBits, credit, c.Reseed.MinEntropyBits))
	}

	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Addr) == "" {
		errs = multierror.Append(errs, errors.New("metrics: enabled without an addr"))
	}

	if c.Output.Frames < 0 {
		errs = multierror.Append(errs, fmt.Errorf("output: frames must not be negative, got %d", c.Output.Frames))
	}

	if c.Output.SampleBytes <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("output: sample_bytes must be positive, got %d", c.Output.SampleBytes))
	}

	return errs.ErrorOrNil()
}

// CaptureConfig converts the capture section.
func (c *Config) CaptureConfig() photonoise.CaptureConfig {
	return photonoise.CaptureConfig{
		Device:         c.Capture.Device,
		Width:          c.Capture.Width,
		Height:         c.Capture.Height,
		ExposureMicros: c.Capture.ExposureMicros,
		Gain:           c.Capture.Gain,
		FPS:            c.Capture.FPS,
		Grayscale:      c.Capture.Grayscale,
	}
}

// Thresholds resolves the preset and applies per-bound overrides.
func (c *Config) Thresholds() (photonoise.QualityThresholds, error) {
	t, err := photonoise.ParseThresholdPreset(c.Health.Preset)
	if err != nil {
		return t, err
	}

	if c.Health.MaxBitBias != 0 {
		t.MaxBitBias = c.Health.MaxBitBias
	}

	if c.Health.MinVariance != 0 {
		t.MinVariance = c.Health.MinVariance
	}

	if c.Health.MaxAutocorrelation != 0 {
		t.MaxAutocorrelation = c.Health.MaxAutocorrelation
	}

	return t, t.Validate()
}

// PipelineOptions converts everything the pipeline components need.
func (c *Config) PipelineOptions(logger *slog.Logger) ([]photonoise.Option, error) {
	thresholds, err := c.Thresholds()
	if err != nil {
		return nil, err
	}

	alg, err := photonoise.ParseHashAlgorithm(c.Pool.Hash)
	if err != nil {
		return nil, err
	}

	return []photonoise.Option{
		photonoise.WithLogger(logger),
		photonoise.WithStride(c.Extraction.Stride),
		photonoise.WithThresholds(thresholds),
		photonoise.WithHealthyStreak(c.Health.HealthyStreak),
		photonoise.WithEstimatorWindow(c.Health.EstimatorWindow),
		photonoise.WithPoolMinBits(c.Pool.MinBits),
		photonoise.WithPoolMaxBytes(c.Pool.MaxBytes),
		photonoise.WithHashAlgorithm(alg),
		photonoise.WithCaptureInterval(c.Capture.Interval),
	}, nil
}

// GeneratorOptions converts the reseed section.
func (c *Config) GeneratorOptions(logger *slog.Logger) []photonoise.Option {
	return []photonoise.Option{
		photonoise.WithLogger(logger),
		photonoise.WithMinReseedEntropy(c.Reseed.MinEntropyBits),
	}
}
