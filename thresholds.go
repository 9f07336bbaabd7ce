package photonoise

import (
	"fmt"
	"math"
	"strings"
)

// QualityThresholds bounds the statistics a sample must satisfy to count as healthy.
type QualityThresholds struct {
	MaxBitBias         float64
	MinVariance        float64
	MaxAutocorrelation float64
}

// DefaultThresholds tolerates 5% bias, requires variance of at least 500 and autocorrelation of at most 0.3.
func DefaultThresholds() QualityThresholds {
	return QualityThresholds{
		MaxBitBias:         0.05,
		MinVariance:        500,
		MaxAutocorrelation: 0.3,
	}
}

func ConservativeThresholds() QualityThresholds {
	return QualityThresholds{
		MaxBitBias:         0.02,
		MinVariance:        1000,
		MaxAutocorrelation: 0.1,
	}
}

// PermissiveThresholds is meant for bootstrapping and tests, never for production.
func PermissiveThresholds() QualityThresholds {
	return QualityThresholds{
		MaxBitBias:         0.2,
		MinVariance:        100,
		MaxAutocorrelation: 0.5,
	}
}

// ParseThresholdPreset resolves "default", "conservative" or "permissive".
func ParseThresholdPreset(name string) (QualityThresholds, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return DefaultThresholds(), nil
	case "conservative":
		return ConservativeThresholds(), nil
	case "permissive":
		return PermissiveThresholds(), nil
	default:
		return QualityThresholds{}, fmt.Errorf("unknown threshold preset %q", name)
	}
}

// Validate rejects negative or NaN bounds.
func (q QualityThresholds) Validate() error {
	bounds := []struct {
		name  string
		value float64
	}{
		{"max bit bias", q.MaxBitBias},
		{"min variance", q.MinVariance},
		{"max autocorrelation", q.MaxAutocorrelation},
	}

	for _, b := range bounds {
		if math.IsNaN(b.value) || b.value < 0 {
			return fmt.Errorf("invalid %s: %v", b.name, b.value)
		}
	}

	return nil
}

// Check returns nil if stats are within bounds, otherwise a *ThresholdViolation for the
// first violated bound in the order bias, variance, autocorrelation.
func (q QualityThresholds) Check(stats StatisticalTests) error {
	if math.Abs(stats.BitBias) > q.MaxBitBias {
		return &ThresholdViolation{
			Kind:      ViolationBitBias,
			Observed:  stats.BitBias,
			Threshold: q.MaxBitBias,
		}
	}

	if stats.Variance < q.MinVariance {
		return &ThresholdViolation{
			Kind:      ViolationLowVariance,
			Observed:  stats.Variance,
			Threshold: q.MinVariance,
		}
	}

	if math.Abs(stats.Autocorrelation) > q.MaxAutocorrelation {
		return &ThresholdViolation{
			Kind:      ViolationHighAutocorrelation,
			Observed:  stats.Autocorrelation,
			Threshold: q.MaxAutocorrelation,
		}
	}

	return nil
}

type ViolationKind int

const (
	ViolationBitBias ViolationKind = iota + 1
	ViolationLowVariance
	ViolationHighAutocorrelation
)

func (k ViolationKind) String() string {
	switch k {
	case ViolationBitBias:
		return "bit_bias"
	case ViolationLowVariance:
		return "low_variance"
	case ViolationHighAutocorrelation:
		return "high_autocorrelation"
	default:
		return fmt.Sprintf("violation(%d)", int(k))
	}
}

// ThresholdViolation is the typed outcome of a failed quality check.
type ThresholdViolation struct {
	Kind      ViolationKind
	Observed  float64
	Threshold float64
}

func (v *ThresholdViolation) Error() string {
	switch v.Kind {
	case ViolationBitBias:
		return fmt.Sprintf("bit bias %.4f exceeds threshold %.4f", v.Observed, v.Threshold)
	case ViolationLowVariance:
		return fmt.Sprintf("variance %.2f below threshold %.2f", v.Observed, v.Threshold)
	case ViolationHighAutocorrelation:
		return fmt.Sprintf("autocorrelation %.4f exceeds threshold %.4f", v.Observed, v.Threshold)
	default:
		return fmt.Sprintf("%s: observed %v, threshold %v", v.Kind, v.Observed, v.Threshold)
	}
}
