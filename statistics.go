package photonoise

import "math"

// StatisticalTests is a snapshot of sanity statistics over one RawBits buffer.
// Passing them is necessary but not sufficient for good entropy.
type StatisticalTests struct {
	BitBias         float64
	Variance        float64
	Autocorrelation float64
	SampleSize      int
}

// Analyze computes bit bias, byte variance and lag-1 autocorrelation of raw.
func Analyze(raw RawBits) StatisticalTests {
	data := raw.Bytes()
	mean := byteMean(data)

	return StatisticalTests{
		BitBias:         raw.BitBias(),
		Variance:        byteVariance(data, mean),
		Autocorrelation: autocorrelation(data, mean),
		SampleSize:      len(data),
	}
}

// LooksReasonable applies loose fixed bounds, independent of any configured thresholds.
func (s StatisticalTests) LooksReasonable() bool {
	return math.Abs(s.BitBias) < 0.1 &&
		s.Variance > 100 &&
		math.Abs(s.Autocorrelation) < 0.5
}

func byteMean(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}

	var sum float64

	for _, b := range data {
		sum += float64(b)
	}

	return sum / float64(len(data))
}

// byteVariance is the population variance.
func byteVariance(data []byte, mean float64) float64 {
	if len(data) == 0 {
		return 0
	}

	return sumSquares(data, mean) / float64(len(data))
}

// autocorrelation is 1 for constant data and 0 for fewer than two bytes.
func autocorrelation(data []byte, mean float64) float64 {
	if len(data) < 2 {
		return 0
	}

	ss := sumSquares(data, mean)
	if ss == 0 {
		return 1
	}

	var cov float64

	for i := 0; i < len(data)-1; i++ {
		cov += (float64(data[i]) - mean) * (float64(data[i+1]) - mean)
	}

	return cov / ss
}

func sumSquares(data []byte, mean float64) float64 {
	var ss float64

	for _, b := range data {
		d := float64(b) - mean

		ss += d * d
	}

	return ss
}
