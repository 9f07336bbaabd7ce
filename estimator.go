package photonoise

import (
	"math"
	"sync"
)

const DefaultEstimatorWindow = 80_000

// EntropyEstimator predicts every bit from the preceding seven bits and accumulates the
// surprisal of what was actually observed. The running average approximates the entropy
// per bit of the raw stream. It is informational and never gates reseeding.
type EntropyEstimator struct {
	mu sync.Mutex

	counts  [128][2]uint32
	history uint8

	totalBits  uint64
	window     uint64
	entropySum float64
}

// NewEntropyEstimator returns an estimator that reports Settled after window bits.
func NewEntropyEstimator(window uint64) *EntropyEstimator {
	return &EntropyEstimator{
		window: window,
	}
}

// Add feeds raw bytes, most significant bit first.
func (e *EntropyEstimator) Add(data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	history := e.history

	for _, b := range data {
		for i := range 8 {
			bit := (b >> (7 - i)) & 1

			c0 := float64(e.counts[history][0])
			c1 := float64(e.counts[history][1])

			total := c0 + c1

			if total > 0 {
				prob := c0 / total
				if bit == 1 {
					prob = c1 / total
				}

				if prob > 0 {
					e.entropySum += -math.Log2(prob)
				}
			}

			e.counts[history][bit]++

			// Halve both counters before they can overflow, keeping the ratio.
			if e.counts[history][bit] == math.MaxUint32 {
				e.counts[history][0] >>= 1
				e.counts[history][1] >>= 1
			}

			history = ((history << 1) | bit) & 0x7F

			e.totalBits++
		}
	}

	e.history = history
}

// EstimatedEntropy returns the average surprisal per observed bit, or 0 before any input.
func (e *EntropyEstimator) EstimatedEntropy() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.totalBits == 0 {
		return 0
	}

	return e.entropySum / float64(e.totalBits)
}

// Settled reports whether enough bits have been observed for the estimate to be meaningful.
func (e *EntropyEstimator) Settled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.totalBits >= e.window
}

func (e *EntropyEstimator) TotalBits() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.totalBits
}

func (e *EntropyEstimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.counts = [128][2]uint32{}
	e.history = 0
	e.totalBits = 0
	e.entropySum = 0
}
