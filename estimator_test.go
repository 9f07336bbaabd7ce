package photonoise

import "testing"

func TestEntropyEstimatorRandom(t *testing.T) {
	e := NewEntropyEstimator(DefaultEstimatorWindow)

	if e.EstimatedEntropy() != 0 || e.Settled() {
		t.Fatal("estimate before input")
	}

	e.Add(randomBytes(7, 10_000))

	if e.TotalBits() != 80_000 || !e.Settled() {
		t.Fatalf("total bits %d, settled %v", e.TotalBits(), e.Settled())
	}

	got := e.EstimatedEntropy()
	if got < 0.9 || got > 1.1 {
		t.Fatalf("random input estimated at %.4f bits per bit", got)
	}
}

func TestEntropyEstimatorPredictable(t *testing.T) {
	for _, b := range []byte{0x00, 0xFF, 0x55} {
		e := NewEntropyEstimator(DefaultEstimatorWindow)

		e.Add(constantBytes(b, 1000))

		if got := e.EstimatedEntropy(); got > 0.01 {
			t.Fatalf("0x%02x repeated estimated at %.4f bits per bit", b, got)
		}
	}
}

func TestEntropyEstimatorIncremental(t *testing.T) {
	data := randomBytes(8, 2000)

	whole := NewEntropyEstimator(0)
	whole.Add(data)

	parts := NewEntropyEstimator(0)
	parts.Add(data[:777])
	parts.Add(data[777:])

	if whole.EstimatedEntropy() != parts.EstimatedEntropy() {
		t.Fatalf("split input changed the estimate: %v vs %v", whole.EstimatedEntropy(), parts.EstimatedEntropy())
	}
}

func TestEntropyEstimatorReset(t *testing.T) {
	e := NewEntropyEstimator(8)

	e.Add([]byte{0x12})

	if !e.Settled() {
		t.Fatal("window of 8 bits not settled after one byte")
	}

	e.Reset()

	if e.TotalBits() != 0 || e.EstimatedEntropy() != 0 || e.Settled() {
		t.Fatal("state survived reset")
	}
}
