package photonoise

import (
	"fmt"
	"math/bits"
)

// RawBits is an immutable buffer of decorrelated but unconditioned bytes.
type RawBits struct {
	data         []byte
	sourceFrames uint64
}

// NewRawBits copies data into a new RawBits tagged with its provenance.
func NewRawBits(data []byte, sourceFrames uint64) RawBits {
	return RawBits{
		data:         append([]byte(nil), data...),
		sourceFrames: sourceFrames,
	}
}

// rawBitsOwning wraps data without copying; the caller must not retain data.
func rawBitsOwning(data []byte, sourceFrames uint64) RawBits {
	return RawBits{
		data:         data,
		sourceFrames: sourceFrames,
	}
}

// Bytes returns the underlying buffer. Callers must treat it as read-only.
func (r RawBits) Bytes() []byte {
	return r.data
}

func (r RawBits) Len() int {
	return len(r.data)
}

func (r RawBits) BitCount() int {
	return len(r.data) * 8
}

// SourceFrames returns the provenance tag: the frame sequence number for extractor
// output, or the number of contributing samples for pooled data.
func (r RawBits) SourceFrames() uint64 {
	return r.sourceFrames
}

// Popcount returns the number of set bits.
func (r RawBits) Popcount() int {
	var ones int

	for _, b := range r.data {
		ones += bits.OnesCount8(b)
	}

	return ones
}

// BitBias returns the fraction of set bits minus 0.5, in [-0.5, 0.5]. Empty buffers have no bias.
func (r RawBits) BitBias() float64 {
	if len(r.data) == 0 {
		return 0
	}

	return float64(r.Popcount())/float64(r.BitCount()) - 0.5
}

func (r RawBits) String() string {
	return fmt.Sprintf("RawBits{bytes=%d source_frames=%d bit_bias=%.4f}", len(r.data), r.sourceFrames, r.BitBias())
}
