package photonoise

import (
	"log/slog"
	"sync"

	"github.com/safing/structures/container"
)

const (
	DefaultPoolMinBits  = 512
	DefaultPoolMaxBytes = 64 * 1024
)

// EntropyPool accumulates raw bytes across extraction cycles until enough bits are
// available, then conditions them into a seed and starts over.
type EntropyPool struct {
	mu sync.Mutex

	buffer   *container.Container
	chunks   [][]byte
	minBits  int
	maxBytes int

	conditioner Conditioner
	log         *slog.Logger

	contributions    uint64
	totalBitsAdded   uint64
	totalExtractions uint64
}

// NewEntropyPool honours WithPoolMinBits, WithPoolMaxBytes, WithHashAlgorithm and WithLogger.
func NewEntropyPool(opts ...Option) *EntropyPool {
	o := newOptions(opts)

	return &EntropyPool{
		buffer:      container.New(),
		minBits:     o.poolMinBits,
		maxBytes:    max(o.poolMaxBytes, 0),
		conditioner: NewConditioner(o.algorithm),
		log:         o.logger,
	}
}

// Add appends raw up to the remaining capacity. Bytes beyond maxBytes are dropped.
func (p *EntropyPool) Add(raw RawBits) {
	p.mu.Lock()
	defer p.mu.Unlock()

	remaining := max(p.maxBytes-p.buffer.Length(), 0)
	n := min(raw.Len(), remaining)

	if n > 0 {
		chunk := make([]byte, n)

		copy(chunk, raw.Bytes())

		p.buffer.Append(chunk)
		p.chunks = append(p.chunks, chunk)
		p.contributions++
	}

	p.totalBitsAdded += uint64(n) * 8

	p.log.Debug("added entropy to pool", "bytes_added", n, "dropped", raw.Len()-n, "pool_size", p.buffer.Length())
}

// IsReady reports whether the pool holds at least minBits.
func (p *EntropyPool) IsReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.readyLocked()
}

// Extract conditions the whole pool into a seed and empties it. It returns false and
// leaves the pool untouched if not enough bits have been gathered.
func (p *EntropyPool) Extract() (ConditionedSeed, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.readyLocked() {
		p.log.Debug("pool not ready for extraction", "pool_bits", p.buffer.Length()*8, "min_bits", p.minBits)

		return ConditionedSeed{}, false
	}

	data := p.buffer.CompileData()
	seed := p.conditioner.Condition(rawBitsOwning(data, p.contributions))

	clear(data)
	p.resetLocked()

	p.totalExtractions++

	p.log.Debug("extracted conditioned entropy", "extraction", p.totalExtractions, "entropy_estimate", seed.EntropyEstimate())

	return seed, true
}

// Clear discards pooled bytes without conditioning them.
func (p *EntropyPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.resetLocked()

	p.log.Info("entropy pool cleared")
}

func (p *EntropyPool) SizeBytes() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.buffer.Length()
}

func (p *EntropyPool) SizeBits() int {
	return p.SizeBytes() * 8
}

// TotalBitsAdded returns the lifetime number of bits appended, excluding dropped overflow.
func (p *EntropyPool) TotalBitsAdded() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.totalBitsAdded
}

func (p *EntropyPool) TotalExtractions() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.totalExtractions
}

// resetLocked wipes every stored chunk and starts a fresh container.
// CompileData copies once more than one chunk is held, so wiping its result is not enough.
func (p *EntropyPool) resetLocked() {
	for _, chunk := range p.chunks {
		clear(chunk)
	}

	p.chunks = nil
	p.buffer = container.New()
	p.contributions = 0
}

func (p *EntropyPool) readyLocked() bool {
	return p.buffer.Length()*8 >= p.minBits
}
