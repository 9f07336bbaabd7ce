package photonoise

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync"
)

// Camera is the capability set the pipeline needs from a sample source.
// Frames returned by one Camera must keep the same dimensions between Open and Close.
type Camera interface {
	Open(cfg CaptureConfig) error
	Capture() (Frame, error)
	IsOpen() bool
	Close() error
}

// MockCamera generates deterministic synthetic frames: a fixed per-pixel pattern
// overlaid with full-range noise from a seeded ChaCha8 stream.
// It is meant for tests and demos and provides no entropy.
type MockCamera struct {
	mu sync.Mutex

	seed     uint64
	cfg      *CaptureConfig
	sequence uint64

	pattern []byte
	noise   *rand.ChaCha8
}

// NewMockCamera returns a closed mock camera whose output is fully determined by seed.
func NewMockCamera(seed uint64) *MockCamera {
	return &MockCamera{
		seed: seed,
	}
}

func (m *MockCamera) Open(cfg CaptureConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := cfg.Validate()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigFailed, err)
	}

	var key [32]byte

	binary.LittleEndian.PutUint64(key[:], m.seed)

	m.noise = rand.NewChaCha8(key)
	m.pattern = make([]byte, cfg.Width*cfg.Height)

	for i := range m.pattern {
		x, y := i%cfg.Width, i/cfg.Width

		m.pattern[i] = uint8(x + 2*y)
	}

	m.cfg = &cfg
	m.sequence = 0

	return nil
}

func (m *MockCamera) Capture() (Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg == nil {
		return Frame{}, ErrCameraNotOpen
	}

	pixels := make([]byte, len(m.pattern))

	var word uint64

	for i := range pixels {
		if i&7 == 0 {
			word = m.noise.Uint64()
		}

		pixels[i] = m.pattern[i] + uint8(word)

		word >>= 8
	}

	m.sequence++

	return NewFrame(pixels, m.cfg.Width, m.cfg.Height, m.sequence), nil
}

func (m *MockCamera) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.cfg != nil
}

func (m *MockCamera) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cfg = nil
	m.pattern = nil
	m.noise = nil

	return nil
}
