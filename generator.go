package photonoise

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20"
)

const (
	DefaultMinReseedEntropy = 128

	// ReseedAfterBytes is the output volume after which NeedsReseed reports true.
	ReseedAfterBytes = 1 << 20

	// ChaCha20 with a 32-bit block counter covers 2^32 blocks of 64 bytes per key.
	maxKeystreamBytes = 1 << 38

	reseedDomain = "photonoise/reseed/v1"
)

// Generator is a ChaCha20 keystream generator seeded from the operating system that can
// be reseeded with conditioned optical entropy. Reseeding hashes the retained seed
// material together with the new seed, a reseed counter and a domain tag, so the optical
// source supplements the OS seed and can never replace it.
type Generator struct {
	mu sync.Mutex

	stream   *chacha20.Cipher
	material [SeedSize]byte

	reseeds     uint64
	sinceReseed uint64

	minEntropy int
	log        *slog.Logger
}

// NewGenerator seeds a generator from crypto/rand. It honours WithMinReseedEntropy and WithLogger.
func NewGenerator(opts ...Option) (*Generator, error) {
	var seed [SeedSize]byte

	_, err := rand.Read(seed[:])
	if err != nil {
		return nil, fmt.Errorf("could not read entropy from os: %w", err)
	}

	return newGenerator(seed, opts...)
}

func newGenerator(seed [SeedSize]byte, opts ...Option) (*Generator, error) {
	o := newOptions(opts)

	stream, err := newKeystream(seed)
	if err != nil {
		return nil, err
	}

	return &Generator{
		stream:     stream,
		material:   seed,
		minEntropy: o.minReseedEntropy,
		log:        o.logger,
	}, nil
}

// Reseed mixes seed into the generator state. Seeds whose entropy estimate is below the
// configured minimum are rejected with an *InsufficientEntropyError and change nothing.
func (g *Generator) Reseed(seed ConditionedSeed) error {
	if seed.EntropyEstimate() < g.minEntropy {
		return &InsufficientEntropyError{
			Got:  seed.EntropyEstimate(),
			Need: g.minEntropy,
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	fresh := seed.Bytes()
	material := mixSeed(g.reseeds, g.material, fresh)

	clear(fresh[:])

	stream, err := newKeystream(material)
	if err != nil {
		return err
	}

	g.stream = stream
	g.material = material
	g.reseeds++
	g.sinceReseed = 0

	g.log.Info("csprng reseeded", "reseed_count", g.reseeds, "entropy_estimate", seed.EntropyEstimate())

	return nil
}

// Read implements io.Reader, filling p with keystream output.
func (g *Generator) Read(p []byte) (n int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	err = g.readLocked(p)
	if err != nil {
		return 0, err
	}

	return len(p), nil
}

// Uint64 implements math/rand/v2.Source. It panics if the keystream is exhausted.
func (g *Generator) Uint64() uint64 {
	var b [8]byte

	g.mustRead(b[:])

	return binary.LittleEndian.Uint64(b[:])
}

// Uint32 panics if the keystream is exhausted.
func (g *Generator) Uint32() uint32 {
	var b [4]byte

	g.mustRead(b[:])

	return binary.LittleEndian.Uint32(b[:])
}

// ReseedCount returns the number of successful reseeds.
func (g *Generator) ReseedCount() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.reseeds
}

// BytesSinceReseed returns the output volume since the last successful reseed (or construction).
func (g *Generator) BytesSinceReseed() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.sinceReseed
}

// NeedsReseed reports whether more than ReseedAfterBytes were emitted since the last reseed.
func (g *Generator) NeedsReseed() bool {
	return g.BytesSinceReseed() > ReseedAfterBytes
}

func (g *Generator) mustRead(p []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()

	err := g.readLocked(p)
	if err != nil {
		panic(err)
	}
}

func (g *Generator) readLocked(p []byte) error {
	if g.sinceReseed+uint64(len(p)) > maxKeystreamBytes {
		return ErrKeystreamExhausted
	}

	g.sinceReseed += uint64(len(p))

	clear(p)

	g.stream.XORKeyStream(p, p)

	return nil
}

func newKeystream(key [SeedSize]byte) (*chacha20.Cipher, error) {
	var nonce [chacha20.NonceSize]byte

	stream, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		return nil, fmt.Errorf("could not create keystream: %w", err)
	}

	return stream, nil
}

// mixSeed derives BLAKE3(domain || LE64(counter) || old || fresh).
func mixSeed(counter uint64, old, fresh [SeedSize]byte) [SeedSize]byte {
	var out [SeedSize]byte

	h := blake3.New()

	h.Write([]byte(reseedDomain))
	h.Write(binary.LittleEndian.AppendUint64(nil, counter))
	h.Write(old[:])
	h.Write(fresh[:])

	copy(out[:], h.Sum(nil))

	return out
}
