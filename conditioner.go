package photonoise

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"
)

// SeedSize is the size of conditioned seed material in bytes.
const SeedSize = 32

// HashAlgorithm selects the conditioning hash.
type HashAlgorithm int

const (
	HashBLAKE3 HashAlgorithm = iota
	HashSHA256
	HashCSHAKE256
)

func (a HashAlgorithm) String() string {
	switch a {
	case HashBLAKE3:
		return "blake3"
	case HashSHA256:
		return "sha256"
	case HashCSHAKE256:
		return "cshake256"
	default:
		return fmt.Sprintf("hash(%d)", int(a))
	}
}

// ParseHashAlgorithm resolves "blake3", "sha256" or "cshake256".
func ParseHashAlgorithm(name string) (HashAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "blake3":
		return HashBLAKE3, nil
	case "sha256", "sha-256":
		return HashSHA256, nil
	case "cshake256", "sha3":
		return HashCSHAKE256, nil
	default:
		return 0, fmt.Errorf("unknown hash algorithm %q", name)
	}
}

// ConditionedSeed is fixed-size seed material together with a conservative entropy estimate.
type ConditionedSeed struct {
	data    [SeedSize]byte
	entropy int
}

// Bytes returns a copy of the seed material.
func (s ConditionedSeed) Bytes() [SeedSize]byte {
	return s.data
}

// EntropyEstimate returns the credited entropy in bits.
func (s ConditionedSeed) EntropyEstimate() int {
	return s.entropy
}

func (s ConditionedSeed) String() string {
	return fmt.Sprintf("ConditionedSeed{entropy_estimate=%d}", s.entropy)
}

func (s *ConditionedSeed) wipe() {
	clear(s.data[:])

	s.entropy = 0
}

// Conditioner hashes raw bits into uniformly distributed seed material.
type Conditioner struct {
	algorithm HashAlgorithm
}

func NewConditioner(alg HashAlgorithm) Conditioner {
	return Conditioner{
		algorithm: alg,
	}
}

func (c Conditioner) Algorithm() HashAlgorithm {
	return c.algorithm
}

// Condition hashes the whole buffer. At most one bit of entropy is credited per input
// byte and never more than the output width, whatever the statistical tests said.
func (c Conditioner) Condition(raw RawBits) ConditionedSeed {
	var seed ConditionedSeed

	data := raw.Bytes()

	switch c.algorithm {
	case HashSHA256:
		seed.data = sha256.Sum256(data)
	case HashCSHAKE256:
		sponge := sha3.NewCShake256(nil, []byte("photonoise"))

		sponge.Write(data)
		sponge.Read(seed.data[:])
	default:
		seed.data = blake3.Sum256(data)
	}

	seed.entropy = min(len(data), SeedSize*8)

	return seed
}
