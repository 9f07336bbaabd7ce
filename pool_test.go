package photonoise

import (
	"bytes"
	"testing"
)

func newTestPool(opts ...Option) *EntropyPool {
	return NewEntropyPool(append([]Option{WithLogger(discardLogger())}, opts...)...)
}

func TestPoolReadiness(t *testing.T) {
	p := newTestPool(WithPoolMinBits(256))

	p.Add(NewRawBits(randomBytes(1, 16), 1))

	if p.IsReady() || p.SizeBits() != 128 {
		t.Fatalf("ready with %d bits", p.SizeBits())
	}

	_, ok := p.Extract()
	if ok {
		t.Fatal("extracted from a pool below min bits")
	}

	if p.SizeBytes() != 16 || p.TotalExtractions() != 0 {
		t.Fatal("failed extraction touched the pool")
	}

	p.Add(NewRawBits(randomBytes(2, 16), 2))

	if !p.IsReady() {
		t.Fatal("pool with exactly min bits not ready")
	}
}

func TestPoolExtractConditionsEverything(t *testing.T) {
	p := newTestPool(WithPoolMinBits(8), WithHashAlgorithm(HashSHA256))

	a := randomBytes(3, 40)
	b := randomBytes(4, 30)

	p.Add(NewRawBits(a, 1))
	p.Add(NewRawBits(b, 2))

	seed, ok := p.Extract()
	if !ok {
		t.Fatal("extraction failed")
	}

	want := NewConditioner(HashSHA256).Condition(NewRawBits(append(append([]byte(nil), a...), b...), 0))
	if seed.Bytes() != want.Bytes() {
		t.Fatal("seed is not the hash of the pooled bytes in order")
	}

	if seed.EntropyEstimate() != 70 {
		t.Fatalf("entropy estimate %d, want 70", seed.EntropyEstimate())
	}

	if p.SizeBytes() != 0 || p.IsReady() || p.TotalExtractions() != 1 || p.TotalBitsAdded() != 70*8 {
		t.Fatalf("pool after extraction: size=%d extractions=%d added=%d", p.SizeBytes(), p.TotalExtractions(), p.TotalBitsAdded())
	}
}

func TestPoolAddCopies(t *testing.T) {
	p := newTestPool(WithPoolMinBits(8))

	data := randomBytes(5, 32)
	orig := append([]byte(nil), data...)

	p.Add(rawBitsOwning(data, 1))

	clear(data)

	seed, _ := p.Extract()
	want := NewConditioner(HashBLAKE3).Condition(NewRawBits(orig, 0))

	if seed.Bytes() != want.Bytes() {
		t.Fatal("pool kept a reference to the caller's buffer")
	}
}

func TestPoolOverflowIsTruncated(t *testing.T) {
	p := newTestPool(WithPoolMaxBytes(100), WithPoolMinBits(8))

	p.Add(NewRawBits(randomBytes(6, 80), 1))
	p.Add(NewRawBits(randomBytes(7, 80), 2))
	p.Add(NewRawBits(randomBytes(8, 80), 3))

	if p.SizeBytes() != 100 {
		t.Fatalf("size %d, want 100", p.SizeBytes())
	}

	if p.TotalBitsAdded() != 800 {
		t.Fatalf("total bits added %d, want 800", p.TotalBitsAdded())
	}
}

func TestPoolClear(t *testing.T) {
	p := newTestPool(WithPoolMinBits(8))

	p.Add(NewRawBits(randomBytes(9, 64), 1))
	p.Add(NewRawBits(nil, 2))
	p.Clear()

	if p.SizeBytes() != 0 || p.IsReady() {
		t.Fatal("pool not empty after clear")
	}

	if p.TotalBitsAdded() != 64*8 || p.TotalExtractions() != 0 {
		t.Fatal("clear must keep lifetime counters")
	}
}

func TestConditionedSeedWipe(t *testing.T) {
	seed := NewConditioner(HashBLAKE3).Condition(NewRawBits([]byte("abc"), 0))

	seed.wipe()

	if b := seed.Bytes(); !bytes.Equal(b[:], make([]byte, SeedSize)) || seed.EntropyEstimate() != 0 {
		t.Fatal("wipe left seed material behind")
	}
}

func TestPoolWipesStoredChunks(t *testing.T) {
	for _, name := range []string{"extract", "clear"} {
		p := newTestPool(WithPoolMinBits(8))

		p.Add(NewRawBits(constantBytes(0xAB, 32), 1))
		p.Add(NewRawBits(constantBytes(0xCD, 32), 2))

		chunks := append([][]byte(nil), p.chunks...)
		if len(chunks) != 2 {
			t.Fatalf("%s: pool holds %d chunks, want 2", name, len(chunks))
		}

		if name == "extract" {
			if _, ok := p.Extract(); !ok {
				t.Fatalf("%s: extraction failed", name)
			}
		} else {
			p.Clear()
		}

		for i, chunk := range chunks {
			if !bytes.Equal(chunk, make([]byte, 32)) {
				t.Fatalf("%s: chunk %d not wiped (first=0x%02x)", name, i, chunk[0])
			}
		}

		if len(p.chunks) != 0 || p.SizeBytes() != 0 {
			t.Fatalf("%s: pool not empty", name)
		}
	}
}
