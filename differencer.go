package photonoise

// TemporalDifferencer computes per-pixel absolute differences between consecutive frames,
// cancelling fixed-pattern noise such as dead or hot pixels.
type TemporalDifferencer struct {
	previous []byte
	primed   bool
}

func NewTemporalDifferencer() *TemporalDifferencer {
	return &TemporalDifferencer{}
}

// Difference returns |current - previous| per pixel and stores current as the new previous frame.
// The first call after construction or Reset only primes the differencer and returns false.
// Frames are expected to have equal sizes; extra pixels of the longer frame are ignored.
func (d *TemporalDifferencer) Difference(current Frame) ([]byte, bool) {
	pixels := current.Pixels()

	if !d.primed {
		d.store(pixels)

		return nil, false
	}

	n := min(len(pixels), len(d.previous))
	out := make([]byte, n)

	for i := range n {
		c, p := pixels[i], d.previous[i]

		if c > p {
			out[i] = c - p
		} else {
			out[i] = p - c
		}
	}

	d.store(pixels)

	return out, true
}

// Reset drops the stored frame so the next call primes again.
func (d *TemporalDifferencer) Reset() {
	clear(d.previous)

	d.previous = d.previous[:0]
	d.primed = false
}

func (d *TemporalDifferencer) Primed() bool {
	return d.primed
}

func (d *TemporalDifferencer) store(pixels []byte) {
	d.previous = append(d.previous[:0], pixels...)
	d.primed = true
}
