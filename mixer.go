package photonoise

const DefaultStride = 1

// SpatialMixer XORs every byte with the byte stride positions further on (wrapping),
// breaking up correlation between neighbouring sensor elements.
// It is a shallow decorrelator and the stride is a tunable, not a security parameter.
type SpatialMixer struct {
	stride int
}

// NewSpatialMixer returns a mixer with the given stride, clamped to at least 1.
func NewSpatialMixer(stride int) SpatialMixer {
	return SpatialMixer{
		stride: max(stride, 1),
	}
}

func (m SpatialMixer) Stride() int {
	return m.stride
}

// Mix returns out[i] = in[i] ^ in[(i+stride) % len(in)]. The input is not modified.
func (m SpatialMixer) Mix(data []byte) []byte {
	n := len(data)
	if n == 0 {
		return []byte{}
	}

	stride := max(m.stride, 1) % n
	out := make([]byte, n)

	for i, b := range data {
		j := i + stride
		if j >= n {
			j -= n
		}

		out[i] = b ^ data[j]
	}

	return out
}
