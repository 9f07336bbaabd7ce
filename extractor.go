package photonoise

// Extractor turns a stream of frames into decorrelated RawBits by temporal differencing
// followed by spatial mixing.
type Extractor struct {
	temporal *TemporalDifferencer
	spatial  SpatialMixer
}

// NewExtractor honours WithStride.
func NewExtractor(opts ...Option) *Extractor {
	o := newOptions(opts)

	return &Extractor{
		temporal: NewTemporalDifferencer(),
		spatial:  NewSpatialMixer(o.stride),
	}
}

// Process returns the extracted bits for frame, or false while the differencer is priming.
func (e *Extractor) Process(frame Frame) (RawBits, bool) {
	diff, ok := e.temporal.Difference(frame)
	if !ok {
		return RawBits{}, false
	}

	return rawBitsOwning(e.spatial.Mix(diff), frame.Sequence()), true
}

// Reset forgets the previous frame, e.g. after a capture gap.
func (e *Extractor) Reset() {
	e.temporal.Reset()
}

func (e *Extractor) Primed() bool {
	return e.temporal.Primed()
}
