package photonoise

import (
	"fmt"
	"time"
)

const MaxFrameRate = 120

// Frame is a single captured grayscale image.
type Frame struct {
	pixels    []byte
	width     int
	height    int
	sequence  uint64
	timestamp time.Time
}

// NewFrame wraps a pixel buffer captured now. The frame takes ownership of pixels.
func NewFrame(pixels []byte, width, height int, sequence uint64) Frame {
	return Frame{
		pixels:    pixels,
		width:     width,
		height:    height,
		sequence:  sequence,
		timestamp: time.Now(),
	}
}

func (f Frame) Pixels() []byte {
	return f.pixels
}

func (f Frame) Width() int {
	return f.width
}

func (f Frame) Height() int {
	return f.height
}

// Sequence returns the monotonic capture sequence number.
func (f Frame) Sequence() uint64 {
	return f.sequence
}

func (f Frame) Timestamp() time.Time {
	return f.timestamp
}

func (f Frame) PixelCount() int {
	return f.width * f.height
}

// Valid reports whether the pixel buffer matches the frame dimensions.
func (f Frame) Valid() bool {
	return len(f.pixels) == f.PixelCount()
}

func (f Frame) String() string {
	return fmt.Sprintf("Frame{%dx%d seq=%d bytes=%d}", f.width, f.height, f.sequence, len(f.pixels))
}

// CaptureConfig holds fixed capture settings. Auto exposure and auto gain are never used,
// they would introduce correlations between frames.
type CaptureConfig struct {
	Device         string
	Width          int
	Height         int
	ExposureMicros int
	Gain           int
	FPS            int
	Grayscale      bool
}

// DefaultCaptureConfig returns 640x480 grayscale at 30 fps with a 10 ms exposure.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		Device:         "/dev/video0",
		Width:          640,
		Height:         480,
		ExposureMicros: 10000,
		Gain:           1,
		FPS:            30,
		Grayscale:      true,
	}
}

// Validate checks the configuration before any capture begins.
func (c CaptureConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return ErrInvalidDimensions
	}

	if c.ExposureMicros <= 0 {
		return ErrInvalidExposure
	}

	if c.FPS <= 0 || c.FPS > MaxFrameRate {
		return ErrInvalidFrameRate
	}

	return nil
}

// unpadRows copies a width*height plane out of a buffer whose rows may be padded
// (GStreamer aligns GRAY8 rows to 4 bytes). It returns nil when data is too short.
func unpadRows(data []byte, width, height int) []byte {
	size := width * height
	if height <= 0 || len(data) < size {
		return nil
	}

	pixels := make([]byte, size)

	if len(data) == size {
		copy(pixels, data)

		return pixels
	}

	stride := len(data) / height
	if stride < width {
		stride = width
	}

	for y := range height {
		end := y*stride + width
		if end > len(data) {
			return nil
		}

		copy(pixels[y*width:(y+1)*width], data[y*stride:end])
	}

	return pixels
}
