package photonoise

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDimensions = errors.New("invalid frame dimensions")
	ErrInvalidExposure   = errors.New("invalid exposure time")
	ErrInvalidFrameRate  = errors.New("invalid frame rate (must be 1-120 fps)")

	ErrCameraNotOpen  = errors.New("camera not initialized")
	ErrDeviceNotFound = errors.New("camera device not found")
	ErrConfigFailed   = errors.New("failed to configure camera")
	ErrCaptureFailed  = errors.New("failed to capture frame")

	ErrInsufficientEntropy = errors.New("insufficient entropy")
	ErrKeystreamExhausted  = errors.New("keystream exhausted, reseed required")
)

// InsufficientEntropyError is returned by Generator.Reseed when a seed carries less entropy than required.
type InsufficientEntropyError struct {
	Got  int
	Need int
}

func (e *InsufficientEntropyError) Error() string {
	return fmt.Sprintf("insufficient entropy: got %d bits, need %d bits", e.Got, e.Need)
}

func (e *InsufficientEntropyError) Is(target error) bool {
	return target == ErrInsufficientEntropy
}
