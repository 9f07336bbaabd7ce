//go:build !gst
// +build !gst

package photonoise

import "fmt"

// DeviceCameraSupported reports whether this build can capture from V4L2 devices.
const DeviceCameraSupported = false

// DeviceCamera is unavailable in builds without the gst tag; Open always fails.
type DeviceCamera struct{}

// NewDeviceCamera returns a camera stub. Build with -tags gst for V4L2 capture.
func NewDeviceCamera() *DeviceCamera {
	return &DeviceCamera{}
}

func (c *DeviceCamera) Open(cfg CaptureConfig) error {
	err := cfg.Validate()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigFailed, err)
	}

	return fmt.Errorf("%w: %s (built without gstreamer support)", ErrDeviceNotFound, cfg.Device)
}

func (c *DeviceCamera) Capture() (Frame, error) {
	return Frame{}, ErrCameraNotOpen
}

func (c *DeviceCamera) IsOpen() bool {
	return false
}

func (c *DeviceCamera) Close() error {
	return nil
}
