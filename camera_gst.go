//go:build gst
// +build gst

package photonoise

import (
	"fmt"
	"sync"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// DeviceCameraSupported reports whether this build can capture from V4L2 devices.
const DeviceCameraSupported = true

// DeviceCamera captures grayscale frames from a V4L2 device through GStreamer:
//
//	v4l2src → videoconvert → videoscale → videorate → capsfilter(GRAY8) → appsink
type DeviceCamera struct {
	mu sync.Mutex

	pipeline *gst.Pipeline
	sink     *app.Sink
	cfg      CaptureConfig
	sequence uint64
}

// NewDeviceCamera returns a closed GStreamer-backed camera.
func NewDeviceCamera() *DeviceCamera {
	return &DeviceCamera{}
}

func (c *DeviceCamera) Open(cfg CaptureConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := cfg.Validate()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigFailed, err)
	}

	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	src, err := gst.NewElement("v4l2src")
	if err != nil {
		return fmt.Errorf("%w: v4l2src: %w", ErrDeviceNotFound, err)
	}

	src.SetProperty("device", cfg.Device)
	src.SetProperty("extra-controls", gst.NewStructureFromString(manualControls(cfg)))

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return fmt.Errorf("failed to create videoconvert: %w", err)
	}

	scale, err := gst.NewElement("videoscale")
	if err != nil {
		return fmt.Errorf("failed to create videoscale: %w", err)
	}

	rate, err := gst.NewElement("videorate")
	if err != nil {
		return fmt.Errorf("failed to create videorate: %w", err)
	}

	rate.SetProperty("drop-only", true)

	filter, err := gst.NewElement("capsfilter")
	if err != nil {
		return fmt.Errorf("failed to create capsfilter: %w", err)
	}

	filter.SetProperty("caps", gst.NewCapsFromString(grayCaps(cfg)))

	sink, err := app.NewAppSink()
	if err != nil {
		return fmt.Errorf("failed to create appsink: %w", err)
	}

	sink.SetProperty("sync", false)
	sink.SetProperty("max-buffers", 2)
	sink.SetProperty("drop", true)

	pipeline.AddMany(src, convert, scale, rate, filter, sink.Element)

	err = gst.ElementLinkMany(src, convert, scale, rate, filter, sink.Element)
	if err != nil {
		return fmt.Errorf("%w: link pipeline: %w", ErrConfigFailed, err)
	}

	err = pipeline.SetState(gst.StatePlaying)
	if err != nil {
		pipeline.SetState(gst.StateNull)

		return fmt.Errorf("%w: %s: %w", ErrDeviceNotFound, cfg.Device, err)
	}

	c.pipeline = pipeline
	c.sink = sink
	c.cfg = cfg
	c.sequence = 0

	return nil
}

// Capture blocks until the next frame is available.
func (c *DeviceCamera) Capture() (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pipeline == nil {
		return Frame{}, ErrCameraNotOpen
	}

	sample := c.sink.PullSample()
	if sample == nil {
		return Frame{}, fmt.Errorf("%w: end of stream", ErrCaptureFailed)
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return Frame{}, fmt.Errorf("%w: empty sample", ErrCaptureFailed)
	}

	mapInfo := buffer.Map(gst.MapRead)
	pixels := unpadRows(mapInfo.Bytes(), c.cfg.Width, c.cfg.Height)

	buffer.Unmap()

	if pixels == nil {
		return Frame{}, fmt.Errorf("%w: short buffer", ErrCaptureFailed)
	}

	c.sequence++

	return NewFrame(pixels, c.cfg.Width, c.cfg.Height, c.sequence), nil
}

func (c *DeviceCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.pipeline != nil
}

func (c *DeviceCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pipeline == nil {
		return nil
	}

	err := c.pipeline.SetState(gst.StateNull)

	c.pipeline = nil
	c.sink = nil

	return err
}

func grayCaps(cfg CaptureConfig) string {
	return fmt.Sprintf("video/x-raw,format=GRAY8,width=%d,height=%d,framerate=%d/1", cfg.Width, cfg.Height, cfg.FPS)
}

// manualControls disables auto exposure (V4L2 manual mode is 1) and pins exposure and gain.
// exposure_time_absolute is in units of 100 µs.
func manualControls(cfg CaptureConfig) string {
	return fmt.Sprintf("c,auto_exposure=1,exposure_time_absolute=%d,gain=%d", max(cfg.ExposureMicros/100, 1), cfg.Gain)
}
