package photonoise

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// FileCamera replays raw 8-bit grayscale frames of Width*Height bytes each from a file.
// It is useful for re-analysing recorded sensor output offline.
type FileCamera struct {
	mu sync.Mutex

	path string

	file     *os.File
	reader   *bufio.Reader
	cfg      CaptureConfig
	sequence uint64
}

// NewFileCamera returns a closed camera that will read frames from path.
func NewFileCamera(path string) *FileCamera {
	return &FileCamera{
		path: path,
	}
}

func (c *FileCamera) Open(cfg CaptureConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := cfg.Validate()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigFailed, err)
	}

	file, err := os.Open(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrDeviceNotFound, c.path)
		}

		return err
	}

	c.file = file
	c.reader = bufio.NewReaderSize(file, cfg.Width*cfg.Height)
	c.cfg = cfg
	c.sequence = 0

	return nil
}

// Capture reads the next frame. Once the file is exhausted it returns an error wrapping io.EOF.
func (c *FileCamera) Capture() (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return Frame{}, ErrCameraNotOpen
	}

	pixels := make([]byte, c.cfg.Width*c.cfg.Height)

	_, err := io.ReadFull(c.reader, pixels)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}

		return Frame{}, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}

	c.sequence++

	return NewFrame(pixels, c.cfg.Width, c.cfg.Height, c.sequence), nil
}

func (c *FileCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.file != nil
}

func (c *FileCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return nil
	}

	err := c.file.Close()

	c.file = nil
	c.reader = nil

	return err
}
