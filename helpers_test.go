package photonoise

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
)

func randomBytes(seed uint64, n int) []byte {
	var key [32]byte

	binary.LittleEndian.PutUint64(key[:], seed)

	buf := make([]byte, n)

	_, _ = rand.NewChaCha8(key).Read(buf)

	return buf
}

func constantBytes(b byte, n int) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// logBuffer is a goroutine-safe sink for log assertions.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *logBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.buf.Write(p)
}

func (l *logBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.buf.String()
}

func captureLogs(t *testing.T) (*slog.Logger, *logBuffer) {
	t.Helper()

	out := &logBuffer{}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug})), out
}

func smallCaptureConfig() CaptureConfig {
	cfg := DefaultCaptureConfig()

	cfg.Width = 64
	cfg.Height = 64

	return cfg
}

func openMock(t testing.TB, seed uint64) *MockCamera {
	t.Helper()

	cam := NewMockCamera(seed)

	err := cam.Open(smallCaptureConfig())
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		cam.Close()
	})

	return cam
}
