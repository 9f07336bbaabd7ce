package photonoise

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestPipeline(t testing.TB, opts ...Option) (*Pipeline, *Generator) {
	t.Helper()

	gen := newTestGenerator(t, 42)

	return NewPipeline(gen, append([]Option{WithLogger(discardLogger())}, opts...)...), gen
}

func randomFrame(seed uint64) Frame {
	return NewFrame(randomBytes(seed, 64*64), 64, 64, seed)
}

func TestPipelineReseedsWithDefaults(t *testing.T) {
	p, gen := newTestPipeline(t)

	stats, err := p.Run(context.Background(), openMock(t, 1), 8)
	if err != nil {
		t.Fatal(err)
	}

	if stats.Frames != 8 || stats.Extracted != 7 || stats.CaptureErrors != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if stats.Violations != 0 {
		t.Fatalf("mock frames violated default thresholds %d times", stats.Violations)
	}

	// healthy after three extractions, then one reseed per extraction
	if stats.Reseeds != 5 || gen.ReseedCount() != 5 {
		t.Fatalf("reseeds %d (generator %d), want 5", stats.Reseeds, gen.ReseedCount())
	}

	snap := p.Snapshot()

	if !snap.Healthy || !snap.HasStats || snap.TotalSamples != 7 || snap.ReseedCount != 5 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	// the two samples before the healthy streak completed were never pooled
	if snap.PoolExtractions != 5 || snap.PoolSizeBytes != 0 || snap.PoolTotalBitsAdded != 5*64*64*8 {
		t.Fatalf("unexpected pool state: %+v", snap)
	}

	if snap.EntropyPerBit < 0.5 || !snap.EstimateSettled || snap.LastViolation != "" {
		t.Fatalf("unexpected analysis state: %+v", snap)
	}
}

func TestPipelineEstimatorWindow(t *testing.T) {
	p, _ := newTestPipeline(t, WithEstimatorWindow(3*64*64*8))

	for seed := range uint64(3) {
		p.Step(randomFrame(seed))
	}

	if snap := p.Snapshot(); snap.EstimateSettled {
		t.Fatalf("settled after two samples with a three-sample window: %+v", snap)
	}

	p.Step(randomFrame(3))

	if snap := p.Snapshot(); !snap.EstimateSettled {
		t.Fatalf("not settled after three samples: %+v", snap)
	}
}

func TestPipelineFailsClosed(t *testing.T) {
	p, gen := newTestPipeline(t)

	p.Step(randomFrame(1))

	for seed := uint64(2); seed <= 4; seed++ {
		res := p.Step(randomFrame(seed))

		if res.Pooled != (seed == 4) {
			t.Fatalf("frame %d pooled=%v, only the sample completing the streak should be", seed, res.Pooled)
		}
	}

	if gen.ReseedCount() != 1 {
		t.Fatalf("reseed count %d after becoming healthy, want 1", gen.ReseedCount())
	}

	// a repeated frame differences to zero
	res := p.Step(randomFrame(4))

	if res.Healthy || res.Pooled || res.Reseeded || res.Violation == nil || res.Violation.Kind != ViolationBitBias {
		t.Fatalf("degraded sample not rejected: %+v", res)
	}

	res = p.Step(randomFrame(5))

	if res.Violation != nil || res.Pooled || res.Healthy || res.Reseeded {
		t.Fatalf("pooled or reseeded right after degradation: %+v", res)
	}

	snap := p.Snapshot()

	if snap.PoolSizeBytes != 0 || gen.ReseedCount() != 1 || snap.ConsecutiveHealthy != 1 {
		t.Fatalf("unexpected state: %+v", snap)
	}

	res = p.Step(randomFrame(6))
	if res.Pooled {
		t.Fatalf("pooled before the healthy streak completed: %+v", res)
	}

	res = p.Step(randomFrame(7))
	if !res.Pooled || !res.Reseeded || gen.ReseedCount() != 2 {
		t.Fatalf("no reseed after health recovered: %+v", res)
	}
}

func TestPipelineSkipsMalformedFrames(t *testing.T) {
	p, _ := newTestPipeline(t)

	res := p.Step(NewFrame(make([]byte, 10), 64, 64, 1))
	if res != (StepResult{}) {
		t.Fatalf("malformed frame processed: %+v", res)
	}

	if p.extractor.Primed() {
		t.Fatal("malformed frame primed the extractor")
	}
}

func TestPipelineReseedFailure(t *testing.T) {
	gen := newTestGenerator(t, 1, WithMinReseedEntropy(SeedSize*8))

	p := NewPipeline(gen,
		WithLogger(discardLogger()),
		WithThresholds(QualityThresholds{MaxBitBias: 0.5, MinVariance: 0, MaxAutocorrelation: 1}),
		WithHealthyStreak(1),
		WithPoolMinBits(8),
	)

	p.Step(NewFrame([]byte{1, 2, 3, 4}, 2, 2, 1))

	res := p.Step(NewFrame([]byte{9, 8, 7, 6}, 2, 2, 2))

	if res.Reseeded || !errors.Is(res.ReseedErr, ErrInsufficientEntropy) {
		t.Fatalf("expected insufficient entropy, got %+v", res)
	}

	if gen.ReseedCount() != 0 {
		t.Fatal("generator reseeded from a weak seed")
	}
}

func TestPipelineRunStopsOnCancel(t *testing.T) {
	p, _ := newTestPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := p.Run(ctx, openMock(t, 2), 0)
	if err != nil || stats.Frames != 0 {
		t.Fatalf("cancelled run: %+v, %v", stats, err)
	}
}

func TestPipelineRunUnlimitedUntilCancel(t *testing.T) {
	p, _ := newTestPipeline(t, WithCaptureInterval(time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	stats, err := p.Run(ctx, openMock(t, 3), 0)
	if err != nil {
		t.Fatal(err)
	}

	if stats.Frames == 0 {
		t.Fatal("no frames captured before the deadline")
	}
}

func TestPipelineRunClosedCamera(t *testing.T) {
	p, _ := newTestPipeline(t)

	_, err := p.Run(context.Background(), NewMockCamera(1), 5)
	if !errors.Is(err, ErrCameraNotOpen) {
		t.Fatalf("expected ErrCameraNotOpen, got %v", err)
	}
}

type flakyCamera struct {
	*MockCamera

	calls int
}

func (f *flakyCamera) Capture() (Frame, error) {
	f.calls++

	if f.calls%3 == 0 {
		return Frame{}, ErrCaptureFailed
	}

	return f.MockCamera.Capture()
}

func TestPipelineRunSkipsCaptureErrors(t *testing.T) {
	logger, logs := captureLogs(t)

	p := NewPipeline(newTestGenerator(t, 1), WithLogger(logger))

	stats, err := p.Run(context.Background(), &flakyCamera{MockCamera: openMock(t, 4)}, 9)
	if err != nil {
		t.Fatal(err)
	}

	if stats.Frames != 6 || stats.CaptureErrors != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if !strings.Contains(logs.String(), "frame capture failed") {
		t.Fatal("capture failure not logged")
	}
}

func TestPipelineRunFileSource(t *testing.T) {
	cfg := smallCaptureConfig()

	var data []byte

	for seed := range uint64(5) {
		data = append(data, randomBytes(seed, cfg.Width*cfg.Height)...)
	}

	path := filepath.Join(t.TempDir(), "frames.raw")

	err := os.WriteFile(path, data, 0o600)
	if err != nil {
		t.Fatal(err)
	}

	cam := NewFileCamera(path)

	err = cam.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		cam.Close()
	})

	p, gen := newTestPipeline(t)

	stats, err := p.Run(context.Background(), cam, 0)
	if err != nil {
		t.Fatalf("end of file should end the run cleanly: %v", err)
	}

	if stats.Frames != 5 || gen.ReseedCount() != 2 {
		t.Fatalf("frames %d reseeds %d, want 5 and 2", stats.Frames, gen.ReseedCount())
	}
}

func TestPipelineCaptureInterval(t *testing.T) {
	p, _ := newTestPipeline(t, WithCaptureInterval(5*time.Millisecond))

	start := time.Now()

	_, err := p.Run(context.Background(), openMock(t, 5), 3)
	if err != nil {
		t.Fatal(err)
	}

	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Fatalf("three paced captures took only %s", elapsed)
	}
}

func TestPipelineReset(t *testing.T) {
	p, gen := newTestPipeline(t, WithPoolMinBits(1<<20))

	for seed := range uint64(5) {
		p.Step(randomFrame(seed))
	}

	before := p.Snapshot()
	if !before.Healthy || before.PoolSizeBytes == 0 {
		t.Fatalf("unexpected state before reset: %+v", before)
	}

	p.Reset()

	after := p.Snapshot()
	if after.Healthy || after.PoolSizeBytes != 0 || after.TotalSamples != 0 || after.EntropyPerBit != 0 {
		t.Fatalf("state after reset: %+v", after)
	}

	if p.AllowReseed() || gen.ReseedCount() != 0 {
		t.Fatal("reset left reseeding enabled")
	}

	res := p.Step(randomFrame(9))
	if res.Extracted {
		t.Fatal("first frame after reset was not used for priming")
	}
}

func BenchmarkPipelineStep(b *testing.B) {
	p, _ := newTestPipeline(b, WithThresholds(PermissiveThresholds()))

	frames := []Frame{randomFrame(1), randomFrame(2)}

	b.SetBytes(64 * 64)
	b.ReportAllocs()

	i := 0

	for b.Loop() {
		p.Step(frames[i&1])

		i++
	}
}
