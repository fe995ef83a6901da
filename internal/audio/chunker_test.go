package audio

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/guardline-io/guardline/pkg/logger"
)

// fakeSource delivers frames pushed by the test
type fakeSource struct {
	frames  chan []float32
	mu      sync.Mutex
	started bool
	stops   int
}

func newFakeSource() *fakeSource {
	return &fakeSource{frames: make(chan []float32)}
}

func (s *fakeSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return nil
}

func (s *fakeSource) Frames() <-chan []float32 { return s.frames }

func (s *fakeSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

type captureHandler struct {
	mu     sync.Mutex
	chunks []string
}

func (h *captureHandler) handle(b64 string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chunks = append(h.chunks, b64)
	return nil
}

func (h *captureHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.chunks)
}

// long interval keeps the flush ticker out of the way; tests flush manually
var testConfig = ChunkerConfig{
	SampleRate:    1000,
	ChunkInterval: time.Hour,
}

func startChunker(t *testing.T, source *fakeSource, handler *captureHandler, cfg ChunkerConfig) *Chunker {
	t.Helper()
	c := NewChunker(source, handler.handle, cfg, logger.Nop())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(c.Stop)
	return c
}

func sendFrame(t *testing.T, s *fakeSource, frame []float32) {
	t.Helper()
	select {
	case s.frames <- frame:
		// Let the capture loop append before the test flushes
		time.Sleep(50 * time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("capture loop did not consume frame")
	}
}

func TestChunkerFlushDeliversWAV(t *testing.T) {
	source := newFakeSource()
	handler := &captureHandler{}
	c := startChunker(t, source, handler, testConfig)

	sendFrame(t, source, loudFrame(100))
	c.Flush()

	if got := handler.count(); got != 1 {
		t.Fatalf("handler invocations = %d, want 1", got)
	}

	raw, err := base64.StdEncoding.DecodeString(handler.chunks[0])
	if err != nil {
		t.Fatalf("chunk is not valid base64: %v", err)
	}
	samples, rate, err := DecodeWAV(raw)
	if err != nil {
		t.Fatalf("chunk is not a valid WAV buffer: %v", err)
	}
	if rate != 1000 {
		t.Errorf("sample rate = %d, want 1000", rate)
	}
	if len(samples) != 100 {
		t.Errorf("sample count = %d, want 100", len(samples))
	}
}

func TestChunkerEmptyFlushIsNoOp(t *testing.T) {
	source := newFakeSource()
	handler := &captureHandler{}
	c := startChunker(t, source, handler, testConfig)

	c.Flush()
	c.Flush()

	if got := handler.count(); got != 0 {
		t.Errorf("handler invocations = %d, want 0", got)
	}
}

func TestChunkerFlushClearsBuffer(t *testing.T) {
	source := newFakeSource()
	handler := &captureHandler{}
	c := startChunker(t, source, handler, testConfig)

	sendFrame(t, source, loudFrame(100))
	c.Flush()
	c.Flush() // nothing new buffered

	if got := handler.count(); got != 1 {
		t.Errorf("handler invocations = %d, want 1", got)
	}
}

func TestChunkerPauseDiscardsBuffer(t *testing.T) {
	source := newFakeSource()
	handler := &captureHandler{}
	c := startChunker(t, source, handler, testConfig)

	sendFrame(t, source, loudFrame(100))
	c.SetPaused(true)
	c.Flush()
	if got := handler.count(); got != 0 {
		t.Fatalf("buffered audio should be discarded on pause, got %d chunks", got)
	}

	// Frames arriving while paused are dropped
	sendFrame(t, source, loudFrame(100))
	c.Flush()
	if got := handler.count(); got != 0 {
		t.Fatalf("frames while paused should be dropped, got %d chunks", got)
	}

	c.SetPaused(false)
	sendFrame(t, source, loudFrame(100))
	c.Flush()
	if got := handler.count(); got != 1 {
		t.Errorf("handler invocations after resume = %d, want 1", got)
	}
}

func TestChunkerVADDropsSilence(t *testing.T) {
	source := newFakeSource()
	handler := &captureHandler{}
	cfg := testConfig
	cfg.VADEnabled = true
	cfg.VADThreshold = 0.1
	cfg.VADHangover = 50 * time.Millisecond
	c := startChunker(t, source, handler, cfg)

	sendFrame(t, source, silentFrame(100))
	sendFrame(t, source, silentFrame(100))
	c.Flush()

	if got := handler.count(); got != 0 {
		t.Errorf("silent-only capture should produce no chunk, got %d", got)
	}

	sendFrame(t, source, loudFrame(100))
	c.Flush()
	if got := handler.count(); got != 1 {
		t.Errorf("voiced capture should produce a chunk, got %d", got)
	}
}

func TestChunkerStopIdempotent(t *testing.T) {
	source := newFakeSource()
	handler := &captureHandler{}
	c := startChunker(t, source, handler, testConfig)

	c.Stop()
	c.Stop()

	source.mu.Lock()
	defer source.mu.Unlock()
	if source.stops != 1 {
		t.Errorf("source stops = %d, want 1", source.stops)
	}
}
