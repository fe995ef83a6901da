package audio

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/guardline-io/guardline/pkg/logger"
)

// CaptureSource abstracts a microphone capture device delivering fixed-length
// frames of 32-bit float PCM. Start returns ErrMediaAccess (wrapped) when the
// device is unavailable or permission is denied.
type CaptureSource interface {
	Start(ctx context.Context) error
	Frames() <-chan []float32
	Stop() error
}

// ChunkHandler receives one base64-encoded WAV buffer per non-empty flush
type ChunkHandler func(base64WAV string) error

// ChunkerConfig represents configuration for the audio chunker
type ChunkerConfig struct {
	SampleRate    int
	ChunkInterval time.Duration
	VADEnabled    bool
	VADThreshold  float64
	VADHangover   time.Duration
}

// Chunker accumulates capture frames and delivers WAV-encoded chunks to a
// caller-supplied handler at a fixed cadence. Frames arriving while paused
// are discarded, as is any buffered audio at the moment of pausing.
type Chunker struct {
	config  ChunkerConfig
	source  CaptureSource
	handler ChunkHandler
	vad     *VAD
	logger  *logger.Logger

	mu     sync.Mutex
	buffer [][]float32
	paused bool

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	stopped bool
}

// NewChunker creates a new audio chunker
func NewChunker(source CaptureSource, handler ChunkHandler, config ChunkerConfig, log *logger.Logger) *Chunker {
	if config.ChunkInterval <= 0 {
		config.ChunkInterval = time.Second
	}
	if config.VADHangover <= 0 {
		config.VADHangover = 500 * time.Millisecond
	}

	c := &Chunker{
		config:  config,
		source:  source,
		handler: handler,
		logger:  log.Named("audio-chunker"),
	}
	if config.VADEnabled {
		c.vad = NewVAD(config.VADThreshold, config.VADHangover, config.SampleRate)
	}
	return c
}

// Start acquires the capture source and begins the capture and flush loops
func (c *Chunker) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	if err := c.source.Start(ctx); err != nil {
		return fmt.Errorf("failed to start capture source: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.logger.Info("Starting audio chunker",
		logger.Int("sample_rate", c.config.SampleRate),
		logger.Duration("chunk_interval", c.config.ChunkInterval),
		logger.Bool("vad_enabled", c.config.VADEnabled))

	c.wg.Add(2)
	go c.captureLoop(runCtx)
	go c.flushLoop(runCtx)

	return nil
}

// captureLoop appends incoming frames to the buffer until the context ends
func (c *Chunker) captureLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-c.source.Frames():
			if !ok {
				return
			}
			c.appendFrame(frame)
		}
	}
}

func (c *Chunker) appendFrame(frame []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paused {
		return
	}
	if c.vad != nil && !c.vad.Accept(frame) {
		return
	}

	// Copy: the source may reuse the frame slice
	buf := make([]float32, len(frame))
	copy(buf, frame)
	c.buffer = append(c.buffer, buf)
}

// flushLoop drives the periodic flush timer
func (c *Chunker) flushLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.config.ChunkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Flush()
		}
	}
}

// Flush encodes the buffered frames to WAV and invokes the handler exactly
// once. A flush with an empty buffer is a no-op. The buffer is cleared
// unconditionally, even when encoding fails.
func (c *Chunker) Flush() {
	c.mu.Lock()
	frames := c.buffer
	c.buffer = nil
	c.mu.Unlock()

	if len(frames) == 0 {
		return
	}

	total := 0
	for _, f := range frames {
		total += len(f)
	}
	combined := make([]float32, 0, total)
	for _, f := range frames {
		combined = append(combined, f...)
	}

	wav, err := EncodeWAV(combined, c.config.SampleRate)
	if err != nil {
		// Fatal to this chunk only
		c.logger.Error("Failed to encode audio chunk", logger.Error(err))
		return
	}

	encoded := base64.StdEncoding.EncodeToString(wav)
	if err := c.handler(encoded); err != nil {
		c.logger.Error("Chunk handler failed", logger.Error(err),
			logger.Int("samples", total))
	}
}

// SetPaused pauses or resumes frame accumulation. Pausing discards any
// buffered-but-unflushed audio so stale frames are never sent after unmute.
func (c *Chunker) SetPaused(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = paused
	if paused {
		c.buffer = nil
		if c.vad != nil {
			c.vad.Reset()
		}
	}
}

// Stop stops the flush timer, capture loop and capture source. Idempotent.
func (c *Chunker) Stop() {
	c.mu.Lock()
	if !c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	if err := c.source.Stop(); err != nil {
		c.logger.Warn("Failed to stop capture source", logger.Error(err))
	}

	c.mu.Lock()
	c.buffer = nil
	c.mu.Unlock()

	c.logger.Info("Audio chunker stopped")
}
