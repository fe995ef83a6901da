package audio

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/guardline-io/guardline/pkg/logger"
)

// framesPerRead is the number of samples delivered per frame from the
// HTTP stream source (~171ms at 24kHz, matching a capture callback quantum).
const framesPerRead = 4096

// Constraints are the capture processing toggles forwarded to the capture
// endpoint, mirroring the device-side audio constraints.
type Constraints struct {
	EchoCancel    bool
	NoiseSuppress bool
	AutoGain      bool
}

// HTTPStreamSource captures audio from an HTTP endpoint serving raw
// little-endian PCM16 mono. It is the server-side stand-in for a microphone:
// the capture device (or edge client) exposes its feed as a stream and the
// source pulls frames from it.
type HTTPStreamSource struct {
	url         string
	sampleRate  int
	constraints Constraints
	httpClient  *http.Client
	logger      *logger.Logger

	mu     sync.Mutex
	frames chan []float32
	body   io.ReadCloser
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHTTPStreamSource creates a capture source reading from the given URL
func NewHTTPStreamSource(url string, sampleRate int, timeout time.Duration, constraints Constraints, log *logger.Logger) *HTTPStreamSource {
	transport := &http.Transport{
		MaxIdleConns:       10,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: true, // audio streams are already compact
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &HTTPStreamSource{
		url:         url,
		sampleRate:  sampleRate,
		constraints: constraints,
		httpClient:  &http.Client{Timeout: timeout, Transport: transport},
		logger:      log.Named("capture-source"),
	}
}

// Start connects to the capture stream and begins delivering frames
func (s *HTTPStreamSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frames != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMediaAccess, err)
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Connection", "keep-alive")

	q := req.URL.Query()
	q.Set("echo_cancellation", strconv.FormatBool(s.constraints.EchoCancel))
	q.Set("noise_suppression", strconv.FormatBool(s.constraints.NoiseSuppress))
	q.Set("auto_gain_control", strconv.FormatBool(s.constraints.AutoGain))
	req.URL.RawQuery = q.Encode()

	maxRetries := 3
	retryDelay := time.Second

	var resp *http.Response
	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err = s.httpClient.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			break
		}
		if resp != nil {
			resp.Body.Close()
		}
		if attempt == maxRetries-1 {
			if err != nil {
				return fmt.Errorf("%w: failed to connect after %d attempts: %v", ErrMediaAccess, maxRetries, err)
			}
			return fmt.Errorf("%w: unexpected status %d after %d attempts", ErrMediaAccess, resp.StatusCode, maxRetries)
		}

		s.logger.Warn("Retrying capture stream connection",
			logger.String("url", s.url),
			logger.Int("attempt", attempt+1),
			logger.Error(err))

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrMediaAccess, ctx.Err())
		case <-time.After(retryDelay):
			retryDelay *= 2
		}
	}

	s.body = resp.Body
	s.frames = make(chan []float32, 8)

	readCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.readLoop(readCtx, bufio.NewReaderSize(resp.Body, 64*1024))

	s.logger.Info("Capture stream connected", logger.String("url", s.url))
	return nil
}

// readLoop converts the PCM16 byte stream into float32 frames
func (s *HTTPStreamSource) readLoop(ctx context.Context, r *bufio.Reader) {
	defer s.wg.Done()
	defer close(s.frames)

	raw := make([]byte, framesPerRead*2)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := io.ReadFull(r, raw)
		if n >= 2 {
			frame := make([]float32, n/2)
			for i := range frame {
				v := int16(binary.LittleEndian.Uint16(raw[i*2:]))
				frame[i] = float32(v) / 0x8000
			}
			select {
			case s.frames <- frame:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF && ctx.Err() == nil {
				s.logger.Warn("Capture stream read failed", logger.Error(err))
			}
			return
		}
	}
}

// Frames returns the channel of captured frames
func (s *HTTPStreamSource) Frames() <-chan []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Stop disconnects from the capture stream. Idempotent.
func (s *HTTPStreamSource) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	body := s.body
	s.cancel = nil
	s.body = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if body != nil {
		body.Close()
	}
	s.wg.Wait()
	return nil
}
