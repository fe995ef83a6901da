package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/guardline-io/guardline/pkg/logger"
)

// Client is the gateway to the external transcription service
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new transcription client
func NewClient(config Config, log *logger.Logger) *Client {
	timeout := time.Duration(config.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.Named("transcribe-cli"),
	}
}

// Transcribe sends one WAV chunk to the service and returns the parsed
// response. Upstream model output with a malformed JSON body degrades to a
// low-risk raw-text response rather than failing the chunk.
func (c *Client) Transcribe(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transcription request: %w", err)
	}

	maxRetries := c.config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	backoff := time.Duration(c.config.RetryBackoffMs) * time.Millisecond
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		resp, err := c.doRequest(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		c.logger.Warn("Transcription request failed",
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", maxRetries),
			logger.Error(err))
	}

	return nil, lastErr
}

func (c *Client) doRequest(ctx context.Context, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.ServiceURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscriptionService, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscriptionService, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrTranscriptionService, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d: %s", ErrTranscriptionService, httpResp.StatusCode, truncate(string(raw), 200))
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		// Upstream models occasionally wrap the transcript in prose or
		// broken JSON. Degrade instead of dropping speech.
		c.logger.Warn("Malformed transcription payload, degrading to raw text",
			logger.Error(err))
		score := 0.2
		return &Response{Text: string(raw), RiskLabel: "low", RiskScore: &score}, nil
	}

	return &resp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
