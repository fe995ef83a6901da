package agent

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

// TTSClient synthesizes agent replies into WAV audio via the configured
// speech service.
type TTSClient struct {
	config     Config
	httpClient *http.Client
	logger     *logger.Logger
}

// NewTTSClient creates a new TTS client
func NewTTSClient(config Config, log *logger.Logger) *TTSClient {
	timeout := time.Duration(config.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &TTSClient{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.Named("agent-tts"),
	}
}

// Synthesize converts text into WAV audio bytes
func (c *TTSClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if c.config.TTSServiceURL == "" {
		return nil, fmt.Errorf("%w: no TTS service configured", ErrAgentService)
	}

	body, err := json.Marshal(TTSRequest{Text: text, Voice: c.config.TTSVoice})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TTS request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TTSServiceURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAgentService, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAgentService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected TTS status %d", ErrAgentService, resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read TTS audio: %v", ErrAgentService, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: TTS returned empty audio", ErrAgentService)
	}

	c.logger.Debug("Synthesized agent speech", logger.Int("bytes", len(audio)))
	return audio, nil
}
