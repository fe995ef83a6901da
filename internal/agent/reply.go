package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/guardline-io/guardline/pkg/logger"
)

// ReplyClient produces short stalling replies to scammer utterances. It
// prefers the configured reply service and falls back to a local chat
// completion when the service is unavailable.
type ReplyClient struct {
	config     Config
	httpClient *http.Client
	openai     openai.Client
	logger     *logger.Logger
}

// NewReplyClient creates a new reply client
func NewReplyClient(config Config, log *logger.Logger) *ReplyClient {
	timeout := time.Duration(config.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &ReplyClient{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
		openai:     openai.NewClient(option.WithAPIKey(config.OpenAIAPIKey)),
		logger:     log.Named("agent-reply"),
	}
}

// GenerateReply returns a stalling reply for the given utterance, truncated
// to the configured length.
func (c *ReplyClient) GenerateReply(ctx context.Context, text, targetLang string) (string, error) {
	if c.config.ReplyServiceURL != "" {
		reply, err := c.remoteReply(ctx, text, targetLang)
		if err == nil && reply != "" {
			return c.truncateReply(reply), nil
		}
		if err != nil {
			c.logger.Warn("Reply service failed, falling back to local model",
				logger.Error(err))
		}
	}

	reply, err := c.localReply(ctx, text, targetLang)
	if err != nil {
		return "", err
	}
	return c.truncateReply(reply), nil
}

func (c *ReplyClient) remoteReply(ctx context.Context, text, targetLang string) (string, error) {
	body, err := json.Marshal(ReplyRequest{Text: text, TargetLang: targetLang})
	if err != nil {
		return "", fmt.Errorf("failed to marshal reply request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.ReplyServiceURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAgentService, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAgentService, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", ErrAgentService, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status %d", ErrAgentService, resp.StatusCode)
	}

	var reply ReplyResponse
	if err := json.Unmarshal(raw, &reply); err != nil {
		return "", fmt.Errorf("%w: malformed reply payload: %v", ErrAgentService, err)
	}
	return strings.TrimSpace(reply.Reply), nil
}

func (c *ReplyClient) localReply(ctx context.Context, text, targetLang string) (string, error) {
	prompt := stallSystemPrompt
	if targetLang != "" && targetLang != "en" {
		prompt += fmt.Sprintf(" Answer in the language with ISO code %q.", targetLang)
	}

	completion, err := c.openai.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.config.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(c.config.Temperature),
		MaxTokens:   openai.Int(60),
	})
	if err != nil {
		return "", fmt.Errorf("%w: chat completion: %v", ErrAgentService, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: chat completion returned no choices", ErrAgentService)
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

// truncateReply enforces the configured reply length on a rune boundary
func (c *ReplyClient) truncateReply(reply string) string {
	max := c.config.MaxReplyChars
	if max <= 0 {
		max = 160
	}
	if utf8.RuneCountInString(reply) <= max {
		return reply
	}
	runes := []rune(reply)
	return string(runes[:max])
}
