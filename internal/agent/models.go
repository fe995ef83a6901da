package agent

import "errors"

// ErrAgentService indicates a reply or TTS service failure. Agent failures
// degrade the distraction feature; they never affect the call itself.
var ErrAgentService = errors.New("agent: service failure")

// Config represents the distraction agent configuration
type Config struct {
	ReplyServiceURL string
	TTSServiceURL   string
	TTSVoice        string
	OpenAIAPIKey    string
	Model           string
	Temperature     float64
	MaxReplyChars   int
	TimeoutSeconds  int
}

// ReplyRequest is the reply service call contract
type ReplyRequest struct {
	Text       string `json:"text"`
	TargetLang string `json:"targetLang"`
}

// ReplyResponse is the reply service response
type ReplyResponse struct {
	Reply string `json:"reply"`
}

// TTSRequest is the speech synthesis service call contract
type TTSRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// stallSystemPrompt shapes the local fallback model into a time-wasting
// conversational partner for the suspected scammer.
const stallSystemPrompt = `You are a stalling assistant on a phone call. ` +
	`Reply to the caller in 6-12 words. Be polite but evasive. ` +
	`Never share personal or financial information. ` +
	`Ask the caller to repeat or clarify whenever possible.`
