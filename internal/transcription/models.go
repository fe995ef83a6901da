package transcription

import "errors"

// ErrTranscriptionService indicates an upstream non-2xx response. Errors
// from the service skip the chunk; they never stop the pipeline.
var ErrTranscriptionService = errors.New("transcription: service failure")

// Config represents the configuration for the transcription gateway
type Config struct {
	ServiceURL       string
	TimeoutSeconds   int
	MaxRetries       int
	RetryBackoffMs   int
	AnalyzeScam      bool
	DefaultLanguage  string
	MaxUtteranceRuns int // cap on utterances emitted per chunk, 0 for none
}

// Request is the transcription service call contract
type Request struct {
	Audio       string `json:"audio"` // base64 WAV
	AnalyzeScam bool   `json:"analyzeScam"`
	Language    string `json:"language,omitempty"` // ISO-639-1
}

// Response is the transcription service reply. Absence of Text means no new
// utterance. RiskLabel/RiskScore are present only when the service performed
// its own scam analysis.
type Response struct {
	Text      string   `json:"text"`
	RiskLabel string   `json:"risk_label,omitempty"`
	RiskScore *float64 `json:"risk_score,omitempty"`
}
