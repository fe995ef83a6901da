package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the top-level application configuration
type Config struct {
	Server        ServerConfig        `toml:"server"`
	Logging       LoggingConfig       `toml:"logging"`
	Audio         AudioConfig         `toml:"audio"`
	Transcription TranscriptionConfig `toml:"transcription"`
	Signaling     SignalingConfig     `toml:"signaling"`
	Risk          RiskConfig          `toml:"risk"`
	Agent         AgentConfig         `toml:"agent"`
	Storage       StorageConfig       `toml:"storage"`
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Host               string   `toml:"host"`
	Port               int      `toml:"port"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
	StaticFilesDir     string   `toml:"static_files_dir"`
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// AudioConfig represents the capture/chunking configuration
type AudioConfig struct {
	SampleRate     int     `toml:"sample_rate"`
	ChunkMs        int     `toml:"chunk_ms"`
	VADEnabled     bool    `toml:"vad_enabled"`
	VADThreshold   float64 `toml:"vad_threshold"`
	VADHangoverMs  int     `toml:"vad_hangover_ms"`
	EchoCancel     bool    `toml:"echo_cancellation"`
	NoiseSuppress  bool    `toml:"noise_suppression"`
	AutoGain       bool    `toml:"auto_gain_control"`
	CaptureTimeout int     `toml:"capture_timeout_seconds"`
}

// TranscriptionConfig represents the transcription gateway configuration
type TranscriptionConfig struct {
	ServiceURL       string `toml:"service_url"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	MaxRetries       int    `toml:"max_retries"`
	RetryBackoffMs   int    `toml:"retry_backoff_ms"`
	AnalyzeScam      bool   `toml:"analyze_scam"`
	DefaultLanguage  string `toml:"default_language"`
	MaxUtteranceRuns int    `toml:"max_utterance_runs"`
}

// SignalingConfig represents the pub/sub signaling channel configuration
type SignalingConfig struct {
	ServiceURL         string   `toml:"service_url"`
	APIKey             string   `toml:"api_key"`
	JoinTimeoutSeconds int      `toml:"join_timeout_seconds"`
	STUNServers        []string `toml:"stun_servers"`
}

// RiskConfig represents session risk aggregation configuration
type RiskConfig struct {
	MaxUtterances  int `toml:"max_utterances"`
	AlertThreshold int `toml:"alert_threshold"`
	OverrideFloor  int `toml:"override_floor"`
}

// AgentConfig represents the distraction agent configuration
type AgentConfig struct {
	ReplyServiceURL string  `toml:"reply_service_url"`
	TTSServiceURL   string  `toml:"tts_service_url"`
	TTSVoice        string  `toml:"tts_voice"`
	OpenAIAPIKey    string  `toml:"openai_api_key"`
	Model           string  `toml:"model"`
	Temperature     float64 `toml:"temperature"`
	MaxReplyChars   int     `toml:"max_reply_chars"`
	TimeoutSeconds  int     `toml:"timeout_seconds"`
}

// StorageConfig represents the storage configuration
type StorageConfig struct {
	SQLitePath     string `toml:"sqlite_path"`
	RetentionHours int    `toml:"retention_hours"` // 0 disables pruning
}

// DefaultConfig returns a configuration with sane defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			CORSAllowedOrigins: []string{"*"},
			StaticFilesDir:     "web",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Audio: AudioConfig{
			SampleRate:    24000,
			ChunkMs:       1000,
			VADEnabled:    true,
			VADThreshold:  0.01,
			VADHangoverMs: 500,
			EchoCancel:    true,
			NoiseSuppress: true,
			AutoGain:      true,
		},
		Transcription: TranscriptionConfig{
			TimeoutSeconds:   15,
			MaxRetries:       3,
			RetryBackoffMs:   250,
			MaxUtteranceRuns: 8,
		},
		Signaling: SignalingConfig{
			JoinTimeoutSeconds: 10,
			STUNServers: []string{
				"stun:stun.l.google.com:19302",
				"stun:global.stun.twilio.com:3478",
			},
		},
		Risk: RiskConfig{
			MaxUtterances:  100,
			AlertThreshold: 50,
			OverrideFloor:  51,
		},
		Agent: AgentConfig{
			Model:          "gpt-4o-mini",
			Temperature:    0.8,
			MaxReplyChars:  160,
			TimeoutSeconds: 20,
			TTSVoice:       "en_US-hfc_female-medium",
		},
		Storage: StorageConfig{
			SQLitePath:     "guardline.db",
			RetentionHours: 72,
		},
	}
}

// Load loads the configuration from the given TOML file, applying defaults
// for any omitted values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("invalid audio sample rate: %d", c.Audio.SampleRate)
	}
	if c.Audio.ChunkMs <= 0 {
		return fmt.Errorf("invalid audio chunk interval: %d", c.Audio.ChunkMs)
	}
	if c.Audio.VADEnabled && c.Audio.VADThreshold <= 0 {
		return fmt.Errorf("vad threshold must be positive when vad is enabled")
	}
	if c.Risk.MaxUtterances <= 0 {
		return fmt.Errorf("invalid max utterances: %d", c.Risk.MaxUtterances)
	}
	if c.Risk.AlertThreshold <= 0 || c.Risk.AlertThreshold >= 100 {
		return fmt.Errorf("invalid alert threshold: %d", c.Risk.AlertThreshold)
	}
	if c.Agent.MaxReplyChars <= 0 {
		return fmt.Errorf("invalid max reply chars: %d", c.Agent.MaxReplyChars)
	}
	return nil
}
