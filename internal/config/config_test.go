package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }},
		{"zero chunk interval", func(c *Config) { c.Audio.ChunkMs = 0 }},
		{"vad without threshold", func(c *Config) { c.Audio.VADEnabled = true; c.Audio.VADThreshold = 0 }},
		{"zero max utterances", func(c *Config) { c.Risk.MaxUtterances = 0 }},
		{"alert threshold out of range", func(c *Config) { c.Risk.AlertThreshold = 100 }},
		{"zero reply chars", func(c *Config) { c.Agent.MaxReplyChars = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Load of missing file should fail")
	}
}

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
port = 9090

[audio]
sample_rate = 16000

[transcription]
service_url = "http://localhost:5001/transcribe"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("sample rate = %d, want 16000", cfg.Audio.SampleRate)
	}
	if cfg.Transcription.ServiceURL != "http://localhost:5001/transcribe" {
		t.Errorf("service url = %q", cfg.Transcription.ServiceURL)
	}

	// Untouched sections keep their defaults
	if cfg.Risk.MaxUtterances != 100 {
		t.Errorf("max utterances default = %d, want 100", cfg.Risk.MaxUtterances)
	}
	if cfg.Audio.ChunkMs != 1000 {
		t.Errorf("chunk ms default = %d, want 1000", cfg.Audio.ChunkMs)
	}
	if cfg.Agent.MaxReplyChars != 160 {
		t.Errorf("max reply chars default = %d, want 160", cfg.Agent.MaxReplyChars)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
port = -1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load of invalid config should fail")
	}
}
