package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/guardline-io/guardline/pkg/logger"
)

func TestSynthesize(t *testing.T) {
	wav := []byte("RIFFfake-wav-bytes")
	var received TTSRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(wav)
	}))
	defer server.Close()

	client := NewTTSClient(Config{TTSServiceURL: server.URL, TTSVoice: "alloy"}, logger.Nop())
	audio, err := client.Synthesize(context.Background(), "one moment please")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if !bytes.Equal(audio, wav) {
		t.Errorf("audio = %q, want service bytes", audio)
	}
	if received.Text != "one moment please" || received.Voice != "alloy" {
		t.Errorf("request = %+v, want text and voice", received)
	}
}

func TestSynthesizeServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewTTSClient(Config{TTSServiceURL: server.URL}, logger.Nop())
	if _, err := client.Synthesize(context.Background(), "text"); !errors.Is(err, ErrAgentService) {
		t.Errorf("error = %v, want ErrAgentService", err)
	}
}

func TestSynthesizeEmptyAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewTTSClient(Config{TTSServiceURL: server.URL}, logger.Nop())
	if _, err := client.Synthesize(context.Background(), "text"); !errors.Is(err, ErrAgentService) {
		t.Errorf("error = %v, want ErrAgentService", err)
	}
}

func TestSynthesizeRequiresServiceURL(t *testing.T) {
	client := NewTTSClient(Config{}, logger.Nop())
	if _, err := client.Synthesize(context.Background(), "text"); !errors.Is(err, ErrAgentService) {
		t.Errorf("error = %v, want ErrAgentService", err)
	}
}
