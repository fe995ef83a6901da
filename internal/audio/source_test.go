package audio

import (
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/guardline-io/guardline/pkg/logger"
)

func TestHTTPStreamSourceForwardsConstraints(t *testing.T) {
	queries := make(chan url.Values, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.Query()

		// One full read quantum, first sample at half scale
		pcm := make([]byte, framesPerRead*2)
		binary.LittleEndian.PutUint16(pcm, uint16(int16(16384)))
		w.Write(pcm)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	}))
	defer server.Close()

	source := NewHTTPStreamSource(server.URL, 24000, 0, Constraints{
		EchoCancel:    true,
		NoiseSuppress: true,
	}, logger.Nop())
	if err := source.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer source.Stop()

	q := <-queries
	if q.Get("echo_cancellation") != "true" {
		t.Errorf("echo_cancellation = %q, want true", q.Get("echo_cancellation"))
	}
	if q.Get("noise_suppression") != "true" {
		t.Errorf("noise_suppression = %q, want true", q.Get("noise_suppression"))
	}
	if q.Get("auto_gain_control") != "false" {
		t.Errorf("auto_gain_control = %q, want false", q.Get("auto_gain_control"))
	}

	select {
	case frame := <-source.Frames():
		if len(frame) != framesPerRead {
			t.Fatalf("frame length = %d, want %d", len(frame), framesPerRead)
		}
		if frame[0] < 0.49 || frame[0] > 0.51 {
			t.Errorf("first sample = %f, want ~0.5", frame[0])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a capture frame")
	}
}

func TestHTTPStreamSourceStopIsIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	}))
	defer server.Close()

	source := NewHTTPStreamSource(server.URL, 24000, 0, Constraints{}, logger.Nop())
	if err := source.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := source.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := source.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
}
