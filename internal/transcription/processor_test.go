package transcription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/guardline-io/guardline/internal/scam"
	"github.com/guardline-io/guardline/internal/websocket"
	"github.com/guardline-io/guardline/pkg/logger"
)

func newTestProcessor(t *testing.T, serviceText string, analyze bool) (*Processor, *scam.Aggregator) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Response{Text: serviceText})
	}))
	t.Cleanup(server.Close)

	aggregator := scam.NewAggregator(scam.AggregatorConfig{}, nil, nil, logger.Nop())
	aggregator.Reset("room-1")

	wsServer := websocket.NewServer(nil, logger.Nop())
	client := newTestClient(server.URL, 1)

	p := NewProcessor(context.Background(), client, aggregator, nil, wsServer, "room-1", analyze, logger.Nop())
	t.Cleanup(p.Stop)
	return p, aggregator
}

func waitForUtterances(t *testing.T, agg *scam.Aggregator, n int) []scam.Utterance {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if utterances := agg.Utterances(); len(utterances) >= n {
			return utterances
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d utterances", n)
	return nil
}

func TestProcessorScoresCompletedSentences(t *testing.T) {
	p, agg := newTestProcessor(t, "You won the lottery prize. Claim your prize now.", false)

	if err := p.HandleChunk("QUJD"); err != nil {
		t.Fatalf("HandleChunk failed: %v", err)
	}

	utterances := waitForUtterances(t, agg, 2)
	if len(utterances) != 2 {
		t.Fatalf("utterances = %d, want 2", len(utterances))
	}
	// Most recent first; both sentences carry local risk results
	for _, u := range utterances {
		if u.ID == "" || u.Timestamp == "" {
			t.Errorf("utterance missing identity: %+v", u)
		}
		if u.Risk == "" {
			t.Errorf("utterance missing risk level: %+v", u)
		}
	}
}

func TestProcessorHoldsTrailingFragment(t *testing.T) {
	p, agg := newTestProcessor(t, "This fragment never terminates", false)

	if err := p.HandleChunk("QUJD"); err != nil {
		t.Fatalf("HandleChunk failed: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if got := len(agg.Utterances()); got != 0 {
		t.Fatalf("fragment emitted %d utterances after one chunk, want 0", got)
	}

	// A second chunk without sentence terminals flushes the stale fragment
	if err := p.HandleChunk("QUJD"); err != nil {
		t.Fatalf("HandleChunk failed: %v", err)
	}
	waitForUtterances(t, agg, 1)
}

func TestProcessorStopGatesLateChunks(t *testing.T) {
	p, agg := newTestProcessor(t, "Hello there.", false)

	p.Stop()
	if err := p.HandleChunk("QUJD"); err != nil {
		t.Fatalf("HandleChunk after Stop should be a silent no-op, got %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if got := len(agg.Utterances()); got != 0 {
		t.Errorf("utterances after Stop = %d, want 0", got)
	}
}

func TestProcessorCapsUtteranceBurst(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Response{Text: "One. Two. Three. Four."})
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{
		ServiceURL:       server.URL,
		TimeoutSeconds:   5,
		MaxRetries:       1,
		RetryBackoffMs:   1,
		MaxUtteranceRuns: 2,
	}, logger.Nop())

	aggregator := scam.NewAggregator(scam.AggregatorConfig{}, nil, nil, logger.Nop())
	aggregator.Reset("room-1")
	wsServer := websocket.NewServer(nil, logger.Nop())

	p := NewProcessor(context.Background(), client, aggregator, nil, wsServer, "room-1", false, logger.Nop())
	t.Cleanup(p.Stop)

	if err := p.HandleChunk("QUJD"); err != nil {
		t.Fatalf("HandleChunk failed: %v", err)
	}

	waitForUtterances(t, aggregator, 2)
	time.Sleep(100 * time.Millisecond)
	if got := len(aggregator.Utterances()); got != 2 {
		t.Errorf("utterances = %d, want burst capped at 2", got)
	}
}

func TestProcessorStopIsStrictBarrier(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		json.NewEncoder(w).Encode(Response{Text: "Hello there."})
	}))
	t.Cleanup(server.Close)

	aggregator := scam.NewAggregator(scam.AggregatorConfig{}, nil, nil, logger.Nop())
	aggregator.Reset("room-1")
	wsServer := websocket.NewServer(nil, logger.Nop())
	client := newTestClient(server.URL, 1)

	p := NewProcessor(context.Background(), client, aggregator, nil, wsServer, "room-1", false, logger.Nop())

	// Race a burst of dispatches against Stop; once Stop returns, no
	// dispatched goroutine may still be starting up.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.HandleChunk("QUJD")
		}()
	}
	p.Stop()
	wg.Wait()

	// Requests aborted by Stop may still be settling server-side; after a
	// short settle no new dispatch may appear.
	time.Sleep(50 * time.Millisecond)
	frozen := atomic.LoadInt32(&requests)
	time.Sleep(150 * time.Millisecond)
	if got := atomic.LoadInt32(&requests); got != frozen {
		t.Errorf("requests grew from %d to %d after Stop returned", frozen, got)
	}
}

func TestProcessorStopIsIdempotent(t *testing.T) {
	p, _ := newTestProcessor(t, "Hello there.", false)
	p.Stop()
	p.Stop()
}
