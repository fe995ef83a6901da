package transcription

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/guardline-io/guardline/internal/language"
	"github.com/guardline-io/guardline/internal/scam"
	"github.com/guardline-io/guardline/internal/storage/sqlite"
	"github.com/guardline-io/guardline/internal/websocket"
	"github.com/guardline-io/guardline/pkg/logger"
)

// Processor turns WAV chunks into scored utterances: transcription dispatch,
// sentence segmentation, scam scoring, aggregation, persistence and UI push.
// One processor serves one call session.
type Processor struct {
	ctx    context.Context
	cancel context.CancelFunc

	client     *Client
	aggregator *scam.Aggregator
	storage    *sqlite.UtteranceStorage
	wsServer   *websocket.Server
	logger     *logger.Logger

	room      string
	sessionID string

	mu           sync.Mutex
	live         bool
	analyzeScam  bool
	selectedLang string
	detectedLang *language.Detected
	segmenter    scam.SentenceSegmenter
	pendingStale bool

	wg sync.WaitGroup
}

// NewProcessor creates a processor for one call session
func NewProcessor(
	ctx context.Context,
	client *Client,
	aggregator *scam.Aggregator,
	storage *sqlite.UtteranceStorage,
	wsServer *websocket.Server,
	room string,
	analyzeScam bool,
	log *logger.Logger,
) *Processor {
	procCtx, procCancel := context.WithCancel(ctx)
	return &Processor{
		ctx:         procCtx,
		cancel:      procCancel,
		client:      client,
		aggregator:  aggregator,
		storage:     storage,
		wsServer:    wsServer,
		room:        room,
		sessionID:   uuid.NewString(),
		analyzeScam: analyzeScam,
		live:        true,
		logger:      log.Named("processor"),
	}
}

// SessionID returns the processor's session identity
func (p *Processor) SessionID() string {
	return p.sessionID
}

// SetAnalyzeScam toggles upstream AI risk analysis for subsequent chunks
func (p *Processor) SetAnalyzeScam(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.analyzeScam = enabled
}

// SetLanguage pins the transcription language. An empty code reverts to
// auto-detection.
func (p *Processor) SetLanguage(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selectedLang = code
}

// DetectedLanguage returns the most recent auto-detected language, if any
func (p *Processor) DetectedLanguage() *language.Detected {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.detectedLang
}

// HandleChunk is the chunker's flush handler. It dispatches the
// transcription call asynchronously: the next chunk may be captured and
// flushed while this one is still in flight, and results are applied in
// arrival order.
func (p *Processor) HandleChunk(base64WAV string) error {
	p.mu.Lock()
	if !p.live {
		p.mu.Unlock()
		return nil
	}
	analyze := p.analyzeScam
	lang := p.selectedLang
	if lang == "" && p.detectedLang != nil {
		lang = p.detectedLang.Code
	}
	// Registered under the same lock as the live check; Stop flips live
	// before waiting, so Wait cannot miss a dispatch admitted here.
	p.wg.Add(1)
	p.mu.Unlock()
	go func() {
		defer p.wg.Done()
		p.process(base64WAV, analyze, lang)
	}()
	return nil
}

func (p *Processor) process(base64WAV string, analyze bool, lang string) {
	if lang == "" {
		lang = p.client.config.DefaultLanguage
	}

	resp, err := p.client.Transcribe(p.ctx, Request{
		Audio:       base64WAV,
		AnalyzeScam: analyze,
		Language:    lang,
	})
	if err != nil {
		// Skip this chunk; the capture loop is unaffected
		p.logger.Warn("Transcription failed, skipping chunk", logger.Error(err))
		return
	}
	if resp.Text == "" {
		return
	}

	p.mu.Lock()
	// Liveness gate: a response arriving after Stop must not resurrect
	// stale session state.
	if !p.live {
		p.mu.Unlock()
		return
	}

	if p.selectedLang == "" {
		if det := language.DetectFromText(resp.Text); det != nil {
			p.detectedLang = det
		}
	}
	detected := p.detectedLang

	sentences := p.segmenter.Push(resp.Text)
	// A fragment held across two consecutive chunks is treated as complete
	if len(sentences) == 0 && p.pendingStale {
		if tail := p.segmenter.Drain(); tail != "" {
			sentences = append(sentences, tail)
		}
	}
	p.pendingStale = p.segmenter.HasPending()
	p.mu.Unlock()

	if max := p.client.config.MaxUtteranceRuns; max > 0 && len(sentences) > max {
		p.logger.Warn("Utterance burst capped",
			logger.Int("dropped", len(sentences)-max))
		sentences = sentences[:max]
	}

	for _, sentence := range sentences {
		p.emitUtterance(sentence, resp, analyze, detected)
	}
}

func (p *Processor) emitUtterance(text string, resp *Response, analyze bool, detected *language.Detected) {
	var level scam.RiskLevel
	var score float64

	if analyze && resp.RiskLabel != "" && resp.RiskScore != nil {
		level = scam.RiskLevel(resp.RiskLabel)
		score = *resp.RiskScore
	} else {
		detection := scam.Detect(text)
		score = detection.Score
		level = scam.LevelForScore(score)
	}

	utterance := scam.Utterance{
		ID:        uuid.NewString(),
		Text:      text,
		Timestamp: time.Now().Format("15:04:05"),
		Risk:      level,
		Score:     score,
	}
	if detected != nil {
		utterance.Language = detected.Code
	}

	risk := p.aggregator.Insert(utterance)

	if p.storage != nil {
		record := &sqlite.UtteranceRecord{
			ID:        utterance.ID,
			Room:      p.room,
			SessionID: p.sessionID,
			Text:      utterance.Text,
			Risk:      string(utterance.Risk),
			Score:     utterance.Score,
			Language:  utterance.Language,
			CreatedAt: time.Now().UTC(),
		}
		if err := p.storage.StoreUtterance(record); err != nil {
			p.logger.Error("Failed to persist utterance", logger.Error(err))
		}
	}

	p.wsServer.Broadcast(&websocket.Message{
		Type: "transcript",
		Data: map[string]interface{}{
			"room":      p.room,
			"utterance": utterance,
		},
	})
	p.wsServer.Broadcast(&websocket.Message{
		Type: "risk",
		Data: map[string]interface{}{
			"room":  p.room,
			"value": risk.Value,
			"level": risk.Level,
		},
	})

	p.logger.Debug("Utterance scored",
		logger.String("id", utterance.ID),
		logger.String("risk", string(utterance.Risk)),
		logger.Float64("score", utterance.Score),
		logger.Int("session_value", risk.Value))
}

// Stop gates out in-flight responses and waits for dispatched calls to
// settle. Idempotent.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.live {
		p.mu.Unlock()
		return
	}
	p.live = false
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
	p.logger.Info("Transcription processor stopped",
		logger.String("session_id", p.sessionID))
}
