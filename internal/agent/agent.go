package agent

import (
	"context"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/guardline-io/guardline/internal/scam"
	"github.com/guardline-io/guardline/internal/websocket"
	"github.com/guardline-io/guardline/pkg/logger"
)

// TrackSwapper swaps the outgoing audio track during agent speech. The call
// peer implements it.
type TrackSwapper interface {
	ReplaceAudioTrack(track webrtc.TrackLocal) error
	RestoreAudioTrack() error
}

// pollInterval is how often the agent checks for a new scammer utterance
const pollInterval = 750 * time.Millisecond

// Agent is the distraction responder. While engaged it answers each new
// scammer utterance exactly once: generate a short stalling reply,
// synthesize it, and speak it over the call by temporarily swapping the
// outgoing audio track.
type Agent struct {
	reply      *ReplyClient
	tts        *TTSClient
	player     *TrackPlayer
	swapper    TrackSwapper
	aggregator *scam.Aggregator
	wsServer   *websocket.Server
	logger     *logger.Logger

	room string

	mu         sync.Mutex
	active     bool
	cancel     context.CancelFunc
	lastSpoken string
	wg         sync.WaitGroup
}

// NewAgent creates a distraction agent for one call session
func NewAgent(
	config Config,
	swapper TrackSwapper,
	aggregator *scam.Aggregator,
	wsServer *websocket.Server,
	room string,
	log *logger.Logger,
) (*Agent, error) {
	player, err := NewTrackPlayer(log)
	if err != nil {
		return nil, err
	}
	return &Agent{
		reply:      NewReplyClient(config, log),
		tts:        NewTTSClient(config, log),
		player:     player,
		swapper:    swapper,
		aggregator: aggregator,
		wsServer:   wsServer,
		room:       room,
		logger:     log.Named("agent"),
	}, nil
}

// Start engages the agent. Idempotent.
func (a *Agent) Start(ctx context.Context) {
	a.mu.Lock()
	if a.active {
		a.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	a.active = true
	a.cancel = cancel

	// Seed with the current latest utterance so engagement only answers
	// speech that arrives after it.
	if utterances := a.aggregator.Utterances(); len(utterances) > 0 {
		a.lastSpoken = utterances[0].ID
	}
	a.mu.Unlock()

	a.wg.Add(1)
	go a.engageLoop(loopCtx)

	a.broadcastStatus(true)
	a.logger.Info("Agent engaged", logger.String("room", a.room))
}

// Stop disengages the agent and restores the capture track. Idempotent.
func (a *Agent) Stop() {
	a.mu.Lock()
	if !a.active {
		a.mu.Unlock()
		return
	}
	a.active = false
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	cancel()
	a.wg.Wait()

	if err := a.swapper.RestoreAudioTrack(); err != nil {
		a.logger.Warn("Failed to restore capture track", logger.Error(err))
	}

	a.broadcastStatus(false)
	a.logger.Info("Agent disengaged", logger.String("room", a.room))
}

// Active reports whether the agent is currently engaged
func (a *Agent) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

func (a *Agent) engageLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			utterances := a.aggregator.Utterances()
			if len(utterances) == 0 {
				continue
			}
			latest := utterances[0]

			a.mu.Lock()
			seen := a.lastSpoken == latest.ID
			if !seen {
				a.lastSpoken = latest.ID
			}
			a.mu.Unlock()
			if seen {
				continue
			}

			a.respond(ctx, latest)
		}
	}
}

// respond answers one utterance: reply text, synthesis, playback. Each
// stage degrades independently so a TTS outage still yields a text reply.
func (a *Agent) respond(ctx context.Context, u scam.Utterance) {
	reply, err := a.reply.GenerateReply(ctx, u.Text, u.Language)
	if err != nil {
		a.logger.Warn("Failed to generate agent reply", logger.Error(err))
		return
	}
	if reply == "" {
		return
	}

	a.wsServer.Broadcast(&websocket.Message{
		Type: "agent_reply",
		Data: map[string]interface{}{
			"room":         a.room,
			"utterance_id": u.ID,
			"text":         reply,
		},
	})

	wavData, err := a.tts.Synthesize(ctx, reply)
	if err != nil {
		a.logger.Warn("Failed to synthesize agent reply", logger.Error(err))
		return
	}

	if err := a.swapper.ReplaceAudioTrack(a.player.Track()); err != nil {
		a.logger.Warn("Failed to swap playback track", logger.Error(err))
		return
	}
	if err := a.player.Play(ctx, wavData); err != nil && ctx.Err() == nil {
		a.logger.Warn("Agent playback failed", logger.Error(err))
	}
	if err := a.swapper.RestoreAudioTrack(); err != nil {
		a.logger.Warn("Failed to restore capture track", logger.Error(err))
	}
}

func (a *Agent) broadcastStatus(engaged bool) {
	a.wsServer.Broadcast(&websocket.Message{
		Type: "agent_status",
		Data: map[string]interface{}{
			"room":    a.room,
			"engaged": engaged,
		},
	})
}
