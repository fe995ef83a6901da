package call

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/guardline-io/guardline/internal/agent"
	"github.com/guardline-io/guardline/internal/audio"
	"github.com/guardline-io/guardline/internal/config"
	"github.com/guardline-io/guardline/internal/language"
	"github.com/guardline-io/guardline/internal/scam"
	"github.com/guardline-io/guardline/internal/signaling"
	"github.com/guardline-io/guardline/internal/storage/sqlite"
	"github.com/guardline-io/guardline/internal/transcription"
	"github.com/guardline-io/guardline/internal/websocket"
	"github.com/guardline-io/guardline/pkg/logger"
)

// ErrNoSession indicates an operation on a room with no active session
var ErrNoSession = fmt.Errorf("call: no active session")

// ErrSessionExists indicates a start on a room that already has a session
var ErrSessionExists = fmt.Errorf("call: session already active")

// session bundles the per-room components: one negotiator, one capture
// chain, one transcription pipeline, one risk aggregator and one agent.
type session struct {
	room       string
	clientID   string
	negotiator *Negotiator
	chunker    *audio.Chunker
	processor  *transcription.Processor
	aggregator *scam.Aggregator
	agent      *agent.Agent

	mu       sync.Mutex
	micMuted bool
	cameraOn bool
	cancel   context.CancelFunc
}

// Service manages call sessions keyed by room name. All public methods are
// safe for concurrent use by HTTP handlers.
type Service struct {
	config   *config.Config
	wsServer *websocket.Server
	storage  *sqlite.UtteranceStorage
	txClient *transcription.Client
	logger   *logger.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// NewService creates the call session manager
func NewService(
	cfg *config.Config,
	wsServer *websocket.Server,
	storage *sqlite.UtteranceStorage,
	txClient *transcription.Client,
	log *logger.Logger,
) *Service {
	return &Service{
		config:   cfg,
		wsServer: wsServer,
		storage:  storage,
		txClient: txClient,
		logger:   log.Named("call-service"),
		sessions: make(map[string]*session),
	}
}

// StartSession joins the room and brings up the capture, transcription and
// risk pipeline. captureURL points at the audio source feed for this call.
func (s *Service) StartSession(ctx context.Context, room, captureURL string) error {
	s.mu.Lock()
	if _, exists := s.sessions[room]; exists {
		s.mu.Unlock()
		return ErrSessionExists
	}
	s.mu.Unlock()

	clientID := uuid.NewString()

	aggregator := scam.NewAggregator(
		scam.AggregatorConfig{
			MaxUtterances:  s.config.Risk.MaxUtterances,
			AlertThreshold: s.config.Risk.AlertThreshold,
			OverrideFloor:  s.config.Risk.OverrideFloor,
		},
		s.onAlert,
		nil, // sensitive-data hook bound after the chunker exists
		s.logger,
	)
	aggregator.Reset(room)

	peer, err := NewPeer(s.config.Signaling.STUNServers, s.logger)
	if err != nil {
		return err
	}

	channel := signaling.NewWSChannel(
		s.config.Signaling.ServiceURL,
		s.config.Signaling.APIKey,
		room,
		clientID,
		time.Duration(s.config.Signaling.JoinTimeoutSeconds)*time.Second,
		s.logger,
	)

	negotiator := NewNegotiator(room, clientID, channel, peer, s.wsServer, s.onStatus, s.logger)

	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	processor := transcription.NewProcessor(
		sessCtx,
		s.txClient,
		aggregator,
		s.storage,
		s.wsServer,
		room,
		s.config.Transcription.AnalyzeScam,
		s.logger,
	)

	source := audio.NewHTTPStreamSource(
		captureURL,
		s.config.Audio.SampleRate,
		time.Duration(s.config.Audio.CaptureTimeout)*time.Second,
		audio.Constraints{
			EchoCancel:    s.config.Audio.EchoCancel,
			NoiseSuppress: s.config.Audio.NoiseSuppress,
			AutoGain:      s.config.Audio.AutoGain,
		},
		s.logger,
	)
	chunker := audio.NewChunker(source, processor.HandleChunk, audio.ChunkerConfig{
		SampleRate:    s.config.Audio.SampleRate,
		ChunkInterval: time.Duration(s.config.Audio.ChunkMs) * time.Millisecond,
		VADEnabled:    s.config.Audio.VADEnabled,
		VADThreshold:  s.config.Audio.VADThreshold,
		VADHangover:   time.Duration(s.config.Audio.VADHangoverMs) * time.Millisecond,
	}, s.logger)

	sess := &session{
		room:       room,
		clientID:   clientID,
		negotiator: negotiator,
		chunker:    chunker,
		processor:  processor,
		aggregator: aggregator,
		cancel:     cancel,
	}

	agentCfg := agent.Config{
		ReplyServiceURL: s.config.Agent.ReplyServiceURL,
		TTSServiceURL:   s.config.Agent.TTSServiceURL,
		TTSVoice:        s.config.Agent.TTSVoice,
		OpenAIAPIKey:    s.config.Agent.OpenAIAPIKey,
		Model:           s.config.Agent.Model,
		Temperature:     s.config.Agent.Temperature,
		MaxReplyChars:   s.config.Agent.MaxReplyChars,
		TimeoutSeconds:  s.config.Agent.TimeoutSeconds,
	}
	sessAgent, err := agent.NewAgent(agentCfg, negotiator, aggregator, s.wsServer, room, s.logger)
	if err != nil {
		cancel()
		return err
	}
	sess.agent = sessAgent

	aggregator.SetSensitiveFunc(func(alertRoom string, u scam.Utterance) {
		s.onSensitiveData(sess, alertRoom, u)
	})

	if err := negotiator.Start(sessCtx); err != nil {
		cancel()
		return err
	}
	if err := chunker.Start(sessCtx); err != nil {
		negotiator.End()
		cancel()
		return err
	}

	s.mu.Lock()
	if _, exists := s.sessions[room]; exists {
		s.mu.Unlock()
		chunker.Stop()
		processor.Stop()
		negotiator.End()
		cancel()
		return ErrSessionExists
	}
	s.sessions[room] = sess
	s.mu.Unlock()

	s.logger.Info("Call session started",
		logger.String("room", room),
		logger.String("client_id", clientID))
	return nil
}

// EndSession tears down the room's session. Idempotent per room.
func (s *Service) EndSession(room string) error {
	s.mu.Lock()
	sess, ok := s.sessions[room]
	if ok {
		delete(s.sessions, room)
	}
	s.mu.Unlock()
	if !ok {
		return ErrNoSession
	}

	sess.agent.Stop()
	sess.chunker.Stop()
	sess.processor.Stop()
	sess.negotiator.End()
	sess.cancel()

	s.wsServer.Broadcast(&websocket.Message{
		Type: "call_ended",
		Data: map[string]interface{}{"room": room},
	})
	s.logger.Info("Call session ended", logger.String("room", room))
	return nil
}

// SetMicMuted pauses or resumes audio capture for the room
func (s *Service) SetMicMuted(room string, muted bool) error {
	sess, err := s.get(room)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	sess.micMuted = muted
	sess.mu.Unlock()
	sess.chunker.SetPaused(muted)

	s.wsServer.Broadcast(&websocket.Message{
		Type: "mic_state",
		Data: map[string]interface{}{"room": room, "muted": muted},
	})
	return nil
}

// SetCameraOn toggles the camera flag for the room. Video frames are not
// analyzed; the flag only reflects negotiated track state to clients.
func (s *Service) SetCameraOn(room string, on bool) error {
	sess, err := s.get(room)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	sess.cameraOn = on
	sess.mu.Unlock()

	s.wsServer.Broadcast(&websocket.Message{
		Type: "camera_state",
		Data: map[string]interface{}{"room": room, "on": on},
	})
	return nil
}

// SetLanguage pins the transcription language for the room. An unsupported
// code is rejected; an empty code reverts to auto-detection.
func (s *Service) SetLanguage(room, code string) error {
	sess, err := s.get(room)
	if err != nil {
		return err
	}
	if code != "" && !language.IsSupported(code) {
		return fmt.Errorf("unsupported language code: %q", code)
	}
	sess.processor.SetLanguage(code)
	return nil
}

// StartAgent engages the distraction agent for the room
func (s *Service) StartAgent(ctx context.Context, room string) error {
	sess, err := s.get(room)
	if err != nil {
		return err
	}
	sess.agent.Start(context.WithoutCancel(ctx))
	return nil
}

// StopAgent disengages the distraction agent for the room
func (s *Service) StopAgent(room string) error {
	sess, err := s.get(room)
	if err != nil {
		return err
	}
	sess.agent.Stop()
	return nil
}

// SessionStatus returns the negotiator status for the room
func (s *Service) SessionStatus(room string) (Status, error) {
	sess, err := s.get(room)
	if err != nil {
		return Status{}, err
	}
	return sess.negotiator.Status(), nil
}

// SessionRisk returns the current aggregated risk for the room
func (s *Service) SessionRisk(room string) (scam.SessionRisk, error) {
	sess, err := s.get(room)
	if err != nil {
		return scam.SessionRisk{}, err
	}
	return sess.aggregator.Current(), nil
}

// Utterances returns the room's in-memory utterance list, most recent first
func (s *Service) Utterances(room string) ([]scam.Utterance, error) {
	sess, err := s.get(room)
	if err != nil {
		return nil, err
	}
	return sess.aggregator.Utterances(), nil
}

// SessionID returns the transcription session identity for the room
func (s *Service) SessionID(room string) (string, error) {
	sess, err := s.get(room)
	if err != nil {
		return "", err
	}
	return sess.processor.SessionID(), nil
}

// ActiveRooms lists the rooms with a live session
func (s *Service) ActiveRooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]string, 0, len(s.sessions))
	for room := range s.sessions {
		rooms = append(rooms, room)
	}
	return rooms
}

// Shutdown ends every active session
func (s *Service) Shutdown() {
	for _, room := range s.ActiveRooms() {
		if err := s.EndSession(room); err != nil && err != ErrNoSession {
			s.logger.Warn("Failed to end session during shutdown",
				logger.String("room", room), logger.Error(err))
		}
	}
}

func (s *Service) get(room string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[room]
	if !ok {
		return nil, ErrNoSession
	}
	return sess, nil
}

// onAlert pushes the one-shot session risk alert to connected clients
func (s *Service) onAlert(room string, risk scam.SessionRisk) {
	s.wsServer.Broadcast(&websocket.Message{
		Type: "alert",
		Data: map[string]interface{}{
			"room":  room,
			"value": risk.Value,
			"level": risk.Level,
		},
	})
}

// onSensitiveData mutes the mic and warns the user when the remote side
// asks for one-time codes or passwords. Fires at most once per session.
func (s *Service) onSensitiveData(sess *session, room string, u scam.Utterance) {
	sess.mu.Lock()
	sess.micMuted = true
	sess.mu.Unlock()
	sess.chunker.SetPaused(true)

	s.wsServer.Broadcast(&websocket.Message{
		Type: "mute_warning",
		Data: map[string]interface{}{
			"room":         room,
			"utterance_id": u.ID,
			"text":         u.Text,
			"reason":       "sensitive_data_request",
		},
	})
	s.logger.Warn("Mic muted after sensitive data request",
		logger.String("room", room),
		logger.String("utterance_id", u.ID))
}

// onStatus mirrors negotiator status changes to connected clients
func (s *Service) onStatus(status Status) {
	s.wsServer.Broadcast(&websocket.Message{
		Type: "call_status",
		Data: map[string]interface{}{
			"room":      status.Room,
			"state":     status.State,
			"role":      status.Role,
			"connected": status.Connected,
			"presence":  status.Presence,
		},
	})
}
