package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/guardline-io/guardline/internal/call"
	"github.com/guardline-io/guardline/internal/config"
	"github.com/guardline-io/guardline/internal/language"
	"github.com/guardline-io/guardline/internal/storage/sqlite"
	"github.com/guardline-io/guardline/internal/websocket"
	"github.com/guardline-io/guardline/pkg/logger"
)

// Handler contains the HTTP handlers for the API
type Handler struct {
	callService *call.Service
	storage     *sqlite.UtteranceStorage
	config      *config.Config
	wsServer    *websocket.Server
	logger      *logger.Logger
	startedAt   time.Time
}

// NewHandler creates a new API handler
func NewHandler(
	callService *call.Service,
	storage *sqlite.UtteranceStorage,
	cfg *config.Config,
	wsServer *websocket.Server,
	log *logger.Logger,
) *Handler {
	return &Handler{
		callService: callService,
		storage:     storage,
		config:      cfg,
		wsServer:    wsServer,
		logger:      log.Named("api-handler"),
		startedAt:   time.Now().UTC(),
	}
}

type startCallRequest struct {
	CaptureURL string `json:"capture_url"`
}

type micRequest struct {
	Muted bool `json:"muted"`
}

type cameraRequest struct {
	On bool `json:"on"`
}

type languageRequest struct {
	Code string `json:"code"`
}

// StartCall starts a call session in the given room
func (h *Handler) StartCall(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	if room == "" {
		h.respondError(w, http.StatusBadRequest, "room is required")
		return
	}

	var req startCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CaptureURL == "" {
		h.respondError(w, http.StatusBadRequest, "capture_url is required")
		return
	}

	if err := h.callService.StartSession(r.Context(), room, req.CaptureURL); err != nil {
		if errors.Is(err, call.ErrSessionExists) {
			h.respondError(w, http.StatusConflict, "session already active")
			return
		}
		h.logger.Error("Failed to start call session",
			logger.String("room", room), logger.Error(err))
		h.respondError(w, http.StatusBadGateway, "failed to start call session")
		return
	}

	status, _ := h.callService.SessionStatus(room)
	h.respondJSON(w, http.StatusCreated, status)
}

// EndCall ends the room's call session
func (h *Handler) EndCall(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	if err := h.callService.EndSession(room); err != nil {
		h.respondNoSession(w, err, room)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"room": room, "state": "ended"})
}

// GetCallStatus returns the negotiator status for the room
func (h *Handler) GetCallStatus(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	status, err := h.callService.SessionStatus(room)
	if err != nil {
		h.respondNoSession(w, err, room)
		return
	}
	h.respondJSON(w, http.StatusOK, status)
}

// SetMic mutes or unmutes capture for the room
func (h *Handler) SetMic(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	var req micRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.callService.SetMicMuted(room, req.Muted); err != nil {
		h.respondNoSession(w, err, room)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"room": room, "muted": req.Muted})
}

// SetCamera toggles the camera flag for the room
func (h *Handler) SetCamera(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	var req cameraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.callService.SetCameraOn(room, req.On); err != nil {
		h.respondNoSession(w, err, room)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"room": room, "on": req.On})
}

// SetLanguage pins or clears the transcription language for the room
func (h *Handler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	var req languageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.callService.SetLanguage(room, req.Code); err != nil {
		if errors.Is(err, call.ErrNoSession) {
			h.respondNoSession(w, err, room)
			return
		}
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"room": room, "code": req.Code})
}

// StartAgent engages the distraction agent for the room
func (h *Handler) StartAgent(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	if err := h.callService.StartAgent(r.Context(), room); err != nil {
		h.respondNoSession(w, err, room)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"room": room, "engaged": true})
}

// StopAgent disengages the distraction agent for the room
func (h *Handler) StopAgent(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	if err := h.callService.StopAgent(room); err != nil {
		h.respondNoSession(w, err, room)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"room": room, "engaged": false})
}

// GetActiveCalls lists the rooms with live sessions
func (h *Handler) GetActiveCalls(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"rooms": h.callService.ActiveRooms(),
	})
}

// GetRisk returns the current aggregated session risk for the room
func (h *Handler) GetRisk(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	risk, err := h.callService.SessionRisk(room)
	if err != nil {
		h.respondNoSession(w, err, room)
		return
	}
	h.respondJSON(w, http.StatusOK, risk)
}

// GetTranscripts returns the room's in-memory utterance list, newest first
func (h *Handler) GetTranscripts(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	utterances, err := h.callService.Utterances(room)
	if err != nil {
		h.respondNoSession(w, err, room)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"room":       room,
		"utterances": utterances,
	})
}

// GetSessionTranscripts returns persisted utterances for one session
func (h *Handler) GetSessionTranscripts(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	records, err := h.storage.GetBySession(sessionID, 100)
	if err != nil {
		h.logger.Error("Failed to query session transcripts", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to query transcripts")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"utterances": records,
	})
}

// GetRoomHistory returns persisted utterances for a room, newest first.
// The window defaults to the last 24 hours; since_minutes narrows it.
func (h *Handler) GetRoomHistory(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")

	since := time.Now().UTC().Add(-24 * time.Hour)
	if v := r.URL.Query().Get("since_minutes"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil || minutes <= 0 {
			h.respondError(w, http.StatusBadRequest, "invalid since_minutes")
			return
		}
		since = time.Now().UTC().Add(-time.Duration(minutes) * time.Minute)
	}

	records, err := h.storage.GetByRoom(room, since, 100)
	if err != nil {
		h.logger.Error("Failed to query room history", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to query history")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"room":       room,
		"utterances": records,
	})
}

// GetSessionSummary returns the persisted risk summary for one session
func (h *Handler) GetSessionSummary(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	summary, err := h.storage.GetSessionSummary(sessionID)
	if err != nil {
		h.logger.Error("Failed to query session summary", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to query summary")
		return
	}
	if summary == nil {
		h.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	h.respondJSON(w, http.StatusOK, summary)
}

// GetLanguages returns the selectable transcription languages
func (h *Handler) GetLanguages(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"languages": language.Supported(),
	})
}

// GetHealth returns the service health status
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"active_calls":   len(h.callService.ActiveRooms()),
		"ws_clients":     h.wsServer.ClientCount(),
	})
}

// GetConfig returns the non-sensitive runtime configuration
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"audio": map[string]interface{}{
			"sample_rate": h.config.Audio.SampleRate,
			"chunk_ms":    h.config.Audio.ChunkMs,
			"vad_enabled": h.config.Audio.VADEnabled,
		},
		"risk": map[string]interface{}{
			"max_utterances":  h.config.Risk.MaxUtterances,
			"alert_threshold": h.config.Risk.AlertThreshold,
		},
		"agent": map[string]interface{}{
			"model":           h.config.Agent.Model,
			"max_reply_chars": h.config.Agent.MaxReplyChars,
		},
	})
}

// HandleWebSocket upgrades the connection and registers the client
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsServer.HandleConnection(w, r)
}

func (h *Handler) respondNoSession(w http.ResponseWriter, err error, room string) {
	if errors.Is(err, call.ErrNoSession) {
		h.respondError(w, http.StatusNotFound, "no active session for room "+room)
		return
	}
	h.logger.Error("Call operation failed",
		logger.String("room", room), logger.Error(err))
	h.respondError(w, http.StatusInternalServerError, "call operation failed")
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", logger.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
