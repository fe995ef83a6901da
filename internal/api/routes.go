package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/guardline-io/guardline/internal/call"
	"github.com/guardline-io/guardline/internal/config"
	"github.com/guardline-io/guardline/internal/storage/sqlite"
	"github.com/guardline-io/guardline/internal/websocket"
	"github.com/guardline-io/guardline/pkg/logger"
)

// Router is the API router
type Router struct {
	handler    *Handler
	middleware *Middleware
	config     *config.Config
	logger     *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(callService *call.Service, storage *sqlite.UtteranceStorage, cfg *config.Config, log *logger.Logger, wsServer *websocket.Server) *Router {
	return &Router{
		handler:    NewHandler(callService, storage, cfg, wsServer, log),
		middleware: NewMiddleware(log),
		config:     cfg,
		logger:     log.Named("api-router"),
	}
}

// Routes returns the API routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(r.middleware.RequestID)
	router.Use(r.middleware.Logger)
	router.Use(r.middleware.Recoverer)
	router.Use(r.middleware.CORS(r.config.Server.CORSAllowedOrigins))

	// API routes
	router.Route("/api/v1", func(router chi.Router) {
		// Call lifecycle routes
		router.Get("/calls", r.handler.GetActiveCalls)
		router.Post("/calls/{room}/start", r.handler.StartCall)
		router.Post("/calls/{room}/end", r.handler.EndCall)
		router.Get("/calls/{room}/status", r.handler.GetCallStatus)

		// In-call control routes
		router.Post("/calls/{room}/mic", r.handler.SetMic)
		router.Post("/calls/{room}/camera", r.handler.SetCamera)
		router.Put("/calls/{room}/language", r.handler.SetLanguage)

		// Distraction agent routes
		router.Post("/calls/{room}/agent/start", r.handler.StartAgent)
		router.Post("/calls/{room}/agent/stop", r.handler.StopAgent)

		// Transcript and risk routes
		router.Get("/calls/{room}/transcripts", r.handler.GetTranscripts)
		router.Get("/calls/{room}/history", r.handler.GetRoomHistory)
		router.Get("/calls/{room}/risk", r.handler.GetRisk)
		router.Get("/transcripts/session/{sessionId}", r.handler.GetSessionTranscripts)
		router.Get("/transcripts/session/{sessionId}/summary", r.handler.GetSessionSummary)

		// Language routes
		router.Get("/languages", r.handler.GetLanguages)

		// WebSocket route
		router.Get("/ws", r.handler.HandleWebSocket)

		// Health check
		router.Get("/health", r.handler.GetHealth)

		// Configuration
		router.Get("/config", r.handler.GetConfig)
	})

	// Serve static files from the configured directory
	staticHandler := NewStaticFileHandler(r.config.Server.StaticFilesDir, r.logger)
	router.Handle("/*", staticHandler)

	return router
}
