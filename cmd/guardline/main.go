package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guardline-io/guardline/internal/api"
	"github.com/guardline-io/guardline/internal/call"
	"github.com/guardline-io/guardline/internal/config"
	"github.com/guardline-io/guardline/internal/storage/sqlite"
	"github.com/guardline-io/guardline/internal/transcription"
	"github.com/guardline-io/guardline/internal/websocket"
	"github.com/guardline-io/guardline/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting guardline",
		logger.String("config", *configPath),
		logger.Int("port", cfg.Server.Port))

	db, err := sqlite.Open(cfg.Storage.SQLitePath)
	if err != nil {
		log.Error("Failed to open database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	storage, err := sqlite.NewUtteranceStorage(db, log)
	if err != nil {
		log.Error("Failed to initialize utterance storage", logger.Error(err))
		os.Exit(1)
	}

	retentionCtx, retentionCancel := context.WithCancel(context.Background())
	defer retentionCancel()
	if cfg.Storage.RetentionHours > 0 {
		storage.StartRetention(retentionCtx, time.Hour,
			time.Duration(cfg.Storage.RetentionHours)*time.Hour)
	}

	wsServer := websocket.NewServer(cfg.Server.CORSAllowedOrigins, log)

	txClient := transcription.NewClient(transcription.Config{
		ServiceURL:       cfg.Transcription.ServiceURL,
		TimeoutSeconds:   cfg.Transcription.TimeoutSeconds,
		MaxRetries:       cfg.Transcription.MaxRetries,
		RetryBackoffMs:   cfg.Transcription.RetryBackoffMs,
		AnalyzeScam:      cfg.Transcription.AnalyzeScam,
		DefaultLanguage:  cfg.Transcription.DefaultLanguage,
		MaxUtteranceRuns: cfg.Transcription.MaxUtteranceRuns,
	}, log)

	callService := call.NewService(cfg, wsServer, storage, txClient, log)

	router := api.NewRouter(callService, storage, cfg, log, wsServer)
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Error("HTTP server failed", logger.Error(err))
	case sig := <-sigCh:
		log.Info("Received shutdown signal", logger.String("signal", sig.String()))
	}

	callService.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", logger.Error(err))
	}

	log.Info("Shutdown complete")
}
