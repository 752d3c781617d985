/*
 * This file is part of Voicebridge (https://github.com/AlexandruDanCroitoriu/voicebridge).
 * Copyright (C) 2025 Alexandru Dan Croitoriu
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/AlexandruDanCroitoriu/voicebridge/internal/api"
	"github.com/AlexandruDanCroitoriu/voicebridge/internal/config"
	"github.com/AlexandruDanCroitoriu/voicebridge/internal/logging"
	"github.com/AlexandruDanCroitoriu/voicebridge/internal/messaging"
	"github.com/AlexandruDanCroitoriu/voicebridge/internal/storage"
	"github.com/AlexandruDanCroitoriu/voicebridge/internal/transcription"
)

// Server wires the transcription pipeline, event store, NATS publisher and
// HTTP API together
type Server struct {
	cfg *config.Config
	mux *http.ServeMux
	srv *http.Server

	pipeline *transcription.Pipeline
	db       *storage.Database
	store    *storage.TranscriptionEventsStore
	nats     *messaging.NATSService

	transcribeHandler     *api.TranscribeHandler
	transcriptionsHandler *api.TranscriptionsHandler

	// Server context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new server with the default whisper engine
func New(cfg *config.Config) (*Server, error) {
	pipeline := transcription.New(transcription.Config{
		ModelPath: cfg.Whisper.ModelPath,
		Language:  cfg.Whisper.Language,
		Threads:   cfg.Whisper.Threads,
	})
	return NewWithPipeline(cfg, pipeline)
}

// NewWithPipeline creates a new server around an existing pipeline. Used by
// tests to inject a fake engine.
func NewWithPipeline(cfg *config.Config, pipeline *transcription.Pipeline) (*Server, error) {
	db, err := storage.NewDatabase(storage.DatabaseConfig{Path: cfg.Server.DBPath})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := storage.NewTranscriptionEventsStore(db)

	var natsService *messaging.NATSService
	if cfg.NATS.URL != "" {
		natsService = messaging.NewNATSService(messaging.Config{
			URL:           cfg.NATS.URL,
			Subject:       cfg.NATS.Subject,
			MaxReconnect:  cfg.NATS.MaxReconnect,
			ReconnectWait: cfg.NATS.ReconnectWait,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		pipeline: pipeline,
		db:       db,
		store:    store,
		nats:     natsService,
		ctx:      ctx,
		cancel:   cancel,
	}

	s.transcribeHandler = api.NewTranscribeHandler(pipeline, store, natsService, cfg.Server.AudioDir)
	s.transcriptionsHandler = api.NewTranscriptionsHandler(store)

	s.srv = &http.Server{
		Addr:         cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      s.mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.routes()

	return s, nil
}

// Handler exposes the route mux for tests
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start initializes the pipeline, connects to NATS and serves HTTP. It
// blocks until the server is shut down.
func (s *Server) Start() error {
	if err := s.pipeline.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize transcription pipeline: %w", err)
	}

	// NATS is best-effort: the service still works without a broker
	if s.nats != nil {
		if err := s.nats.Connect(); err != nil {
			logging.LogWarn("NATS unavailable, transcript publishing disabled")
		}
	}

	logging.Sugar.Infow("🚀 Voicebridge starting",
		"http_addr", s.srv.Addr,
		"model_path", s.cfg.Whisper.ModelPath,
		"db_path", s.cfg.Server.DBPath)

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop gracefully shuts down the server: HTTP first, then the pipeline
// (draining queued tasks), then NATS and the database.
func (s *Server) Stop() error {
	logging.Sugar.Infow("🛑 Shutting down Voicebridge")

	s.cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		logging.LogError(err, "HTTP server shutdown failed")
	}

	s.pipeline.Shutdown()

	if s.nats != nil {
		s.nats.Close()
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	logging.Sugar.Infow("✅ Voicebridge shut down successfully")
	return nil
}

// routes sets up HTTP routing
func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/status", s.handleStatus)

	s.mux.HandleFunc("/api/transcribe", s.transcribeHandler.HandleTranscribe)
	s.mux.HandleFunc("/api/transcribe/async", s.transcribeHandler.HandleTranscribeAsync)

	s.mux.HandleFunc("/api/transcriptions", s.transcriptionsHandler.HandleTranscriptions)
	s.mux.HandleFunc("/api/transcriptions/", s.transcriptionsHandler.HandleTranscriptionByID)

	logging.Sugar.Infow("🌐 HTTP routes configured",
		"transcribe_endpoint", "/api/transcribe",
		"async_endpoint", "/api/transcribe/async",
		"transcriptions_endpoint", "/api/transcriptions")
}

// handleHealth provides a liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"service":   "voicebridge",
	}

	if err := s.db.Ping(); err != nil {
		health["status"] = "degraded"
		health["database"] = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		logging.Sugar.Errorw("Failed to write health response", "error", err)
	}
}

// handleStatus reports pipeline state for diagnostics
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := map[string]interface{}{
		"initialized": s.pipeline.Initialized(),
		"queue_depth": s.pipeline.QueueDepth(),
		"model_path":  s.cfg.Whisper.ModelPath,
		"language":    s.cfg.Whisper.Language,
	}
	if lastErr := s.pipeline.LastError(); lastErr != "" {
		status["last_error"] = lastErr
	}
	if s.nats != nil {
		status["nats_connected"] = s.nats.Connected()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		logging.Sugar.Errorw("Failed to write status response", "error", err)
	}
}
