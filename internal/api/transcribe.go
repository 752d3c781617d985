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

package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AlexandruDanCroitoriu/voicebridge/internal/audio"
	"github.com/AlexandruDanCroitoriu/voicebridge/internal/events"
	"github.com/AlexandruDanCroitoriu/voicebridge/internal/logging"
	"github.com/AlexandruDanCroitoriu/voicebridge/internal/messaging"
	"github.com/AlexandruDanCroitoriu/voicebridge/internal/storage"
	"github.com/AlexandruDanCroitoriu/voicebridge/internal/transcription"
)

// maxUploadBytes caps recording uploads; browser captures are short clips
const maxUploadBytes = 64 << 20

// TranscribeHandler accepts browser-recorded WAV uploads and runs them
// through the transcription pipeline
type TranscribeHandler struct {
	pipeline  *transcription.Pipeline
	store     *storage.TranscriptionEventsStore
	publisher *messaging.NATSService
	audioDir  string
}

// NewTranscribeHandler creates a new transcribe handler. publisher may be nil
// when no broker is configured.
func NewTranscribeHandler(
	pipeline *transcription.Pipeline,
	store *storage.TranscriptionEventsStore,
	publisher *messaging.NATSService,
	audioDir string,
) *TranscribeHandler {
	return &TranscribeHandler{
		pipeline:  pipeline,
		store:     store,
		publisher: publisher,
		audioDir:  audioDir,
	}
}

// TranscribeResponse is returned by the synchronous endpoint
type TranscribeResponse struct {
	UUID          string  `json:"uuid"`
	TaskID        string  `json:"task_id"`
	Transcript    string  `json:"transcript"`
	AudioDuration float64 `json:"audio_duration"`
	ProcessingMS  int64   `json:"processing_time_ms"`
	Success       bool    `json:"success"`
	Error         string  `json:"error,omitempty"`
}

// TranscribeAsyncResponse is returned by the asynchronous endpoint
type TranscribeAsyncResponse struct {
	UUID     string `json:"uuid"`
	TaskID   string `json:"task_id"`
	FilePath string `json:"file_path"`
	Queued   bool   `json:"queued"`
}

// HandleTranscribe handles POST /api/transcribe (synchronous)
func (h *TranscribeHandler) HandleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := readUpload(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	event := events.NewTranscriptionEvent(transcription.NextTaskID(), events.SourceBuffer)
	start := time.Now()

	pcm, err := audio.Decode(data)
	if err != nil {
		h.finishEvent(event, "", err, time.Since(start))
		status := http.StatusBadRequest
		var formatErr *audio.FormatError
		var unsupported *audio.UnsupportedFormatError
		if !errors.As(err, &formatErr) && !errors.As(err, &unsupported) {
			status = http.StatusInternalServerError
		}
		writeJSONStatus(w, status, TranscribeResponse{
			UUID:    event.UUID,
			TaskID:  event.TaskID,
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	event.SampleCount = len(pcm.Samples)
	event.SampleRate = pcm.SampleRate
	event.AudioDuration = pcm.Duration()

	transcript, err := h.pipeline.TranscribeBuffer(pcm.Samples)
	h.finishEvent(event, transcript, err, time.Since(start))

	resp := TranscribeResponse{
		UUID:          event.UUID,
		TaskID:        event.TaskID,
		Transcript:    transcript,
		AudioDuration: event.AudioDuration,
		ProcessingMS:  event.ProcessingTime,
		Success:       event.Success,
		Error:         event.ErrorMessage,
	}

	status := http.StatusOK
	if errors.Is(err, transcription.ErrNotInitialized) {
		status = http.StatusServiceUnavailable
	} else if err != nil {
		status = http.StatusUnprocessableEntity
	}
	writeJSONStatus(w, status, resp)
}

// HandleTranscribeAsync handles POST /api/transcribe/async. The upload is
// spooled to disk, a task is enqueued, and 202 returns immediately; the
// result lands in the event store (and on NATS) when the worker gets to it.
func (h *TranscribeHandler) HandleTranscribeAsync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := readUpload(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := os.MkdirAll(h.audioDir, 0750); err != nil {
		logging.LogError(err, "Failed to create audio spool directory")
		http.Error(w, "failed to store recording", http.StatusInternalServerError)
		return
	}

	event := events.NewTranscriptionEvent("", events.SourceFile)
	path := filepath.Join(h.audioDir, uuid.NewString()+".wav")
	if err := os.WriteFile(path, data, 0640); err != nil {
		logging.LogError(err, "Failed to spool recording", zap.String("path", path))
		http.Error(w, "failed to store recording", http.StatusInternalServerError)
		return
	}
	event.FilePath = path

	start := time.Now()
	future, err := h.pipeline.TranscribeFileAsync(path)
	if err != nil {
		h.finishEvent(event, "", err, time.Since(start))
		status := http.StatusInternalServerError
		if errors.Is(err, transcription.ErrNotInitialized) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}
	event.TaskID = future.TaskID()

	// Settle the record once the worker finishes. The pipeline keeps one
	// error slot shared by all tasks, so with concurrent requests the
	// attribution here is best-effort.
	go func() {
		transcript := future.Wait()
		var taskErr error
		if transcript == "" {
			if lastErr := h.pipeline.LastError(); lastErr != "" {
				taskErr = errors.New(lastErr)
			}
		}
		h.finishEvent(event, transcript, taskErr, time.Since(start))
	}()

	writeJSONStatus(w, http.StatusAccepted, TranscribeAsyncResponse{
		UUID:     event.UUID,
		TaskID:   event.TaskID,
		FilePath: path,
		Queued:   true,
	})
}

// finishEvent fills in the result fields, persists the event and broadcasts it
func (h *TranscribeHandler) finishEvent(event *events.TranscriptionEvent, transcript string, err error, elapsed time.Duration) {
	event.Transcript = transcript
	event.ProcessingTime = elapsed.Milliseconds()
	if err != nil {
		event.Success = false
		event.ErrorMessage = err.Error()
	}

	if h.store != nil {
		if storeErr := h.store.Insert(event); storeErr != nil {
			logging.LogError(storeErr, "Failed to store transcription event",
				zap.String("uuid", event.UUID))
		}
	}

	if h.publisher != nil && h.publisher.Connected() {
		if pubErr := h.publisher.PublishTranscription(event); pubErr != nil {
			logging.LogError(pubErr, "Failed to publish transcription event",
				zap.String("uuid", event.UUID))
		}
	}

	logging.LogTranscription(event.TaskID, event.Source,
		zap.String("uuid", event.UUID),
		zap.Int("sample_count", event.SampleCount),
		zap.Int64("processing_ms", event.ProcessingTime),
		zap.Bool("success", event.Success),
	)
}

// readUpload extracts WAV bytes from either a multipart form ("audio" field,
// what the recorder widget sends) or a raw request body
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, _, err := r.FormFile("audio")
		if err != nil {
			return nil, errors.New("multipart upload requires an \"audio\" file field")
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, errors.New("uploaded audio file is empty")
		}
		return data, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("request body is empty")
	}
	return data, nil
}
