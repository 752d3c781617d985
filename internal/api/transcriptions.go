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
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AlexandruDanCroitoriu/voicebridge/internal/events"
	"github.com/AlexandruDanCroitoriu/voicebridge/internal/logging"
	"github.com/AlexandruDanCroitoriu/voicebridge/internal/storage"
)

// TranscriptionsHandler handles HTTP requests for stored transcription events
type TranscriptionsHandler struct {
	store *storage.TranscriptionEventsStore
}

// NewTranscriptionsHandler creates a new transcriptions handler
func NewTranscriptionsHandler(store *storage.TranscriptionEventsStore) *TranscriptionsHandler {
	return &TranscriptionsHandler{store: store}
}

// ListTranscriptionsResponse represents the response for listing transcription events
type ListTranscriptionsResponse struct {
	Events     []*events.TranscriptionEvent `json:"events"`
	Total      int64                        `json:"total"`
	Page       int                          `json:"page"`
	PageSize   int                          `json:"page_size"`
	TotalPages int                          `json:"total_pages"`
}

// HandleTranscriptions handles GET /api/transcriptions
func (h *TranscriptionsHandler) HandleTranscriptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.listTranscriptions(w, r)
}

// HandleTranscriptionByID handles GET /api/transcriptions/{uuid}
func (h *TranscriptionsHandler) HandleTranscriptionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/transcriptions/"), "/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		http.Error(w, "Transcription ID is required", http.StatusBadRequest)
		return
	}

	h.getTranscriptionByID(w, pathParts[0])
}

func (h *TranscriptionsHandler) listTranscriptions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// Pagination
	page := parseIntParam(query.Get("page"), 1)
	pageSize := parseIntParam(query.Get("page_size"), 20)
	if pageSize > 100 {
		pageSize = 100 // Limit maximum page size
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if page < 1 {
		page = 1
	}

	// Filtering
	options := storage.ListOptions{
		Source:    query.Get("source"),
		Limit:     pageSize,
		Offset:    (page - 1) * pageSize,
		SortBy:    query.Get("sort_by"),
		SortOrder: strings.ToUpper(query.Get("sort_order")),
	}

	if successStr := query.Get("success"); successStr != "" {
		if success, err := strconv.ParseBool(successStr); err == nil {
			options.Success = &success
		}
	}

	if startTimeStr := query.Get("start_time"); startTimeStr != "" {
		if startTime, err := time.Parse(time.RFC3339, startTimeStr); err == nil {
			options.StartTime = &startTime
		}
	}
	if endTimeStr := query.Get("end_time"); endTimeStr != "" {
		if endTime, err := time.Parse(time.RFC3339, endTimeStr); err == nil {
			options.EndTime = &endTime
		}
	}

	total, err := h.store.Count(options)
	if err != nil {
		logging.LogError(err, "Failed to count transcription events")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	eventsList, err := h.store.List(options)
	if err != nil {
		logging.LogError(err, "Failed to list transcription events")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	response := ListTranscriptionsResponse{
		Events:     eventsList,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}

	logging.Sugar.Infow("Transcriptions API request",
		"endpoint", "list",
		"page", page,
		"page_size", pageSize,
		"total_results", total,
		"filters", map[string]interface{}{
			"source":  options.Source,
			"success": options.Success,
		},
	)

	writeJSONStatus(w, http.StatusOK, response)
}

func (h *TranscriptionsHandler) getTranscriptionByID(w http.ResponseWriter, uuid string) {
	event, err := h.store.GetByUUID(uuid)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			http.Error(w, "Transcription not found", http.StatusNotFound)
			return
		}
		logging.LogError(err, "Failed to get transcription event",
			zap.String("uuid", uuid),
		)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, http.StatusOK, event)
}

// parseIntParam parses integer parameter with default value
func parseIntParam(param string, defaultValue int) int {
	if param == "" {
		return defaultValue
	}

	if value, err := strconv.Atoi(param); err == nil {
		return value
	}

	return defaultValue
}

// writeJSONStatus writes a JSON response with the given status code
func writeJSONStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.LogError(err, "Failed to encode JSON response")
	}
}
