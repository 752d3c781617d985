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

package storage

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/AlexandruDanCroitoriu/voicebridge/internal/events"
)

// TranscriptionEventsStore handles database operations for transcription events
type TranscriptionEventsStore struct {
	db *Database
}

// NewTranscriptionEventsStore creates a new transcription events store
func NewTranscriptionEventsStore(db *Database) *TranscriptionEventsStore {
	return &TranscriptionEventsStore{db: db}
}

// Insert stores a new transcription event in the database
func (s *TranscriptionEventsStore) Insert(event *events.TranscriptionEvent) error {
	if err := event.IsValid(); err != nil {
		return fmt.Errorf("invalid transcription event: %w", err)
	}

	query := `
		INSERT INTO transcription_events (
			uuid, task_id, source, timestamp,
			file_path, sample_count, sample_rate, audio_duration,
			transcript, processing_time_ms, success, error_message
		) VALUES (
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?
		)`

	_, err := s.db.DB().Exec(query,
		event.UUID, event.TaskID, event.Source, event.Timestamp,
		event.FilePath, event.SampleCount, event.SampleRate, event.AudioDuration,
		event.Transcript, event.ProcessingTime, event.Success, event.ErrorMessage,
	)

	if err != nil {
		return fmt.Errorf("failed to insert transcription event: %w", err)
	}

	log.Printf("📝 Stored transcription event: %s (task: %s, source: %s)",
		event.UUID, event.TaskID, event.Source)
	return nil
}

// GetByUUID retrieves a transcription event by its UUID
func (s *TranscriptionEventsStore) GetByUUID(uuid string) (*events.TranscriptionEvent, error) {
	query := `
		SELECT uuid, task_id, source, timestamp,
			   file_path, sample_count, sample_rate, audio_duration,
			   transcript, processing_time_ms, success, error_message
		FROM transcription_events
		WHERE uuid = ?`

	row := s.db.DB().QueryRow(query, uuid)
	return s.scanEvent(row)
}

// List retrieves transcription events with pagination and filtering
func (s *TranscriptionEventsStore) List(options ListOptions) ([]*events.TranscriptionEvent, error) {
	query, args := s.buildListQuery(options)

	rows, err := s.db.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcription events: %w", err)
	}
	defer rows.Close()

	var eventsList []*events.TranscriptionEvent
	for rows.Next() {
		event, err := s.scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transcription event: %w", err)
		}
		eventsList = append(eventsList, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transcription events: %w", err)
	}

	return eventsList, nil
}

// Count returns the total number of transcription events matching the filter
func (s *TranscriptionEventsStore) Count(options ListOptions) (int64, error) {
	options.Limit = 0
	options.Offset = 0
	query, args := s.buildListQuery(options)

	countQuery := "SELECT COUNT(*) FROM (" + query + ") as filtered"

	var count int64
	err := s.db.DB().QueryRow(countQuery, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transcription events: %w", err)
	}

	return count, nil
}

// Delete removes a transcription event by UUID
func (s *TranscriptionEventsStore) Delete(uuid string) error {
	result, err := s.db.DB().Exec("DELETE FROM transcription_events WHERE uuid = ?", uuid)
	if err != nil {
		return fmt.Errorf("failed to delete transcription event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("transcription event not found: %s", uuid)
	}

	log.Printf("🗑️  Deleted transcription event: %s", uuid)
	return nil
}

// ListOptions defines filtering and pagination options
type ListOptions struct {
	// Filtering
	Source    string
	Success   *bool // nil = all, true = success only, false = errors only
	StartTime *time.Time
	EndTime   *time.Time

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy    string // "timestamp", "processing_time_ms", "audio_duration"
	SortOrder string // "ASC", "DESC"
}

// allowed sort columns, everything else falls back to timestamp
var sortColumns = map[string]bool{
	"timestamp":          true,
	"processing_time_ms": true,
	"audio_duration":     true,
}

// buildListQuery constructs the SQL query based on ListOptions
func (s *TranscriptionEventsStore) buildListQuery(options ListOptions) (string, []interface{}) {
	query := `
		SELECT uuid, task_id, source, timestamp,
			   file_path, sample_count, sample_rate, audio_duration,
			   transcript, processing_time_ms, success, error_message
		FROM transcription_events WHERE 1=1`

	var args []interface{}

	if options.Source != "" {
		query += " AND source = ?"
		args = append(args, options.Source)
	}

	if options.Success != nil {
		query += " AND success = ?"
		args = append(args, *options.Success)
	}

	if options.StartTime != nil {
		query += " AND timestamp >= ?"
		args = append(args, options.StartTime)
	}

	if options.EndTime != nil {
		query += " AND timestamp <= ?"
		args = append(args, options.EndTime)
	}

	sortBy := options.SortBy
	if !sortColumns[sortBy] {
		sortBy = "timestamp"
	}

	sortOrder := options.SortOrder
	if sortOrder != "ASC" {
		sortOrder = "DESC"
	}

	query += fmt.Sprintf(" ORDER BY %s %s", sortBy, sortOrder)

	if options.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, options.Limit)

		if options.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, options.Offset)
		}
	}

	return query, args
}

// scanEvent scans a database row into a TranscriptionEvent struct
func (s *TranscriptionEventsStore) scanEvent(scanner interface{}) (*events.TranscriptionEvent, error) {
	var event events.TranscriptionEvent

	var row interface {
		Scan(dest ...interface{}) error
	}

	switch v := scanner.(type) {
	case *sql.Row:
		row = v
	case *sql.Rows:
		row = v
	default:
		return nil, fmt.Errorf("unsupported scanner type")
	}

	err := row.Scan(
		&event.UUID, &event.TaskID, &event.Source, &event.Timestamp,
		&event.FilePath, &event.SampleCount, &event.SampleRate, &event.AudioDuration,
		&event.Transcript, &event.ProcessingTime, &event.Success, &event.ErrorMessage,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("transcription event not found")
		}
		return nil, err
	}

	return &event, nil
}
