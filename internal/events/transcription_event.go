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

package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Audio source kinds for a transcription event
const (
	SourceFile   = "file"
	SourceBuffer = "buffer"
)

// TranscriptionEvent records one completed transcription request with full
// traceability. An empty transcript with Success=true means no speech was
// detected; Success=false carries the failure in ErrorMessage.
type TranscriptionEvent struct {
	UUID      string    `json:"uuid" db:"uuid"`
	TaskID    string    `json:"task_id" db:"task_id"`
	Source    string    `json:"source" db:"source"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`

	// Audio metadata
	FilePath      string  `json:"file_path,omitempty" db:"file_path"`
	SampleCount   int     `json:"sample_count" db:"sample_count"`
	SampleRate    int     `json:"sample_rate" db:"sample_rate"`
	AudioDuration float64 `json:"audio_duration" db:"audio_duration"`

	// Processing results
	Transcript     string `json:"transcript" db:"transcript"`
	ProcessingTime int64  `json:"processing_time_ms" db:"processing_time_ms"`
	Success        bool   `json:"success" db:"success"`
	ErrorMessage   string `json:"error_message,omitempty" db:"error_message"`
}

// NewTranscriptionEvent creates an event with generated UUID and current timestamp
func NewTranscriptionEvent(taskID, source string) *TranscriptionEvent {
	return &TranscriptionEvent{
		UUID:      uuid.NewString(),
		TaskID:    taskID,
		Source:    source,
		Timestamp: time.Now(),
		Success:   true,
	}
}

// IsValid checks that required fields are set
func (e *TranscriptionEvent) IsValid() error {
	if e.UUID == "" {
		return fmt.Errorf("event UUID is required")
	}
	if e.Source != SourceFile && e.Source != SourceBuffer {
		return fmt.Errorf("invalid event source: %q", e.Source)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("event timestamp is required")
	}
	return nil
}
