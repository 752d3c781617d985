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

package transcription

import (
	"errors"
	"fmt"
)

var (
	// ErrModelNotFound means the model file is absent at the configured path.
	ErrModelNotFound = errors.New("whisper model file not found")

	// ErrNotInitialized means a transcription entry point was called before
	// Initialize succeeded, or after Shutdown.
	ErrNotInitialized = errors.New("transcription pipeline not initialized")

	// ErrEmptyInput means a transcription call received zero audio samples.
	ErrEmptyInput = errors.New("audio data is empty")
)

// InferenceError wraps a failure reported by the inference engine itself.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}
