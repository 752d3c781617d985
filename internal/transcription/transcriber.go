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

// Transcriber defines the interface to the speech-to-text inference engine.
// Implementations are not safe for concurrent use; the pipeline serializes
// all calls through a single lock.
type Transcriber interface {
	// Transcribe converts normalized mono float32 samples to text
	Transcribe(samples []float32) (string, error)

	// Close releases the model and its working state
	Close() error
}

// EngineFactory constructs the engine during Pipeline.Initialize. Tests
// substitute their own factory; production code uses the whisper.cpp one
// selected by build tag.
type EngineFactory func(cfg Config) (Transcriber, error)
