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

//go:build whisper

package transcription

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// WhisperTranscriber handles speech-to-text using whisper.cpp
type WhisperTranscriber struct {
	model     whisper.Model
	modelPath string
	language  string
	threads   uint
}

// newWhisperTranscriber loads the whisper model from cfg.ModelPath
func newWhisperTranscriber(cfg Config) (Transcriber, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.ModelPath)
	}

	model, err := whisper.New(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load whisper model: %w", err)
	}

	threads := cfg.Threads
	if threads <= 0 || threads > runtime.NumCPU() {
		threads = min(4, runtime.NumCPU())
	}

	log.Printf("✅ Whisper model loaded: %s (language: %s, threads: %d)",
		cfg.ModelPath, cfg.Language, threads)

	return &WhisperTranscriber{
		model:     model,
		modelPath: cfg.ModelPath,
		language:  cfg.Language,
		threads:   uint(threads),
	}, nil
}

// Transcribe converts audio samples to text
func (wt *WhisperTranscriber) Transcribe(samples []float32) (string, error) {
	if wt.model == nil {
		return "", ErrNotInitialized
	}

	// Create a new decoding context for this call; the model itself carries
	// the loaded weights and is reused across calls.
	ctx, err := wt.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("failed to create whisper context: %w", err)
	}

	if wt.language != "" {
		if err := ctx.SetLanguage(wt.language); err != nil {
			return "", fmt.Errorf("failed to set language %q: %w", wt.language, err)
		}
	}
	ctx.SetTranslate(false)
	ctx.SetThreads(wt.threads)

	if err := ctx.Process(samples, nil, nil, nil); err != nil {
		return "", &InferenceError{Err: err}
	}

	// Concatenate all output segments in order
	var transcript strings.Builder
	for {
		segment, err := ctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		transcript.WriteString(segment.Text)
	}

	result := strings.TrimSpace(transcript.String())
	log.Printf("🧠 Whisper transcription: \"%s\"", result)
	return result, nil
}

// Close cleans up the whisper model
func (wt *WhisperTranscriber) Close() error {
	if wt.model != nil {
		if err := wt.model.Close(); err != nil {
			return err
		}
		wt.model = nil
		log.Println("🧠 Whisper model closed")
	}
	return nil
}
