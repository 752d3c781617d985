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
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/AlexandruDanCroitoriu/voicebridge/internal/audio"
)

// Config holds engine parameters for the pipeline
type Config struct {
	ModelPath string // path to the ggml model file
	Language  string // fixed transcription language, e.g. "en"
	Threads   int    // inference threads; 0 picks min(4, NumCPU)
}

// DefaultConfig returns the parameters the portfolio app shipped with
func DefaultConfig() Config {
	return Config{
		ModelPath: "models/ggml-base.en.bin",
		Language:  "en",
	}
}

// Pipeline owns the single inference engine instance and serializes every
// transcription against it. It is constructed explicitly and passed to its
// users; there is no package-level singleton.
//
// Two locks, two jobs: mu guards the engine for the full duration of each
// inference call (the engine is not reentrant), while the task queue has its
// own lock so enqueueing never blocks behind a running inference.
type Pipeline struct {
	cfg     Config
	factory EngineFactory

	mu     sync.Mutex // guards engine across all call paths
	engine Transcriber

	queue *taskQueue

	errMu   sync.RWMutex
	lastErr string
}

// New creates a pipeline that loads the whisper.cpp engine on Initialize.
func New(cfg Config) *Pipeline {
	return NewWithFactory(cfg, newWhisperTranscriber)
}

// NewWithFactory creates a pipeline with a custom engine constructor.
func NewWithFactory(cfg Config, factory EngineFactory) *Pipeline {
	if cfg.ModelPath == "" {
		cfg.ModelPath = DefaultConfig().ModelPath
	}
	if cfg.Language == "" {
		cfg.Language = DefaultConfig().Language
	}
	p := &Pipeline{
		cfg:     cfg,
		factory: factory,
	}
	p.queue = newTaskQueue(p.process)
	return p
}

// Initialize loads the model and starts the background worker. Calling it on
// an initialized pipeline succeeds immediately without loading a second model.
func (p *Pipeline) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.engine != nil {
		log.Println("ℹ️  Transcription pipeline already initialized, reusing engine")
		return nil
	}

	engine, err := p.factory(p.cfg)
	if err != nil {
		p.setError(err.Error())
		return fmt.Errorf("failed to initialize transcription pipeline: %w", err)
	}
	p.engine = engine

	log.Printf("✅ Transcription pipeline initialized (model: %s, hardware threads: %d)",
		p.cfg.ModelPath, runtime.NumCPU())

	p.queue.start()
	return nil
}

// Initialized reports whether the engine is loaded.
func (p *Pipeline) Initialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine != nil
}

// Shutdown stops the worker, settles any still-queued tasks with empty
// results, and releases the engine. Safe to call more than once.
func (p *Pipeline) Shutdown() {
	p.queue.stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.engine == nil {
		return
	}
	if err := p.engine.Close(); err != nil {
		log.Printf("⚠️  Engine close failed: %v", err)
	}
	p.engine = nil
	log.Println("🛑 Transcription pipeline shut down")
}

// TranscribeFile decodes a WAV file and transcribes it, blocking the caller
// for the full decode+inference duration. It bypasses the queue and takes the
// engine lock directly.
func (p *Pipeline) TranscribeFile(path string) (string, error) {
	if !p.Initialized() {
		return "", ErrNotInitialized
	}

	pcm, err := audio.DecodeFile(path)
	if err != nil {
		p.setError(err.Error())
		return "", err
	}

	return p.runInference(pcm.Samples)
}

// TranscribeBuffer transcribes already-decoded samples synchronously.
func (p *Pipeline) TranscribeBuffer(samples []float32) (string, error) {
	return p.runInference(samples)
}

// TranscribeFileAsync enqueues a file transcription and returns its future
// immediately. The future always settles, with an empty string on failure.
func (p *Pipeline) TranscribeFileAsync(path string) (*Future, error) {
	if !p.Initialized() {
		return nil, ErrNotInitialized
	}

	task := newTask(TaskFromFile)
	task.FilePath = path
	log.Printf("📥 Enqueued %s (%s: %s), queue depth %d", task.ID, task.Kind, path, p.queue.depth()+1)
	p.queue.enqueue(task)
	return task.result, nil
}

// TranscribeBufferAsync enqueues a buffer transcription and returns its
// future immediately.
func (p *Pipeline) TranscribeBufferAsync(samples []float32) (*Future, error) {
	if !p.Initialized() {
		return nil, ErrNotInitialized
	}

	task := newTask(TaskFromBuffer)
	task.Samples = samples
	log.Printf("📥 Enqueued %s (%s: %d samples), queue depth %d", task.ID, task.Kind, len(samples), p.queue.depth()+1)
	p.queue.enqueue(task)
	return task.result, nil
}

// QueueDepth returns the number of async tasks waiting to run.
func (p *Pipeline) QueueDepth() int {
	return p.queue.depth()
}

// LastError returns the most recent per-request error message. An empty
// transcript alone cannot distinguish silence from failure; this can.
func (p *Pipeline) LastError() string {
	p.errMu.RLock()
	defer p.errMu.RUnlock()
	return p.lastErr
}

// runInference executes one engine call under the context-wide lock. This is
// the sole concurrency bottleneck: the engine is not safe for concurrent use.
func (p *Pipeline) runInference(samples []float32) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.engine == nil {
		return "", ErrNotInitialized
	}
	if len(samples) == 0 {
		p.setError(ErrEmptyInput.Error())
		return "", ErrEmptyInput
	}

	start := time.Now()
	text, err := p.engine.Transcribe(samples)
	if err != nil {
		p.setError(err.Error())
		return "", err
	}

	log.Printf("🧠 Transcribed %d samples in %v (%d characters)",
		len(samples), time.Since(start), len(text))
	return text, nil
}

// process runs one dequeued task. Called from the worker goroutine only.
// Every failure is converted to an empty transcript so the loop survives.
func (p *Pipeline) process(task *Task) string {
	var samples []float32

	switch task.Kind {
	case TaskFromFile:
		pcm, err := audio.DecodeFile(task.FilePath)
		if err != nil {
			p.setError(err.Error())
			log.Printf("❌ Task %s: audio decode failed: %v", task.ID, err)
			return ""
		}
		samples = pcm.Samples
	case TaskFromBuffer:
		samples = task.Samples
	}

	text, err := p.runInference(samples)
	if err != nil {
		log.Printf("❌ Task %s: %v", task.ID, err)
		return ""
	}
	return text
}

func (p *Pipeline) setError(msg string) {
	p.errMu.Lock()
	p.lastErr = msg
	p.errMu.Unlock()
}
