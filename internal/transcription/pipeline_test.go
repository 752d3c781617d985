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
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AlexandruDanCroitoriu/voicebridge/internal/audio"
)

// fakeEngine implements Transcriber and asserts the pipeline's mutual
// exclusion guarantee: the engine must never see two calls in flight.
type fakeEngine struct {
	mu         sync.Mutex
	calls      int
	delay      time.Duration
	err        error
	panicMsg   string
	inFlight   atomic.Int32
	overlap    atomic.Bool
	transcript func(call int, samples []float32) string

	closed atomic.Bool
}

func (f *fakeEngine) Transcribe(samples []float32) (string, error) {
	if f.inFlight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.inFlight.Add(-1)

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return "", f.err
	}

	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	if f.transcript != nil {
		return f.transcript(call, samples), nil
	}
	return fmt.Sprintf("transcript %d", call), nil
}

func (f *fakeEngine) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestPipeline(t *testing.T, engine *fakeEngine) *Pipeline {
	t.Helper()
	factoryCalls := 0
	p := NewWithFactory(Config{ModelPath: "testdata-model.bin"}, func(cfg Config) (Transcriber, error) {
		factoryCalls++
		if factoryCalls > 1 {
			t.Error("engine factory called more than once")
		}
		return engine, nil
	})
	t.Cleanup(p.Shutdown)
	return p
}

func writeTestWAV(t *testing.T, samples []int16) string {
	t.Helper()
	data, err := audio.Encode(samples, audio.WhisperSampleRate)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "input.wav")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestPipeline_NotInitialized(t *testing.T) {
	p := newTestPipeline(t, &fakeEngine{})

	if _, err := p.TranscribeBuffer([]float32{0.1}); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("TranscribeBuffer error = %v, want ErrNotInitialized", err)
	}
	if _, err := p.TranscribeFile("whatever.wav"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("TranscribeFile error = %v, want ErrNotInitialized", err)
	}
	if _, err := p.TranscribeBufferAsync([]float32{0.1}); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("TranscribeBufferAsync error = %v, want ErrNotInitialized", err)
	}
	if _, err := p.TranscribeFileAsync("whatever.wav"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("TranscribeFileAsync error = %v, want ErrNotInitialized", err)
	}
}

func TestPipeline_InitializeIdempotent(t *testing.T) {
	engine := &fakeEngine{}
	p := newTestPipeline(t, engine)

	if err := p.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	// Second call must succeed without constructing a second engine; the
	// factory in newTestPipeline fails the test if invoked twice.
	if err := p.Initialize(); err != nil {
		t.Fatalf("second Initialize failed: %v", err)
	}
	if !p.Initialized() {
		t.Error("Initialized() = false after Initialize")
	}
}

func TestPipeline_InitializeModelNotFound(t *testing.T) {
	p := NewWithFactory(Config{ModelPath: "/nonexistent/model.bin"}, func(cfg Config) (Transcriber, error) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.ModelPath)
	})

	err := p.Initialize()
	if !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("Initialize error = %v, want ErrModelNotFound", err)
	}
	if p.Initialized() {
		t.Error("Initialized() = true after failed Initialize")
	}
	if p.LastError() == "" {
		t.Error("LastError() should record the initialization failure")
	}
}

func TestPipeline_TranscribeBuffer(t *testing.T) {
	engine := &fakeEngine{transcript: func(call int, samples []float32) string {
		return fmt.Sprintf("heard %d samples", len(samples))
	}}
	p := newTestPipeline(t, engine)
	if err := p.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	text, err := p.TranscribeBuffer(make([]float32, 1600))
	if err != nil {
		t.Fatalf("TranscribeBuffer failed: %v", err)
	}
	if text != "heard 1600 samples" {
		t.Errorf("transcript = %q", text)
	}
}

func TestPipeline_TranscribeBufferEmpty(t *testing.T) {
	p := newTestPipeline(t, &fakeEngine{})
	if err := p.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	_, err := p.TranscribeBuffer(nil)
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("TranscribeBuffer(nil) error = %v, want ErrEmptyInput", err)
	}
	if p.LastError() == "" {
		t.Error("LastError() should record the empty-input failure")
	}
}

func TestPipeline_TranscribeFile(t *testing.T) {
	engine := &fakeEngine{transcript: func(call int, samples []float32) string {
		return fmt.Sprintf("heard %d samples", len(samples))
	}}
	p := newTestPipeline(t, engine)
	if err := p.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	path := writeTestWAV(t, make([]int16, 800))
	text, err := p.TranscribeFile(path)
	if err != nil {
		t.Fatalf("TranscribeFile failed: %v", err)
	}
	if text != "heard 800 samples" {
		t.Errorf("transcript = %q", text)
	}
}

func TestPipeline_TranscribeFileBadAudio(t *testing.T) {
	p := newTestPipeline(t, &fakeEngine{})
	if err := p.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "garbage.wav")
	if err := os.WriteFile(path, []byte("not a wav file at all"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	text, err := p.TranscribeFile(path)
	var formatErr *audio.FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("TranscribeFile error = %v, want *audio.FormatError", err)
	}
	if text != "" {
		t.Errorf("transcript = %q, want empty", text)
	}
	if p.LastError() == "" {
		t.Error("LastError() should record the decode failure")
	}
}

func TestPipeline_AsyncFIFOOrder(t *testing.T) {
	engine := &fakeEngine{
		delay: 2 * time.Millisecond,
		transcript: func(call int, samples []float32) string {
			return fmt.Sprintf("result %d", call)
		},
	}
	p := newTestPipeline(t, engine)
	if err := p.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	// Varying lengths must not affect completion order
	var futures []*Future
	for i := 1; i <= 5; i++ {
		f, err := p.TranscribeBufferAsync(make([]float32, i*100))
		if err != nil {
			t.Fatalf("TranscribeBufferAsync failed: %v", err)
		}
		futures = append(futures, f)
	}

	for i, f := range futures {
		want := fmt.Sprintf("result %d", i+1)
		if got := f.Wait(); got != want {
			t.Errorf("future %d = %q, want %q (strict FIFO)", i, got, want)
		}
	}
}

func TestPipeline_AsyncFailureSettlesEmpty(t *testing.T) {
	engine := &fakeEngine{err: errors.New("engine exploded")}
	p := newTestPipeline(t, engine)
	if err := p.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	f, err := p.TranscribeBufferAsync([]float32{0.5})
	if err != nil {
		t.Fatalf("TranscribeBufferAsync failed: %v", err)
	}
	if got := f.Wait(); got != "" {
		t.Errorf("failed task settled with %q, want empty string", got)
	}
	if p.LastError() == "" {
		t.Error("LastError() should record the engine failure")
	}

	// A failing task must not stop the worker
	engine.err = nil
	f2, err := p.TranscribeBufferAsync([]float32{0.5})
	if err != nil {
		t.Fatalf("TranscribeBufferAsync after failure: %v", err)
	}
	if got := f2.Wait(); got == "" {
		t.Error("worker did not recover after a failing task")
	}
}

func TestPipeline_AsyncPanicSettlesEmpty(t *testing.T) {
	engine := &fakeEngine{panicMsg: "segfault in disguise"}
	p := newTestPipeline(t, engine)
	if err := p.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	f, err := p.TranscribeBufferAsync([]float32{0.5})
	if err != nil {
		t.Fatalf("TranscribeBufferAsync failed: %v", err)
	}

	select {
	case <-f.Done():
		if got, _ := f.Result(); got != "" {
			t.Errorf("panicking task settled with %q, want empty", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("future never settled after engine panic")
	}

	// Worker must survive the panic
	engine.panicMsg = ""
	f2, _ := p.TranscribeBufferAsync([]float32{0.5})
	select {
	case <-f2.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker dead after panic")
	}
}

func TestPipeline_ShutdownDrainsQueue(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	engine := &fakeEngine{}
	p := NewWithFactory(Config{ModelPath: "m.bin"}, func(Config) (Transcriber, error) {
		return engine, nil
	})
	engine.transcript = func(call int, samples []float32) string {
		if call == 1 {
			close(started)
			<-release
		}
		return "done"
	}

	if err := p.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	// First task occupies the worker; the rest stay queued
	first, err := p.TranscribeBufferAsync([]float32{0.1})
	if err != nil {
		t.Fatalf("TranscribeBufferAsync failed: %v", err)
	}
	<-started

	var queued []*Future
	for i := 0; i < 4; i++ {
		f, err := p.TranscribeBufferAsync([]float32{0.1})
		if err != nil {
			t.Fatalf("TranscribeBufferAsync failed: %v", err)
		}
		queued = append(queued, f)
	}
	if depth := p.QueueDepth(); depth != 4 {
		t.Errorf("QueueDepth() = %d, want 4", depth)
	}

	done := make(chan struct{})
	go func() {
		p.Shutdown()
		close(done)
	}()
	close(release)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown hung")
	}

	if got := first.Wait(); got != "done" {
		t.Errorf("in-flight task = %q, want %q (runs to completion)", got, "done")
	}
	for i, f := range queued {
		select {
		case <-f.Done():
			if got, _ := f.Result(); got != "" {
				t.Errorf("queued task %d = %q, want empty (never started)", i, got)
			}
		default:
			t.Errorf("queued task %d left unresolved after Shutdown", i)
		}
	}
	if !engine.closed.Load() {
		t.Error("engine not closed on Shutdown")
	}

	// Second Shutdown is a no-op
	p.Shutdown()
}

func TestPipeline_SilenceYieldsEmptyTranscript(t *testing.T) {
	engine := &fakeEngine{transcript: func(int, []float32) string { return "" }}
	p := newTestPipeline(t, engine)
	if err := p.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	f, err := p.TranscribeBufferAsync(make([]float32, 16000))
	if err != nil {
		t.Fatalf("TranscribeBufferAsync failed: %v", err)
	}
	if got := f.Wait(); got != "" {
		t.Errorf("silence transcript = %q, want empty", got)
	}
}

func TestPipeline_ConcurrentSyncAndAsync(t *testing.T) {
	engine := &fakeEngine{delay: time.Millisecond}
	p := newTestPipeline(t, engine)
	if err := p.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := p.TranscribeBuffer([]float32{0.1}); err != nil {
			t.Errorf("sync call failed: %v", err)
		}
	}()

	var futures []*Future
	var futMu sync.Mutex
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := p.TranscribeBufferAsync([]float32{0.1})
			if err != nil {
				t.Errorf("async call failed: %v", err)
				return
			}
			futMu.Lock()
			futures = append(futures, f)
			futMu.Unlock()
		}()
	}
	wg.Wait()

	for _, f := range futures {
		select {
		case <-f.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("async task never completed")
		}
	}

	if engine.overlap.Load() {
		t.Error("engine saw two inference calls in flight; context lock violated")
	}
	if got := engine.callCount(); got != 6 {
		t.Errorf("engine calls = %d, want 6", got)
	}
}
