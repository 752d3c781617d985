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
	"sync"
	"sync/atomic"
	"time"
)

// TaskKind discriminates the two valid task input variants.
type TaskKind int

const (
	// TaskFromFile transcribes a WAV file on disk; the worker decodes it first.
	TaskFromFile TaskKind = iota
	// TaskFromBuffer transcribes already-decoded mono float32 samples.
	TaskFromBuffer
)

func (k TaskKind) String() string {
	switch k {
	case TaskFromFile:
		return "file"
	case TaskFromBuffer:
		return "buffer"
	default:
		return "unknown"
	}
}

// Task is one queued transcription request. It is owned by the queue until
// the worker dequeues it; nothing touches it concurrently.
type Task struct {
	Kind     TaskKind
	FilePath string    // set iff Kind == TaskFromFile
	Samples  []float32 // set iff Kind == TaskFromBuffer
	ID       string    // for logging and correlation only
	Created  time.Time

	result *Future
}

var taskSeq atomic.Uint64

// NextTaskID allocates an identifier from the shared task sequence.
// Synchronous requests bypass the queue but use the same scheme, so stored
// events correlate with worker logs under one namespace.
func NextTaskID() string {
	return fmt.Sprintf("task-%d-%d", taskSeq.Add(1), time.Now().UnixMilli())
}

func newTask(kind TaskKind) *Task {
	id := NextTaskID()
	return &Task{
		Kind:    kind,
		ID:      id,
		Created: time.Now(),
		result:  newFuture(id),
	}
}

// Future is a single-assignment result slot. The worker settles it exactly
// once; failures settle with an empty string, never an error, so a caller
// waiting on it is never left hanging.
type Future struct {
	once   sync.Once
	done   chan struct{}
	text   string
	taskID string
}

func newFuture(taskID string) *Future {
	return &Future{done: make(chan struct{}), taskID: taskID}
}

// TaskID identifies the queued task this future belongs to.
func (f *Future) TaskID() string {
	return f.taskID
}

// settle assigns the result. Extra calls are no-ops.
func (f *Future) settle(text string) {
	f.once.Do(func() {
		f.text = text
		close(f.done)
	})
}

// Wait blocks until the task completes and returns the transcript, which is
// empty when transcription failed or no speech was detected.
func (f *Future) Wait() string {
	<-f.done
	return f.text
}

// Done returns a channel closed when the result is available, for callers
// that want to select on it or layer their own timeout.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result polls without blocking. ok is false while the task is still pending.
func (f *Future) Result() (text string, ok bool) {
	select {
	case <-f.done:
		return f.text, true
	default:
		return "", false
	}
}
