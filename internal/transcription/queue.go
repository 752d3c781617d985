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
	"log"
	"sync"
)

// taskQueue serializes asynchronous transcription requests onto one worker
// goroutine. Its lock is distinct from the pipeline's inference lock, so
// enqueueing never waits on an in-progress inference call.
type taskQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	tasks    []*Task
	running  bool
	stopping bool
	wg       sync.WaitGroup

	// process runs one task to completion and returns its transcript.
	// It must not panic; failures are reported as an empty string.
	process func(*Task) string
}

func newTaskQueue(process func(*Task) string) *taskQueue {
	q := &taskQueue{process: process}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// start launches the worker goroutine. Starting an already-running queue is a no-op.
func (q *taskQueue) start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}
	q.running = true
	q.stopping = false
	q.wg.Add(1)
	go q.run()
	log.Println("🎙️  Transcription worker started")
}

// stop shuts the worker down: sets the stop flag, wakes the loop, waits for
// the goroutine to exit, then settles every task still queued with an empty
// result. Stopping a stopped queue is a no-op.
func (q *taskQueue) stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.stopping = true
	q.cond.Broadcast()
	q.mu.Unlock()

	q.wg.Wait()

	q.mu.Lock()
	leftover := q.tasks
	q.tasks = nil
	q.running = false
	q.mu.Unlock()

	for _, task := range leftover {
		log.Printf("⚠️  Task %s dropped at shutdown, settling with empty result", task.ID)
		task.result.settle("")
	}
	log.Println("🎙️  Transcription worker stopped")
}

// enqueue appends the task FIFO and signals the worker. A task enqueued after
// shutdown settles immediately with an empty result rather than hanging.
func (q *taskQueue) enqueue(task *Task) {
	q.mu.Lock()
	if !q.running || q.stopping {
		q.mu.Unlock()
		task.result.settle("")
		return
	}
	q.tasks = append(q.tasks, task)
	q.cond.Signal()
	q.mu.Unlock()
}

// depth returns the number of tasks waiting to be processed.
func (q *taskQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// run is the worker loop: block until work or shutdown, pop the head task,
// process it, settle its future. One task failing never stops the loop.
func (q *taskQueue) run() {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.stopping {
			q.cond.Wait()
		}
		if q.stopping {
			q.mu.Unlock()
			return
		}
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		task.result.settle(q.safeProcess(task))
	}
}

// safeProcess guards the worker against a panicking engine or decoder; the
// result is an empty transcript, not a dead worker.
func (q *taskQueue) safeProcess(task *Task) (text string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Task %s panicked: %v", task.ID, r)
			text = ""
		}
	}()
	return q.process(task)
}
