// Copyright 2026 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueueOptions tunes the in-process queue.
type MemoryQueueOptions struct {
	// MaxAttempts before a message is dead-lettered (default 3).
	MaxAttempts int

	// RetryDelay before a nacked message becomes visible again
	// (default 100ms).
	RetryDelay time.Duration

	// HandlerTimeout bounds a single handler invocation; an expired
	// handler counts as a nack (default 1 minute).
	HandlerTimeout time.Duration
}

func (o MemoryQueueOptions) withDefaults() MemoryQueueOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 100 * time.Millisecond
	}
	if o.HandlerTimeout <= 0 {
		o.HandlerTimeout = time.Minute
	}
	return o
}

// MemoryQueue is an in-process Adapter used for local mode and tests.
// Each queue delivers sequentially to its handler; different queues deliver
// concurrently. Nacked messages return after RetryDelay with the attempt
// count incremented, and cross MaxAttempts into the queue's poison companion.
type MemoryQueue struct {
	opts   MemoryQueueOptions
	logger *slog.Logger

	mu     sync.Mutex
	queues map[string]*memoryQueueState
	closed bool

	rootCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type memoryQueueState struct {
	pending []*memoryDelivery
	handler HandlerFunc
	wake    chan struct{}
}

type memoryDelivery struct {
	msg       *Message
	notBefore time.Time
}

// NewMemoryQueue creates an in-process queue adapter.
func NewMemoryQueue(opts MemoryQueueOptions, logger *slog.Logger) *MemoryQueue {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MemoryQueue{
		opts:    opts.withDefaults(),
		logger:  logger,
		queues:  make(map[string]*memoryQueueState),
		rootCtx: ctx,
		cancel:  cancel,
	}
}

// Enqueue appends a message to the named queue, creating it on first use.
func (q *MemoryQueue) Enqueue(ctx context.Context, queue string, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errors.New("queue adapter is closed")
	}
	state := q.state(queue)
	state.pending = append(state.pending, &memoryDelivery{
		msg: &Message{ID: uuid.NewString(), Body: body, Attempts: 0},
	})
	signal(state.wake)
	return nil
}

// Subscribe binds a handler to the named queue and starts its dispatcher.
func (q *MemoryQueue) Subscribe(queue string, fn HandlerFunc) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errors.New("queue adapter is closed")
	}
	state := q.state(queue)
	if state.handler != nil {
		return fmt.Errorf("queue %q already has a subscriber", queue)
	}
	state.handler = fn

	q.wg.Add(1)
	go q.dispatch(queue, state)
	return nil
}

// Close stops all dispatchers and waits for in-flight handlers.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cancel()
	q.wg.Wait()
	return nil
}

// Pending reports how many messages are waiting or scheduled for redelivery.
func (q *MemoryQueue) Pending(queue string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if state, ok := q.queues[queue]; ok {
		return len(state.pending)
	}
	return 0
}

// state returns the queue state, creating it when absent. Callers hold q.mu.
func (q *MemoryQueue) state(queue string) *memoryQueueState {
	state, ok := q.queues[queue]
	if !ok {
		state = &memoryQueueState{wake: make(chan struct{}, 1)}
		q.queues[queue] = state
	}
	return state
}

// dispatch is the per-queue delivery loop.
func (q *MemoryQueue) dispatch(queue string, state *memoryQueueState) {
	defer q.wg.Done()

	for {
		delivery, wait := q.takeNext(state)
		if delivery == nil {
			select {
			case <-q.rootCtx.Done():
				return
			case <-state.wake:
			case <-time.After(wait):
			}
			continue
		}

		delivery.msg.Attempts++
		ctx, cancel := context.WithTimeout(q.rootCtx, q.opts.HandlerTimeout)
		err := state.handler(ctx, delivery.msg)
		cancel()

		switch {
		case err == nil:
			// acked, drop the message
		case q.rootCtx.Err() != nil:
			// shutdown, not a real failure: requeue without burning
			// an attempt
			q.requeue(state, delivery, 0)
			return
		case delivery.msg.Attempts >= q.opts.MaxAttempts:
			q.logger.Warn("queue.message.poisoned",
				"queue", queue, "message_id", delivery.msg.ID,
				"attempts", delivery.msg.Attempts, "err", err)
			q.deadLetter(queue, delivery.msg)
		default:
			q.logger.Debug("queue.message.nacked",
				"queue", queue, "message_id", delivery.msg.ID,
				"attempts", delivery.msg.Attempts, "err", err)
			q.requeue(state, delivery, q.opts.RetryDelay)
		}
	}
}

// takeNext pops the first visible message, or returns how long to wait for
// the earliest scheduled one.
func (q *MemoryQueue) takeNext(state *memoryQueueState) (*memoryDelivery, time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	wait := time.Second
	for i, d := range state.pending {
		if d.notBefore.After(now) {
			if until := time.Until(d.notBefore); until < wait {
				wait = until
			}
			continue
		}
		state.pending = append(state.pending[:i], state.pending[i+1:]...)
		return d, 0
	}
	return nil, wait
}

func (q *MemoryQueue) requeue(state *memoryQueueState, delivery *memoryDelivery, delay time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delivery.notBefore = time.Now().Add(delay)
	state.pending = append(state.pending, delivery)
	signal(state.wake)
}

// deadLetter moves an exhausted message to the queue's poison companion.
func (q *MemoryQueue) deadLetter(queue string, msg *Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	state := q.state(queue + PoisonQueueSuffix)
	state.pending = append(state.pending, &memoryDelivery{msg: msg})
	signal(state.wake)
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
