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
	"sync"
	"testing"
	"time"
)

func setupQueue(t *testing.T, opts MemoryQueueOptions) *MemoryQueue {
	t.Helper()
	q := NewMemoryQueue(opts, nil)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestEnqueueDeliversInOrder(t *testing.T) {
	q := setupQueue(t, MemoryQueueOptions{})

	var mu sync.Mutex
	var got []string
	err := q.Subscribe("ingest", func(ctx context.Context, msg *Message) error {
		mu.Lock()
		got = append(got, string(msg.Body))
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	for _, body := range []string{"a", "b", "c"} {
		if err := q.Enqueue(context.Background(), "ingest", []byte(body)); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	})
	mu.Lock()
	defer mu.Unlock()
	if got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("wrong delivery order: %v", got)
	}
}

func TestNackRedeliversWithAttemptCount(t *testing.T) {
	q := setupQueue(t, MemoryQueueOptions{RetryDelay: 5 * time.Millisecond})

	var mu sync.Mutex
	var attempts []int
	_ = q.Subscribe("ingest", func(ctx context.Context, msg *Message) error {
		mu.Lock()
		attempts = append(attempts, msg.Attempts)
		mu.Unlock()
		if msg.Attempts < 3 {
			return errors.New("transient failure")
		}
		return nil
	})

	_ = q.Enqueue(context.Background(), "ingest", []byte("x"))

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(attempts) == 3
	})
	mu.Lock()
	defer mu.Unlock()
	if attempts[0] != 1 || attempts[1] != 2 || attempts[2] != 3 {
		t.Errorf("unexpected attempt sequence: %v", attempts)
	}
}

func TestExhaustedMessageGoesToPoisonQueue(t *testing.T) {
	q := setupQueue(t, MemoryQueueOptions{MaxAttempts: 2, RetryDelay: 5 * time.Millisecond})

	_ = q.Subscribe("ingest", func(ctx context.Context, msg *Message) error {
		return errors.New("permanent failure")
	})

	var mu sync.Mutex
	var poisoned []string
	_ = q.Subscribe("ingest"+PoisonQueueSuffix, func(ctx context.Context, msg *Message) error {
		mu.Lock()
		poisoned = append(poisoned, string(msg.Body))
		mu.Unlock()
		return nil
	})

	_ = q.Enqueue(context.Background(), "ingest", []byte("bad"))

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(poisoned) == 1
	})
	mu.Lock()
	defer mu.Unlock()
	if poisoned[0] != "bad" {
		t.Errorf("wrong poisoned payload: %q", poisoned[0])
	}
	if q.Pending("ingest") != 0 {
		t.Errorf("poisoned message still pending on source queue")
	}
}

func TestMessagesSurviveUntilSubscribed(t *testing.T) {
	q := setupQueue(t, MemoryQueueOptions{})

	_ = q.Enqueue(context.Background(), "ingest", []byte("early"))
	if q.Pending("ingest") != 1 {
		t.Fatalf("expected 1 pending message, got %d", q.Pending("ingest"))
	}

	var mu sync.Mutex
	var got []string
	_ = q.Subscribe("ingest", func(ctx context.Context, msg *Message) error {
		mu.Lock()
		got = append(got, string(msg.Body))
		mu.Unlock()
		return nil
	})

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})
}

func TestDoubleSubscribeFails(t *testing.T) {
	q := setupQueue(t, MemoryQueueOptions{})
	noop := func(ctx context.Context, msg *Message) error { return nil }
	if err := q.Subscribe("ingest", noop); err != nil {
		t.Fatalf("first Subscribe failed: %v", err)
	}
	if err := q.Subscribe("ingest", noop); err == nil {
		t.Error("expected error on second Subscribe")
	}
}

func TestEnqueueAfterCloseFails(t *testing.T) {
	q := NewMemoryQueue(MemoryQueueOptions{}, nil)
	_ = q.Close()
	if err := q.Enqueue(context.Background(), "ingest", []byte("x")); err == nil {
		t.Error("expected error enqueuing on closed adapter")
	}
}
