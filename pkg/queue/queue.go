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

// Package queue provides named durable FIFO queues with at-least-once
// delivery. A handler acks by returning nil and nacks by returning an error;
// nacked messages are redelivered with backoff until they succeed or cross
// the poison threshold and are dead-lettered.
package queue

import "context"

// Message is one queue delivery. Attempts counts deliveries of this message
// including the current one.
type Message struct {
	ID       string
	Body     []byte
	Attempts int
}

// HandlerFunc consumes one message. Returning nil acknowledges the message;
// returning an error negatively acknowledges it and triggers redelivery.
// A context cancellation error counts as a nack but implementations must not
// count it toward the poison threshold.
type HandlerFunc func(ctx context.Context, msg *Message) error

// Adapter is a named-queue transport with at-least-once semantics.
type Adapter interface {
	// Enqueue appends a message to the named queue, creating it on first
	// use.
	Enqueue(ctx context.Context, queue string, body []byte) error

	// Subscribe binds a handler to the named queue and starts delivery.
	// One handler per queue; a second Subscribe on the same queue is an
	// error.
	Subscribe(queue string, fn HandlerFunc) error

	// Close stops delivery and releases transport resources.
	Close() error
}

// PoisonQueueSuffix names the dead-letter companion of a queue.
const PoisonQueueSuffix = "-poison"
