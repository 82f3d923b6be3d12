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

	"github.com/apache/pulsar-client-go/pulsar"
)

// PulsarConfig configures the Pulsar adapter.
type PulsarConfig struct {
	// URL of the Pulsar broker, e.g. pulsar://localhost:6650.
	URL string

	// TopicPrefix namespaces queue topics (default "recall-").
	TopicPrefix string

	// Subscription names the shared subscription (default "recall").
	Subscription string

	// MaxAttempts before a message is routed to the dead-letter topic
	// (default 3).
	MaxAttempts int

	// RetryDelay before a nacked message is redelivered (default 5s).
	RetryDelay time.Duration
}

func (c PulsarConfig) withDefaults() PulsarConfig {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "recall-"
	}
	if c.Subscription == "" {
		c.Subscription = "recall"
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
	return c
}

// PulsarQueue implements Adapter on an Apache Pulsar broker. Queues map to
// topics, nacks redeliver after RetryDelay, and messages exceeding
// MaxAttempts land on the queue's poison topic via Pulsar's DLQ policy.
type PulsarQueue struct {
	cfg    PulsarConfig
	client pulsar.Client
	logger *slog.Logger

	mu        sync.Mutex
	producers map[string]pulsar.Producer
	consumers []pulsar.Consumer
	closed    bool

	rootCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPulsarQueue connects to a Pulsar broker.
func NewPulsarQueue(cfg PulsarConfig, logger *slog.Logger) (*PulsarQueue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	client, err := pulsar.NewClient(pulsar.ClientOptions{
		URL:               cfg.URL,
		ConnectionTimeout: 10 * time.Second,
		OperationTimeout:  30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("connect pulsar at %s: %w", cfg.URL, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &PulsarQueue{
		cfg:       cfg,
		client:    client,
		logger:    logger,
		producers: make(map[string]pulsar.Producer),
		rootCtx:   ctx,
		cancel:    cancel,
	}, nil
}

// Enqueue publishes a message on the queue's topic.
func (q *PulsarQueue) Enqueue(ctx context.Context, queue string, body []byte) error {
	producer, err := q.producer(queue)
	if err != nil {
		return err
	}
	if _, err := producer.Send(ctx, &pulsar.ProducerMessage{Payload: body}); err != nil {
		return fmt.Errorf("publish to %q: %w", queue, err)
	}
	return nil
}

// Subscribe opens a shared subscription on the queue's topic and starts a
// receive loop.
func (q *PulsarQueue) Subscribe(queue string, fn HandlerFunc) error {
	topic := q.cfg.TopicPrefix + queue

	consumer, err := q.client.Subscribe(pulsar.ConsumerOptions{
		Topic:               topic,
		SubscriptionName:    q.cfg.Subscription,
		Type:                pulsar.Shared,
		NackRedeliveryDelay: q.cfg.RetryDelay,
		DLQ: &pulsar.DLQPolicy{
			MaxDeliveries:   uint32(q.cfg.MaxAttempts),
			DeadLetterTopic: topic + PoisonQueueSuffix,
		},
	})
	if err != nil {
		return fmt.Errorf("subscribe to %q: %w", queue, err)
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		consumer.Close()
		return errors.New("queue adapter is closed")
	}
	q.consumers = append(q.consumers, consumer)
	q.mu.Unlock()

	q.wg.Add(1)
	go q.receive(queue, consumer, fn)
	return nil
}

// Close stops receive loops and shuts the client down.
func (q *PulsarQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	consumers := q.consumers
	producers := q.producers
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
	for _, c := range consumers {
		c.Close()
	}
	for _, p := range producers {
		p.Close()
	}
	q.client.Close()
	return nil
}

func (q *PulsarQueue) producer(queue string) (pulsar.Producer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, errors.New("queue adapter is closed")
	}
	if p, ok := q.producers[queue]; ok {
		return p, nil
	}
	p, err := q.client.CreateProducer(pulsar.ProducerOptions{
		Topic: q.cfg.TopicPrefix + queue,
	})
	if err != nil {
		return nil, fmt.Errorf("create producer for %q: %w", queue, err)
	}
	q.producers[queue] = p
	return p, nil
}

func (q *PulsarQueue) receive(queue string, consumer pulsar.Consumer, fn HandlerFunc) {
	defer q.wg.Done()

	for {
		pmsg, err := consumer.Receive(q.rootCtx)
		if err != nil {
			if q.rootCtx.Err() != nil {
				return
			}
			q.logger.Warn("queue.pulsar.receive.failed", "queue", queue, "err", err)
			continue
		}

		msg := &Message{
			ID:       pmsg.ID().String(),
			Body:     pmsg.Payload(),
			Attempts: int(pmsg.RedeliveryCount()) + 1,
		}
		if err := fn(q.rootCtx, msg); err != nil {
			q.logger.Debug("queue.message.nacked",
				"queue", queue, "message_id", msg.ID,
				"attempts", msg.Attempts, "err", err)
			consumer.Nack(pmsg)
			continue
		}
		if err := consumer.Ack(pmsg); err != nil {
			q.logger.Warn("queue.pulsar.ack.failed", "queue", queue, "message_id", msg.ID, "err", err)
		}
	}
}
