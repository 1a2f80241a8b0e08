/*
 * Copyright 2026 Gridwatch Systems, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/gridwatch/otmap/pkg/logger"
	"github.com/gridwatch/otmap/pkg/models"
)

const (
	fetchBatchSize = 10
	fetchTimeout   = 30 * time.Second
	retryBackoff   = 5 * time.Second
)

// envelope is the wire shape of an ingested telemetry message. Producers may
// omit the id and timestamp.
type envelope struct {
	ID        string            `json:"id,omitempty"`
	Source    string            `json:"source"`
	Timestamp time.Time         `json:"timestamp,omitempty"`
	Data      json.RawMessage   `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Consumer is a durable JetStream pull consumer feeding the pipeline with
// telemetry published by external agents.
type Consumer struct {
	js           nats.JetStreamContext
	streamName   string
	consumerName string
	pipeline     *Pipeline
	log          logger.Logger
}

// NewConsumer creates or retrieves the durable pull consumer on the stream.
func NewConsumer(js nats.JetStreamContext, streamName, consumerName string, p *Pipeline, log logger.Logger) (*Consumer, error) {
	_, err := js.ConsumerInfo(streamName, consumerName)
	if err != nil {
		if !errors.Is(err, nats.ErrConsumerNotFound) {
			return nil, fmt.Errorf("failed to look up consumer %s: %w", consumerName, err)
		}

		_, err = js.AddConsumer(streamName, &nats.ConsumerConfig{
			Durable:       consumerName,
			DeliverPolicy: nats.DeliverAllPolicy,
			AckPolicy:     nats.AckExplicitPolicy,
			Description:   "Telemetry ingestion consumer",
			MaxDeliver:    3,
			AckWait:       30 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create consumer %s: %w", consumerName, err)
		}
	}

	return &Consumer{
		js:           js,
		streamName:   streamName,
		consumerName: consumerName,
		pipeline:     p,
		log:          log.WithComponent("consumer"),
	}, nil
}

// ProcessMessages fetches and processes messages until the context is
// canceled. Records that fail processing are nak'd for redelivery.
func (c *Consumer) ProcessMessages(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("stopping message processing")

			return
		default:
			sub, err := c.js.PullSubscribe(c.streamName+".>", c.consumerName, nats.PullMaxWaiting(10))
			if err != nil {
				c.log.Error().Err(err).Msg("failed to subscribe")
				time.Sleep(retryBackoff)

				continue
			}

			c.fetchLoop(ctx, sub)

			// Drop the subscription before resubscribing so a flapping
			// connection does not accumulate them.
			if err := sub.Unsubscribe(); err != nil {
				c.log.Warn().Err(err).Msg("failed to unsubscribe")
			}
		}
	}
}

func (c *Consumer) fetchLoop(ctx context.Context, sub *nats.Subscription) {
	for {
		if ctx.Err() != nil {
			return
		}

		fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
		msgs, err := sub.Fetch(fetchBatchSize, nats.Context(fetchCtx))
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}

			if errors.Is(err, context.Canceled) {
				return
			}

			c.log.Error().Err(err).Msg("failed to fetch messages")
			time.Sleep(retryBackoff)

			return
		}

		for _, msg := range msgs {
			if err := c.handle(ctx, msg); err != nil {
				c.log.Warn().Err(err).Msg("failed to process message")

				if nakErr := msg.Nak(); nakErr != nil {
					c.log.Warn().Err(nakErr).Msg("failed to nak message")
				}

				continue
			}

			if ackErr := msg.Ack(); ackErr != nil {
				c.log.Warn().Err(ackErr).Msg("failed to ack message")
			}
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg *nats.Msg) error {
	var env envelope

	if err := json.Unmarshal(msg.Data, &env); err != nil {
		return fmt.Errorf("failed to decode envelope: %w", err)
	}

	record := &models.TelemetryRecord{
		ID:        env.ID,
		Source:    models.TelemetrySource(env.Source),
		Timestamp: env.Timestamp,
		Payload:   env.Data,
		Metadata:  env.Metadata,
	}

	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	return c.pipeline.ingest(ctx, record)
}
