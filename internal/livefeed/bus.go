// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package livefeed relays ingest admission events to dashboard websocket
// clients.
//
// Admission events travel over an in-process Watermill gochannel pub/sub,
// keeping the admission path decoupled from websocket delivery: publishing
// never blocks on a slow browser, and a wedged hub cannot back-pressure
// ingest.
package livefeed

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/custodia/internal/models"
)

// TopicAdmissions is the in-process topic carrying admission events.
const TopicAdmissions = "ingest.admissions"

// Bus is the in-process admission event bus.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus creates the bus. The output buffer absorbs bursts so publishers
// never wait on subscribers.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, watermill.NopLogger{}),
	}
}

// PublishAdmission publishes one admission event. Failures are the
// caller's to log; they never fail an admission.
func (b *Bus) PublishAdmission(event models.AdmissionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal admission event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(TopicAdmissions, msg); err != nil {
		return fmt.Errorf("publish admission event: %w", err)
	}
	return nil
}

// Subscribe returns the admission event stream. The subscription ends when
// ctx is canceled or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	msgs, err := b.pubsub.Subscribe(ctx, TopicAdmissions)
	if err != nil {
		return nil, fmt.Errorf("subscribe admissions: %w", err)
	}
	return msgs, nil
}

// Close shuts the bus down, terminating all subscriptions.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
