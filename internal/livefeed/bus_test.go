// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package livefeed

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/custodia/internal/models"
)

func TestBusDeliversAdmissionEvents(t *testing.T) {
	bus := NewBus()
	defer func() {
		if err := bus.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	want := models.AdmissionEvent{
		MachineName: "lab-01",
		Records:     30,
		Changed:     2,
		IngestedAt:  time.Date(2026, 8, 24, 10, 15, 0, 0, time.UTC),
	}
	if err := bus.PublishAdmission(want); err != nil {
		t.Fatalf("PublishAdmission() error = %v", err)
	}

	select {
	case msg := <-msgs:
		var got models.AdmissionEvent
		if err := json.Unmarshal(msg.Payload, &got); err != nil {
			t.Fatalf("Unmarshal payload error = %v", err)
		}
		msg.Ack()
		if got.MachineName != want.MachineName || got.Records != want.Records || got.Changed != want.Changed {
			t.Errorf("received event = %+v, want %+v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no admission event delivered")
	}
}

func TestBusPublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	done := make(chan error, 1)
	go func() {
		done <- bus.PublishAdmission(models.AdmissionEvent{MachineName: "lab-01", Records: 1})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("PublishAdmission() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("PublishAdmission() blocked with no subscribers")
	}
}
