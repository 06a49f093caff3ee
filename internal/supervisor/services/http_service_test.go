// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
)

// mockServer implements HTTPServer with controllable behavior.
type mockServer struct {
	mu           sync.Mutex
	serveErr     error
	shutdownErr  error
	shutdownDone bool
	release      chan struct{}
}

func newMockServer() *mockServer {
	return &mockServer{release: make(chan struct{})}
}

func (m *mockServer) ListenAndServe() error {
	<-m.release
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.serveErr != nil {
		return m.serveErr
	}
	return http.ErrServerClosed
}

func (m *mockServer) Shutdown(_ context.Context) error {
	m.mu.Lock()
	m.shutdownDone = true
	err := m.shutdownErr
	m.mu.Unlock()
	close(m.release)
	return err
}

func (m *mockServer) wasShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdownDone
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	server := newMockServer()
	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after context cancellation")
	}

	if !server.wasShutdown() {
		t.Error("Shutdown() was not called on context cancellation")
	}
}

func TestHTTPServerServiceServeFailure(t *testing.T) {
	server := newMockServer()
	server.serveErr = errors.New("bind: address already in use")
	close(server.release)

	svc := NewHTTPServerService(server, time.Second)
	err := svc.Serve(context.Background())
	if err == nil {
		t.Fatal("Serve() = nil, want bind error")
	}
	if !errors.Is(err, server.serveErr) {
		t.Errorf("Serve() = %v, want wrapped %v", err, server.serveErr)
	}
}

func TestHTTPServerServiceString(t *testing.T) {
	svc := NewHTTPServerService(newMockServer(), 0)
	if got := svc.String(); got != "http-server" {
		t.Errorf("String() = %q, want %q", got, "http-server")
	}
}
