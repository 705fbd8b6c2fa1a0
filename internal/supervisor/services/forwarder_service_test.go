// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

//go:build nats

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// mockForwarder is a test double for the NATSForwarder interface.
type mockForwarder struct {
	returnErr   error
	returnNil   bool
	serveCount  atomic.Int32
	serveCalled chan struct{}
}

func newMockForwarder() *mockForwarder {
	return &mockForwarder{
		serveCalled: make(chan struct{}, 1),
	}
}

func (m *mockForwarder) Serve(ctx context.Context) error {
	m.serveCount.Add(1)

	select {
	case m.serveCalled <- struct{}{}:
	default:
	}

	if m.returnErr != nil {
		return m.returnErr
	}
	if m.returnNil {
		return nil
	}

	<-ctx.Done()
	return ctx.Err()
}

func TestNATSForwarderService_Interface(t *testing.T) {
	// Verify NATSForwarderService implements suture.Service
	var _ suture.Service = (*NATSForwarderService)(nil)
}

func TestNewNATSForwarderService(t *testing.T) {
	fwd := newMockForwarder()
	svc := NewNATSForwarderService(fwd)

	if svc == nil {
		t.Fatal("NewNATSForwarderService returned nil")
	}
	if svc.forwarder != fwd {
		t.Error("forwarder not assigned correctly")
	}
	if svc.name != "nats-forwarder" {
		t.Errorf("expected name 'nats-forwarder', got %q", svc.name)
	}
}

func TestNATSForwarderService_Serve(t *testing.T) {
	t.Run("delegates to Serve and returns on cancellation", func(t *testing.T) {
		fwd := newMockForwarder()
		svc := NewNATSForwarderService(fwd)

		ctx, cancel := context.WithCancel(context.Background())

		errCh := make(chan error, 1)
		go func() {
			errCh <- svc.Serve(ctx)
		}()

		select {
		case <-fwd.serveCalled:
		case <-time.After(time.Second):
			t.Fatal("forwarder Serve was not called")
		}

		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("Serve did not return after context cancellation")
		}
	})

	t.Run("propagates subscribe errors", func(t *testing.T) {
		serveErr := errors.New("subscribe live.events: bus closed")
		fwd := newMockForwarder()
		fwd.returnErr = serveErr
		svc := NewNATSForwarderService(fwd)

		err := svc.Serve(context.Background())
		if !errors.Is(err, serveErr) {
			t.Errorf("expected %v, got %v", serveErr, err)
		}
	})

	t.Run("maps bus close to ErrDoNotRestart", func(t *testing.T) {
		fwd := newMockForwarder()
		fwd.returnNil = true
		svc := NewNATSForwarderService(fwd)

		err := svc.Serve(context.Background())
		if !errors.Is(err, suture.ErrDoNotRestart) {
			t.Errorf("expected suture.ErrDoNotRestart, got %v", err)
		}
	})
}

func TestNATSForwarderService_String(t *testing.T) {
	svc := NewNATSForwarderService(newMockForwarder())

	if svc.String() != "nats-forwarder" {
		t.Errorf("expected 'nats-forwarder', got %q", svc.String())
	}
}
