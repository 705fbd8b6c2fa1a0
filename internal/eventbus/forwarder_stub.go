// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

//go:build !nats

package eventbus

import (
	"context"

	"github.com/tomtom215/vigil/internal/logging"
)

// Forwarder is a no-op placeholder compiled without the "nats" build tag.
// Bus messages stay in-process; no JetStream mirror is produced.
type Forwarder struct{}

// NewForwarder returns a no-op forwarder and logs that forwarding is
// unavailable in this build.
func NewForwarder(ctx context.Context, bus *Bus, opts ForwarderOptions) (*Forwarder, error) {
	logging.Warn().
		Msg("NATS forwarding disabled (build without -tags nats); bus messages stay in-process")
	return &Forwarder{}, nil
}

// Serve blocks until ctx is canceled.
func (f *Forwarder) Serve(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Close is a no-op.
func (f *Forwarder) Close() error {
	return nil
}
