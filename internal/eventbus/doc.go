// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package eventbus provides the in-process publish/subscribe fabric that
decouples live-session capture from everything that reacts to it.

The session manager publishes two kinds of messages:

  - TopicLiveEvents carries every event observed on a monitored stream
    (chat, gift, follow, viewer updates), wrapped in an Envelope that adds
    the session and account context a subscriber needs without a database
    lookup.
  - TopicNotifications carries monitoring state transitions: session
    started, session ended, account blocked, account recovered.

Subscribers include the alert engine (keyword scanning over chat events),
the websocket hub bridge (pushing live updates to connected dashboards),
and the optional NATS forwarder.

# Delivery Semantics

The bus is a Watermill gochannel: in-memory, non-persistent, one copy per
subscriber. A subscriber must exist before a message is published to
receive it, and delivery to each subscriber is serialized on ack. The
durable record of every event lives in the database; the bus only fans
events out to live consumers, so losing bus messages across a restart is
by construction not a data loss.

# Build Tags

The NATS JetStream forwarder compiles only with the "nats" build tag. It
mirrors both topics to a JetStream stream for external consumers and
replay, deduplicated by event ID, optionally hosting an embedded NATS
server for single-binary deployments. Without the tag the forwarder is a
logging no-op and the bus remains fully functional in-process.
*/
package eventbus
