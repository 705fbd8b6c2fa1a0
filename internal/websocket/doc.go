// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package websocket pushes live monitoring data to dashboard clients.

The package implements a hub-and-spoke broadcaster over gorilla/websocket.
A Bridge subscribes to the in-process event bus and forwards everything the
session managers publish (captured transport events and monitoring state
transitions) to the Hub, which fans each message out to every connected
client.

	 event bus
	     │
	┌────┴─────┐
	│  Bridge  │  live.events + monitor.notifications
	└────┬─────┘
	┌────┴─────┐
	│   Hub    │  broadcasts to all clients
	└────┬─────┘
	┌────┴─────┬─────────┬─────────┐
	│ Client1  │ Client2 │ Client3 │ ...
	└──────────┴─────────┴─────────┘

Each client runs two goroutines: readPump consumes client frames and
answers application-level pings, writePump drains the per-client send
buffer and keeps the connection alive with protocol pings.

Message framing:

	{"type": "live_event",   "data": {<bus envelope>}}
	{"type": "notification", "data": {<notification>}}
	{"type": "ping" | "pong"}

Delivery is best effort. A client whose send buffer fills is evicted
rather than allowed to stall the hub, and a full hub queue drops the
message; both outcomes are counted in the websocket metrics.

Connection lifecycle:

 1. The ops server upgrades the HTTP request and registers a Client.
 2. The hub tracks the client and includes it in subsequent broadcasts.
 3. On read error, eviction, or hub shutdown the client is unregistered
    and its connection closed.

Hub and Bridge both run as supervised services: Run(ctx) blocks until the
context is canceled, closes all clients, and returns ctx.Err().
*/
package websocket
