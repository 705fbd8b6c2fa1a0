// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package transport defines the capability contract between the monitoring
core and the live-stream platform.

The platform's raw wire protocol is deliberately opaque to Vigil. A Dialer
produces Conns; a Conn delivers a discriminated stream of typed Events
(chat, gift, like, member, social, roomUser, liveIntro, streamEnd, ...) and
can fail with a distinguished blocked error class when the platform denies
the connection. The production implementation lives in transport/gateway
(a websocket client against a decode gateway); transport/transporttest
provides a scriptable fake for the monitor tests.
*/
package transport
