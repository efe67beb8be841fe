// File: tcp/callbacks.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package tcp implements the connection-oriented facade: Acceptor,
// Connection, and Server, built on top of netloop's reactor core.
package tcp

import (
	"time"

	"github.com/asobel/multiloop/buffer"
)

// ConnectionCallback fires on both connection establishment and
// teardown; the caller distinguishes the two via Connection.Connected.
type ConnectionCallback func(conn *Connection)

// MessageCallback fires on every successful non-empty read, with the
// connection's input buffer and the timestamp the poller captured the
// read-ready event at.
type MessageCallback func(conn *Connection, input *buffer.ByteBuffer, receivedAt time.Time)

// WriteCompleteCallback fires once the output buffer has fully drained
// after a send that spilled into it, and after any send that completed
// in full without buffering.
type WriteCompleteCallback func(conn *Connection)

// HighWaterMarkCallback fires when a send causes the output buffer's
// readable length to cross the configured threshold from below.
type HighWaterMarkCallback func(conn *Connection, totalOutputBytes int)

// closeCallback is the internal hand-back used by a Connection to tell
// its owning Server to remove it from the registry. It is never
// exposed to application code.
type closeCallback func(conn *Connection)
