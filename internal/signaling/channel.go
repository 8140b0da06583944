package signaling

import "errors"

// ErrDisconnected reports that the relay connection dropped.
var ErrDisconnected = errors.New("signaling channel disconnected")

// Channel is the transport-agnostic signaling connection consumed by
// the room orchestrator. The production implementation is the
// websocket Client; tests and the dev relay use in-process Endpoints.
//
// Incoming is closed when the channel disconnects. Send never blocks
// the caller for long: implementations buffer outgoing messages and
// drop the connection on write failure rather than propagating errors
// per message.
type Channel interface {
	Connect() error
	Send(msg *Message)
	Incoming() <-chan *Message
	Close()
}
