// Package client keeps a chat session alive over a WebSocket: it connects,
// joins, reconnects with backoff while the persisted session says the user is
// still in the room, and routes incoming frames to the caller.
package client

import (
	"time"

	"github.com/gosuda/ephemeral-chat/protocol"
)

// State is the connection state of a Manager.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateReconnectScheduled
	StateClosedFinal
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateReconnectScheduled:
		return "RECONNECT_SCHEDULED"
	case StateClosedFinal:
		return "CLOSED_FINAL"
	default:
		return "UNKNOWN"
	}
}

// Reason qualifies a status update. Terminal reasons mean no automatic
// recovery will happen without a foreground return or explicit Connect.
type Reason string

const (
	ReasonNone       Reason = ""
	ReasonNoSession  Reason = "no-session"
	ReasonGaveUp     Reason = "gave-up"
	ReasonLeft       Reason = "left"
	ReasonRoomClosed Reason = "room-closed"
)

// Terminal reports whether the reason ends automatic recovery.
func (r Reason) Terminal() bool {
	return r != ReasonNone
}

// Status is delivered to Handlers.OnStatus on every state change.
type Status struct {
	State   State
	Reason  Reason
	Attempt int           // attempts made so far
	Delay   time.Duration // set while a reconnect is scheduled
	Err     error         // socket error behind a disconnect, if any
}

// Handlers receive the manager's events. They run on the manager's event
// loop, one at a time and in order; any may be nil.
type Handlers struct {
	OnStatus     func(Status)
	OnTranscript func(entry protocol.Message, transcript []protocol.Message)
	OnRoster     func(roster []string)
	OnRoomClosed func()
}
