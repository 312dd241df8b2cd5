package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gosuda/ephemeral-chat/client"
	"github.com/gosuda/ephemeral-chat/protocol"
	"github.com/gosuda/ephemeral-chat/roomapi"
)

type fakeSession struct {
	state  client.State
	roster []string
	sent   []string
	left   int
	closed int
}

func (s *fakeSession) SendChat(text string) { s.sent = append(s.sent, text) }
func (s *fakeSession) Leave() { s.left++ }
func (s *fakeSession) CloseRoom() { s.closed++ }
func (s *fakeSession) Roster() []string { return s.roster }
func (s *fakeSession) State() client.State { return s.state }

type fakeResumer struct {
	calls  int
	result bool
}

func (r *fakeResumer) Handle(v client.Visibility) bool {
	if v == client.Foreground {
		r.calls++
	}
	return r.result
}

var lobby = roomapi.Room{RoomID: "r1", RoomName: "lobby", HostUsername: "alice", Active: true}

func newTestConsole(user string) (*console, *bytes.Buffer) {
	var out bytes.Buffer
	return newConsole(&out, user, lobby, 10), &out
}

func TestConsole_SendsChatOnlyWhenOpen(t *testing.T) {
	c, out := newTestConsole("bob")
	s := &fakeSession{state: client.StateOpen}

	assert.False(t, c.handle("  hello there  ", s, &fakeResumer{}))
	assert.False(t, c.handle("   ", s, &fakeResumer{}))
	assert.Equal(t, []string{"hello there"}, s.sent)

	s.state = client.StateReconnectScheduled
	c.handle("lost", s, &fakeResumer{})
	assert.Len(t, s.sent, 1)
	assert.Contains(t, out.String(), "not connected")
}

func TestConsole_CapsLongMessages(t *testing.T) {
	c, _ := newTestConsole("bob")
	s := &fakeSession{state: client.StateOpen}
	c.handle(strings.Repeat("x", protocol.MaxChatLength+20), s, &fakeResumer{})
	if assert.Len(t, s.sent, 1) {
		assert.Len(t, s.sent[0], protocol.MaxChatLength)
	}
}

func TestConsole_Commands(t *testing.T) {
	c, out := newTestConsole("bob")
	s := &fakeSession{state: client.StateOpen, roster: []string{"alice", "bob"}}
	r := &fakeResumer{}

	c.handle("/who", s, r)
	assert.Contains(t, out.String(), "in room (2): alice, bob")

	c.handle("/close", s, r)
	assert.Zero(t, s.closed, "only the host may close")
	assert.Contains(t, out.String(), "only the host (alice)")

	c.handle("/reconnect", s, r)
	assert.Equal(t, 1, r.calls)
	assert.Contains(t, out.String(), "nothing to reconnect")

	c.handle("/leave", s, r)
	assert.Equal(t, 1, s.left)

	c.handle("/bogus", s, r)
	assert.Contains(t, out.String(), "unknown command /bogus")
	assert.Empty(t, s.sent)

	assert.True(t, c.handle("/quit", s, r))
}

func TestConsole_HostCanClose(t *testing.T) {
	c, _ := newTestConsole("alice")
	s := &fakeSession{state: client.StateOpen}
	c.handle("/close", s, &fakeResumer{})
	assert.Equal(t, 1, s.closed)
}

func TestConsole_DoneOnLeaveOrRoomClosed(t *testing.T) {
	c, _ := newTestConsole("bob")
	h := c.handlers()
	h.OnStatus(client.Status{State: client.StateReconnectScheduled, Delay: time.Second})
	select {
	case <-c.done():
		t.Fatal("done before leaving")
	default:
	}
	h.OnStatus(client.Status{State: client.StateClosedFinal, Reason: client.ReasonLeft})
	<-c.done()

	c2, _ := newTestConsole("bob")
	h2 := c2.handlers()
	h2.OnRoomClosed()
	h2.OnRoomClosed()
	<-c2.done()
}

func TestConsole_FormatStatus(t *testing.T) {
	c, _ := newTestConsole("bob")
	tests := []struct {
		st   client.Status
		want string
	}{
		{client.Status{State: client.StateConnecting}, "connecting..."},
		{client.Status{State: client.StateConnecting, Attempt: 3}, "reconnecting (attempt 3/10)..."},
		{client.Status{State: client.StateOpen}, `connected to "lobby" (r1) as bob`},
		{client.Status{State: client.StateReconnectScheduled, Attempt: 1, Delay: 2 * time.Second}, "connection lost; retrying in 2s (attempt 2/10)"},
		{client.Status{State: client.StateDisconnected, Reason: client.ReasonGaveUp, Attempt: 10}, "could not reconnect after 10 attempts; type /reconnect to try again"},
		{client.Status{State: client.StateDisconnected, Reason: client.ReasonNoSession}, "disconnected"},
		{client.Status{State: client.StateClosedFinal, Reason: client.ReasonLeft}, "you left the room"},
		{client.Status{State: client.StateClosedFinal, Reason: client.ReasonRoomClosed}, "the room was closed by the host"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.formatStatus(tt.st))
	}
}

func TestFormatEntry(t *testing.T) {
	tests := []struct {
		name string
		msg  protocol.Message
		want string
	}{
		{"chat with timestamp", protocol.Message{Type: protocol.TypeChat, Sender: "bob", Content: "hi", Timestamp: "2024-05-01 10:11:12"}, "[10:11:12] bob: hi"},
		{"chat without timestamp", protocol.Message{Type: protocol.TypeChat, Sender: "bob", Content: "hi"}, "bob: hi"},
		{"join from server", protocol.Message{Type: protocol.TypeJoin, Sender: "bob", Content: "bob joined the room"}, "* bob joined the room"},
		{"leave without content", protocol.Message{Type: protocol.TypeLeave, Sender: "bob"}, "* bob left the room"},
		{"room closed", protocol.Message{Type: protocol.TypeRoomClosed, Sender: "System", Content: "Room has been closed by the host"}, "!! Room has been closed by the host"},
		{"markup is stripped", protocol.Message{Type: protocol.TypeChat, Sender: "<b>eve</b>", Content: "<script>x</script>a & b"}, "eve: a & b"},
		{"escape sequences dropped", protocol.Message{Type: protocol.TypeChat, Sender: "eve", Content: "\x1b[2Jboo"}, "eve: [2Jboo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatEntry(tt.msg))
		})
	}
}

func TestFormatRoster(t *testing.T) {
	assert.Equal(t, "no one is here", formatRoster(nil))
	assert.Equal(t, "in room (1): alice", formatRoster([]string{"alice"}))
}
