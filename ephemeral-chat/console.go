package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gosuda/ephemeral-chat/client"
	"github.com/gosuda/ephemeral-chat/protocol"
	"github.com/gosuda/ephemeral-chat/roomapi"
)

// chatSession is the part of client.Manager the console drives.
type chatSession interface {
	SendChat(text string)
	Leave()
	CloseRoom()
	Roster() []string
	State() client.State
}

// resumer is satisfied by client.VisibilityWatcher.
type resumer interface {
	Handle(client.Visibility) bool
}

const helpText = `commands:
  /who        list who is in the room
  /reconnect  retry the connection now
  /leave      leave the room and forget the session
  /close      close the room for everyone (host only)
  /quit       exit and keep the session for "resume"
  /help       show this help`

// console renders manager events and interprets typed lines.
type console struct {
	out         io.Writer
	user        string
	room        roomapi.Room
	maxAttempts int

	mu       sync.Mutex
	finished chan struct{}
	once     sync.Once
}

func newConsole(out io.Writer, user string, room roomapi.Room, maxAttempts int) *console {
	return &console{
		out:         out,
		user:        user,
		room:        room,
		maxAttempts: maxAttempts,
		finished:    make(chan struct{}),
	}
}

// done is closed once the chat is over: left, or closed by the host.
func (c *console) done() <-chan struct{} { return c.finished }

func (c *console) finish() { c.once.Do(func() { close(c.finished) }) }

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format+"\n", args...)
}

func (c *console) handlers() client.Handlers {
	return client.Handlers{
		OnStatus: func(st client.Status) {
			c.printf("-- %s", c.formatStatus(st))
			if st.Reason == client.ReasonLeft {
				c.finish()
			}
		},
		OnTranscript: func(entry protocol.Message, _ []protocol.Message) {
			c.printf("%s", formatEntry(entry))
		},
		OnRoster: func(roster []string) {
			c.printf("-- %s", formatRoster(roster))
		},
		OnRoomClosed: c.finish,
	}
}

// handle runs one typed line and reports whether the user asked to quit.
func (c *console) handle(line string, s chatSession, w resumer) bool {
	cmd, _, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch cmd {
	case "":
		return false
	case "/help":
		c.printf("%s", helpText)
	case "/who":
		c.printf("-- %s", formatRoster(s.Roster()))
	case "/reconnect":
		if !w.Handle(client.Foreground) {
			c.printf("-- nothing to reconnect (%s)", s.State())
		}
	case "/leave":
		s.Leave()
	case "/close":
		if !c.room.IsHost(c.user) {
			c.printf("-- only the host (%s) can close this room", cleanText(c.room.HostUsername))
			return false
		}
		s.CloseRoom()
	case "/quit":
		return true
	default:
		if strings.HasPrefix(cmd, "/") {
			c.printf("-- unknown command %s, try /help", cmd)
			return false
		}
		text, ok := protocol.ComposeChat(stripControl(line))
		if !ok {
			return false
		}
		if s.State() != client.StateOpen {
			c.printf("-- not connected; message not sent")
			return false
		}
		s.SendChat(text)
	}
	return false
}

func (c *console) formatStatus(st client.Status) string {
	switch st.State {
	case client.StateConnecting:
		if st.Attempt > 0 {
			return fmt.Sprintf("reconnecting (attempt %d/%d)...", st.Attempt, c.maxAttempts)
		}
		return "connecting..."
	case client.StateOpen:
		return fmt.Sprintf("connected to %s as %s", roomLabel(c.room), c.user)
	case client.StateReconnectScheduled:
		return fmt.Sprintf("connection lost; retrying in %s (attempt %d/%d)", st.Delay, st.Attempt+1, c.maxAttempts)
	case client.StateClosedFinal:
		if st.Reason == client.ReasonRoomClosed {
			return "the room was closed by the host"
		}
		return "you left the room"
	}
	switch st.Reason {
	case client.ReasonGaveUp:
		return fmt.Sprintf("could not reconnect after %d attempts; type /reconnect to try again", c.maxAttempts)
	case client.ReasonNoSession:
		return "disconnected"
	}
	return st.State.String()
}

func roomLabel(r roomapi.Room) string {
	if name := cleanText(r.RoomName); name != "" {
		return fmt.Sprintf("%q (%s)", name, r.RoomID)
	}
	return r.RoomID
}

func formatEntry(m protocol.Message) string {
	prefix := ""
	if ts := clockTime(m.Timestamp); ts != "" {
		prefix = "[" + ts + "] "
	}
	sender := cleanText(m.Sender)
	content := cleanText(m.Content)
	switch m.Type {
	case protocol.TypeChat:
		return fmt.Sprintf("%s%s: %s", prefix, sender, content)
	case protocol.TypeJoin:
		if content == "" {
			content = sender + " joined the room"
		}
		return prefix + "* " + content
	case protocol.TypeLeave:
		if content == "" {
			content = sender + " left the room"
		}
		return prefix + "* " + content
	case protocol.TypeRoomClosed:
		if content == "" {
			content = "Room has been closed by the host"
		}
		return prefix + "!! " + content
	}
	return prefix + content
}

// clockTime pulls HH:MM:SS out of a "yyyy-MM-dd HH:mm:ss" timestamp.
func clockTime(ts string) string {
	ts = strings.TrimSpace(ts)
	if _, clock, ok := strings.Cut(ts, " "); ok {
		return clock
	}
	if _, clock, ok := strings.Cut(ts, "T"); ok {
		return clock
	}
	return ts
}

func formatRoster(roster []string) string {
	if len(roster) == 0 {
		return "no one is here"
	}
	names := make([]string, 0, len(roster))
	for _, n := range roster {
		names = append(names, cleanText(n))
	}
	return fmt.Sprintf("in room (%d): %s", len(names), strings.Join(names, ", "))
}
