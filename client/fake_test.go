package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gosuda/ephemeral-chat/protocol"
)

const waitTimeout = 2 * time.Second

var (
	errRefused   = errors.New("connection refused")
	errFakeClose = errors.New("fake socket closed")
)

// fakeConn is an in-memory socket. The test plays the server: deliver pushes
// frames to the client, drop simulates a server-side close.
type fakeConn struct {
	inbox     chan []byte
	frames    chan protocol.Message
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbox:  make(chan []byte, 16),
		frames: make(chan protocol.Message, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbox:
		return data, nil
	case <-c.closed:
		return nil, errFakeClose
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return errFakeClose
	default:
	}
	m, err := protocol.Decode(data)
	if err != nil {
		return err
	}
	c.frames <- m
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) drop() { _ = c.Close() }

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) deliver(t *testing.T, m protocol.Message) {
	t.Helper()
	raw, err := protocol.Encode(m)
	require.NoError(t, err)
	c.inbox <- raw
}

func (c *fakeConn) nextFrame(t *testing.T) protocol.Message {
	t.Helper()
	select {
	case m := <-c.frames:
		return m
	case <-time.After(waitTimeout):
		t.Fatal("no frame written")
		return protocol.Message{}
	}
}

func (c *fakeConn) noFrame(t *testing.T) {
	t.Helper()
	select {
	case m := <-c.frames:
		t.Fatalf("unexpected frame %+v", m)
	case <-time.After(30 * time.Millisecond):
	}
}

// fakeDialer hands out queued connections and refuses once the queue is empty.
type fakeDialer struct {
	mu    sync.Mutex
	queue []*fakeConn
	calls chan struct{}
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{calls: make(chan struct{}, 64)}
}

func (d *fakeDialer) accept() *fakeConn {
	c := newFakeConn()
	d.mu.Lock()
	d.queue = append(d.queue, c)
	d.mu.Unlock()
	return c
}

func (d *fakeDialer) Dial(ctx context.Context) (Conn, error) {
	d.calls <- struct{}{}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return nil, errRefused
	}
	c := d.queue[0]
	d.queue = d.queue[1:]
	return c, nil
}

func (d *fakeDialer) waitDial(t *testing.T) {
	t.Helper()
	select {
	case <-d.calls:
	case <-time.After(waitTimeout):
		t.Fatal("no dial happened")
	}
}

func (d *fakeDialer) noDial(t *testing.T) {
	t.Helper()
	select {
	case <-d.calls:
		t.Fatal("unexpected dial")
	case <-time.After(30 * time.Millisecond):
	}
}

// recorder collects manager events on buffered channels.
type recorder struct {
	statuses   chan Status
	entries    chan protocol.Message
	rosters    chan []string
	roomClosed chan struct{}
}

func newRecorder() *recorder {
	return &recorder{
		statuses:   make(chan Status, 256),
		entries:    make(chan protocol.Message, 64),
		rosters:    make(chan []string, 64),
		roomClosed: make(chan struct{}, 4),
	}
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnStatus:     func(s Status) { r.statuses <- s },
		OnTranscript: func(entry protocol.Message, _ []protocol.Message) { r.entries <- entry },
		OnRoster:     func(roster []string) { r.rosters <- roster },
		OnRoomClosed: func() { r.roomClosed <- struct{}{} },
	}
}

// waitStatus skips statuses until one matches.
func (r *recorder) waitStatus(t *testing.T, match func(Status) bool) Status {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case s := <-r.statuses:
			if match(s) {
				return s
			}
		case <-deadline:
			t.Fatal("status never reached")
			return Status{}
		}
	}
}

func inState(state State) func(Status) bool {
	return func(s Status) bool { return s.State == state }
}

func withReason(reason Reason) func(Status) bool {
	return func(s Status) bool { return s.Reason == reason }
}
