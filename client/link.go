package client

import (
	"github.com/rs/zerolog"
)

const sendBufferSize = 64

// link is the manager's handle on one opened socket: a write goroutine
// draining a bounded queue, plus the read loop run by the dialing goroutine.
// enqueue and shutdown are only called from the event loop.
type link struct {
	gen     uint64
	conn    Conn
	send    chan []byte
	closing bool
	log     zerolog.Logger
}

func newLink(gen uint64, conn Conn, log zerolog.Logger) *link {
	l := &link{
		gen:  gen,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		log:  log,
	}
	go l.writeLoop()
	return l
}

func (l *link) writeLoop() {
	for data := range l.send {
		if err := l.conn.WriteMessage(data); err != nil {
			l.log.Debug().Err(err).Msg("[chat] write frame")
			_ = l.conn.Close()
			for range l.send {
			}
			return
		}
	}
	_ = l.conn.Close()
}

// readLoop forwards frames until the socket fails. It stops early if the
// manager is gone.
func (l *link) readLoop(post func(func()) bool, onMessage func(uint64, []byte), onClosed func(uint64, error)) {
	for {
		data, err := l.conn.ReadMessage()
		if err != nil {
			post(func() { onClosed(l.gen, err) })
			return
		}
		if !post(func() { onMessage(l.gen, data) }) {
			return
		}
	}
}

func (l *link) enqueue(data []byte) {
	if l.closing {
		return
	}
	select {
	case l.send <- data:
	default:
		// drop oldest to avoid blocking the loop
		select {
		case <-l.send:
		default:
		}
		l.send <- data
	}
}

// shutdown flushes queued frames and then closes the socket.
func (l *link) shutdown() {
	if l.closing {
		return
	}
	l.closing = true
	close(l.send)
}
