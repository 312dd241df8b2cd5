package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	handshakeTimeout = 10 * time.Second
	maxFrameBytes    = 1 << 20
)

// Conn is one live socket. ReadMessage is called from a single goroutine and
// WriteMessage from another; Close may be called from anywhere, more than once.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens sockets to the chat endpoint.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context) (Conn, error) { return f(ctx) }

// WebSocketDialer dials the chat endpoint with gorilla/websocket.
type WebSocketDialer struct {
	URL    string
	Header http.Header
	// PingInterval enables keepalive pings when positive. A peer that stops
	// answering for two intervals is treated as gone.
	PingInterval time.Duration
}

func (d *WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	wd := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	conn, _, err := wd.DialContext(ctx, d.URL, d.Header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}
	return newWSConn(conn, d.PingInterval), nil
}

type wsConn struct {
	conn      *websocket.Conn
	ping      time.Duration
	done      chan struct{}
	closeOnce sync.Once
}

func newWSConn(conn *websocket.Conn, ping time.Duration) *wsConn {
	c := &wsConn{conn: conn, ping: ping, done: make(chan struct{})}
	conn.SetReadLimit(maxFrameBytes)
	if ping > 0 {
		pongWait := 2 * ping
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		go c.keepalive()
	}
	return c
}

func (c *wsConn) keepalive() {
	ticker := time.NewTicker(c.ping)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if c.ping > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(2 * c.ping))
	}
	return data, nil
}

func (c *wsConn) WriteMessage(data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}

// EndpointURL derives the socket URL from the server's base URL: http maps to
// ws, https to wss, and the path becomes /chat.
func EndpointURL(server string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(server))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("server url has no host")
	}
	u.Path = "/chat"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
