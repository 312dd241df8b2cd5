package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/ephemeral-chat/protocol"
	"github.com/gosuda/ephemeral-chat/session"
)

var (
	// ErrMissingIdentity is returned by Connect when the room or username is empty.
	ErrMissingIdentity = errors.New("client: room id and username are required")
	// ErrDisposed is returned by calls made after Dispose.
	ErrDisposed = errors.New("client: manager disposed")
)

const commandBufferSize = 256

// Config wires a Manager. Dialer and Store are required.
type Config struct {
	RoomID   string
	Username string
	Dialer   Dialer
	Store    session.Store
	// Policy defaults to DefaultPolicy when zero.
	Policy Policy
	// Clock defaults to the wall clock; tests pass clock.NewMock().
	Clock clock.Clock
	// RoomClosedDelay defaults to DefaultRoomClosedDelay.
	RoomClosedDelay time.Duration
	Logger          *zerolog.Logger
	Handlers        Handlers
}

// Manager owns one chat socket and drives its connection state machine.
// Every state change happens on a single event-loop goroutine; the public
// methods only queue work for it and never block on the network.
type Manager struct {
	roomID   string
	username string
	dialer   Dialer
	store    session.Store
	policy   Policy
	handlers Handlers
	log      zerolog.Logger
	router   *Router
	retry    *task

	ctx      context.Context
	cancel   context.CancelFunc
	commands chan func()
	done     chan struct{}
	stopOnce sync.Once

	// loop-owned
	state      State
	attempts   int
	gen        uint64
	link       *link
	dialCancel context.CancelFunc

	mu   sync.RWMutex
	view struct {
		state    State
		attempts int
	}
}

// New validates cfg and starts the manager's event loop. The manager starts
// DISCONNECTED; call Connect to open the socket.
func New(cfg Config) (*Manager, error) {
	if cfg.Dialer == nil {
		return nil, errors.New("client: dialer is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("client: session store is required")
	}
	policy := cfg.Policy
	if policy == (Policy{}) {
		policy = DefaultPolicy
	}
	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	logger = logger.With().Str("room", cfg.RoomID).Str("user", cfg.Username).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		roomID:   cfg.RoomID,
		username: cfg.Username,
		dialer:   cfg.Dialer,
		store:    cfg.Store,
		policy:   policy,
		handlers: cfg.Handlers,
		log:      logger,
		ctx:      ctx,
		cancel:   cancel,
		commands: make(chan func(), commandBufferSize),
		done:     make(chan struct{}),
	}
	m.retry = newTask(c, m.post)
	m.router = NewRouter(RouterConfig{
		Store:           cfg.Store,
		Clock:           c,
		Post:            m.post,
		Handlers:        cfg.Handlers,
		OnRoomClosed:    func() { m.fire(event{kind: evRoomClosed}) },
		RoomClosedDelay: cfg.RoomClosedDelay,
		Logger:          &logger,
	})
	go m.loop()
	return m, nil
}

func (m *Manager) loop() {
	defer m.retry.cancel()
	for {
		select {
		case fn := <-m.commands:
			fn()
		case <-m.done:
			return
		}
	}
}

// post queues fn for the event loop. It reports false once the manager is
// disposed.
func (m *Manager) post(fn func()) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.commands <- fn:
		return true
	case <-m.done:
		return false
	}
}

// Connect opens the socket unless one is already open or being opened.
func (m *Manager) Connect() error {
	if m.roomID == "" || m.username == "" {
		return ErrMissingIdentity
	}
	if !m.post(func() { m.fire(event{kind: evConnect}) }) {
		return ErrDisposed
	}
	return nil
}

// Foreground handles a return to the foreground: when a session for this
// room is stored and the socket is not open, the attempt counter is reset,
// any scheduled retry is cancelled and a connection is started at once.
func (m *Manager) Foreground() {
	m.post(func() { m.fire(event{kind: evForeground}) })
}

// Leave clears the session, says LEAVE if connected and closes the socket.
// No automatic reconnect happens afterwards.
func (m *Manager) Leave() {
	m.post(func() { m.fire(event{kind: evLeave}) })
}

// Send transmits msg if the socket is open and silently drops it otherwise.
func (m *Manager) Send(msg protocol.Message) {
	m.post(func() { m.write(msg) })
}

// SendChat sends text as this user's CHAT message. Text should already be
// composed with protocol.ComposeChat.
func (m *Manager) SendChat(text string) {
	m.Send(protocol.NewChat(m.username, m.roomID, text))
}

// CloseRoom is the host's request to close the room for everyone. The
// session is cleared first so the server's disconnect is not retried.
func (m *Manager) CloseRoom() {
	m.post(func() {
		m.clearSession()
		m.write(protocol.NewRoomClosed(m.username, m.roomID))
	})
}

// Dispose cancels any scheduled retry and stops event processing. It does
// not send LEAVE, clear the session or close an open socket, so a restarted
// client can resume the room.
func (m *Manager) Dispose() {
	m.stopOnce.Do(func() {
		close(m.done)
		m.cancel()
	})
}

func (m *Manager) RoomID() string { return m.roomID }
func (m *Manager) Username() string { return m.username }

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view.state
}

// Attempts returns the reconnect attempt counter.
func (m *Manager) Attempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view.attempts
}

// Transcript returns the received CHAT/JOIN/LEAVE/ROOM_CLOSED frames in order.
func (m *Manager) Transcript() []protocol.Message { return m.router.Transcript() }

// Roster returns the last membership reported by the server.
func (m *Manager) Roster() []string { return m.router.Roster() }

// SessionActive reports whether the store holds a session for this room.
func (m *Manager) SessionActive() bool {
	s, ok := m.store.Load()
	return ok && s.Matches(m.roomID)
}

func (m *Manager) fire(ev event) {
	in := machineInput{state: m.state, attempts: m.attempts}
	if ev.kind == evClosed || ev.kind == evForeground {
		in.sessionMatches = m.SessionActive()
	}
	out := transition(in, ev, m.policy)
	if out.state != m.state {
		m.log.Debug().Str("event", ev.kind.String()).Stringer("from", m.state).Stringer("to", out.state).Msg("[chat] state")
	}
	m.state, m.attempts = out.state, out.attempts
	m.mu.Lock()
	m.view.state, m.view.attempts = out.state, out.attempts
	m.mu.Unlock()

	for _, fx := range out.effects {
		m.apply(fx)
	}
}

func (m *Manager) apply(fx effect) {
	switch fx.kind {
	case fxDial:
		m.dial()
	case fxSendJoin:
		m.write(protocol.NewJoin(m.username, m.roomID))
	case fxSendLeave:
		// the machine has already left OPEN; the link is still up
		m.transmit(protocol.NewLeave(m.username, m.roomID))
	case fxSaveSession:
		if err := m.store.Save(m.roomID, m.username); err != nil {
			m.log.Warn().Err(err).Msg("[chat] save session")
		}
	case fxClearSession:
		m.clearSession()
	case fxSchedule:
		m.log.Info().Dur("delay", fx.delay).Int("attempt", m.attempts+1).Int("max", m.policy.MaxAttempts).Msg("[chat] reconnect scheduled")
		m.retry.schedule(fx.delay, func() { m.fire(event{kind: evTimerFired}) })
	case fxCancelTimer:
		m.retry.cancel()
	case fxCloseSocket:
		m.closeSocket()
	case fxStatus:
		if fx.status.Reason == ReasonGaveUp {
			m.log.Warn().Int("attempts", fx.status.Attempt).Msg("[chat] max reconnection attempts reached")
		}
		if m.handlers.OnStatus != nil {
			m.handlers.OnStatus(fx.status)
		}
	}
}

func (m *Manager) clearSession() {
	if err := m.store.Clear(); err != nil {
		m.log.Warn().Err(err).Msg("[chat] clear session")
	}
}

// write encodes msg onto the open socket; it is a no-op in any other state.
func (m *Manager) write(msg protocol.Message) {
	if m.state != StateOpen {
		return
	}
	m.transmit(msg)
}

func (m *Manager) transmit(msg protocol.Message) {
	if m.link == nil {
		return
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		m.log.Warn().Err(err).Msg("[chat] encode frame")
		return
	}
	m.link.enqueue(data)
}

func (m *Manager) dial() {
	m.gen++
	gen := m.gen
	if m.dialCancel != nil {
		m.dialCancel()
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.dialCancel = cancel
	m.log.Info().Int("attempt", m.attempts).Msg("[chat] connecting")

	go func() {
		conn, err := m.dialer.Dial(ctx)
		if err != nil {
			m.post(func() { m.onClosed(gen, err) })
			return
		}
		l := newLink(gen, conn, m.log)
		if !m.post(func() { m.onOpened(l) }) {
			_ = conn.Close()
			return
		}
		l.readLoop(m.post, m.onMessage, m.onClosed)
	}()
}

func (m *Manager) onOpened(l *link) {
	if l.gen != m.gen || m.state != StateConnecting {
		l.shutdown()
		return
	}
	m.link = l
	m.log.Info().Msg("[chat] connected")
	m.fire(event{kind: evOpened})
}

func (m *Manager) onMessage(gen uint64, data []byte) {
	if gen != m.gen || m.link == nil {
		return
	}
	m.router.Dispatch(data)
}

func (m *Manager) onClosed(gen uint64, err error) {
	if gen != m.gen {
		return
	}
	m.releaseSocket()
	m.log.Info().Err(err).Msg("[chat] disconnected")
	m.fire(event{kind: evClosed, err: err})
}

// closeSocket tears down the current socket and invalidates any dial or
// read still in flight, so their events are ignored.
func (m *Manager) closeSocket() {
	m.gen++
	m.releaseSocket()
}

func (m *Manager) releaseSocket() {
	if m.dialCancel != nil {
		m.dialCancel()
		m.dialCancel = nil
	}
	if m.link != nil {
		m.link.shutdown()
		m.link = nil
	}
}
