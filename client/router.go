package client

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/ephemeral-chat/protocol"
	"github.com/gosuda/ephemeral-chat/session"
)

// DefaultRoomClosedDelay lets the closing notice render before the caller
// is told to move on.
const DefaultRoomClosedDelay = 2 * time.Second

// RouterConfig wires a Router. Post must run the function on the goroutine
// that calls Dispatch.
type RouterConfig struct {
	Store    session.Store
	Clock    clock.Clock
	Post     func(func()) bool
	Handlers Handlers
	// OnRoomClosed runs synchronously when ROOM_CLOSED arrives, once the
	// session is cleared and the delayed Handlers.OnRoomClosed is scheduled.
	OnRoomClosed    func()
	RoomClosedDelay time.Duration
	Logger          *zerolog.Logger
}

// Router classifies incoming frames and keeps the transcript and roster
// they produce. Dispatch must be called from a single goroutine; the
// snapshot accessors are safe from anywhere.
type Router struct {
	store     session.Store
	handlers  Handlers
	onClosed  func()
	delay     time.Duration
	log       zerolog.Logger
	redirect  *task
	closeSeen bool

	mu         sync.RWMutex
	transcript []protocol.Message
	roster     []string
}

func NewRouter(cfg RouterConfig) *Router {
	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}
	post := cfg.Post
	if post == nil {
		post = func(fn func()) bool { fn(); return true }
	}
	delay := cfg.RoomClosedDelay
	if delay <= 0 {
		delay = DefaultRoomClosedDelay
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Router{
		store:    cfg.Store,
		handlers: cfg.Handlers,
		onClosed: cfg.OnRoomClosed,
		delay:    delay,
		log:      logger,
		redirect: newTask(c, post),
		roster:   []string{},
	}
}

// Dispatch decodes one raw frame and routes it by type. Malformed frames
// and unknown types are dropped.
func (r *Router) Dispatch(raw []byte) {
	msg, err := protocol.Decode(raw)
	if err != nil {
		r.log.Warn().Err(err).Int("bytes", len(raw)).Msg("[chat] dropping frame")
		return
	}

	switch msg.Type {
	case protocol.TypeChat, protocol.TypeJoin, protocol.TypeLeave:
		r.appendEntry(msg)

	case protocol.TypeUserList:
		roster := protocol.ParseRoster(msg.Content)
		r.mu.Lock()
		r.roster = roster
		r.mu.Unlock()
		if r.handlers.OnRoster != nil {
			r.handlers.OnRoster(append([]string(nil), roster...))
		}

	case protocol.TypeRoomClosed:
		r.appendEntry(msg)
		if r.store != nil {
			if err := r.store.Clear(); err != nil {
				r.log.Warn().Err(err).Msg("[chat] clear session on room close")
			}
		}
		if !r.closeSeen {
			r.closeSeen = true
			r.redirect.schedule(r.delay, func() {
				if r.handlers.OnRoomClosed != nil {
					r.handlers.OnRoomClosed()
				}
			})
		}
		if r.onClosed != nil {
			r.onClosed()
		}

	default:
		r.log.Debug().Str("type", string(msg.Type)).Msg("[chat] ignoring unknown frame type")
	}
}

func (r *Router) appendEntry(msg protocol.Message) {
	r.mu.Lock()
	r.transcript = append(r.transcript, msg)
	snapshot := append([]protocol.Message(nil), r.transcript...)
	r.mu.Unlock()
	if r.handlers.OnTranscript != nil {
		r.handlers.OnTranscript(msg, snapshot)
	}
}

// Transcript returns a copy of the entries received so far.
func (r *Router) Transcript() []protocol.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]protocol.Message(nil), r.transcript...)
}

// Roster returns a copy of the last reported membership.
func (r *Router) Roster() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.roster...)
}
