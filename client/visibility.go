package client

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Visibility is whether the client is in the foreground.
type Visibility int

const (
	Background Visibility = iota
	Foreground
)

func (v Visibility) String() string {
	if v == Foreground {
		return "foreground"
	}
	return "background"
}

// Resumer is the part of a Manager the watcher drives.
type Resumer interface {
	State() State
	SessionActive() bool
	Foreground()
}

// VisibilityWatcher turns foreground transitions into immediate reconnects.
// Background transitions leave the socket alone.
type VisibilityWatcher struct {
	target Resumer
	log    zerolog.Logger
}

func NewVisibilityWatcher(target Resumer) *VisibilityWatcher {
	return &VisibilityWatcher{target: target, log: log.Logger}
}

// Handle reacts to one transition and reports whether a reconnect was
// requested.
func (w *VisibilityWatcher) Handle(v Visibility) bool {
	if v != Foreground {
		w.log.Debug().Msg("[chat] moved to background")
		return false
	}
	if !w.target.SessionActive() {
		w.log.Debug().Msg("[chat] foreground without a session for this room")
		return false
	}
	if w.target.State() == StateOpen {
		return false
	}
	w.log.Info().Msg("[chat] back in foreground, reconnecting")
	w.target.Foreground()
	return true
}

// Watch consumes transitions until ctx ends or events is closed.
func (w *VisibilityWatcher) Watch(ctx context.Context, events <-chan Visibility) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-events:
			if !ok {
				return
			}
			w.Handle(v)
		}
	}
}
