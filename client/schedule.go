package client

import (
	"time"

	"github.com/benbjohnson/clock"
)

// task is an owned, cancellable timer whose callback runs on the manager's
// event loop. Scheduling replaces any pending run; a timer that fires after
// being replaced or cancelled is ignored. Methods must be called on the loop.
type task struct {
	clock clock.Clock
	post  func(func()) bool
	timer *clock.Timer
	seq   uint64
}

func newTask(c clock.Clock, post func(func()) bool) *task {
	return &task{clock: c, post: post}
}

func (t *task) schedule(d time.Duration, fn func()) {
	t.cancel()
	seq := t.seq
	t.timer = t.clock.AfterFunc(d, func() {
		t.post(func() {
			if seq != t.seq {
				return
			}
			t.timer = nil
			fn()
		})
	})
}

func (t *task) cancel() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.seq++
}

func (t *task) pending() bool {
	return t.timer != nil
}
