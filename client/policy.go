package client

import "time"

// Policy maps a reconnect attempt count to a backoff delay and decides when
// to stop retrying. The zero value is not useful; start from DefaultPolicy.
type Policy struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

// DefaultPolicy retries after 1s, 2s, 4s, ... capped at 30s, and gives up
// once ten retries have been made.
var DefaultPolicy = Policy{
	Base:        time.Second,
	Max:         30 * time.Second,
	MaxAttempts: 10,
}

// DelayFor returns min(Base * 2^attempt, Max). Negative attempts count as 0.
func (p Policy) DelayFor(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.Base
	for i := 0; i < attempt; i++ {
		if d >= p.Max {
			return p.Max
		}
		d *= 2
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

// ShouldGiveUp reports whether no further retry may be scheduled.
func (p Policy) ShouldGiveUp(attempt int) bool {
	return attempt >= p.MaxAttempts
}
