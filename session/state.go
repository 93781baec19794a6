// ABOUTME: Connection states, reconnect backoff and auto-fetch schedule for a session.
// ABOUTME: Backoff delays double from BaseDelay; no reconnect is scheduled past MaxAttempts.
package session

import (
	"time"
)

// State is the stream connection state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Backoff is the reconnect schedule.
type Backoff struct {
	BaseDelay   time.Duration
	MaxAttempts int
}

// DefaultBackoff returns 5 attempts starting at 1s.
func DefaultBackoff() Backoff {
	return Backoff{BaseDelay: time.Second, MaxAttempts: 5}
}

// MaxBackoffDelay caps a single reconnect wait.
const MaxBackoffDelay = 5 * time.Minute

// Delay returns the wait before reconnect attempt n (1-based): BaseDelay * 2^(n-1),
// capped at MaxBackoffDelay.
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.BaseDelay
	for i := 1; i < attempt; i++ {
		if d >= MaxBackoffDelay/2 {
			return MaxBackoffDelay
		}
		d *= 2
	}
	return min(d, MaxBackoffDelay)
}

// Exhausted reports whether attempt is past the cap.
func (b Backoff) Exhausted(attempt int) bool {
	return attempt > b.MaxAttempts
}

// AutoFetch is the report fetch schedule after a stream completes without a report.
type AutoFetch struct {
	Attempts int
	Step     time.Duration
}

// DefaultAutoFetch returns 3 attempts at 2s, 4s and 6s.
func DefaultAutoFetch() AutoFetch {
	return AutoFetch{Attempts: 3, Step: 2 * time.Second}
}

// Delay returns the wait before attempt n (1-based): n * Step.
func (a AutoFetch) Delay(attempt int) time.Duration {
	return time.Duration(attempt) * a.Step
}
