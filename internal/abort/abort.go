// Package abort implements the process-wide cooperative cancellation token.
//
// The token is advisory: long-running code must poll it at suspension points
// (network fetches, DOM waits, scroll polls, operator prompts). It is reset at
// the start of every run so a cancelled run never bleeds into the next one.
package abort

import (
	"errors"
	"sync/atomic"
	"time"
)

// ErrAborted is returned by components that observe a triggered token.
// It is a distinguished outcome, not a failure.
var ErrAborted = errors.New("aborted by operator")

// pollInterval bounds how long a Sleep can overshoot a trigger.
const pollInterval = 100 * time.Millisecond

// Token is a shared, atomically readable abort flag.
type Token struct {
	flag atomic.Bool
}

func NewToken() *Token {
	return &Token{}
}

// Trigger flips the flag. Safe to call from any goroutine, idempotent.
func (t *Token) Trigger() {
	t.flag.Store(true)
}

// Reset clears the flag for a new run.
func (t *Token) Reset() {
	t.flag.Store(false)
}

// Triggered reports whether an abort has been requested.
func (t *Token) Triggered() bool {
	return t.flag.Load()
}

// Err returns ErrAborted if the token is triggered, nil otherwise.
func (t *Token) Err() error {
	if t.Triggered() {
		return ErrAborted
	}
	return nil
}

// Sleep waits for d while polling the token. It returns false as soon as the
// token is triggered, so multi-second waits still observe cancellation at
// sub-second granularity.
func (t *Token) Sleep(d time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		if t.Triggered() {
			return false
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		if remaining > pollInterval {
			remaining = pollInterval
		}
		time.Sleep(remaining)
	}
}
