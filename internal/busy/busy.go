// ABOUTME: Per-action busy flags that reject duplicate concurrent submissions
// ABOUTME: A flag is held for the lifetime of one in-flight call and released afterwards

package busy

import (
	"errors"
	"sync"
)

// ErrBusy is returned when an action is submitted while the same action is in flight.
var ErrBusy = errors.New("action already in progress")

// Flag guards one action. The zero value is ready to use.
type Flag struct {
	mu   sync.Mutex
	held bool
}

// TryAcquire atomically checks and sets the flag.
// Returns false if the action is already in flight.
func (f *Flag) TryAcquire() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held {
		return false
	}
	f.held = true
	return true
}

// Release clears the flag.
func (f *Flag) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = false
}

// Do runs fn while holding the flag, or returns ErrBusy without running it.
func (f *Flag) Do(fn func() error) error {
	if !f.TryAcquire() {
		return ErrBusy
	}
	defer f.Release()
	return fn()
}
