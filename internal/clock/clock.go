package clock

import (
	"sync"
	"time"
)

// Clock supplies the current instant. Estimation and placement read it exactly once per call.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fixed returns a settable instant, for tests and replay tooling.
type Fixed struct {
	mu sync.RWMutex
	at time.Time
}

func NewFixed(at time.Time) *Fixed {
	return &Fixed{at: at}
}

func (f *Fixed) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.at
}

func (f *Fixed) Set(at time.Time) {
	f.mu.Lock()
	f.at = at
	f.mu.Unlock()
}

func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.at = f.at.Add(d)
	f.mu.Unlock()
}
