// Package health tracks process liveness for the readiness probe and the
// shutdown drain.
package health

import (
	"sync/atomic"
	"time"
)

// State starts healthy.  MarkShuttingDown is one-way.
type State struct {
	down    atomic.Bool
	started time.Time
}

func NewState() *State {
	return &State{started: time.Now()}
}

func (s *State) Healthy() bool { return !s.down.Load() }

// MarkShuttingDown flips the state and reports whether this call did it.
func (s *State) MarkShuttingDown() bool {
	return s.down.CompareAndSwap(false, true)
}

func (s *State) Uptime() time.Duration { return time.Since(s.started) }
