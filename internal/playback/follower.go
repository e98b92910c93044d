package playback

import (
	"context"
	"log/slog"
	"math"
	"sync"
)

// DefaultThreshold is the drift in seconds tolerated before a hard seek.
const DefaultThreshold = 2.0

type Options struct {
	// Threshold defaults to DefaultThreshold when zero.
	Threshold float64
	Log       *slog.Logger
}

// Result describes what one Apply did to the local player.
type Result struct {
	Drift  float64
	Seeked bool
	Played bool
	Paused bool
	// Skipped is set when there was no video to follow.
	Skipped bool
	Err     error
}

// Follower converges a participant's player toward authoritative state.
type Follower struct {
	player    Player
	threshold float64
	log       *slog.Logger

	mu        sync.Mutex
	blocked   bool
	connected bool
}

func NewFollower(p Player, opts Options) *Follower {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Follower{player: p, threshold: opts.Threshold, log: opts.Log, connected: true}
}

// Apply runs the correction rule once against s.
func (f *Follower) Apply(ctx context.Context, s State) Result {
	if s.VideoURL == "" {
		return Result{Skipped: true}
	}

	var res Result
	res.Drift = math.Abs(f.player.CurrentTime() - s.Position)
	if res.Drift > f.threshold {
		if err := f.player.Seek(s.Position); err != nil {
			f.log.Warn("seek failed", "position", s.Position, "err", err)
			res.Err = err
		} else {
			res.Seeked = true
		}
	}

	paused := f.player.Paused()
	switch {
	case s.Playing && paused:
		if f.isBlocked() {
			return res
		}
		if err := f.player.Play(ctx); err != nil {
			f.log.Info("play rejected, waiting for user gesture", "err", err)
			f.setBlocked(true)
			res.Err = err
			return res
		}
		res.Played = true
	case !s.Playing && !paused:
		if err := f.player.Pause(); err != nil {
			f.log.Warn("pause failed", "err", err)
			res.Err = err
			return res
		}
		res.Paused = true
	}
	return res
}

// Resume retries play after a user gesture.  The follower stays blocked if
// the player refuses again.
func (f *Follower) Resume(ctx context.Context) error {
	if err := f.player.Play(ctx); err != nil {
		f.setBlocked(true)
		return err
	}
	f.setBlocked(false)
	return nil
}

func (f *Follower) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case f.blocked:
		return StatusBlocked
	case !f.connected:
		return StatusDisconnected
	}
	return StatusConnected
}

func (f *Follower) isBlocked() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blocked
}

func (f *Follower) setBlocked(v bool) {
	f.mu.Lock()
	f.blocked = v
	f.mu.Unlock()
}

func (f *Follower) setConnected(v bool) {
	f.mu.Lock()
	f.connected = v
	f.mu.Unlock()
}
