package playback

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultInterval = time.Second
	sourceTimeout   = 5 * time.Second
)

// Runner ticks a Follower from a Source at a fixed interval.  Ticks run on
// the Run goroutine one after another.
type Runner struct {
	Source   Source
	Follower *Follower
	Interval time.Duration
	// Active gates each tick; nil means always active.
	Active func() bool
	// OnTick, when set, observes every completed tick.
	OnTick func(Result)
	Log    *slog.Logger
}

// Run ticks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if r.Active != nil && !r.Active() {
				continue
			}
			res := r.Tick(ctx)
			if r.OnTick != nil {
				r.OnTick(res)
			}
		}
	}
}

// Tick reads the latest state and applies it once.  A failed read marks
// the follower disconnected and leaves the player alone.
func (r *Runner) Tick(ctx context.Context) Result {
	readCtx, cancel := context.WithTimeout(ctx, sourceTimeout)
	s, err := r.Source.Latest(readCtx)
	cancel()
	if err != nil {
		r.Follower.setConnected(false)
		if r.Log != nil {
			r.Log.Debug("playback source unavailable", "err", err)
		}
		return Result{Err: err}
	}
	r.Follower.setConnected(true)
	return r.Follower.Apply(ctx, s)
}
