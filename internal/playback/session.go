package playback

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Session is one viewer's client state for one room.  It routes player
// events to Host while the viewer is host and runs the follower loop
// otherwise.
type Session struct {
	RoomCode string
	UserID   string

	host     atomic.Bool
	leader   *Host
	follower *Follower
	runner   *Runner
}

type SessionConfig struct {
	RoomCode string
	UserID   string
	IsHost   bool
	Player   Player
	// Source and Publisher are usually the same HTTPClient.
	Source    Source
	Publisher Publisher
	Options   Options
	// Interval defaults to DefaultInterval.
	Interval time.Duration
}

func NewSession(cfg SessionConfig) *Session {
	log := cfg.Options.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("room", cfg.RoomCode, "user", cfg.UserID)
	cfg.Options.Log = log

	s := &Session{RoomCode: cfg.RoomCode, UserID: cfg.UserID}
	s.host.Store(cfg.IsHost)
	s.leader = &Host{Player: cfg.Player, Publisher: cfg.Publisher, Log: log}
	s.follower = NewFollower(cfg.Player, cfg.Options)
	s.runner = &Runner{
		Source:   cfg.Source,
		Follower: s.follower,
		Interval: cfg.Interval,
		Active:   func() bool { return !s.IsHost() },
		Log:      log,
	}
	return s
}

func (s *Session) IsHost() bool { return s.host.Load() }

// SetHost switches role, for example after the previous host left.
func (s *Session) SetHost(v bool) { s.host.Store(v) }

// HandleEvent publishes a player event when this viewer is host.  Events
// from a participant's own player never change the room.
func (s *Session) HandleEvent(ctx context.Context, ev Event) error {
	if !s.IsHost() {
		return nil
	}
	return s.leader.Handle(ctx, ev)
}

// Run drives the follower loop until ctx is done.  Ticks are skipped while
// this viewer is host.
func (s *Session) Run(ctx context.Context) error { return s.runner.Run(ctx) }

// Sync runs a single follower tick regardless of role.
func (s *Session) Sync(ctx context.Context) Result { return s.runner.Tick(ctx) }

func (s *Session) Status() Status { return s.follower.Status() }

// Resume is the "tap to play" action.
func (s *Session) Resume(ctx context.Context) error { return s.follower.Resume(ctx) }
