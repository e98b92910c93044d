package playback

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Event is an observable action on the host's player.
type Event string

const (
	EventPlay   Event = "play"
	EventPause  Event = "pause"
	EventSeeked Event = "seeked"
)

// Host publishes authoritative state from the host's own player.  Handle is
// the only path that changes a room's playback.
type Host struct {
	Player    Player
	Publisher Publisher
	Log       *slog.Logger
}

func (h *Host) Handle(ctx context.Context, ev Event) error {
	var playing bool
	switch ev {
	case EventPlay:
		playing = true
	case EventPause:
		playing = false
	case EventSeeked:
		playing = !h.Player.Paused()
	default:
		return fmt.Errorf("playback: unknown event %q", ev)
	}

	s := State{
		Playing:   playing,
		Position:  h.Player.CurrentTime(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := h.Publisher.Publish(ctx, s); err != nil {
		h.Log.Warn("publish playback failed", "event", ev, "err", err)
		return fmt.Errorf("publish %s: %w", ev, err)
	}
	h.Log.Debug("playback published", "event", ev, "playing", s.Playing, "position", s.Position)
	return nil
}
