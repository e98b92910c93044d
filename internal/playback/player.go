// Package playback keeps a viewer's local player in step with the room host.
//
// The host side turns local player events into authoritative state and
// publishes it.  Every other participant polls (or is pushed) that state and
// corrects its own player once per tick.
package playback

import (
	"context"
	"time"
)

// State is the authoritative playback state of a room.
type State struct {
	VideoURL  string    `json:"video_url"`
	Position  float64   `json:"position"`
	Playing   bool      `json:"playing"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Player is the local video element.
type Player interface {
	CurrentTime() float64
	Paused() bool
	// Play may be refused by the platform, for example by an autoplay policy.
	Play(ctx context.Context) error
	Pause() error
	Seek(position float64) error
}

// Source returns the most recent authoritative state.
type Source interface {
	Latest(ctx context.Context) (State, error)
}

type Publisher interface {
	Publish(ctx context.Context, s State) error
}

// Status is what a client shows next to the player.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	// StatusBlocked means play was refused and the viewer has to tap to play.
	StatusBlocked Status = "blocked"
)
