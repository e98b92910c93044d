package playback

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	states []State
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, s State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.states = append(r.states, s)
	return nil
}

func (r *recordingPublisher) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func TestHostPublishesDerivedState(t *testing.T) {
	ctx := context.Background()
	p := &fakePlayer{pos: 12.5, paused: false}
	pub := &recordingPublisher{}
	h := &Host{Player: p, Publisher: pub, Log: quiet}

	require.NoError(t, h.Handle(ctx, EventPlay))
	require.NoError(t, h.Handle(ctx, EventPause))
	require.NoError(t, h.Handle(ctx, EventSeeked))
	p.paused = true
	p.pos = 40
	require.NoError(t, h.Handle(ctx, EventSeeked))

	got := pub.all()
	require.Len(t, got, 4)
	assert.True(t, got[0].Playing)
	assert.False(t, got[1].Playing)
	assert.True(t, got[2].Playing, "seeked keeps the player's own state")
	assert.False(t, got[3].Playing)
	assert.Equal(t, 12.5, got[0].Position)
	assert.Equal(t, 40.0, got[3].Position)
	assert.False(t, got[3].UpdatedAt.IsZero())
}

func TestHostErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("offline")}
	h := &Host{Player: &fakePlayer{}, Publisher: pub, Log: quiet}
	assert.Error(t, h.Handle(context.Background(), EventPlay))
	assert.Error(t, h.Handle(context.Background(), Event("ratechange")))
}
