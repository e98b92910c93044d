package playback

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// ErrNoState is returned by Feed.Latest before the first push arrives.
var ErrNoState = errors.New("playback: no state received yet")

// Feed is a push Source over the room websocket.  It keeps only the most
// recent state.
type Feed struct {
	conn *websocket.Conn
	done chan struct{}

	mu   sync.Mutex
	last State
	have bool
	err  error
}

var _ Source = (*Feed)(nil)

// DialFeed connects to GET /rooms/:code/ws under baseURL (http or https).
func DialFeed(ctx context.Context, baseURL, roomCode, token string) (*Feed, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/rooms/" + url.PathEscape(roomCode) + "/ws")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial feed: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial feed: %w", err)
	}

	f := &Feed{conn: conn, done: make(chan struct{})}
	go f.readLoop()
	return f, nil
}

func (f *Feed) readLoop() {
	defer close(f.done)
	for {
		var s State
		if err := f.conn.ReadJSON(&s); err != nil {
			f.mu.Lock()
			f.err = err
			f.mu.Unlock()
			return
		}
		f.mu.Lock()
		f.last, f.have = s, true
		f.mu.Unlock()
	}
}

// Latest returns the last pushed state.  Once the connection drops every
// call fails so the follower reports itself disconnected.
func (f *Feed) Latest(context.Context) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return State{}, fmt.Errorf("feed closed: %w", f.err)
	}
	if !f.have {
		return State{}, ErrNoState
	}
	return f.last, nil
}

// Done is closed when the read loop exits.
func (f *Feed) Done() <-chan struct{} { return f.done }

func (f *Feed) Close() error {
	_ = f.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := f.conn.Close()
	<-f.done
	return err
}
