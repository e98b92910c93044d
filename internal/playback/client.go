package playback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClient talks to the room API: Latest polls the room and Publish
// records the host's state.  It serves as both Source and Publisher.
type HTTPClient struct {
	BaseURL  string
	RoomCode string
	Token    string
	Client   *http.Client
}

var (
	_ Source    = (*HTTPClient)(nil)
	_ Publisher = (*HTTPClient)(nil)
)

func NewHTTPClient(baseURL, roomCode, token string) *HTTPClient {
	return &HTTPClient{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		RoomCode: roomCode,
		Token:    token,
		Client:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *HTTPClient) roomURL(suffix string) string {
	return c.BaseURL + "/rooms/" + url.PathEscape(c.RoomCode) + suffix
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.Token)
	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(body))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Latest fetches the room; its playback fields share State's JSON names.
func (c *HTTPClient) Latest(ctx context.Context) (State, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.roomURL(""), nil)
	if err != nil {
		return State{}, err
	}
	var s State
	if err := c.do(req, &s); err != nil {
		return State{}, fmt.Errorf("poll room: %w", err)
	}
	return s, nil
}

type playbackBody struct {
	Playing  bool    `json:"playing"`
	Position float64 `json:"position"`
}

func (c *HTTPClient) Publish(ctx context.Context, s State) error {
	body, err := json.Marshal(playbackBody{Playing: s.Playing, Position: s.Position})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.roomURL("/playback"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("publish playback: %w", err)
	}
	return nil
}
