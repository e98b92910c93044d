// Package upstream forwards completion requests to the language-model
// provider selected by server configuration.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	// ErrNotConfigured means the backend lacks the credentials it needs.
	ErrNotConfigured = errors.New("upstream: backend not configured")
	// ErrStreamingUnsupported is returned when a caller asks a backend that
	// does not implement Streamer for a stream.
	ErrStreamingUnsupported = errors.New("upstream: streaming not supported by backend")
	ErrNotJSON              = errors.New("upstream: response is not JSON")
)

// Request is the normalized completion request.  Input is forwarded as-is,
// so callers may send a string or a structured prompt.
type Request struct {
	Model string          `json:"model"`
	Input json.RawMessage `json:"input"`
}

// Backend answers a completion request with the provider's raw JSON.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req Request) (json.RawMessage, error)
}

// Streamer is the optional capability of backends that can return an
// incremental event-stream body.  The caller must close the reader.
type Streamer interface {
	Backend
	Stream(ctx context.Context, req Request) (io.ReadCloser, error)
}

// OpenStream starts a stream on b, or returns ErrStreamingUnsupported when b
// lacks the capability.
func OpenStream(ctx context.Context, b Backend, req Request) (io.ReadCloser, error) {
	s, ok := b.(Streamer)
	if !ok {
		return nil, fmt.Errorf("%s: %w", b.Name(), ErrStreamingUnsupported)
	}
	return s.Stream(ctx, req)
}

// StatusError reports a non-2xx upstream answer.
type StatusError struct {
	Backend string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: upstream status %d: %s", e.Backend, e.Status, e.Body)
}

// maxErrorBody bounds how much of a failed upstream body is kept.  A
// truncated body is no longer valid JSON and is reported as a failure.
const maxErrorBody = 64 << 10

func statusError(backend string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Backend: backend, Status: resp.StatusCode, Body: string(b)}
}

func decodeJSON(backend string, body io.Reader) (json.RawMessage, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", backend, err)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%s: %w", backend, ErrNotJSON)
	}
	return json.RawMessage(raw), nil
}

// cancelOnClose releases the stream context when the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
