package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

var _ Streamer = (*Direct)(nil)

// Direct talks to the provider API with a static secret key.
type Direct struct {
	URL    string
	APIKey string
	// Timeout bounds non-streaming calls and the wait for stream headers.
	Timeout time.Duration
	// StreamTimeout bounds a whole stream.
	StreamTimeout time.Duration
	Client        *http.Client
}

// NewDirect builds a Direct backend whose transport gives up on response
// headers after timeout.
func NewDirect(url, apiKey string, timeout, streamTimeout time.Duration) *Direct {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.ResponseHeaderTimeout = timeout
	return &Direct{
		URL:           url,
		APIKey:        apiKey,
		Timeout:       timeout,
		StreamTimeout: streamTimeout,
		Client:        &http.Client{Transport: tr},
	}
}

func (d *Direct) Name() string { return "direct" }

type directBody struct {
	Model  string          `json:"model"`
	Input  json.RawMessage `json:"input"`
	Stream bool            `json:"stream,omitempty"`
}

func (d *Direct) post(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	if d.APIKey == "" {
		return nil, ErrNotConfigured
	}
	body, err := json.Marshal(directBody{Model: req.Model, Input: req.Input, Stream: stream})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+d.APIKey)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	resp, err := d.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("direct: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusError(d.Name(), resp)
	}
	return resp, nil
}

func (d *Direct) Complete(ctx context.Context, req Request) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()
	resp, err := d.post(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decodeJSON(d.Name(), resp.Body)
}

// Stream opens an incremental upstream response.  The returned body stays
// valid until it is closed or StreamTimeout elapses.
func (d *Direct) Stream(ctx context.Context, req Request) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, d.StreamTimeout)
	resp, err := d.post(ctx, req, true)
	if err != nil {
		cancel()
		return nil, err
	}
	return cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
}
