package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestDirectComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"resp_1","output":[]}`))
	}))
	defer srv.Close()

	d := NewDirect(srv.URL, "sk-test", time.Second, time.Second)
	out, err := d.Complete(context.Background(), Request{Model: "gpt-5-mini", Input: json.RawMessage(`"hi"`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"resp_1","output":[]}`, string(out))
	assert.Equal(t, map[string]any{"model": "gpt-5-mini", "input": "hi"}, got, "non-streaming body has no stream flag")
}

func TestDirectErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bad":
			http.Error(w, `{"error":"quota"}`, http.StatusTooManyRequests)
		case "/html":
			_, _ = w.Write([]byte("<html>oops</html>"))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
		}
	}))
	defer srv.Close()
	req := Request{Model: "m", Input: json.RawMessage(`"x"`)}

	_, err := NewDirect(srv.URL, "", time.Second, time.Second).Complete(context.Background(), req)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewDirect(srv.URL+"/bad", "k", time.Second, time.Second).Complete(context.Background(), req)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Status)
	assert.Contains(t, se.Body, "quota")

	_, err = NewDirect(srv.URL+"/html", "k", time.Second, time.Second).Complete(context.Background(), req)
	assert.ErrorIs(t, err, ErrNotJSON)

	_, err = NewDirect(srv.URL+"/slow", "k", 50*time.Millisecond, time.Second).Complete(context.Background(), req)
	assert.Error(t, err)
}

func TestDirectStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["stream"])
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"text\":\"hello\"}\n\n"))
	}))
	defer srv.Close()

	rc, err := OpenStream(context.Background(), NewDirect(srv.URL, "k", time.Second, time.Second), Request{Model: "m", Input: json.RawMessage(`"x"`)})
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "data: {\"text\":\"hello\"}\n\n", string(data))
}

func TestVertexComplete(t *testing.T) {
	var got vertexBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/projects/p/locations/us-central1/publishers/google/models/text-bison:predict", r.URL.Path)
		assert.Equal(t, "Bearer ya29.token", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"predictions":[{"content":"hi there"}]}`))
	}))
	defer srv.Close()

	v := &Vertex{
		Project:  "p",
		Location: "us-central1",
		Model:    "text-bison",
		BaseURL:  srv.URL,
		Timeout:  time.Second,
		Tokens:   oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "ya29.token"}),
		Client:   srv.Client(),
	}
	_, err := OpenStream(context.Background(), v, Request{Input: json.RawMessage(`"hello"`)})
	assert.ErrorIs(t, err, ErrStreamingUnsupported, "vertex must not advertise streaming")

	out, err := v.Complete(context.Background(), Request{Input: json.RawMessage(`"hello"`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"predictions":[{"content":"hi there"}]}`, string(out))
	require.Len(t, got.Instances, 1)
	assert.JSONEq(t, `"hello"`, string(got.Instances[0].Content))
	assert.Equal(t, 0.2, got.Parameters["temperature"])
}

func TestVertexEndpoint(t *testing.T) {
	v := &Vertex{Project: "p", Location: "europe-west4", Model: "projects/x/locations/y/publishers/google/models/z"}
	assert.Equal(t, "https://europe-west4-aiplatform.googleapis.com/v1/projects/x/locations/y/publishers/google/models/z:predict", v.Endpoint())

	_, err := (&Vertex{}).Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
