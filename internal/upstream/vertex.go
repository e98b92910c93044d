package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

var _ Backend = (*Vertex)(nil)

// Vertex calls a Vertex AI model's :predict endpoint.  It does not stream.
type Vertex struct {
	Project  string
	Location string
	Model    string
	// BaseURL overrides https://<location>-aiplatform.googleapis.com.
	BaseURL string
	Timeout time.Duration
	Tokens  oauth2.TokenSource
	Client  *http.Client
}

// NewVertex resolves application default credentials for the cloud-platform
// scope.
func NewVertex(ctx context.Context, project, location, model string, timeout time.Duration) (*Vertex, error) {
	ts, err := google.DefaultTokenSource(ctx, cloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("vertex credentials: %w", err)
	}
	return &Vertex{
		Project:  project,
		Location: location,
		Model:    model,
		Timeout:  timeout,
		Tokens:   oauth2.ReuseTokenSource(nil, ts),
		Client:   &http.Client{},
	}, nil
}

func (v *Vertex) Name() string { return "vertex" }

// Endpoint returns the :predict URL.  A model given as a full resource name
// (projects/...) is used verbatim.
func (v *Vertex) Endpoint() string {
	base := v.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s-aiplatform.googleapis.com", v.Location)
	}
	model := v.Model
	if !strings.HasPrefix(model, "projects/") {
		model = fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s", v.Project, v.Location, model)
	}
	return strings.TrimRight(base, "/") + "/v1/" + model + ":predict"
}

type vertexInstance struct {
	Content json.RawMessage `json:"content"`
}

type vertexBody struct {
	Instances  []vertexInstance   `json:"instances"`
	Parameters map[string]float64 `json:"parameters"`
}

func (v *Vertex) Complete(ctx context.Context, req Request) (json.RawMessage, error) {
	if v.Model == "" || v.Project == "" || v.Tokens == nil {
		return nil, ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, v.Timeout)
	defer cancel()

	tok, err := v.Tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("vertex: access token: %w", err)
	}
	input := req.Input
	if len(input) == 0 {
		input = json.RawMessage(`""`)
	}
	body, err := json.Marshal(vertexBody{
		Instances:  []vertexInstance{{Content: input}},
		Parameters: map[string]float64{"temperature": 0.2},
	})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	tok.SetAuthHeader(httpReq)

	resp, err := v.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("vertex: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(v.Name(), resp)
	}
	return decodeJSON(v.Name(), resp.Body)
}
