package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Saireddy1599/WatchTogether/internal/metrics"
	"github.com/Saireddy1599/WatchTogether/internal/middleware"
	"github.com/Saireddy1599/WatchTogether/internal/queue"
	"github.com/Saireddy1599/WatchTogether/internal/service"
	"github.com/Saireddy1599/WatchTogether/internal/sse"
	"github.com/Saireddy1599/WatchTogether/internal/upstream"
)

const (
	msgOpenAIKeyMissing = "OPENAI_API_KEY not configured on server."
	msgCloudMissing     = "VERTEX_MODEL or GCP_PROJECT_ID not configured"
)

// CompletionHandler forwards prompts to the configured backend.
type CompletionHandler struct {
	// Backend answers /api/ai.  It is the cloud backend when one is
	// configured, otherwise the direct provider.
	Backend upstream.Backend
	// Cloud answers /api/ai/stream; nil when not configured.
	Cloud        upstream.Backend
	DefaultModel string
	Chain        sse.Chain
	Metrics      *metrics.Metrics
	Audit        service.Publisher
	Log          *slog.Logger
}

type completionReq struct {
	Model  string          `json:"model"`
	Input  json.RawMessage `json:"input"`
	Stream bool            `json:"stream"`
}

// Complete serves POST /api/ai.  A stream request to a backend without
// the Streamer capability gets the JSON answer instead.
func (h *CompletionHandler) Complete(c echo.Context) error {
	var req completionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Model == "" {
		req.Model = h.DefaultModel
	}
	up := upstream.Request{Model: req.Model, Input: promptInput(req.Input)}

	if req.Stream {
		body, err := upstream.OpenStream(c.Request().Context(), h.Backend, up)
		switch {
		case err == nil:
			h.record(c, h.Backend, "stream", req.Model)
			return h.stream(c, body)
		case !errors.Is(err, upstream.ErrStreamingUnsupported):
			h.record(c, h.Backend, "stream", req.Model)
			return h.upstreamError(c, h.Backend, err)
		}
	}

	h.record(c, h.Backend, "json", req.Model)
	out, err := h.Backend.Complete(c.Request().Context(), up)
	if err != nil {
		return h.upstreamError(c, h.Backend, err)
	}
	return c.JSONBlob(http.StatusOK, out)
}

func (h *CompletionHandler) stream(c echo.Context, body io.ReadCloser) error {
	defer body.Close()
	ctx := c.Request().Context()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream;charset=utf-8")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	n, err := sse.Pump(ctx, res, res.Flush, body, h.Chain)
	for i := 0; i < n; i++ {
		h.Metrics.StreamRecord()
	}
	if err != nil {
		h.Log.Warn("stream ended early", "backend", h.Backend.Name(), "records", n, "err", err)
	}
	return nil
}

// CloudStream serves POST /api/ai/stream: a non-incremental cloud answer
// wrapped as a single event-stream record.
func (h *CompletionHandler) CloudStream(c echo.Context) error {
	if h.Cloud == nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": msgCloudMissing})
	}
	var req completionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	h.record(c, h.Cloud, "stream", "")
	out, err := h.Cloud.Complete(c.Request().Context(), upstream.Request{Input: promptInput(req.Input)})
	if err != nil {
		h.Metrics.UpstreamFailed(h.Cloud.Name())
		h.Log.Error("cloud stream failed", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Vertex stream failed", "detail": err.Error()})
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, out); err != nil {
		compact.Reset()
		compact.Write(out)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream;charset=utf-8")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	if err := sse.WriteRecord(res, compact.String()); err != nil {
		h.Log.Warn("write cloud record failed", "err", err)
		return nil
	}
	h.Metrics.StreamRecord()
	res.Flush()
	return nil
}

// promptInput maps a missing or null input to the empty string.
func promptInput(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return json.RawMessage(`""`)
	}
	return raw
}

func (h *CompletionHandler) upstreamError(c echo.Context, b upstream.Backend, err error) error {
	h.Metrics.UpstreamFailed(b.Name())
	if errors.Is(err, upstream.ErrNotConfigured) {
		msg := msgCloudMissing
		if _, ok := b.(*upstream.Direct); ok {
			msg = msgOpenAIKeyMissing
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": msg})
	}
	// A JSON error answer from the provider is relayed as-is.
	var se *upstream.StatusError
	if errors.As(err, &se) && json.Valid([]byte(se.Body)) {
		h.Log.Warn("upstream rejected request", "backend", b.Name(), "status", se.Status)
		return c.JSONBlob(se.Status, []byte(se.Body))
	}
	h.Log.Error("upstream request failed", "backend", b.Name(), "err", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{
		"error":  "upstream request failed",
		"detail": err.Error(),
	})
}

func (h *CompletionHandler) record(c echo.Context, b upstream.Backend, mode, model string) {
	h.Metrics.Completion(b.Name(), mode)
	service.Emit(c.Request().Context(), h.Audit, h.Log, queue.AuditEvent{
		Type:     queue.EventCompletionRequested,
		Subject:  middleware.UserID(c),
		Method:   middleware.AuthVia(c),
		Backend:  b.Name(),
		Mode:     mode,
		Model:    model,
		RemoteIP: c.RealIP(),
	})
}
