package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Saireddy1599/WatchTogether/internal/handler"
)

// MaxPromptBody caps completion request bodies; larger bodies get 413.
const MaxPromptBody = "10K"

// RegisterGateway registers the completion proxy under /api.  The body limit
// runs first, then auth, then the rate limit; rejected credentials never
// count against a window.
func RegisterGateway(e *echo.Echo, h *handler.CompletionHandler, auth, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/api",
		echomw.BodyLimit(MaxPromptBody),
		auth,
		limit,
	)
	g.POST("/ai", h.Complete)
	g.POST("/ai/stream", h.CloudStream)
}
