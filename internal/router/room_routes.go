package router

import (
	"github.com/labstack/echo/v4"

	"github.com/Saireddy1599/WatchTogether/internal/handler"
)

// RegisterRooms registers the watch-party endpoints under /rooms.  All of
// them need a caller identity; host and participant checks happen in the
// handler.  cache wraps only the public room listing.
func RegisterRooms(e *echo.Echo, h *handler.RoomHandler, auth, cache echo.MiddlewareFunc) {
	g := e.Group("/rooms", auth)
	g.POST("", h.Create)
	g.GET("", h.List, cache)
	g.GET("/:code", h.Get)
	g.POST("/:code/join", h.Join)
	g.POST("/:code/leave", h.Leave)
	g.PUT("/:code/video", h.SetVideo)
	g.PUT("/:code/playback", h.SetPlayback)
	g.GET("/:code/messages", h.Messages)
	g.POST("/:code/messages", h.PostMessage)

	// Browsers cannot set headers on a websocket handshake, so the token
	// may arrive as ?access_token=.
	g.GET("/:code/ws", h.Watch)
}
