package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Saireddy1599/WatchTogether/internal/model"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers connect from the frontend origin; authentication already ran.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Watch upgrades to a websocket and pushes the room's playback state: once
// on connect and again on every change.  Only participants may watch.
func (h *RoomHandler) Watch(c echo.Context) error {
	ctx, cancel := storeCtx(c)
	room, err := h.participantRoom(ctx, c)
	cancel()
	if err != nil {
		return h.storeError(c, err)
	}

	// the subscription must be live before the snapshot is sent so no
	// change between the two is lost
	subCtx, stop := context.WithCancel(c.Request().Context())
	defer stop()
	updates, err := h.Rooms.Subscribe(subCtx, room.Code)
	if err != nil {
		return h.storeError(c, err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already replied to the client.
		h.Log.Warn("websocket upgrade failed", "room", room.Code, "err", err)
		return nil
	}
	defer conn.Close()

	go func() {
		defer stop()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := writePlayback(conn, room.Playback()); err != nil {
		return nil
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-subCtx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
			return nil
		case p, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writePlayback(conn, p); err != nil {
				return nil
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return nil
			}
		}
	}
}

func writePlayback(conn *websocket.Conn, p model.Playback) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(p)
}
