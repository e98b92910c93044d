package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Saireddy1599/WatchTogether/internal/middleware"
	"github.com/Saireddy1599/WatchTogether/internal/model"
	"github.com/Saireddy1599/WatchTogether/internal/repository"
)

// RoomHandler serves room membership, playback and chat.
type RoomHandler struct {
	Rooms    repository.RoomStore
	Capacity int
	Log      *slog.Logger
}

func NewRoomHandler(rooms repository.RoomStore, capacity int, log *slog.Logger) *RoomHandler {
	return &RoomHandler{Rooms: rooms, Capacity: capacity, Log: log}
}

type createRoomReq struct {
	Name        string `json:"name" validate:"required,max=80"`
	Description string `json:"description" validate:"max=500"`
	IsPublic    bool   `json:"is_public"`
	Capacity    int    `json:"capacity" validate:"omitempty,min=1,max=50"`
}

type setVideoReq struct {
	URL   string `json:"url" validate:"omitempty,url"`
	Title string `json:"title" validate:"max=200"`
}

type playbackReq struct {
	Playing  *bool    `json:"playing" validate:"required"`
	Position *float64 `json:"position" validate:"required,gte=0"`
}

type messageReq struct {
	Text string `json:"text" validate:"required,min=1,max=500"`
}

func storeCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

// bindValid binds and validates req, writing a 400 on failure.  It reports
// whether the handler should continue.
func bindValid(c echo.Context, req any) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request", "details": err})
	}
	return true, nil
}

func (h *RoomHandler) storeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrRoomNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
	case errors.Is(err, repository.ErrRoomFull):
		return c.JSON(http.StatusConflict, echo.Map{"error": "room is full"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "room was modified concurrently, retry"})
	}
	h.Log.Error("room store failed", "err", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "room store failed"})
}

// Create makes the caller host and first participant of a new room.
func (h *RoomHandler) Create(c echo.Context) error {
	var req createRoomReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	capacity := req.Capacity
	if capacity == 0 {
		capacity = h.Capacity
	}
	ctx, cancel := storeCtx(c)
	defer cancel()

	room := model.NewRoom(strings.TrimSpace(req.Name), req.Description, req.IsPublic, capacity, middleware.UserID(c))
	if err := h.Rooms.Create(ctx, room); err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(http.StatusCreated, room)
}

// List returns public rooms, newest first.
func (h *RoomHandler) List(c echo.Context) error {
	ctx, cancel := storeCtx(c)
	defer cancel()
	rooms, err := h.Rooms.ListPublic(ctx)
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rooms})
}

func (h *RoomHandler) Get(c echo.Context) error {
	ctx, cancel := storeCtx(c)
	defer cancel()
	room, err := h.Rooms.Get(ctx, c.Param("code"))
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) Join(c echo.Context) error {
	uid := middleware.UserID(c)
	ctx, cancel := storeCtx(c)
	defer cancel()
	room, err := h.Rooms.Update(ctx, c.Param("code"), func(r *model.Room) error {
		if !r.Join(uid) {
			return repository.ErrRoomFull
		}
		return nil
	})
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(http.StatusOK, room)
}

// Leave removes the caller.  The store hands the room to another
// participant or deletes it when it becomes empty.
func (h *RoomHandler) Leave(c echo.Context) error {
	uid := middleware.UserID(c)
	ctx, cancel := storeCtx(c)
	defer cancel()
	_, err := h.Rooms.Update(ctx, c.Param("code"), func(r *model.Room) error {
		if !r.HasParticipant(uid) {
			return repository.ErrForbidden
		}
		r.Leave(uid)
		return nil
	})
	if err != nil {
		return h.storeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func hostOnly(uid string, fn func(*model.Room)) func(*model.Room) error {
	return func(r *model.Room) error {
		if !r.IsHost(uid) {
			return repository.ErrForbidden
		}
		fn(r)
		return nil
	}
}

func (h *RoomHandler) SetVideo(c echo.Context) error {
	var req setVideoReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := storeCtx(c)
	defer cancel()
	room, err := h.Rooms.Update(ctx, c.Param("code"), hostOnly(middleware.UserID(c), func(r *model.Room) {
		r.SetVideo(strings.TrimSpace(req.URL), req.Title)
	}))
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(http.StatusOK, room)
}

// SetPlayback records the host's authoritative playback state.
func (h *RoomHandler) SetPlayback(c echo.Context) error {
	var req playbackReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := storeCtx(c)
	defer cancel()
	room, err := h.Rooms.Update(ctx, c.Param("code"), hostOnly(middleware.UserID(c), func(r *model.Room) {
		r.ApplyPlayback(*req.Playing, *req.Position)
	}))
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(http.StatusOK, room.Playback())
}

func (h *RoomHandler) participantRoom(ctx context.Context, c echo.Context) (*model.Room, error) {
	room, err := h.Rooms.Get(ctx, c.Param("code"))
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(middleware.UserID(c)) {
		return nil, repository.ErrForbidden
	}
	return room, nil
}

func (h *RoomHandler) Messages(c echo.Context) error {
	ctx, cancel := storeCtx(c)
	defer cancel()
	room, err := h.participantRoom(ctx, c)
	if err != nil {
		return h.storeError(c, err)
	}
	msgs, err := h.Rooms.Messages(ctx, room.Code)
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": msgs})
}

func (h *RoomHandler) PostMessage(c echo.Context) error {
	var req messageReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "text must not be blank"})
	}
	ctx, cancel := storeCtx(c)
	defer cancel()
	room, err := h.participantRoom(ctx, c)
	if err != nil {
		return h.storeError(c, err)
	}
	msg := model.NewMessage(room.Code, middleware.UserID(c), text)
	if err := h.Rooms.AddMessage(ctx, msg); err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(http.StatusCreated, msg)
}
