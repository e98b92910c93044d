// Package repository defines error types that are reused across the
// stores.  These sentinel values allow handlers to map failures to HTTP
// statuses with errors.Is.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation reserved
// for the room host or for participants.  Handlers translate it to 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an optimistic update keeps losing races or a
// room code is already taken.  Handlers translate it to 409.
var ErrConflict = errors.New("conflict")

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
	ErrUserNotFound = errors.New("user not found")
)
