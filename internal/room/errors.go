package room

import "errors"

var (
	// ErrUnauthorized is returned when a user issues a command their role does not allow.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrBanned is returned when a banned user tries to join.
	ErrBanned = errors.New("banned from this room")
	// ErrAlreadyConnected is returned when the user already holds a connection to the room.
	ErrAlreadyConnected = errors.New("already connected")
	// ErrRoomFull is returned when the room has reached its max_users.
	ErrRoomFull = errors.New("room is full")
	// ErrRoomClosed is returned by every operation on a closed room.
	ErrRoomClosed = errors.New("room is closed")
	// ErrRoomNotFound is returned by Manager lookups.
	ErrRoomNotFound = errors.New("room not found")
	// ErrInvalidConf is returned for a RoomConf that fails validation.
	ErrInvalidConf = errors.New("invalid room configuration")
	// ErrWrongPhase is returned when a command does not apply to the room's current phase.
	ErrWrongPhase = errors.New("not allowed in this phase")
	// ErrInvalidChat is returned for empty or oversized chat messages.
	ErrInvalidChat = errors.New("invalid chat message")
)
