// Package protocol defines the JSON messages exchanged between clients and a
// room: client commands, server events, and the shapes embedded in them.
//
// Both directions use an object with a string "type" discriminant and the
// variant's fields flattened next to it.
package protocol

import (
	"time"

	"github.com/cory-johannsen/hexrooms/internal/game/board"
)

// Room phases as they appear in a RoomSummary.
const (
	PhaseWaiting = "waiting"
	PhaseStarted = "started"
	PhaseEnded   = "ended"
)

// RoomConf is the owner-editable configuration of a room.
type RoomConf struct {
	// Layout names the starting position, see board.LayoutSet.
	Layout string `json:"layout"`
	// TurnTimeout is the per-move time limit in seconds; 0 disables it.
	TurnTimeout int `json:"turn_timeout"`
	// MaxUsers caps the number of connected users, spectators included.
	MaxUsers int `json:"max_users"`
}

// RoomSummary is the external representation of a room.
type RoomSummary struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Owner string   `json:"owner"`
	Users []string `json:"users"`
	Conf  RoomConf `json:"conf"`
	Phase string   `json:"phase"`
	Black string   `json:"black,omitempty"`
	White string   `json:"white,omitempty"`
}

// GameView is the part of a running game engine the protocol reads.
type GameView interface {
	Board() [][]board.Stone
	Black() string
	White() string
	Turn() board.Color
}

// GameServer is the discovery record a server publishes about itself.
type GameServer struct {
	Name  string        `json:"name"`
	Addr  string        `json:"addr"`
	Rooms []RoomSummary `json:"rooms"`
	// LastPing is UTC and encodes as RFC 3339.
	LastPing time.Time `json:"last_ping"`
}
