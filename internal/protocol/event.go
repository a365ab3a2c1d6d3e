package protocol

import "github.com/cory-johannsen/hexrooms/internal/game/board"

// Event discriminants.
const (
	TypeConnected = "connected"
	TypeStarted   = "started"
	TypeEntered   = "entered"
	TypeError     = "error"
	TypeMoved     = "moved"
	TypeChated    = "chated"
	TypeConfed    = "confed"
	TypeLeft      = "left"
	TypeEnded     = "ended"
	TypeBanned    = "banned"
)

// Event is a server-to-client message. The set of implementations is
// closed to this package.
type Event interface {
	// Type returns the wire discriminant.
	Type() string
	isEvent()
}

// Connected is sent to a user once they are admitted.
type Connected struct {
	Room RoomSummary `json:"room"`
}

// Started carries the full game state when play begins or a player re-joins.
type Started struct {
	Board [][]board.Stone `json:"board"`
	Black string          `json:"black"`
	White string          `json:"white"`
	Turn  string          `json:"turn"`
}

// Entered announces a newly admitted user to the rest of the room.
type Entered struct {
	User string `json:"user"`
}

// Error reports a rejected command to its sender.
type Error struct {
	Message string `json:"message"`
}

// Moved reports an accepted move. Player is the mover's color.
type Moved struct {
	Player string           `json:"player"`
	Start  board.AxialCoord `json:"start"`
	End    board.AxialCoord `json:"end"`
	Dir    board.AxialCoord `json:"dir"`
}

// Chated relays a chat message.
type Chated struct {
	User    string `json:"user"`
	Content string `json:"content"`
}

// Confed reports a configuration change.
type Confed struct {
	Conf RoomConf `json:"conf"`
}

// Left reports that a user is no longer connected.
type Left struct {
	User string `json:"user"`
}

// Ended reports the end of the game.
type Ended struct {
	Loser string     `json:"loser"`
	Color string     `json:"color"`
	Cause EndedCause `json:"cause"`
}

// Banned reports that a user was banned from the room.
type Banned struct {
	User string `json:"user"`
}

func (Connected) Type() string { return TypeConnected }
func (Started) Type() string   { return TypeStarted }
func (Entered) Type() string   { return TypeEntered }
func (Error) Type() string     { return TypeError }
func (Moved) Type() string     { return TypeMoved }
func (Chated) Type() string    { return TypeChated }
func (Confed) Type() string    { return TypeConfed }
func (Left) Type() string      { return TypeLeft }
func (Ended) Type() string     { return TypeEnded }
func (Banned) Type() string    { return TypeBanned }

func (Connected) isEvent() {}
func (Started) isEvent()   {}
func (Entered) isEvent()   {}
func (Error) isEvent()     {}
func (Moved) isEvent()     {}
func (Chated) isEvent()    {}
func (Confed) isEvent()    {}
func (Left) isEvent()      {}
func (Ended) isEvent()     {}
func (Banned) isEvent()    {}

var eventSchemas = map[string]schema[Event]{
	TypeConnected: {required: []string{"room"}, decode: decodeAs[Connected, Event]},
	TypeStarted:   {required: []string{"board", "black", "white", "turn"}, decode: decodeAs[Started, Event]},
	TypeEntered:   {required: []string{"user"}, decode: decodeAs[Entered, Event]},
	TypeError:     {required: []string{"message"}, decode: decodeAs[Error, Event]},
	TypeMoved:     {required: []string{"player", "start", "end", "dir"}, decode: decodeAs[Moved, Event]},
	TypeChated:    {required: []string{"user", "content"}, decode: decodeAs[Chated, Event]},
	TypeConfed:    {required: []string{"conf"}, decode: decodeAs[Confed, Event]},
	TypeLeft:      {required: []string{"user"}, decode: decodeAs[Left, Event]},
	TypeEnded:     {required: []string{"loser", "color", "cause"}, decode: decodeAs[Ended, Event]},
	TypeBanned:    {required: []string{"user"}, decode: decodeAs[Banned, Event]},
}

// EventTypes returns every event discriminant.
func EventTypes() []string { return schemaTypes(eventSchemas) }

// StartedFromGame builds the Started event for a running game.
func StartedFromGame(g GameView) Started {
	return Started{
		Board: g.Board(),
		Black: g.Black(),
		White: g.White(),
		Turn:  g.Turn().String(),
	}
}

// EncodeEvent encodes an event in its wire form.
func EncodeEvent(e Event) ([]byte, error) {
	return encodeTagged(e.Type(), e)
}

// DecodeEvent is the inverse of EncodeEvent.
func DecodeEvent(raw []byte) (Event, error) {
	return decodeTagged(raw, eventSchemas, "event")
}
