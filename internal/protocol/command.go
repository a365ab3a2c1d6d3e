package protocol

import "github.com/cory-johannsen/hexrooms/internal/game/board"

// Command discriminants.
const (
	TypeConnect = "connect"
	TypeMove    = "move"
	TypeChat    = "chat"
	TypeConf    = "conf"
	TypeStart   = "start"
	TypeBan     = "ban"
	TypeGg      = "gg"
)

// Command is a client-to-server message. The set of implementations is
// closed to this package.
type Command interface {
	// Type returns the wire discriminant.
	Type() string
	isCommand()
}

// Connect asks to join the room the invite was issued for.
type Connect struct {
	Invite string `json:"invite"`
}

// Move moves the line of stones from Start to End one step in Dir.
type Move struct {
	Start board.AxialCoord `json:"start"`
	End   board.AxialCoord `json:"end"`
	Dir   board.AxialCoord `json:"dir"`
}

// Chat posts a message to the room.
type Chat struct {
	Content string `json:"content"`
}

// Conf replaces the room configuration.
type Conf struct {
	Conf RoomConf `json:"conf"`
}

// Start begins the game.
type Start struct{}

// Ban removes a user from the room for good.
type Ban struct {
	User string `json:"user"`
}

// Gg resigns the game.
type Gg struct{}

func (Connect) Type() string { return TypeConnect }
func (Move) Type() string    { return TypeMove }
func (Chat) Type() string    { return TypeChat }
func (Conf) Type() string    { return TypeConf }
func (Start) Type() string   { return TypeStart }
func (Ban) Type() string     { return TypeBan }
func (Gg) Type() string      { return TypeGg }

func (Connect) isCommand() {}
func (Move) isCommand()    {}
func (Chat) isCommand()    {}
func (Conf) isCommand()    {}
func (Start) isCommand()   {}
func (Ban) isCommand()     {}
func (Gg) isCommand()      {}

var commandSchemas = map[string]schema[Command]{
	TypeConnect: {required: []string{"invite"}, decode: decodeAs[Connect, Command]},
	TypeMove:    {required: []string{"start", "end", "dir"}, decode: decodeAs[Move, Command]},
	TypeChat:    {required: []string{"content"}, decode: decodeAs[Chat, Command]},
	TypeConf:    {required: []string{"conf"}, decode: decodeAs[Conf, Command]},
	TypeStart:   {decode: decodeAs[Start, Command]},
	TypeBan:     {required: []string{"user"}, decode: decodeAs[Ban, Command]},
	TypeGg:      {decode: decodeAs[Gg, Command]},
}

// CommandTypes returns every command discriminant.
func CommandTypes() []string { return schemaTypes(commandSchemas) }

// ParseCommand decodes a raw client frame.
//
// Postcondition: Returns a complete Command, or a *ParseError for an unknown
// discriminant, a missing or null required field, or a mistyped field.
func ParseCommand(raw []byte) (Command, error) {
	return decodeTagged(raw, commandSchemas, "command")
}

// EncodeCommand encodes a command in its wire form.
func EncodeCommand(c Command) ([]byte, error) {
	return encodeTagged(c.Type(), c)
}
