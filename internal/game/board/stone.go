package board

import "fmt"

// Color identifies one side of a game.
type Color uint8

const (
	Black Color = iota + 1
	White
)

// ParseColor converts "black" or "white" into a Color.
func ParseColor(s string) (Color, error) {
	switch s {
	case "black":
		return Black, nil
	case "white":
		return White, nil
	}
	return 0, fmt.Errorf("unknown color %q", s)
}

func (c Color) String() string {
	switch c {
	case Black:
		return "black"
	case White:
		return "white"
	}
	return fmt.Sprintf("Color(%d)", uint8(c))
}

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == Black {
		return White
	}
	return Black
}

// Stone returns the stone this side places on the board.
func (c Color) Stone() Stone {
	if c == Black {
		return StoneBlack
	}
	return StoneWhite
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	if c != Black && c != White {
		return nil, fmt.Errorf("invalid color %d", uint8(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It is also used by
// the YAML layout loader.
func (c *Color) UnmarshalText(b []byte) error {
	parsed, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Stone is the content of one grid cell.
type Stone uint8

const (
	// StoneVoid marks grid positions that lie outside the hexagon.
	StoneVoid Stone = iota
	StoneEmpty
	StoneBlack
	StoneWhite
)

var stoneNames = [...]string{
	StoneVoid:  "void",
	StoneEmpty: "empty",
	StoneBlack: "black",
	StoneWhite: "white",
}

func (s Stone) String() string {
	if int(s) < len(stoneNames) {
		return stoneNames[s]
	}
	return fmt.Sprintf("Stone(%d)", uint8(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Stone) MarshalText() ([]byte, error) {
	if int(s) >= len(stoneNames) {
		return nil, fmt.Errorf("invalid stone %d", uint8(s))
	}
	return []byte(stoneNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stone) UnmarshalText(b []byte) error {
	for i, name := range stoneNames {
		if name == string(b) {
			*s = Stone(i)
			return nil
		}
	}
	return fmt.Errorf("unknown stone %q", string(b))
}
