package board

import (
	"errors"
	"fmt"
)

// MaxLine is the largest number of own stones that may move together.
const MaxLine = 3

var (
	// ErrGameOver is returned when a move is attempted after one side has lost.
	ErrGameOver = errors.New("game is over")
	// ErrNotPlayer is returned when the user holds neither color.
	ErrNotPlayer = errors.New("not a player in this game")
	// ErrNotYourTurn is returned when the mover's color does not hold the turn.
	ErrNotYourTurn = errors.New("not your turn")
	// ErrIllegalMove wraps every rule violation of a move.
	ErrIllegalMove = errors.New("illegal move")
)

// Outcome describes the effect of an accepted move.
type Outcome struct {
	Mover Color
	// Pushed is the number of opposing stones displaced by the move.
	Pushed int
	// Captured is the number of opposing stones pushed off the board.
	Captured int
	// Defeated is true when the opponent has no stones left.
	Defeated bool
}

// Game is a running match between two users.
type Game struct {
	board  *Board
	black  string
	white  string
	turn   Color
	moves  int
	loser  Color
	layout string
}

// NewGame places the layout's stones and seats the players.
//
// Precondition: layout must be valid; black and white must be distinct non-empty ids.
// Postcondition: Returns a game whose turn is the layout's first mover.
func NewGame(layout Layout, black, white string) (*Game, error) {
	if black == "" || white == "" || black == white {
		return nil, fmt.Errorf("invalid players %q and %q", black, white)
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	b := NewBoard(layout.Radius)
	for _, p := range layout.Black {
		b.set(AxialCoord{Q: p[0], R: p[1]}, StoneBlack)
	}
	for _, p := range layout.White {
		b.set(AxialCoord{Q: p[0], R: p[1]}, StoneWhite)
	}
	first := layout.First
	if first == 0 {
		first = Black
	}
	return &Game{board: b, black: black, white: white, turn: first, layout: layout.ID}, nil
}

// Board returns a copy of the raw row-major grid.
func (g *Game) Board() [][]Stone { return g.board.Raw() }

// Black returns the user playing black.
func (g *Game) Black() string { return g.black }

// White returns the user playing white.
func (g *Game) White() string { return g.white }

// Turn returns the color to move.
func (g *Game) Turn() Color { return g.turn }

// Moves returns the number of accepted moves.
func (g *Game) Moves() int { return g.moves }

// Layout returns the id of the layout the game started from.
func (g *Game) Layout() string { return g.layout }

// Stones returns the number of stones c has on the board.
func (g *Game) Stones(c Color) int { return g.board.Count(c) }

// ColorOf returns the color user plays.
func (g *Game) ColorOf(user string) (Color, bool) {
	switch user {
	case g.black:
		return Black, true
	case g.white:
		return White, true
	}
	return 0, false
}

// PlayerOf returns the user playing c.
func (g *Game) PlayerOf(c Color) string {
	if c == Black {
		return g.black
	}
	return g.white
}

// Play applies a move for user. The stones from start to end (inclusive,
// in a straight line of at most MaxLine) move one step in dir.
//
// Postcondition: On success the turn passes to the opponent. On error the
// board is unchanged.
func (g *Game) Play(user string, start, end, dir AxialCoord) (Outcome, error) {
	if g.loser != 0 {
		return Outcome{}, ErrGameOver
	}
	color, ok := g.ColorOf(user)
	if !ok {
		return Outcome{}, ErrNotPlayer
	}
	if color != g.turn {
		return Outcome{}, ErrNotYourTurn
	}

	out, err := g.apply(color, start, end, dir)
	if err != nil {
		return Outcome{}, err
	}

	g.moves++
	g.turn = color.Opponent()
	if g.board.Count(color.Opponent()) == 0 {
		g.loser = color.Opponent()
		out.Defeated = true
	}
	return out, nil
}

func (g *Game) apply(color Color, start, end, dir AxialCoord) (Outcome, error) {
	if !dir.IsDirection() {
		return Outcome{}, fmt.Errorf("%w: %v is not a unit direction", ErrIllegalMove, dir)
	}
	cells, axis, err := lineBetween(start, end)
	if err != nil {
		return Outcome{}, err
	}
	own := color.Stone()
	for _, c := range cells {
		if g.board.At(c) != own {
			return Outcome{}, fmt.Errorf("%w: %v does not hold a %s stone", ErrIllegalMove, c, color)
		}
	}

	out := Outcome{Mover: color}
	if len(cells) == 1 || dir == axis || dir == axis.Neg() {
		if dir == axis.Neg() {
			for i, j := 0, len(cells)-1; i < j; i, j = i+1, j-1 {
				cells[i], cells[j] = cells[j], cells[i]
			}
		}
		pushed, captured, err := g.push(cells, dir, own, color.Opponent().Stone())
		if err != nil {
			return Outcome{}, err
		}
		out.Pushed, out.Captured = pushed, captured
		return out, nil
	}
	return out, g.sidestep(cells, dir, own)
}

// push moves an inline group. cells are ordered so the last one is the front.
func (g *Game) push(cells []AxialCoord, dir AxialCoord, own, opp Stone) (int, int, error) {
	next := cells[len(cells)-1].Add(dir)
	var pushed []AxialCoord
	for g.board.At(next) == opp {
		pushed = append(pushed, next)
		next = next.Add(dir)
	}

	if len(pushed) == 0 {
		if g.board.At(next) != StoneEmpty {
			return 0, 0, fmt.Errorf("%w: %v is blocked", ErrIllegalMove, next)
		}
	} else {
		if len(pushed) >= len(cells) {
			return 0, 0, fmt.Errorf("%w: cannot push %d stones with %d", ErrIllegalMove, len(pushed), len(cells))
		}
		if g.board.At(next) == own {
			return 0, 0, fmt.Errorf("%w: push blocked at %v", ErrIllegalMove, next)
		}
	}

	for _, c := range cells {
		g.board.set(c, StoneEmpty)
	}
	for _, c := range pushed {
		g.board.set(c, StoneEmpty)
	}
	for _, c := range cells {
		g.board.set(c.Add(dir), own)
	}
	captured := 0
	for _, c := range pushed {
		dst := c.Add(dir)
		if !g.board.Contains(dst) {
			captured++
			continue
		}
		g.board.set(dst, opp)
	}
	return len(pushed), captured, nil
}

// sidestep moves a group sideways; every destination must be empty.
func (g *Game) sidestep(cells []AxialCoord, dir AxialCoord, own Stone) error {
	for _, c := range cells {
		if dst := c.Add(dir); g.board.At(dst) != StoneEmpty {
			return fmt.Errorf("%w: %v is not free", ErrIllegalMove, dst)
		}
	}
	for _, c := range cells {
		g.board.set(c, StoneEmpty)
	}
	for _, c := range cells {
		g.board.set(c.Add(dir), own)
	}
	return nil
}

// lineBetween returns the cells from start to end and the unit axis
// joining them. A single cell has a zero axis.
func lineBetween(start, end AxialCoord) ([]AxialCoord, AxialCoord, error) {
	if start == end {
		return []AxialCoord{start}, AxialCoord{}, nil
	}
	delta := end.Sub(start)
	for _, d := range Directions {
		for k := 1; k < MaxLine; k++ {
			if d.Scale(k) != delta {
				continue
			}
			cells := make([]AxialCoord, 0, k+1)
			for i := 0; i <= k; i++ {
				cells = append(cells, start.Add(d.Scale(i)))
			}
			return cells, d, nil
		}
	}
	return nil, AxialCoord{}, fmt.Errorf("%w: %v to %v is not a line of at most %d stones", ErrIllegalMove, start, end, MaxLine)
}
