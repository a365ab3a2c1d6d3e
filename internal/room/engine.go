package room

import (
	"github.com/cory-johannsen/hexrooms/internal/game/board"
	"github.com/cory-johannsen/hexrooms/internal/protocol"
)

// Engine is a running game as the room drives it. It is only ever called
// from the owning room's actor goroutine.
type Engine interface {
	protocol.GameView
	Play(user string, start, end, dir board.AxialCoord) (board.Outcome, error)
	ColorOf(user string) (board.Color, bool)
	PlayerOf(c board.Color) string
	Moves() int
}

// Games creates engines for known layouts.
type Games interface {
	HasLayout(id string) bool
	NewEngine(layout, black, white string) (Engine, error)
}

// LayoutGames serves Games from a loaded layout set.
type LayoutGames struct {
	Layouts *board.LayoutSet
}

// HasLayout reports whether id names a loaded layout.
func (g LayoutGames) HasLayout(id string) bool {
	_, ok := g.Layouts.Get(id)
	return ok
}

// NewEngine seats black and white on a fresh board.
func (g LayoutGames) NewEngine(layout, black, white string) (Engine, error) {
	game, err := g.Layouts.NewGame(layout, black, white)
	if err != nil {
		return nil, err
	}
	return game, nil
}
