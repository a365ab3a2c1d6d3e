package room

import (
	"context"
	"time"

	"github.com/cory-johannsen/hexrooms/internal/protocol"
)

// MatchRecord is the archived result of one finished game.
type MatchRecord struct {
	RoomID    string
	Layout    string
	Black     string
	White     string
	Winner    string
	Loser     string
	Cause     protocol.EndedCause
	Moves     int
	StartedAt time.Time
	EndedAt   time.Time
}

// Archiver persists finished games. Archive is called off the room's actor
// goroutine with a bounded context.
type Archiver interface {
	Archive(ctx context.Context, rec MatchRecord) error
}

// ArchiverFunc adapts a function to Archiver.
type ArchiverFunc func(ctx context.Context, rec MatchRecord) error

// Archive calls f.
func (f ArchiverFunc) Archive(ctx context.Context, rec MatchRecord) error { return f(ctx, rec) }

type discardArchiver struct{}

func (discardArchiver) Archive(context.Context, MatchRecord) error { return nil }
