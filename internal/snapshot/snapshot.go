// Package snapshot builds the discovery record a game server publishes.
package snapshot

import (
	"sort"
	"time"

	"github.com/cory-johannsen/hexrooms/internal/protocol"
)

// Summarizer is anything that can describe itself as a room.
type Summarizer interface {
	Summary() protocol.RoomSummary
}

// Source exposes the server identity and its open rooms.
type Source interface {
	Name() string
	Addr() string
	Rooms() []Summarizer
}

// Build walks src's rooms and stamps the result with now in UTC.
//
// Postcondition: Rooms are ordered by id. Build only reads; every call
// produces a fresh value safe to hand to another goroutine.
func Build(src Source, now func() time.Time) protocol.GameServer {
	rooms := src.Rooms()
	summaries := make([]protocol.RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		summaries = append(summaries, r.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	return protocol.GameServer{
		Name:     src.Name(),
		Addr:     src.Addr(),
		Rooms:    summaries,
		LastPing: now().UTC(),
	}
}
