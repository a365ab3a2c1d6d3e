package snapshot

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/hexrooms/internal/protocol"
)

type staticRoom protocol.RoomSummary

func (s staticRoom) Summary() protocol.RoomSummary { return protocol.RoomSummary(s) }

type staticSource struct {
	rooms []Summarizer
}

func (s staticSource) Name() string        { return "hex-1" }
func (s staticSource) Addr() string        { return "10.0.0.1:7000" }
func (s staticSource) Rooms() []Summarizer { return s.rooms }

func TestBuild_OrdersRoomsAndStampsUTC(t *testing.T) {
	src := staticSource{rooms: []Summarizer{
		staticRoom{ID: "b", Phase: protocol.PhaseStarted, Users: []string{"u1", "u2"}},
		staticRoom{ID: "a", Phase: protocol.PhaseWaiting, Users: []string{"u3"}},
	}}
	loc := time.FixedZone("UTC+2", 2*60*60)
	at := time.Date(2026, 3, 4, 14, 5, 6, 0, loc)

	gs := Build(src, func() time.Time { return at })
	assert.Equal(t, "hex-1", gs.Name)
	assert.Equal(t, "10.0.0.1:7000", gs.Addr)
	require.Len(t, gs.Rooms, 2)
	assert.Equal(t, "a", gs.Rooms[0].ID)
	assert.Equal(t, "b", gs.Rooms[1].ID)
	assert.Equal(t, time.UTC, gs.LastPing.Location())
	assert.True(t, at.Equal(gs.LastPing))

	raw, err := json.Marshal(gs)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"last_ping":"2026-03-04T12:05:06Z"`)
}

func TestBuild_EmptyServer(t *testing.T) {
	gs := Build(staticSource{}, time.Now)
	assert.NotNil(t, gs.Rooms)
	assert.Empty(t, gs.Rooms)
}

func TestBuild_FreshValuePerCall(t *testing.T) {
	src := staticSource{rooms: []Summarizer{staticRoom{ID: "a", Users: []string{"u1"}}}}
	first := Build(src, time.Now)
	first.Rooms[0].ID = "mutated"
	second := Build(src, time.Now)
	assert.Equal(t, "a", second.Rooms[0].ID)
}

func TestBuild_Concurrent(t *testing.T) {
	src := staticSource{rooms: []Summarizer{staticRoom{ID: "a"}, staticRoom{ID: "b"}}}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				gs := Build(src, time.Now)
				if len(gs.Rooms) != 2 {
					t.Error("wrong room count")
					return
				}
			}
		}()
	}
	wg.Wait()
}
