package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/hexrooms/internal/protocol"
	"github.com/cory-johannsen/hexrooms/internal/room"
	"github.com/cory-johannsen/hexrooms/internal/storage/postgres"
	"github.com/cory-johannsen/hexrooms/internal/testutil"
)

// TestPostgres shares one container across every repository test.
func TestPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	pc := testutil.NewPostgresContainer(t)

	t.Run("PoolHealth", func(t *testing.T) { testPoolHealth(t, pc) })
	t.Run("MatchArchiveAndList", func(t *testing.T) { testMatchArchiveAndList(t, pc) })
	t.Run("ServerUpsertGetRemove", func(t *testing.T) { testServerUpsertGetRemove(t, pc) })
	t.Run("ServerListLive", func(t *testing.T) { testServerListLive(t, pc) })
}

func testPoolHealth(t *testing.T, pc *testutil.PostgresContainer) {
	require.NoError(t, pc.Pool.Health(context.Background(), time.Second))
	require.NoError(t, pc.Pool.Ping(time.Second)(context.Background()))

	var app string
	require.NoError(t, pc.RawPool.QueryRow(context.Background(), "SHOW application_name").Scan(&app))
	assert.Equal(t, "TestPostgres", app)
}

func record(roomID, black, white string, cause protocol.EndedCause, ended time.Time) room.MatchRecord {
	return room.MatchRecord{
		RoomID: roomID, Layout: "classic",
		Black: black, White: white,
		Winner: black, Loser: white,
		Cause: cause, Moves: 12,
		StartedAt: ended.Add(-10 * time.Minute), EndedAt: ended,
	}
}

func testMatchArchiveAndList(t *testing.T, pc *testutil.PostgresContainer) {
	pc.Truncate(t, "matches")
	repo := postgres.NewMatchRepository(pc.RawPool)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Archive(ctx, record("r1", "alice", "bob", protocol.CauseLostStones, base)))
	require.NoError(t, repo.Archive(ctx, record("r2", "carol", "alice", protocol.CauseTimeout, base.Add(time.Hour))))
	require.NoError(t, repo.Archive(ctx, record("r3", "carol", "dave", protocol.CauseGg, base.Add(2*time.Hour))))

	got, err := repo.ListByUser(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r2", got[0].RoomID)
	assert.Equal(t, protocol.CauseTimeout, got[0].Cause)
	assert.Equal(t, "r1", got[1].RoomID)
	assert.Equal(t, 12, got[1].Moves)
	assert.True(t, base.Equal(got[1].EndedAt))

	limited, err := repo.ListByUser(ctx, "carol", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "r3", limited[0].RoomID)

	none, err := repo.ListByUser(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMatchRepository_RejectsIncomplete(t *testing.T) {
	// No database needed: validation happens before the query.
	repo := postgres.NewMatchRepository(nil)
	err := repo.Archive(context.Background(), room.MatchRecord{RoomID: "r1", Black: "alice"})
	assert.ErrorIs(t, err, postgres.ErrIncompleteMatch)
}

func testServerUpsertGetRemove(t *testing.T, pc *testutil.PostgresContainer) {
	pc.Truncate(t, "game_servers")
	repo := postgres.NewServerRepository(pc.RawPool)
	ctx := context.Background()
	ping := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	gs := protocol.GameServer{
		Name: "hex-1",
		Addr: "ws://hex-1:8080",
		Rooms: []protocol.RoomSummary{{
			ID: "r1", Name: "alice's room", Owner: "alice",
			Users: []string{"alice", "bob"},
			Conf:  protocol.RoomConf{Layout: "classic", MaxUsers: 8},
			Phase: protocol.PhaseStarted, Black: "alice", White: "bob",
		}},
		LastPing: ping,
	}
	require.NoError(t, repo.Upsert(ctx, gs))

	got, err := repo.Get(ctx, "hex-1")
	require.NoError(t, err)
	assert.Equal(t, gs, got)

	gs.Rooms = nil
	gs.LastPing = ping.Add(time.Minute)
	require.NoError(t, repo.Upsert(ctx, gs))
	got, err = repo.Get(ctx, "hex-1")
	require.NoError(t, err)
	assert.Empty(t, got.Rooms)
	assert.True(t, gs.LastPing.Equal(got.LastPing))

	require.NoError(t, repo.Remove(ctx, "hex-1"))
	_, err = repo.Get(ctx, "hex-1")
	assert.ErrorIs(t, err, postgres.ErrServerNotFound)
	require.NoError(t, repo.Remove(ctx, "hex-1"), "removing twice is fine")
}

func testServerListLive(t *testing.T, pc *testutil.PostgresContainer) {
	pc.Truncate(t, "game_servers")
	repo := postgres.NewServerRepository(pc.RawPool)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, age := range map[string]time.Duration{"b": time.Second, "a": 2 * time.Second, "stale": time.Hour} {
		require.NoError(t, repo.Upsert(ctx, protocol.GameServer{Name: name, Addr: name, LastPing: now.Add(-age)}))
	}

	live, err := repo.ListLive(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, live, 2)
	assert.Equal(t, "a", live[0].Name)
	assert.Equal(t, "b", live[1].Name)
}
