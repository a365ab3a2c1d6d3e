package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/hexrooms/internal/discovery"
	"github.com/cory-johannsen/hexrooms/internal/protocol"
)

// ErrServerNotFound is returned when no snapshot is stored under a name.
var ErrServerNotFound = discovery.ErrServerNotFound

// ServerRepository keeps the latest snapshot of every game server.
// It implements discovery.ServerStore and discovery.ServerDirectory.
type ServerRepository struct {
	db *pgxpool.Pool
}

var (
	_ discovery.ServerStore     = (*ServerRepository)(nil)
	_ discovery.ServerDirectory = (*ServerRepository)(nil)
)

// NewServerRepository creates a ServerRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewServerRepository(db *pgxpool.Pool) *ServerRepository {
	return &ServerRepository{db: db}
}

// Upsert replaces the stored snapshot for gs.Name.
//
// Precondition: gs.Name must be non-empty.
func (r *ServerRepository) Upsert(ctx context.Context, gs protocol.GameServer) error {
	rooms := gs.Rooms
	if rooms == nil {
		rooms = []protocol.RoomSummary{}
	}
	body, err := json.Marshal(rooms)
	if err != nil {
		return fmt.Errorf("encoding rooms: %w", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO game_servers (name, addr, rooms, room_count, last_ping)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (name) DO UPDATE
		 SET addr = EXCLUDED.addr, rooms = EXCLUDED.rooms,
		     room_count = EXCLUDED.room_count, last_ping = EXCLUDED.last_ping`,
		gs.Name, gs.Addr, body, len(rooms), gs.LastPing,
	)
	if err != nil {
		return fmt.Errorf("upserting server %s: %w", gs.Name, err)
	}
	return nil
}

// Remove deletes the snapshot stored under name. Removing an unknown name is not an error.
func (r *ServerRepository) Remove(ctx context.Context, name string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM game_servers WHERE name = $1`, name); err != nil {
		return fmt.Errorf("removing server %s: %w", name, err)
	}
	return nil
}

// Get returns the snapshot stored under name or ErrServerNotFound.
func (r *ServerRepository) Get(ctx context.Context, name string) (protocol.GameServer, error) {
	row := r.db.QueryRow(ctx,
		`SELECT name, addr, rooms, last_ping FROM game_servers WHERE name = $1`, name)
	gs, err := scanServer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return protocol.GameServer{}, ErrServerNotFound
	}
	if err != nil {
		return protocol.GameServer{}, fmt.Errorf("querying server %s: %w", name, err)
	}
	return gs, nil
}

// ListLive returns servers whose last ping is newer than since, ordered by name.
func (r *ServerRepository) ListLive(ctx context.Context, since time.Time) ([]protocol.GameServer, error) {
	rows, err := r.db.Query(ctx,
		`SELECT name, addr, rooms, last_ping FROM game_servers
		 WHERE last_ping > $1 ORDER BY name`, since)
	if err != nil {
		return nil, fmt.Errorf("listing servers: %w", err)
	}
	servers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (protocol.GameServer, error) {
		return scanServer(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scanning servers: %w", err)
	}
	return servers, nil
}

func scanServer(row pgx.Row) (protocol.GameServer, error) {
	var (
		gs   protocol.GameServer
		body []byte
	)
	if err := row.Scan(&gs.Name, &gs.Addr, &body, &gs.LastPing); err != nil {
		return protocol.GameServer{}, err
	}
	if err := json.Unmarshal(body, &gs.Rooms); err != nil {
		return protocol.GameServer{}, fmt.Errorf("decoding rooms: %w", err)
	}
	gs.LastPing = gs.LastPing.UTC()
	return gs, nil
}
