package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/hexrooms/internal/protocol"
	"github.com/cory-johannsen/hexrooms/internal/room"
)

// ErrIncompleteMatch is returned when a record lacks a room or either player.
var ErrIncompleteMatch = errors.New("incomplete match record")

// MatchRepository stores finished games. It implements room.Archiver.
type MatchRepository struct {
	db *pgxpool.Pool
}

var _ room.Archiver = (*MatchRepository)(nil)

// NewMatchRepository creates a MatchRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewMatchRepository(db *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{db: db}
}

// Archive inserts rec.
//
// Postcondition: Returns ErrIncompleteMatch without touching the database
// when RoomID, Black or White is empty.
func (r *MatchRepository) Archive(ctx context.Context, rec room.MatchRecord) error {
	if rec.RoomID == "" || rec.Black == "" || rec.White == "" {
		return ErrIncompleteMatch
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO matches
		 (room_id, layout, black, white, winner, loser, cause, moves, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.RoomID, rec.Layout, rec.Black, rec.White, rec.Winner, rec.Loser,
		rec.Cause.String(), rec.Moves, rec.StartedAt, rec.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting match for room %s: %w", rec.RoomID, err)
	}
	return nil
}

// ListByUser returns up to limit games user played in, newest first.
//
// Precondition: limit must be > 0.
func (r *MatchRepository) ListByUser(ctx context.Context, user string, limit int) ([]room.MatchRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT room_id, layout, black, white, winner, loser, cause, moves, started_at, ended_at
		 FROM matches
		 WHERE black = $1 OR white = $1
		 ORDER BY ended_at DESC, id DESC
		 LIMIT $2`,
		user, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying matches for %s: %w", user, err)
	}
	recs, err := pgx.CollectRows(rows, scanMatch)
	if err != nil {
		return nil, fmt.Errorf("scanning matches for %s: %w", user, err)
	}
	return recs, nil
}

func scanMatch(row pgx.CollectableRow) (room.MatchRecord, error) {
	var (
		rec   room.MatchRecord
		cause string
	)
	err := row.Scan(&rec.RoomID, &rec.Layout, &rec.Black, &rec.White, &rec.Winner, &rec.Loser,
		&cause, &rec.Moves, &rec.StartedAt, &rec.EndedAt)
	if err != nil {
		return room.MatchRecord{}, err
	}
	rec.Cause, err = protocol.ParseEndedCause(cause)
	if err != nil {
		return room.MatchRecord{}, err
	}
	return rec, nil
}
