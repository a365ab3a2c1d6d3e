// Package gameserver ties rooms and invites together behind a
// transport-neutral client session.
package gameserver

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hexrooms/internal/invite"
	"github.com/cory-johannsen/hexrooms/internal/protocol"
	"github.com/cory-johannsen/hexrooms/internal/room"
	"github.com/cory-johannsen/hexrooms/internal/snapshot"
)

// Identity is how this server names itself in discovery.
type Identity struct {
	Name string
	Addr string
}

// Server owns the rooms and invites of one game server process.
type Server struct {
	identity Identity
	rooms    *room.Manager
	invites  *invite.Registry
	logger   *zap.Logger
	now      func() time.Time
}

// NewServer creates a Server.
//
// Precondition: rooms, invites and logger must be non-nil.
func NewServer(identity Identity, rooms *room.Manager, invites *invite.Registry, logger *zap.Logger) *Server {
	return &Server{
		identity: identity,
		rooms:    rooms,
		invites:  invites,
		logger:   logger,
		now:      time.Now,
	}
}

// Name implements snapshot.Source.
func (s *Server) Name() string { return s.identity.Name }

// Addr implements snapshot.Source.
func (s *Server) Addr() string { return s.identity.Addr }

// Rooms implements snapshot.Source.
func (s *Server) Rooms() []snapshot.Summarizer {
	rooms := s.rooms.All()
	out := make([]snapshot.Summarizer, len(rooms))
	for i, r := range rooms {
		out[i] = r
	}
	return out
}

// Snapshot builds the current discovery record.
func (s *Server) Snapshot() protocol.GameServer {
	return snapshot.Build(s, s.now)
}

// Invites returns the invite registry.
func (s *Server) Invites() *invite.Registry { return s.invites }

// RoomManager returns the room manager.
func (s *Server) RoomManager() *room.Manager { return s.rooms }

// CreateRoom opens a room for owner and issues the owner's own invite.
//
// Postcondition: The returned invite admits owner to the returned room.
func (s *Server) CreateRoom(owner, name string, conf *protocol.RoomConf) (protocol.RoomSummary, invite.Invite, error) {
	r, err := s.rooms.Create(owner, name, conf)
	if err != nil {
		return protocol.RoomSummary{}, invite.Invite{}, err
	}
	inv, err := s.invites.Issue(owner, r.ID())
	if err != nil {
		r.Close()
		return protocol.RoomSummary{}, invite.Invite{}, fmt.Errorf("inviting owner: %w", err)
	}
	return r.Summary(), inv, nil
}

// IssueInvite lets the owner of roomID invite user.
//
// Postcondition: Returns room.ErrRoomNotFound, room.ErrUnauthorized when
// requester is not the owner, or the new invite.
func (s *Server) IssueInvite(requester, roomID, user string) (invite.Invite, error) {
	r, err := s.rooms.Get(roomID)
	if err != nil {
		return invite.Invite{}, err
	}
	if requester != r.Owner() {
		return invite.Invite{}, fmt.Errorf("%w: only the owner may invite", room.ErrUnauthorized)
	}
	if user == "" {
		return invite.Invite{}, errors.New("invitee is required")
	}
	return s.invites.Issue(user, roomID)
}

// Room returns the open room with the given id.
func (s *Server) Room(id string) (*room.Room, error) {
	return s.rooms.Get(id)
}
