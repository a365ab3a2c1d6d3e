package gameserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hexrooms/internal/invite"
	"github.com/cory-johannsen/hexrooms/internal/protocol"
	"github.com/cory-johannsen/hexrooms/internal/room"
)

// Conn is one client's frame stream. Read returns io.EOF once the client is gone.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// lockedConn serialises writes from the forwarder and the command loop.
type lockedConn struct {
	Conn
	mu sync.Mutex
}

func (c *lockedConn) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.Write(ctx, data)
}

// Serve runs a client session until the client disconnects, the member is
// removed from its room, or ctx is cancelled. The first accepted frame must
// be Connect; when roomID is set the invite must have been issued for it.
//
// Postcondition: Returns nil on a clean disconnect.
func (s *Server) Serve(ctx context.Context, c Conn, roomID string) error {
	conn := &lockedConn{Conn: c}

	rm, member, err := s.admit(ctx, conn, roomID)
	if err != nil {
		return ignoreClosed(err)
	}
	defer rm.Leave(member)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		s.forwardEvents(ctx, member, conn)
	}()

	err = s.commandLoop(ctx, rm, member, conn)
	cancel()
	wg.Wait()
	return ignoreClosed(err)
}

// admit reads frames until a Connect succeeds. Every failure is reported to
// the client and the connection stays open for another attempt.
func (s *Server) admit(ctx context.Context, conn Conn, roomID string) (*room.Room, *room.Member, error) {
	for {
		raw, err := conn.Read(ctx)
		if err != nil {
			return nil, nil, err
		}
		cmd, err := protocol.ParseCommand(raw)
		if err != nil {
			if err := s.sendError(ctx, conn, err); err != nil {
				return nil, nil, err
			}
			continue
		}
		connect, ok := cmd.(protocol.Connect)
		if !ok {
			if err := s.sendError(ctx, conn, fmt.Errorf("send connect before %q", cmd.Type())); err != nil {
				return nil, nil, err
			}
			continue
		}

		rm, member, err := s.connect(ctx, connect.Invite, roomID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			if err := s.sendError(ctx, conn, err); err != nil {
				return nil, nil, err
			}
			continue
		}
		return rm, member, nil
	}
}

func (s *Server) connect(ctx context.Context, key, roomID string) (*room.Room, *room.Member, error) {
	var (
		inv invite.Invite
		err error
	)
	if roomID != "" {
		inv, err = s.invites.ConsumeFor(key, roomID)
	} else {
		inv, err = s.invites.Consume(key)
	}
	if err != nil {
		return nil, nil, err
	}
	rm, err := s.rooms.Get(inv.RoomID)
	if err != nil {
		return nil, nil, err
	}
	member, err := rm.Join(ctx, inv.UserID)
	if err != nil {
		s.logger.Debug("join refused",
			zap.String("room_id", inv.RoomID),
			zap.String("user", inv.UserID),
			zap.Error(err),
		)
		return nil, nil, err
	}
	return rm, member, nil
}

func (s *Server) commandLoop(ctx context.Context, rm *room.Room, member *room.Member, conn Conn) error {
	for {
		raw, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		cmd, err := protocol.ParseCommand(raw)
		if err != nil {
			s.logger.Debug("unparseable command",
				zap.String("room_id", rm.ID()),
				zap.String("user", member.User()),
				zap.Error(err),
			)
			if err := s.sendError(ctx, conn, err); err != nil {
				return err
			}
			continue
		}
		if err := rm.Submit(ctx, member, cmd); err != nil {
			return err
		}
	}
}

// forwardEvents copies the member's outbox to the connection until it closes.
func (s *Server) forwardEvents(ctx context.Context, member *room.Member, conn Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-member.Events():
			if !ok {
				return
			}
			if err := conn.Write(ctx, data); err != nil {
				s.logger.Debug("forward event send failed", zap.String("user", member.User()), zap.Error(err))
				return
			}
		}
	}
}

func (s *Server) sendError(ctx context.Context, conn Conn, cause error) error {
	data, err := protocol.EncodeEvent(protocol.Error{Message: cause.Error()})
	if err != nil {
		return err
	}
	return conn.Write(ctx, data)
}

func ignoreClosed(err error) error {
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, room.ErrRoomClosed) {
		return nil
	}
	return err
}
