package gameserver

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/hexrooms/internal/game/board"
	"github.com/cory-johannsen/hexrooms/internal/invite"
	"github.com/cory-johannsen/hexrooms/internal/protocol"
	"github.com/cory-johannsen/hexrooms/internal/room"
)

const waitFor = 3 * time.Second

// pipeConn is an in-memory Conn driven by the test.
type pipeConn struct {
	in  chan []byte
	out chan []byte
}

func newPipeConn() *pipeConn {
	return &pipeConn{in: make(chan []byte, 16), out: make(chan []byte, 64)}
}

func (p *pipeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data, ok := <-p.in:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipeConn) Write(ctx context.Context, data []byte) error {
	select {
	case p.out <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeConn) send(t *testing.T, cmd protocol.Command) {
	t.Helper()
	raw, err := protocol.EncodeCommand(cmd)
	require.NoError(t, err)
	p.in <- raw
}

func (p *pipeConn) recv(t *testing.T) protocol.Event {
	t.Helper()
	select {
	case data := <-p.out:
		ev, err := protocol.DecodeEvent(data)
		require.NoError(t, err)
		return ev
	case <-time.After(waitFor):
		t.Fatal("no event")
		return nil
	}
}

func keys(ks ...string) func() string {
	return func() string {
		k := ks[0]
		ks = ks[1:]
		return k
	}
}

func newTestServer(t *testing.T, inviteKeys ...string) *Server {
	t.Helper()
	logger := zaptest.NewLogger(t)
	set, err := board.NewLayoutSet(board.Layout{
		ID: "last-stone", Radius: 2, First: board.Black,
		Black: [][2]int{{0, 0}, {0, -1}},
		White: [][2]int{{0, -2}},
	})
	require.NoError(t, err)
	rooms := room.NewManager(room.DefaultSettings(), room.LayoutGames{Layouts: set},
		protocol.RoomConf{Layout: "last-stone", MaxUsers: 4},
		room.WithManagerLogger(logger),
		room.WithIDSource(keys("r1", "r2")),
	)
	t.Cleanup(rooms.CloseAll)
	invites := invite.NewRegistry(invite.WithKeySource(keys(inviteKeys...)), invite.WithLogger(logger))
	return NewServer(Identity{Name: "hex-test", Addr: "127.0.0.1:0"}, rooms, invites, logger)
}

func serve(t *testing.T, s *Server, roomID string) (*pipeConn, <-chan error) {
	t.Helper()
	conn := newPipeConn()
	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background(), conn, roomID) }()
	t.Cleanup(func() {
		close(conn.in)
		select {
		case <-done:
		case <-time.After(waitFor):
			t.Error("session did not stop")
		}
	})
	return conn, done
}

func TestServe_InviteAdmitsOnce(t *testing.T) {
	s := newTestServer(t, "owner-key", "abc")
	summary, ownerInv, err := s.CreateRoom("u1", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "r1", summary.ID)
	assert.Equal(t, "u1's room", summary.Name)

	inv, err := s.IssueInvite("u1", "r1", "u2")
	require.NoError(t, err)
	assert.Equal(t, "abc", inv.Key)

	owner, _ := serve(t, s, "r1")
	owner.send(t, protocol.Connect{Invite: ownerInv.Key})
	_, ok := owner.recv(t).(protocol.Connected)
	require.True(t, ok)

	guest, _ := serve(t, s, "")
	guest.send(t, protocol.Connect{Invite: "abc"})
	connected, ok := guest.recv(t).(protocol.Connected)
	require.True(t, ok)
	assert.Equal(t, []string{"u1", "u2"}, connected.Room.Users)
	assert.Equal(t, protocol.Entered{User: "u2"}, owner.recv(t))

	again, _ := serve(t, s, "")
	again.send(t, protocol.Connect{Invite: "abc"})
	errEv, ok := again.recv(t).(protocol.Error)
	require.True(t, ok)
	assert.Contains(t, errEv.Message, invite.ErrInvalidInvite.Error())

	// The connection stays usable after a failed connect.
	again.in <- []byte(`{"type":"teleport"}`)
	errEv, ok = again.recv(t).(protocol.Error)
	require.True(t, ok)
	assert.Contains(t, errEv.Message, "teleport")
}

func TestServe_CommandBeforeConnect(t *testing.T) {
	s := newTestServer(t, "k")
	conn, _ := serve(t, s, "")
	conn.send(t, protocol.Start{})
	errEv, ok := conn.recv(t).(protocol.Error)
	require.True(t, ok)
	assert.Contains(t, errEv.Message, "connect")
}

func TestServe_RoomMismatchKeepsInvite(t *testing.T) {
	s := newTestServer(t, "k1", "k2")
	_, _, err := s.CreateRoom("u1", "one", nil)
	require.NoError(t, err)
	_, _, err = s.CreateRoom("u9", "two", nil)
	require.NoError(t, err)

	conn, _ := serve(t, s, "r2")
	conn.send(t, protocol.Connect{Invite: "k1"})
	_, ok := conn.recv(t).(protocol.Error)
	require.True(t, ok)

	right, _ := serve(t, s, "r1")
	right.send(t, protocol.Connect{Invite: "k1"})
	_, ok = right.recv(t).(protocol.Connected)
	assert.True(t, ok)
}

func TestServe_FullGameOverSessions(t *testing.T) {
	s := newTestServer(t, "owner-key", "guest-key")
	_, _, err := s.CreateRoom("u1", "", nil)
	require.NoError(t, err)
	_, err = s.IssueInvite("u1", "r1", "u2")
	require.NoError(t, err)

	owner, _ := serve(t, s, "r1")
	owner.send(t, protocol.Connect{Invite: "owner-key"})
	owner.recv(t)
	guest, _ := serve(t, s, "r1")
	guest.send(t, protocol.Connect{Invite: "guest-key"})
	guest.recv(t)
	owner.recv(t)

	owner.send(t, protocol.Start{})
	started, ok := owner.recv(t).(protocol.Started)
	require.True(t, ok)
	assert.Equal(t, "black", started.Turn)
	guest.recv(t)

	guest.in <- []byte(`{"type":"move","start":{"q":0}}`)
	_, ok = guest.recv(t).(protocol.Error)
	assert.True(t, ok)

	owner.send(t, protocol.Move{Start: board.AxialCoord{Q: 0, R: 0}, End: board.AxialCoord{Q: 0, R: -1}, Dir: board.AxialCoord{Q: 0, R: -1}})
	for _, c := range []*pipeConn{owner, guest} {
		_, ok := c.recv(t).(protocol.Moved)
		assert.True(t, ok)
		assert.Equal(t, protocol.Ended{Loser: "u2", Color: "white", Cause: protocol.CauseLostStones}, c.recv(t))
	}
	assert.Equal(t, protocol.PhaseEnded, s.Snapshot().Rooms[0].Phase)
}

func TestServe_DisconnectReturnsNil(t *testing.T) {
	s := newTestServer(t, "k")
	_, _, err := s.CreateRoom("u1", "", nil)
	require.NoError(t, err)

	conn := newPipeConn()
	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background(), conn, "") }()
	conn.send(t, protocol.Connect{Invite: "k"})
	conn.recv(t)
	close(conn.in)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("session did not stop")
	}
	require.Eventually(t, func() bool {
		return len(s.Snapshot().Rooms) == 1 && len(s.Snapshot().Rooms[0].Users) == 0
	}, waitFor, 10*time.Millisecond)
}

func TestIssueInvite_OwnerOnly(t *testing.T) {
	s := newTestServer(t, "k1", "k2")
	_, _, err := s.CreateRoom("u1", "", nil)
	require.NoError(t, err)

	_, err = s.IssueInvite("u2", "r1", "u3")
	assert.ErrorIs(t, err, room.ErrUnauthorized)
	_, err = s.IssueInvite("u1", "nope", "u3")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
	_, err = s.IssueInvite("u1", "r1", "")
	assert.Error(t, err)
}

func TestSnapshot_ListsRooms(t *testing.T) {
	s := newTestServer(t, "k1", "k2")
	_, _, err := s.CreateRoom("u1", "first", nil)
	require.NoError(t, err)
	_, _, err = s.CreateRoom("u2", "second", nil)
	require.NoError(t, err)

	gs := s.Snapshot()
	assert.Equal(t, "hex-test", gs.Name)
	require.Len(t, gs.Rooms, 2)
	assert.Equal(t, "r1", gs.Rooms[0].ID)
	assert.Equal(t, "r2", gs.Rooms[1].ID)
	assert.Equal(t, protocol.PhaseWaiting, gs.Rooms[0].Phase)
}
