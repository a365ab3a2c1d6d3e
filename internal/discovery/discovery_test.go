package discovery

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/cory-johannsen/hexrooms/internal/protocol"
)

func sampleSnapshot() protocol.GameServer {
	return protocol.GameServer{
		Name: "hex-1",
		Addr: "10.0.0.1:7000",
		Rooms: []protocol.RoomSummary{{
			ID:    "r1",
			Name:  "friendly",
			Owner: "u1",
			Users: []string{"u1", "u2"},
			Conf:  protocol.RoomConf{Layout: "classic", TurnTimeout: 30, MaxUsers: 8},
			Phase: protocol.PhaseStarted,
			Black: "u1",
			White: "u2",
		}},
		LastPing: time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC),
	}
}

func dial(t *testing.T, svc *Service) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	Register(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func TestStructRoundTrip(t *testing.T) {
	want := sampleSnapshot()
	s, err := ToStruct(want)
	require.NoError(t, err)
	assert.Equal(t, "2026-05-06T07:08:09Z", s.Fields["last_ping"].GetStringValue())
	got, err := FromStruct(s)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestService_Snapshot(t *testing.T) {
	client := dial(t, NewService(sampleSnapshot, time.Second, zaptest.NewLogger(t)))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := client.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleSnapshot(), got)
}

func TestService_Watch(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	snap := func() protocol.GameServer {
		mu.Lock()
		defer mu.Unlock()
		calls++
		gs := sampleSnapshot()
		gs.Rooms = gs.Rooms[:calls%2]
		return gs
	}
	client := dial(t, NewService(snap, 10*time.Millisecond, zaptest.NewLogger(t)))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stop := errors.New("enough")
	var seen []int
	err := client.Watch(ctx, func(gs protocol.GameServer) error {
		seen = append(seen, len(gs.Rooms))
		if len(seen) == 3 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []int{1, 0, 1}, seen)
}

type memoryStore struct {
	mu      sync.Mutex
	servers map[string]protocol.GameServer
	fail    error
}

func (m *memoryStore) Upsert(_ context.Context, gs protocol.GameServer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.servers[gs.Name] = gs
	return nil
}

func (m *memoryStore) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.servers, name)
	return nil
}

func TestPublisher(t *testing.T) {
	store := &memoryStore{servers: map[string]protocol.GameServer{}}
	p := NewPublisher(store, sampleSnapshot, time.Second, zaptest.NewLogger(t))

	require.NoError(t, p.Publish(context.Background()))
	assert.Equal(t, sampleSnapshot(), store.servers["hex-1"])

	require.NoError(t, p.Withdraw(context.Background()))
	assert.Empty(t, store.servers)

	store.fail = errors.New("db down")
	assert.ErrorContains(t, p.Publish(context.Background()), "db down")
	p.Tick(context.Background())
}
