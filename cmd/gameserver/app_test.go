package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/hexrooms/internal/config"
	"github.com/cory-johannsen/hexrooms/internal/discovery"
	"github.com/cory-johannsen/hexrooms/internal/invite"
	"github.com/cory-johannsen/hexrooms/internal/protocol"
	"github.com/cory-johannsen/hexrooms/internal/server"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	v := config.NewViper()
	v.Set("server.layouts_dir", "../../content/layouts")
	cfg, err := config.LoadFromViper(v)
	require.NoError(t, err)
	return cfg
}

func TestInitializeApp_WithoutDatabase(t *testing.T) {
	cfg := testConfig(t)
	app, cleanup, err := initializeApp(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer cleanup()
	defer app.rooms.CloseAll()

	assert.Nil(t, app.publisher)
	assert.Equal(t, []string{"invite-sweep"}, app.ticker.Jobs())

	srv := httptest.NewServer(app.api.Routes())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInitializeApp_UnknownDefaultLayout(t *testing.T) {
	cfg := testConfig(t)
	cfg.Rooms.DefaultLayout = "nonexistent"
	_, _, err := initializeApp(context.Background(), cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonexistent")
}

func TestInitializeApp_MissingLayoutsDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.LayoutsDir = t.TempDir() + "/missing"
	_, _, err := initializeApp(context.Background(), cfg, zaptest.NewLogger(t))
	require.Error(t, err)
}

// recordingStore logs every store call in order.
type recordingStore struct {
	mu    sync.Mutex
	calls []string
}

func (s *recordingStore) Upsert(context.Context, protocol.GameServer) error {
	s.record("upsert")
	return nil
}

func (s *recordingStore) Remove(context.Context, string) error {
	s.record("remove")
	return nil
}

func (s *recordingStore) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *recordingStore) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func TestApp_ShutdownWithdrawsAfterLastPublish(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP.Host, cfg.HTTP.Port = "127.0.0.1", 0
	cfg.Discovery.GRPCHost, cfg.Discovery.GRPCPort = "127.0.0.1", 0
	cfg.Discovery.PublishInterval = 2 * time.Millisecond
	logger := zaptest.NewLogger(t)

	app, cleanup, err := initializeApp(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer cleanup()

	store := &recordingStore{}
	app.publisher = discovery.NewPublisher(store, func() protocol.GameServer {
		return protocol.GameServer{Name: "hex-test"}
	}, time.Second, logger)
	app.ticker = provideTicker(cfg, invite.NewRegistry(), app.publisher, logger)

	lc := server.NewLifecycle(logger, server.WithSignals())
	app.Register(lc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()

	require.Eventually(t, func() bool { return len(store.snapshot()) >= 3 }, 2*time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("lifecycle did not stop")
	}

	time.Sleep(20 * time.Millisecond)
	calls := store.snapshot()
	require.NotEmpty(t, calls)
	assert.Equal(t, "remove", calls[len(calls)-1], "calls: %v", calls)
	assert.Equal(t, 1, countOf(calls, "remove"))
}

func countOf(calls []string, want string) int {
	n := 0
	for _, c := range calls {
		if c == want {
			n++
		}
	}
	return n
}
