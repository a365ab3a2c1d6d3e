package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockService struct {
	name    string
	order   *stopOrder
	started atomic.Bool
	stopped chan struct{}
	once    sync.Once
	startFn func() error
}

type stopOrder struct {
	mu    sync.Mutex
	names []string
}

func newMockService(name string, order *stopOrder) *mockService {
	return &mockService{name: name, order: order, stopped: make(chan struct{})}
}

func (m *mockService) Start() error {
	m.started.Store(true)
	if m.startFn != nil {
		return m.startFn()
	}
	<-m.stopped
	return nil
}

func (m *mockService) Stop() {
	m.once.Do(func() {
		if m.order != nil {
			m.order.mu.Lock()
			m.order.names = append(m.order.names, m.name)
			m.order.mu.Unlock()
		}
		close(m.stopped)
	})
}

func (m *mockService) isStopped() bool {
	select {
	case <-m.stopped:
		return true
	default:
		return false
	}
}

func TestLifecycle_StopsInReverseOrderOnCancel(t *testing.T) {
	order := &stopOrder{}
	lc := NewLifecycle(zaptest.NewLogger(t), WithSignals())
	svc1 := newMockService("http", order)
	svc2 := newMockService("ticker", order)
	lc.Add("http", svc1)
	lc.Add("ticker", svc2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()

	require.Eventually(t, func() bool {
		return svc1.started.Load() && svc2.started.Load()
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}
	assert.Equal(t, []string{"ticker", "http"}, order.names)
}

func TestLifecycle_ServiceFailureStopsOthers(t *testing.T) {
	boom := errors.New("listen failed")
	lc := NewLifecycle(zaptest.NewLogger(t), WithSignals())
	healthy := newMockService("healthy", nil)
	failing := newMockService("failing", nil)
	failing.startFn = func() error { return boom }
	lc.Add("healthy", healthy)
	lc.Add("failing", failing)

	err := lc.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "service failing")
	assert.True(t, healthy.isStopped())
}

func TestLifecycle_StopTimeout(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t), WithSignals(), WithStopTimeout(20*time.Millisecond))
	stuck := &FuncService{
		StartFn: func() error { select {} },
		StopFn:  func() { time.Sleep(time.Hour) },
	}
	lc.Add("stuck", stuck)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	require.NoError(t, lc.Run(ctx))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFuncService(t *testing.T) {
	started := false
	stopped := false
	svc := &FuncService{
		StartFn: func() error {
			started = true
			return nil
		},
		StopFn: func() { stopped = true },
	}

	assert.NoError(t, svc.Start())
	assert.True(t, started)
	svc.Stop()
	assert.True(t, stopped)

	// A nil StopFn is a no-op.
	(&FuncService{StartFn: func() error { return nil }}).Stop()
}
