package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hexrooms/internal/protocol"
)

// ServerStore persists published snapshots.
type ServerStore interface {
	Upsert(ctx context.Context, gs protocol.GameServer) error
	Remove(ctx context.Context, name string) error
}

// ErrServerNotFound is returned by a ServerDirectory for an unknown name.
var ErrServerNotFound = errors.New("game server not found")

// ServerDirectory reads snapshots published by every server sharing a store.
type ServerDirectory interface {
	Get(ctx context.Context, name string) (protocol.GameServer, error)
	ListLive(ctx context.Context, since time.Time) ([]protocol.GameServer, error)
}

// Publisher writes the snapshot to a ServerStore on every tick.
type Publisher struct {
	store    ServerStore
	snapshot SnapshotFunc
	timeout  time.Duration
	logger   *zap.Logger
}

// NewPublisher creates a Publisher. timeout bounds each store call.
func NewPublisher(store ServerStore, snapshot SnapshotFunc, timeout time.Duration, logger *zap.Logger) *Publisher {
	return &Publisher{store: store, snapshot: snapshot, timeout: timeout, logger: logger}
}

// Publish stores the current snapshot.
func (p *Publisher) Publish(ctx context.Context) error {
	ctx, cancel := p.bound(ctx)
	defer cancel()
	gs := p.snapshot()
	if err := p.store.Upsert(ctx, gs); err != nil {
		return fmt.Errorf("publishing snapshot: %w", err)
	}
	p.logger.Debug("snapshot published", zap.String("server", gs.Name), zap.Int("rooms", len(gs.Rooms)))
	return nil
}

// Tick publishes and logs failures; it is meant for a periodic runner.
func (p *Publisher) Tick(ctx context.Context) {
	if err := p.Publish(ctx); err != nil {
		p.logger.Warn("snapshot publish failed", zap.Error(err))
	}
}

// Withdraw removes this server's record.
func (p *Publisher) Withdraw(ctx context.Context) error {
	ctx, cancel := p.bound(ctx)
	defer cancel()
	name := p.snapshot().Name
	if err := p.store.Remove(ctx, name); err != nil {
		return fmt.Errorf("withdrawing %q: %w", name, err)
	}
	return nil
}

func (p *Publisher) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}
