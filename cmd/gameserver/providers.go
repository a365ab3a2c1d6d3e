package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/cory-johannsen/hexrooms/internal/config"
	"github.com/cory-johannsen/hexrooms/internal/discovery"
	"github.com/cory-johannsen/hexrooms/internal/game/board"
	"github.com/cory-johannsen/hexrooms/internal/gameserver"
	"github.com/cory-johannsen/hexrooms/internal/httpapi"
	"github.com/cory-johannsen/hexrooms/internal/invite"
	"github.com/cory-johannsen/hexrooms/internal/observability"
	"github.com/cory-johannsen/hexrooms/internal/protocol"
	"github.com/cory-johannsen/hexrooms/internal/room"
	"github.com/cory-johannsen/hexrooms/internal/server"
	"github.com/cory-johannsen/hexrooms/internal/storage/postgres"
	"github.com/cory-johannsen/hexrooms/internal/transport/ws"
)

const (
	healthTimeout  = 2 * time.Second
	storeTimeout   = 5 * time.Second
	shutdownBudget = 5 * time.Second
)

func provideLayouts(cfg config.Config, logger *zap.Logger) (*board.LayoutSet, error) {
	start := time.Now()
	layouts, err := board.LoadLayoutsFromDir(cfg.Server.LayoutsDir)
	if err != nil {
		return nil, err
	}
	if _, ok := layouts.Get(cfg.Rooms.DefaultLayout); !ok {
		return nil, fmt.Errorf("rooms.default_layout %q not found in %s", cfg.Rooms.DefaultLayout, cfg.Server.LayoutsDir)
	}
	logger.Info("layouts loaded",
		zap.Strings("layouts", layouts.IDs()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return layouts, nil
}

func provideGames(layouts *board.LayoutSet) room.Games {
	return room.LayoutGames{Layouts: layouts}
}

// providePool connects to PostgreSQL when database.enabled is set and
// returns a nil pool otherwise.
func providePool(ctx context.Context, cfg config.Config, logger *zap.Logger) (*postgres.Pool, func(), error) {
	if !cfg.Database.Enabled {
		logger.Info("database disabled; matches are not archived and snapshots are not published")
		return nil, func() {}, nil
	}
	start := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database, postgres.WithApplicationName(cfg.Server.Name))
	if err != nil {
		return nil, nil, err
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(start)),
	)
	return pool, pool.Close, nil
}

func provideArchiver(pool *postgres.Pool, logger *zap.Logger) room.Archiver {
	if pool == nil {
		return room.ArchiverFunc(func(_ context.Context, rec room.MatchRecord) error {
			logger.Info("match finished",
				zap.String("room_id", rec.RoomID),
				zap.String("loser", rec.Loser),
				zap.Stringer("cause", rec.Cause),
			)
			return nil
		})
	}
	return postgres.NewMatchRepository(pool.DB())
}

func provideInvites(cfg config.Config, logger *zap.Logger) *invite.Registry {
	return invite.NewRegistry(
		invite.WithTTL(cfg.Invites.TTL),
		invite.WithShards(cfg.Invites.Shards),
		invite.WithLogger(logger),
	)
}

func provideRooms(cfg config.Config, games room.Games, archiver room.Archiver, logger *zap.Logger) *room.Manager {
	rc := cfg.Rooms
	settings := room.Settings{
		DisconnectGrace: rc.DisconnectGrace,
		IdleTimeout:     rc.IdleTimeout,
		MaxChatLength:   rc.MaxChatLength,
		OutboxSize:      rc.OutboxSize,
		InboxSize:       rc.InboxSize,
		ArchiveTimeout:  rc.ArchiveTimeout,
	}
	defaults := protocol.RoomConf{
		Layout:      rc.DefaultLayout,
		TurnTimeout: rc.DefaultTurnTimeout,
		MaxUsers:    rc.DefaultMaxUsers,
	}
	return room.NewManager(settings, games, defaults,
		room.WithManagerArchiver(archiver),
		room.WithManagerLogger(logger),
	)
}

func provideIdentity(cfg config.Config) gameserver.Identity {
	return gameserver.Identity{Name: cfg.Server.Name, Addr: cfg.Server.AdvertiseAddr}
}

func provideAPI(cfg config.Config, srv *gameserver.Server, pool *postgres.Pool, logger *zap.Logger) *httpapi.API {
	health := map[string]httpapi.HealthCheck{}
	if pool != nil {
		health["postgres"] = pool.Ping(healthTimeout)
	}
	opts := ws.Options{
		OriginPatterns: cfg.HTTP.OriginPatterns,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		ReadLimit:      cfg.HTTP.ReadLimit,
	}
	api := httpapi.New(srv, opts, health, logger)
	if pool != nil {
		api.WithHistory(postgres.NewMatchRepository(pool.DB()))
		// A server missing three publish ticks is considered gone.
		api.WithServers(postgres.NewServerRepository(pool.DB()), 3*cfg.Discovery.PublishInterval)
	}
	return api
}

func provideDiscovery(cfg config.Config, srv *gameserver.Server, logger *zap.Logger) *discovery.Service {
	return discovery.NewService(srv.Snapshot, cfg.Discovery.WatchInterval, logger)
}

func provideGRPCServer(svc *discovery.Service, logger *zap.Logger) *grpc.Server {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(observability.UnaryServerLogger(logger)),
		grpc.ChainStreamInterceptor(observability.StreamServerLogger(logger)),
	)
	discovery.Register(s, svc)
	return s
}

// providePublisher returns nil when there is no database to publish into.
func providePublisher(pool *postgres.Pool, srv *gameserver.Server, logger *zap.Logger) *discovery.Publisher {
	if pool == nil {
		return nil
	}
	return discovery.NewPublisher(postgres.NewServerRepository(pool.DB()), srv.Snapshot, storeTimeout, logger)
}

func provideTicker(cfg config.Config, invites *invite.Registry, pub *discovery.Publisher, logger *zap.Logger) *server.Ticker {
	t := server.NewTicker(logger)
	t.Every("invite-sweep", cfg.Invites.SweepInterval, func(context.Context) {
		if n := invites.Sweep(time.Now()); n > 0 {
			logger.Debug("expired invites dropped", zap.Int("count", n))
		}
	})
	if pub != nil {
		t.Every("snapshot-publish", cfg.Discovery.PublishInterval, pub.Tick)
	}
	return t
}
