//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/cory-johannsen/hexrooms/internal/config"
	"github.com/cory-johannsen/hexrooms/internal/gameserver"
)

func initializeApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, func(), error) {
	wire.Build(
		provideLayouts,
		provideGames,
		providePool,
		provideArchiver,
		provideInvites,
		provideRooms,
		provideIdentity,
		gameserver.NewServer,
		provideAPI,
		provideDiscovery,
		provideGRPCServer,
		providePublisher,
		provideTicker,
		newApp,
	)
	return nil, nil, nil
}
