// Command gameserver hosts hex board game rooms: an HTTP API to create rooms
// and issue invites, a websocket endpoint for play, and a discovery gRPC
// service.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hexrooms/internal/config"
	"github.com/cory-johannsen/hexrooms/internal/observability"
	"github.com/cory-johannsen/hexrooms/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	layoutsDir := flag.String("layouts", "", "override server.layouts_dir")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *layoutsDir != "" {
		cfg.Server.LayoutsDir = *layoutsDir
	}

	logger, err := observability.NewLogger(cfg.Logging, cfg.Server.Name)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	app, cleanup, err := initializeApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("initializing game server", zap.Error(err))
	}
	defer cleanup()

	lifecycle := server.NewLifecycle(logger)
	app.Register(lifecycle)

	logger.Info("game server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("http_addr", cfg.HTTP.Addr()),
		zap.String("grpc_addr", cfg.Discovery.Addr()),
		zap.String("advertise_addr", cfg.Server.AdvertiseAddr),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Error("server error", zap.Error(err))
	}
}
