package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/cory-johannsen/hexrooms/internal/config"
	"github.com/cory-johannsen/hexrooms/internal/discovery"
	"github.com/cory-johannsen/hexrooms/internal/httpapi"
	"github.com/cory-johannsen/hexrooms/internal/room"
	"github.com/cory-johannsen/hexrooms/internal/server"
)

// App is the fully wired game server.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	api       *httpapi.API
	grpc      *grpc.Server
	ticker    *server.Ticker
	rooms     *room.Manager
	publisher *discovery.Publisher
}

func newApp(
	cfg config.Config,
	logger *zap.Logger,
	api *httpapi.API,
	grpcServer *grpc.Server,
	ticker *server.Ticker,
	rooms *room.Manager,
	publisher *discovery.Publisher,
) *App {
	return &App{
		cfg:       cfg,
		logger:    logger,
		api:       api,
		grpc:      grpcServer,
		ticker:    ticker,
		rooms:     rooms,
		publisher: publisher,
	}
}

// Register adds every service to lc. Services stop in reverse order: HTTP
// first so no new rooms appear, then rooms, then the ticker, and only then is
// the snapshot withdrawn, so no publish tick can follow the withdraw.
func (a *App) Register(lc *server.Lifecycle) {
	lc.Add("grpc", &server.FuncService{
		StartFn: func() error {
			lis, err := net.Listen("tcp", a.cfg.Discovery.Addr())
			if err != nil {
				return fmt.Errorf("listening on %s: %w", a.cfg.Discovery.Addr(), err)
			}
			a.logger.Info("discovery gRPC listening", zap.String("addr", lis.Addr().String()))
			return a.grpc.Serve(lis)
		},
		StopFn: a.stopGRPC,
	})

	lc.Add("withdraw", untilStopped(func() {
		if a.publisher == nil {
			return
		}
		if err := a.publisher.Withdraw(context.Background()); err != nil {
			a.logger.Warn("withdrawing snapshot", zap.Error(err))
		}
	}))

	lc.Add("ticker", a.ticker)

	lc.Add("rooms", untilStopped(func() {
		a.logger.Info("closing rooms", zap.Int("rooms", a.rooms.Count()))
		a.rooms.CloseAll()
	}))

	httpServer := &http.Server{
		Addr:              a.cfg.HTTP.Addr(),
		Handler:           a.api.Routes(),
		ReadHeaderTimeout: a.cfg.HTTP.ReadHeaderTimeout,
	}
	lc.Add("http", &server.FuncService{
		StartFn: func() error {
			a.logger.Info("http listening", zap.String("addr", httpServer.Addr))
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		StopFn: func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownBudget)
			defer cancel()
			if err := httpServer.Shutdown(ctx); err != nil {
				a.logger.Warn("http shutdown", zap.Error(err))
			}
		},
	})
}

// untilStopped is a service with no work of its own that runs onStop at
// its place in the shutdown order.
func untilStopped(onStop func()) server.Service {
	stopped := make(chan struct{})
	var once sync.Once
	return &server.FuncService{
		StartFn: func() error {
			<-stopped
			return nil
		},
		StopFn: func() {
			once.Do(func() {
				defer close(stopped)
				onStop()
			})
		},
	}
}

// stopGRPC drains unary calls; Watch streams never finish on their own, so
// the server is stopped hard once the budget runs out.
func (a *App) stopGRPC() {
	done := make(chan struct{})
	go func() {
		a.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownBudget):
		a.grpc.Stop()
	}
}
