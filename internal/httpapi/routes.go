// Package httpapi exposes room management and the websocket endpoint over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/cory-johannsen/hexrooms/internal/discovery"
	"github.com/cory-johannsen/hexrooms/internal/gameserver"
	"github.com/cory-johannsen/hexrooms/internal/room"
	"github.com/cory-johannsen/hexrooms/internal/transport/ws"
)

// UserHeader carries the caller's user id. Authentication happens upstream.
const UserHeader = "X-User-ID"

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// MatchHistory lists archived games a user played in, newest first.
type MatchHistory interface {
	ListByUser(ctx context.Context, user string, limit int) ([]room.MatchRecord, error)
}

// API holds the handlers' dependencies.
type API struct {
	server  *gameserver.Server
	health  map[string]HealthCheck
	history MatchHistory
	servers discovery.ServerDirectory
	// liveWindow is how recent a server's last ping must be to be listed.
	liveWindow time.Duration
	ws         ws.Options
	logger     *zap.Logger
}

// New creates the API. health may be nil.
func New(server *gameserver.Server, wsOpts ws.Options, health map[string]HealthCheck, logger *zap.Logger) *API {
	return &API{server: server, health: health, ws: wsOpts, logger: logger}
}

// WithServers enables GET /servers and GET /servers/{name}. A server is
// listed while its last ping is within liveWindow.
func (a *API) WithServers(dir discovery.ServerDirectory, liveWindow time.Duration) *API {
	a.servers = dir
	a.liveWindow = liveWindow
	return a
}

// WithHistory enables GET /users/{user}/matches.
func (a *API) WithHistory(h MatchHistory) *API {
	a.history = h
	return a
}

// Routes builds the router.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.logRequests)

	r.Get("/healthz", a.healthz)
	r.Get("/snapshot", a.snapshot)
	r.Get("/ws", ws.Handler(a.server, func(*http.Request) string { return "" }, a.ws, a.logger))

	r.Get("/users/{user}/matches", a.listMatches)
	r.Get("/servers", a.listServers)
	r.Get("/servers/{name}", a.getServer)

	r.Route("/rooms", func(r chi.Router) {
		r.Get("/", a.listRooms)
		r.Post("/", a.createRoom)
		r.Route("/{roomID}", func(r chi.Router) {
			r.Get("/", a.getRoom)
			r.Post("/invites", a.issueInvite)
			r.Get("/ws", ws.Handler(a.server, func(req *http.Request) string {
				return chi.URLParam(req, "roomID")
			}, a.ws, a.logger))
		})
	})
	return r
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
