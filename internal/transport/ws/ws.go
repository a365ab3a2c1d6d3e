// Package ws carries client sessions over websocket text frames, one JSON
// message per frame.
package ws

import (
	"context"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/cory-johannsen/hexrooms/internal/gameserver"
)

// Sessions runs a client session over a connection.
type Sessions interface {
	Serve(ctx context.Context, c gameserver.Conn, roomID string) error
}

// Options tune the websocket endpoint.
type Options struct {
	// OriginPatterns are passed to websocket.AcceptOptions.
	OriginPatterns []string
	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration
	// ReadLimit caps a single frame in bytes.
	ReadLimit int64
}

// Conn adapts a websocket connection to gameserver.Conn.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
}

// NewConn wraps ws.
func NewConn(ws *websocket.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{ws: ws, writeTimeout: writeTimeout}
}

// Read returns the next frame. A normal close from the client reads as io.EOF.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.ws.Read(ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

// Write sends data as one text frame.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}
	return c.ws.Write(ctx, websocket.MessageText, data)
}

// Handler upgrades the request and serves one session on it. roomID extracts
// the room the connection is bound to; it may return "" to let the invite
// pick the room.
func Handler(sessions Sessions, roomID func(*http.Request) string, opts Options, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := roomID(r)
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			logger.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.CloseNow()
		if opts.ReadLimit > 0 {
			conn.SetReadLimit(opts.ReadLimit)
		}

		err = sessions.Serve(r.Context(), NewConn(conn, opts.WriteTimeout), id)
		if err != nil {
			logger.Info("session ended with error",
				zap.String("room_id", id),
				zap.String("remote", r.RemoteAddr),
				zap.Error(err),
			)
			conn.Close(websocket.StatusInternalError, "session error")
			return
		}
		conn.Close(websocket.StatusNormalClosure, "bye")
	}
}
