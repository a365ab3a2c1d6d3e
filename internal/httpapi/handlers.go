package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cory-johannsen/hexrooms/internal/discovery"
	"github.com/cory-johannsen/hexrooms/internal/protocol"
	"github.com/cory-johannsen/hexrooms/internal/room"
)

type createRoomRequest struct {
	Name string             `json:"name"`
	Conf *protocol.RoomConf `json:"conf,omitempty"`
}

type inviteResponse struct {
	Key       string     `json:"key"`
	User      string     `json:"user"`
	RoomID    string     `json:"room_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type createRoomResponse struct {
	Room   protocol.RoomSummary `json:"room"`
	Invite inviteResponse       `json:"invite"`
}

type issueInviteRequest struct {
	User string `json:"user"`
}

const (
	defaultMatchLimit = 20
	maxMatchLimit     = 100
)

type matchResponse struct {
	RoomID    string              `json:"room_id"`
	Layout    string              `json:"layout"`
	Black     string              `json:"black"`
	White     string              `json:"white"`
	Winner    string              `json:"winner"`
	Loser     string              `json:"loser"`
	Cause     protocol.EndedCause `json:"cause"`
	Moves     int                 `json:"moves"`
	StartedAt time.Time           `json:"started_at"`
	EndedAt   time.Time           `json:"ended_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{}
	code := http.StatusOK
	for name, check := range a.health {
		if err := check(r.Context()); err != nil {
			status[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}
	writeJSON(w, code, status)
}

func (a *API) snapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.server.Snapshot())
}

func (a *API) listRooms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.server.Snapshot().Rooms)
}

func (a *API) getRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := a.server.Room(chi.URLParam(r, "roomID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rm.Summary())
}

func (a *API) createRoom(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req createRoomRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
	}
	summary, inv, err := a.server.CreateRoom(user, req.Name, req.Conf)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createRoomResponse{Room: summary, Invite: toInviteResponse(inv.Key, inv.UserID, inv.RoomID, inv.ExpiresAt)})
}

func (a *API) issueInvite(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req issueInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.User == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user is required"})
		return
	}
	inv, err := a.server.IssueInvite(user, chi.URLParam(r, "roomID"), req.User)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInviteResponse(inv.Key, inv.UserID, inv.RoomID, inv.ExpiresAt))
}

func toInviteResponse(key, user, roomID string, expires time.Time) inviteResponse {
	resp := inviteResponse{Key: key, User: user, RoomID: roomID}
	if !expires.IsZero() {
		e := expires.UTC()
		resp.ExpiresAt = &e
	}
	return resp
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	user := r.Header.Get(UserHeader)
	if user == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing " + UserHeader})
		return "", false
	}
	return user, true
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, room.ErrRoomNotFound), errors.Is(err, discovery.ErrServerNotFound):
		code = http.StatusNotFound
	case errors.Is(err, room.ErrUnauthorized):
		code = http.StatusForbidden
	case errors.Is(err, room.ErrInvalidConf):
		code = http.StatusBadRequest
	}
	if code == http.StatusInternalServerError {
		a.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) listMatches(w http.ResponseWriter, r *http.Request) {
	if a.history == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "match history is disabled"})
		return
	}
	limit := defaultMatchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxMatchLimit {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be between 1 and " + strconv.Itoa(maxMatchLimit)})
			return
		}
		limit = n
	}
	recs, err := a.history.ListByUser(r.Context(), chi.URLParam(r, "user"), limit)
	if err != nil {
		a.writeError(w, err)
		return
	}
	out := make([]matchResponse, len(recs))
	for i, rec := range recs {
		out[i] = matchResponse{
			RoomID: rec.RoomID, Layout: rec.Layout,
			Black: rec.Black, White: rec.White,
			Winner: rec.Winner, Loser: rec.Loser,
			Cause: rec.Cause, Moves: rec.Moves,
			StartedAt: rec.StartedAt.UTC(), EndedAt: rec.EndedAt.UTC(),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) listServers(w http.ResponseWriter, r *http.Request) {
	if a.servers == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "server directory is disabled"})
		return
	}
	servers, err := a.servers.ListLive(r.Context(), time.Now().Add(-a.liveWindow))
	if err != nil {
		a.writeError(w, err)
		return
	}
	if servers == nil {
		servers = []protocol.GameServer{}
	}
	writeJSON(w, http.StatusOK, servers)
}

func (a *API) getServer(w http.ResponseWriter, r *http.Request) {
	if a.servers == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "server directory is disabled"})
		return
	}
	gs, err := a.servers.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gs)
}
