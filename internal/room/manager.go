package room

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/hexrooms/internal/protocol"
)

// Manager tracks every open room on this server.
// All methods are safe for concurrent use.
type Manager struct {
	mu          sync.RWMutex
	rooms       map[string]*Room
	settings    Settings
	games       Games
	defaultConf protocol.RoomConf
	archiver    Archiver
	logger      *zap.Logger
	newID       func() string
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerArchiver sets the archiver handed to every room.
func WithManagerArchiver(a Archiver) ManagerOption {
	return func(m *Manager) { m.archiver = a }
}

// WithManagerLogger sets the logger handed to every room.
func WithManagerLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithIDSource replaces the room id generator.
func WithIDSource(next func() string) ManagerOption {
	return func(m *Manager) { m.newID = next }
}

// NewManager creates an empty Manager.
//
// Precondition: games must be non-nil; defaultConf must pass ValidateConf.
func NewManager(settings Settings, games Games, defaultConf protocol.RoomConf, opts ...ManagerOption) *Manager {
	m := &Manager{
		rooms:       make(map[string]*Room),
		settings:    settings,
		games:       games,
		defaultConf: defaultConf,
		archiver:    discardArchiver{},
		logger:      zap.NewNop(),
		newID:       func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DefaultConf returns the configuration new rooms start with.
func (m *Manager) DefaultConf() protocol.RoomConf { return m.defaultConf }

// Create opens a room owned by owner. A nil conf selects the default.
//
// Precondition: owner must be non-empty.
// Postcondition: Returns a running room registered under a fresh id.
func (m *Manager) Create(owner, name string, conf *protocol.RoomConf) (*Room, error) {
	if owner == "" {
		return nil, fmt.Errorf("creating room: owner is required")
	}
	c := m.defaultConf
	if conf != nil {
		c = *conf
	}
	id := m.newID()
	if name == "" {
		name = owner + "'s room"
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rooms[id]; exists {
		return nil, fmt.Errorf("creating room: id %q already in use", id)
	}
	r, err := New(Params{ID: id, Name: name, Owner: owner, Conf: c}, m.settings, m.games,
		WithLogger(m.logger),
		WithArchiver(m.archiver),
		WithOnClose(m.forget),
	)
	if err != nil {
		return nil, err
	}
	m.rooms[id] = r
	m.logger.Info("room created", zap.String("room_id", id), zap.String("owner", owner))
	return r, nil
}

// Get returns the room with the given id.
func (m *Manager) Get(id string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRoomNotFound, id)
	}
	return r, nil
}

// All returns the open rooms ordered by id.
func (m *Manager) All() []*Room {
	m.mu.RLock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Count returns the number of open rooms.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// CloseAll shuts every room down.
func (m *Manager) CloseAll() {
	for _, r := range m.All() {
		r.Close()
	}
}

func (m *Manager) forget(r *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rooms[r.id] == r {
		delete(m.rooms, r.id)
	}
}
