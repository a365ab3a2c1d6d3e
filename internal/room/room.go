// Package room runs game rooms. Each room is an actor: one goroutine owns
// the room's state and the game engine, and every join, command, departure
// and timer expiry reaches it as a message on its inbox.
package room

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hexrooms/internal/protocol"
)

// Settings are the server-wide knobs shared by every room.
type Settings struct {
	// DisconnectGrace is how long a seated player may stay disconnected
	// during play before losing on timeout.
	DisconnectGrace time.Duration
	// IdleTimeout closes an empty waiting room; zero keeps it open.
	IdleTimeout time.Duration
	// MaxChatLength caps chat content in runes.
	MaxChatLength int
	// OutboxSize is the per-member event buffer; a member that fills it is dropped.
	OutboxSize int
	// InboxSize is the actor's message buffer.
	InboxSize int
	// ArchiveTimeout bounds each Archive call.
	ArchiveTimeout time.Duration
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		DisconnectGrace: 30 * time.Second,
		IdleTimeout:     10 * time.Minute,
		MaxChatLength:   500,
		OutboxSize:      64,
		InboxSize:       64,
		ArchiveTimeout:  5 * time.Second,
	}
}

// Params describe a new room.
type Params struct {
	ID    string
	Name  string
	Owner string
	Conf  protocol.RoomConf
}

// Room is a single game room. Its exported methods are safe for concurrent use.
type Room struct {
	id       string
	name     string
	owner    string
	settings Settings
	games    Games
	archiver Archiver
	logger   *zap.Logger
	now      func() time.Time
	onClose  func(*Room)

	inbox     chan message
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	summaryMu sync.RWMutex
	summary   protocol.RoomSummary

	// Everything below is owned by the actor goroutine.
	state roomState
}

// New validates p.Conf and starts the room's actor.
//
// Precondition: p.ID and p.Owner must be non-empty; games must be non-nil.
// Postcondition: Returns a running room in the waiting phase, or an error
// wrapping ErrInvalidConf.
func New(p Params, settings Settings, games Games, opts ...Option) (*Room, error) {
	if err := ValidateConf(p.Conf, games); err != nil {
		return nil, err
	}
	r := &Room{
		id:       p.ID,
		name:     p.Name,
		owner:    p.Owner,
		settings: settings,
		games:    games,
		archiver: discardArchiver{},
		logger:   zap.NewNop(),
		now:      time.Now,
		onClose:  func(*Room) {},
		inbox:    make(chan message, max(settings.InboxSize, 1)),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("room_id", r.id))
	r.state = newRoomState(p.Conf)
	r.publishSummary()
	r.armIdle()

	go r.run()
	return r, nil
}

// Option configures a Room.
type Option func(*Room)

// WithLogger sets the room logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Room) { r.logger = logger }
}

// WithArchiver sets where finished games are recorded.
func WithArchiver(a Archiver) Option {
	return func(r *Room) { r.archiver = a }
}

// WithClock replaces time.Now for match timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Room) { r.now = now }
}

// WithOnClose registers a callback run once after the actor exits.
func WithOnClose(fn func(*Room)) Option {
	return func(r *Room) { r.onClose = fn }
}

// ID returns the room id.
func (r *Room) ID() string { return r.id }

// Owner returns the owner's user id.
func (r *Room) Owner() string { return r.owner }

// Done is closed once the room has shut down.
func (r *Room) Done() <-chan struct{} { return r.done }

// Summary returns the room's current external representation.
func (r *Room) Summary() protocol.RoomSummary {
	r.summaryMu.RLock()
	defer r.summaryMu.RUnlock()
	s := r.summary
	s.Users = append([]string(nil), r.summary.Users...)
	return s
}

// Join admits user, whose invite has already been consumed.
//
// Postcondition: On success the returned member's outbox already holds
// Connected, followed by Started when a game is in progress. Fails with
// ErrBanned, ErrAlreadyConnected, ErrRoomFull or ErrRoomClosed.
func (r *Room) Join(ctx context.Context, user string) (*Member, error) {
	reply := make(chan joinResult, 1)
	if err := r.post(ctx, joinMsg{user: user, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		return res.member, res.err
	case <-r.done:
		return nil, ErrRoomClosed
	case <-ctx.Done():
		go r.discardJoin(reply)
		return nil, ctx.Err()
	}
}

// discardJoin removes a member admitted after its caller gave up waiting.
func (r *Room) discardJoin(reply <-chan joinResult) {
	select {
	case res := <-reply:
		if res.member != nil {
			r.Leave(res.member)
		}
	case <-r.done:
	}
}

// Submit queues cmd from member. Its effects are delivered as events.
func (r *Room) Submit(ctx context.Context, m *Member, cmd protocol.Command) error {
	return r.post(ctx, commandMsg{member: m, cmd: cmd})
}

// Leave disconnects member. It is a no-op once the member has been removed.
func (r *Room) Leave(m *Member) {
	_ = r.post(context.Background(), leaveMsg{member: m})
}

// Close shuts the room down and closes every member's outbox.
func (r *Room) Close() {
	r.closeOnce.Do(func() { close(r.quit) })
	<-r.done
}

func (r *Room) post(ctx context.Context, msg message) error {
	select {
	case <-r.done:
		return ErrRoomClosed
	default:
	}
	select {
	case r.inbox <- msg:
		return nil
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// postTimer is used by time.AfterFunc callbacks.
func (r *Room) postTimer(msg timerMsg) {
	_ = r.post(context.Background(), msg)
}

func (r *Room) publishSummary() {
	st := &r.state
	s := protocol.RoomSummary{
		ID:    r.id,
		Name:  r.name,
		Owner: r.owner,
		Users: append([]string{}, st.order...),
		Conf:  st.conf,
		Phase: st.phase,
	}
	if st.game != nil {
		s.Black = st.game.Black()
		s.White = st.game.White()
	}
	r.summaryMu.Lock()
	r.summary = s
	r.summaryMu.Unlock()
}
