package room

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hexrooms/internal/game/board"
	"github.com/cory-johannsen/hexrooms/internal/protocol"
)

type message interface{ isMessage() }

type joinMsg struct {
	user  string
	reply chan joinResult
}

type joinResult struct {
	member *Member
	err    error
}

type commandMsg struct {
	member *Member
	cmd    protocol.Command
}

type leaveMsg struct {
	member *Member
}

type timerKind uint8

const (
	timerTurn timerKind = iota + 1
	timerGrace
	timerIdle
)

type timerMsg struct {
	kind timerKind
	gen  uint64
	user string
}

func (joinMsg) isMessage()    {}
func (commandMsg) isMessage() {}
func (leaveMsg) isMessage()   {}
func (timerMsg) isMessage()   {}

// timerSlot holds at most one pending timer. Bumping gen on every stop makes
// an expiry that was already queued before the stop recognisably stale.
type timerSlot struct {
	t   *time.Timer
	gen uint64
}

func (s *timerSlot) stop() {
	if s.t != nil {
		s.t.Stop()
		s.t = nil
	}
	s.gen++
}

func (s *timerSlot) matches(gen uint64) bool {
	return s.t != nil && s.gen == gen
}

type roomState struct {
	phase     string
	conf      protocol.RoomConf
	members   map[string]*Member
	order     []string
	banned    map[string]bool
	game      Engine
	startedAt time.Time
	turn      timerSlot
	idle      timerSlot
	grace     map[string]*timerSlot
	drops     []*Member
	closing   bool
}

func newRoomState(conf protocol.RoomConf) roomState {
	return roomState{
		phase:   protocol.PhaseWaiting,
		conf:    conf,
		members: make(map[string]*Member),
		banned:  make(map[string]bool),
		grace:   make(map[string]*timerSlot),
	}
}

func (r *Room) run() {
	defer r.shutdown()
	for {
		select {
		case <-r.quit:
			return
		case msg := <-r.inbox:
			r.handle(msg)
			r.flushDrops()
			r.publishSummary()
			if r.state.closing {
				return
			}
		}
	}
}

func (r *Room) shutdown() {
	st := &r.state
	st.turn.stop()
	st.idle.stop()
	for user, slot := range st.grace {
		slot.stop()
		delete(st.grace, user)
	}
	for _, m := range st.members {
		m.close()
	}
	close(r.done)
	r.logger.Info("room closed", zap.String("phase", st.phase))
	r.onClose(r)
}

func (r *Room) handle(msg message) {
	switch m := msg.(type) {
	case joinMsg:
		member, err := r.join(m.user)
		m.reply <- joinResult{member: member, err: err}
	case commandMsg:
		r.command(m.member, m.cmd)
	case leaveMsg:
		if r.state.members[m.member.user] == m.member {
			r.remove(m.member, "disconnected", true)
		}
	case timerMsg:
		r.expire(m)
	}
}

func (r *Room) join(user string) (*Member, error) {
	st := &r.state
	switch {
	case user == "":
		return nil, errors.New("joining: empty user id")
	case st.banned[user]:
		return nil, ErrBanned
	case st.members[user] != nil:
		return nil, ErrAlreadyConnected
	case len(st.members) >= st.conf.MaxUsers && !r.seated(user):
		return nil, ErrRoomFull
	}

	m := newMember(user, r.settings.OutboxSize)
	st.members[user] = m
	st.order = append(st.order, user)
	st.idle.stop()
	if slot, ok := st.grace[user]; ok {
		slot.stop()
		delete(st.grace, user)
	}

	r.broadcast(protocol.Entered{User: user}, user)
	r.publishSummary()
	r.send(m, protocol.Connected{Room: r.Summary()})
	if st.phase == protocol.PhaseStarted {
		r.send(m, protocol.StartedFromGame(st.game))
	}
	r.logger.Info("user joined", zap.String("user", user), zap.Int("users", len(st.members)))
	return m, nil
}

func (r *Room) command(m *Member, cmd protocol.Command) {
	if r.state.members[m.user] != m {
		return
	}
	var err error
	switch c := cmd.(type) {
	case protocol.Connect:
		err = ErrAlreadyConnected
	case protocol.Move:
		err = r.move(m.user, c)
	case protocol.Chat:
		err = r.chat(m.user, c.Content)
	case protocol.Conf:
		err = r.configure(m.user, c.Conf)
	case protocol.Start:
		err = r.start(m.user)
	case protocol.Ban:
		err = r.ban(m.user, c.User)
	case protocol.Gg:
		err = r.resign(m.user)
	default:
		err = fmt.Errorf("unsupported command %q", cmd.Type())
	}
	if err != nil {
		r.logger.Debug("command rejected",
			zap.String("user", m.user),
			zap.String("command", cmd.Type()),
			zap.Error(err),
		)
		r.send(m, protocol.Error{Message: err.Error()})
	}
}

func (r *Room) move(user string, c protocol.Move) error {
	st := &r.state
	if st.phase != protocol.PhaseStarted {
		return fmt.Errorf("%w: no game in progress", ErrWrongPhase)
	}
	if !r.seated(user) {
		return fmt.Errorf("%w: only players may move", ErrUnauthorized)
	}
	out, err := st.game.Play(user, c.Start, c.End, c.Dir)
	if err != nil {
		return err
	}
	r.broadcast(protocol.Moved{Player: out.Mover.String(), Start: c.Start, End: c.End, Dir: c.Dir}, "")
	if out.Defeated {
		loser := out.Mover.Opponent()
		r.end(st.game.PlayerOf(loser), loser, protocol.CauseLostStones)
		return nil
	}
	r.armTurn()
	return nil
}

func (r *Room) chat(user, content string) error {
	if content == "" {
		return fmt.Errorf("%w: empty message", ErrInvalidChat)
	}
	if limit := r.settings.MaxChatLength; limit > 0 && utf8.RuneCountInString(content) > limit {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidChat, limit)
	}
	r.broadcast(protocol.Chated{User: user, Content: content}, "")
	return nil
}

func (r *Room) configure(user string, conf protocol.RoomConf) error {
	st := &r.state
	if user != r.owner {
		return fmt.Errorf("%w: only the owner may change the configuration", ErrUnauthorized)
	}
	if st.phase != protocol.PhaseWaiting {
		return fmt.Errorf("%w: configuration is locked once the game starts", ErrWrongPhase)
	}
	if err := ValidateConf(conf, r.games); err != nil {
		return err
	}
	if conf.MaxUsers < len(st.members) {
		return fmt.Errorf("%w: max_users %d is below the %d connected users", ErrInvalidConf, conf.MaxUsers, len(st.members))
	}
	st.conf = conf
	r.broadcast(protocol.Confed{Conf: conf}, "")
	return nil
}

func (r *Room) start(user string) error {
	st := &r.state
	if user != r.owner {
		return fmt.Errorf("%w: only the owner may start the game", ErrUnauthorized)
	}
	if st.phase != protocol.PhaseWaiting {
		return fmt.Errorf("%w: game already started", ErrWrongPhase)
	}
	if len(st.members) < 2 {
		return fmt.Errorf("%w: at least 2 users are required to start", ErrWrongPhase)
	}
	var white string
	for _, u := range st.order {
		if u != r.owner {
			white = u
			break
		}
	}
	game, err := r.games.NewEngine(st.conf.Layout, r.owner, white)
	if err != nil {
		return fmt.Errorf("starting game: %w", err)
	}
	st.game = game
	st.phase = protocol.PhaseStarted
	st.startedAt = r.now()
	st.idle.stop()

	r.broadcast(protocol.StartedFromGame(game), "")
	r.armTurn()
	r.logger.Info("game started",
		zap.String("layout", st.conf.Layout),
		zap.String("black", game.Black()),
		zap.String("white", game.White()),
	)
	return nil
}

func (r *Room) ban(user, target string) error {
	st := &r.state
	if user != r.owner {
		return fmt.Errorf("%w: only the owner may ban", ErrUnauthorized)
	}
	if target == "" || target == r.owner {
		return errors.New("cannot ban the room owner")
	}
	st.banned[target] = true
	r.broadcast(protocol.Banned{User: target}, "")
	if m := st.members[target]; m != nil {
		r.remove(m, "banned", false)
	}
	if st.phase == protocol.PhaseStarted {
		if color, ok := st.game.ColorOf(target); ok {
			r.end(target, color, protocol.CauseGg)
		}
	}
	r.logger.Info("user banned", zap.String("user", target))
	return nil
}

func (r *Room) resign(user string) error {
	st := &r.state
	if st.phase != protocol.PhaseStarted {
		return fmt.Errorf("%w: no game in progress", ErrWrongPhase)
	}
	color, ok := st.game.ColorOf(user)
	if !ok {
		return fmt.Errorf("%w: only players may resign", ErrUnauthorized)
	}
	r.end(user, color, protocol.CauseGg)
	return nil
}

// end moves the room to its terminal phase. It emits exactly one Ended.
func (r *Room) end(loser string, color board.Color, cause protocol.EndedCause) {
	st := &r.state
	if st.phase != protocol.PhaseStarted {
		return
	}
	st.phase = protocol.PhaseEnded
	st.turn.stop()
	for user, slot := range st.grace {
		slot.stop()
		delete(st.grace, user)
	}

	r.broadcast(protocol.Ended{Loser: loser, Color: color.String(), Cause: cause}, "")
	r.logger.Info("game ended",
		zap.String("loser", loser),
		zap.Stringer("cause", cause),
		zap.Int("moves", st.game.Moves()),
	)
	r.archive(MatchRecord{
		RoomID:    r.id,
		Layout:    st.conf.Layout,
		Black:     st.game.Black(),
		White:     st.game.White(),
		Winner:    st.game.PlayerOf(color.Opponent()),
		Loser:     loser,
		Cause:     cause,
		Moves:     st.game.Moves(),
		StartedAt: st.startedAt,
		EndedAt:   r.now(),
	})
	if len(st.members) == 0 {
		st.closing = true
	}
}

// remove disconnects m. A seated player leaving mid-game starts the grace
// timer when grace is set.
func (r *Room) remove(m *Member, reason string, grace bool) {
	st := &r.state
	delete(st.members, m.user)
	for i, u := range st.order {
		if u == m.user {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}
	m.close()
	r.broadcast(protocol.Left{User: m.user}, "")
	r.logger.Info("user left", zap.String("user", m.user), zap.String("reason", reason))

	if grace && st.phase == protocol.PhaseStarted && r.seated(m.user) {
		r.armGrace(m.user)
	}
	if len(st.members) == 0 {
		switch st.phase {
		case protocol.PhaseWaiting:
			r.armIdle()
		case protocol.PhaseEnded:
			st.closing = true
		}
	}
}

func (r *Room) flushDrops() {
	st := &r.state
	for len(st.drops) > 0 {
		m := st.drops[0]
		st.drops = st.drops[1:]
		if st.members[m.user] == m {
			r.remove(m, "outbox full", true)
		}
	}
}

func (r *Room) expire(t timerMsg) {
	st := &r.state
	switch t.kind {
	case timerTurn:
		if !st.turn.matches(t.gen) || st.phase != protocol.PhaseStarted {
			return
		}
		st.turn.t = nil
		color := st.game.Turn()
		r.end(st.game.PlayerOf(color), color, protocol.CauseTimeout)
	case timerGrace:
		slot, ok := st.grace[t.user]
		if !ok || !slot.matches(t.gen) {
			return
		}
		delete(st.grace, t.user)
		if st.phase != protocol.PhaseStarted || st.members[t.user] != nil {
			return
		}
		color, _ := st.game.ColorOf(t.user)
		r.end(t.user, color, protocol.CauseTimeout)
	case timerIdle:
		if !st.idle.matches(t.gen) || st.phase != protocol.PhaseWaiting || len(st.members) > 0 {
			return
		}
		st.idle.t = nil
		r.logger.Info("closing idle room")
		st.closing = true
	}
}

func (r *Room) seated(user string) bool {
	if r.state.game == nil {
		return false
	}
	_, ok := r.state.game.ColorOf(user)
	return ok
}

func (r *Room) arm(slot *timerSlot, d time.Duration, msg timerMsg) {
	slot.stop()
	msg.gen = slot.gen
	slot.t = time.AfterFunc(d, func() { r.postTimer(msg) })
}

func (r *Room) armTurn() {
	st := &r.state
	if st.conf.TurnTimeout <= 0 {
		st.turn.stop()
		return
	}
	r.arm(&st.turn, time.Duration(st.conf.TurnTimeout)*time.Second, timerMsg{kind: timerTurn})
}

func (r *Room) armGrace(user string) {
	st := &r.state
	if r.settings.DisconnectGrace <= 0 {
		color, _ := st.game.ColorOf(user)
		r.end(user, color, protocol.CauseTimeout)
		return
	}
	slot, ok := st.grace[user]
	if !ok {
		slot = &timerSlot{}
		st.grace[user] = slot
	}
	r.arm(slot, r.settings.DisconnectGrace, timerMsg{kind: timerGrace, user: user})
}

func (r *Room) armIdle() {
	st := &r.state
	if r.settings.IdleTimeout <= 0 || st.phase != protocol.PhaseWaiting || len(st.members) > 0 {
		return
	}
	r.arm(&st.idle, r.settings.IdleTimeout, timerMsg{kind: timerIdle})
}

func (r *Room) broadcast(ev protocol.Event, except string) {
	data, err := protocol.EncodeEvent(ev)
	if err != nil {
		r.logger.Error("encoding event", zap.String("event", ev.Type()), zap.Error(err))
		return
	}
	for _, user := range r.state.order {
		if user == except {
			continue
		}
		r.deliver(r.state.members[user], data)
	}
}

func (r *Room) send(m *Member, ev protocol.Event) {
	data, err := protocol.EncodeEvent(ev)
	if err != nil {
		r.logger.Error("encoding event", zap.String("event", ev.Type()), zap.Error(err))
		return
	}
	r.deliver(m, data)
}

func (r *Room) deliver(m *Member, data []byte) {
	if err := m.push(data); err != nil {
		if errors.Is(err, errOutboxFull) {
			r.logger.Warn("dropping slow member", zap.String("user", m.user))
			r.state.drops = append(r.state.drops, m)
		}
	}
}

func (r *Room) archive(rec MatchRecord) {
	timeout := r.settings.ArchiveTimeout
	if timeout <= 0 {
		timeout = DefaultSettings().ArchiveTimeout
	}
	archiver, logger := r.archiver, r.logger
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := archiver.Archive(ctx, rec); err != nil {
			logger.Warn("archiving match failed", zap.Error(err))
		}
	}()
}
