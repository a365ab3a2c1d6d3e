package room

import (
	"errors"
	"sync"
)

// errOutboxFull is returned by push when the client is not draining its events.
var errOutboxFull = errors.New("outbox full")

// Member is one user's connection to a room. The room pushes encoded events
// into its outbox; the transport drains Events.
type Member struct {
	user   string
	out    chan []byte
	mu     sync.Mutex
	closed bool
}

func newMember(user string, size int) *Member {
	if size <= 0 {
		size = 64
	}
	return &Member{user: user, out: make(chan []byte, size)}
}

// User returns the member's user id.
func (m *Member) User() string { return m.user }

// Events returns the outbox. It is closed when the member leaves, is banned,
// is dropped for falling behind, or the room closes.
func (m *Member) Events() <-chan []byte { return m.out }

// Closed reports whether the outbox has been closed.
func (m *Member) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Member) push(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrRoomClosed
	}
	select {
	case m.out <- data:
		return nil
	default:
		return errOutboxFull
	}
}

func (m *Member) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.out)
	}
}
