// Package invite issues single-use keys that bind a user to a room.
//
// A key is handed to the user out of band (typically over the HTTP API) and
// redeemed exactly once when the user's connection sends Connect.
package invite

import (
	"encoding/hex"
	"errors"
	"fmt"
	"hash/maphash"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// ErrInvalidInvite is returned for unknown, consumed, expired or mismatched keys.
var ErrInvalidInvite = errors.New("invalid invite")

// DefaultShards is the shard count used when none is configured.
const DefaultShards = 16

const maxIssueAttempts = 4

// Invite is a pending permission for one user to join one room.
type Invite struct {
	Key    string
	UserID string
	RoomID string
	// ExpiresAt is zero when the invite never expires.
	ExpiresAt time.Time
}

func (i Invite) expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

type shard struct {
	mu      sync.Mutex
	pending map[string]Invite
}

// Registry holds pending invites. All methods are safe for concurrent use.
// Keys are spread over independently locked shards.
type Registry struct {
	shards []*shard
	seed   maphash.Seed
	ttl    time.Duration
	now    func() time.Time
	newKey func() string
	logger *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithTTL sets how long an issued invite stays valid. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.ttl = ttl }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithKeySource replaces the random key generator.
func WithKeySource(next func() string) Option {
	return func(r *Registry) { r.newKey = next }
}

// WithShards sets the number of shards; values below 1 are ignored.
func WithShards(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.shards = newShards(n)
		}
	}
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		shards: newShards(DefaultShards),
		seed:   maphash.MakeSeed(),
		now:    time.Now,
		newKey: func() string { return uuid.NewString() },
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func newShards(n int) []*shard {
	out := make([]*shard, n)
	for i := range out {
		out[i] = &shard{pending: make(map[string]Invite)}
	}
	return out
}

func (r *Registry) shardFor(key string) *shard {
	return r.shards[maphash.String(r.seed, key)%uint64(len(r.shards))]
}

// Issue creates a pending invite for userID to join roomID.
//
// Precondition: userID and roomID must be non-empty.
// Postcondition: Returns an invite whose key differs from every pending key.
func (r *Registry) Issue(userID, roomID string) (Invite, error) {
	if userID == "" || roomID == "" {
		return Invite{}, fmt.Errorf("issuing invite: user and room are required")
	}
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		inv := Invite{Key: r.newKey(), UserID: userID, RoomID: roomID}
		if r.ttl > 0 {
			inv.ExpiresAt = r.now().Add(r.ttl)
		}
		s := r.shardFor(inv.Key)
		s.mu.Lock()
		if _, taken := s.pending[inv.Key]; taken {
			s.mu.Unlock()
			continue
		}
		s.pending[inv.Key] = inv
		s.mu.Unlock()

		r.logger.Debug("invite issued",
			zap.String("invite", Fingerprint(inv.Key)),
			zap.String("user", userID),
			zap.String("room_id", roomID),
		)
		return inv, nil
	}
	return Invite{}, fmt.Errorf("issuing invite: key collision after %d attempts", maxIssueAttempts)
}

// Consume redeems key, removing it.
//
// Postcondition: Of any number of concurrent calls with the same key at most
// one succeeds; every other call, and every later call, returns ErrInvalidInvite.
func (r *Registry) Consume(key string) (Invite, error) {
	return r.consume(key, "")
}

// ConsumeFor redeems key only if it was issued for roomID. A room mismatch
// fails without consuming the key.
func (r *Registry) ConsumeFor(key, roomID string) (Invite, error) {
	if roomID == "" {
		return Invite{}, ErrInvalidInvite
	}
	return r.consume(key, roomID)
}

func (r *Registry) consume(key, roomID string) (Invite, error) {
	s := r.shardFor(key)
	s.mu.Lock()
	inv, ok := s.pending[key]
	switch {
	case !ok:
		s.mu.Unlock()
		r.logger.Debug("invite rejected", zap.String("invite", Fingerprint(key)), zap.String("reason", "unknown"))
		return Invite{}, ErrInvalidInvite
	case inv.expired(r.now()):
		delete(s.pending, key)
		s.mu.Unlock()
		r.logger.Debug("invite rejected", zap.String("invite", Fingerprint(key)), zap.String("reason", "expired"))
		return Invite{}, ErrInvalidInvite
	case roomID != "" && inv.RoomID != roomID:
		s.mu.Unlock()
		r.logger.Debug("invite rejected",
			zap.String("invite", Fingerprint(key)),
			zap.String("reason", "room mismatch"),
			zap.String("room_id", roomID),
		)
		return Invite{}, ErrInvalidInvite
	}
	delete(s.pending, key)
	s.mu.Unlock()

	r.logger.Debug("invite consumed",
		zap.String("invite", Fingerprint(key)),
		zap.String("user", inv.UserID),
		zap.String("room_id", inv.RoomID),
	)
	return inv, nil
}

// Sweep drops every invite expired at now and returns how many were dropped.
func (r *Registry) Sweep(now time.Time) int {
	dropped := 0
	for _, s := range r.shards {
		s.mu.Lock()
		for key, inv := range s.pending {
			if inv.expired(now) {
				delete(s.pending, key)
				dropped++
			}
		}
		s.mu.Unlock()
	}
	if dropped > 0 {
		r.logger.Debug("expired invites swept", zap.Int("count", dropped))
	}
	return dropped
}

// Pending returns the number of unconsumed invites, expired ones included
// until the next Sweep.
func (r *Registry) Pending() int {
	n := 0
	for _, s := range r.shards {
		s.mu.Lock()
		n += len(s.pending)
		s.mu.Unlock()
	}
	return n
}

// Fingerprint returns a short stable digest of key that is safe to log.
func Fingerprint(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:6])
}
