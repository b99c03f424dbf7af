// Package session owns the mapping from operator sessions to carts. Each
// session holds exactly one cart; carts are never shared between sessions
// because cart operations are single-writer by design.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/tillpoint/internal/domain/cart"
	"github.com/xenking/tillpoint/internal/domain/customer"
)

// ErrNotFound is returned when a session ID is unknown or already evicted.
var ErrNotFound = errors.New("session not found")

// Session is one operator's in-progress transaction. The embedded mutex
// serializes transport-level access: the cart itself does no locking, so
// overlapping HTTP requests for the same session must not reach it
// concurrently.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	cart     *cart.Cart
	lastSeen time.Time
}

// Do runs fn with exclusive access to the session's cart and marks the
// session as recently used.
func (s *Session) Do(fn func(c *cart.Cart) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	return fn(s.cart)
}

// Registry holds the active sessions. Idle sessions are evicted after the
// configured TTL so abandoned carts do not accumulate.
type Registry struct {
	directory customer.Directory
	ttl       time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates a Registry backed by the given customer directory,
// which supplies the default customer for every new cart.
func NewRegistry(directory customer.Directory, ttl time.Duration) *Registry {
	return &Registry{
		directory: directory,
		ttl:       ttl,
		sessions:  make(map[string]*Session),
	}
}

// Open creates a new session with an empty cart attached to the default
// walk-in customer.
func (r *Registry) Open(ctx context.Context) (*Session, error) {
	def, err := r.directory.Default(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "lookup default customer")
	}

	now := time.Now()
	s := &Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		cart:      cart.New(*def),
		lastSeen:  now,
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	return s, nil
}

// Get returns the session with the given ID.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Close removes the session. Closing an unknown session is a no-op;
// abandoning a checkout needs no rollback because nothing was committed.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// EvictIdle removes sessions not touched within the TTL and returns how many
// were removed.
func (r *Registry) EvictIdle(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, s := range r.sessions {
		s.mu.Lock()
		idle := now.Sub(s.lastSeen) > r.ttl
		s.mu.Unlock()
		if idle {
			delete(r.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Run periodically evicts idle sessions until the context is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.EvictIdle(time.Now())
		}
	}
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
