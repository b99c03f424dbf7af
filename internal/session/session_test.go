package session

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/tillpoint/internal/domain/cart"
	"github.com/xenking/tillpoint/internal/domain/customer"
)

type mockDirectory struct {
	def *customer.Customer
	err error
}

func (m *mockDirectory) List(_ context.Context) ([]customer.Customer, error) {
	return nil, nil
}

func (m *mockDirectory) GetByID(_ context.Context, _ string) (*customer.Customer, error) {
	return nil, customer.ErrNotFound
}

func (m *mockDirectory) Default(_ context.Context) (*customer.Customer, error) {
	return m.def, m.err
}

func newTestRegistry(ttl time.Duration) *Registry {
	return NewRegistry(&mockDirectory{
		def: &customer.Customer{ID: "walk-in", Name: "Walk-in customer"},
	}, ttl)
}

func TestOpen_CartHasDefaultCustomer(t *testing.T) {
	r := newTestRegistry(time.Hour)

	s, err := r.Open(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)

	err = s.Do(func(c *cart.Cart) error {
		assert.True(t, c.Empty())
		assert.Equal(t, "walk-in", c.Customer().ID)
		return nil
	})
	require.NoError(t, err)
}

func TestOpen_DirectoryError(t *testing.T) {
	r := NewRegistry(&mockDirectory{err: errors.New("db down")}, time.Hour)

	_, err := r.Open(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, r.Len())
}

func TestGet_UnknownSession(t *testing.T) {
	r := newTestRegistry(time.Hour)

	_, err := r.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClose(t *testing.T) {
	r := newTestRegistry(time.Hour)
	s, err := r.Open(context.Background())
	require.NoError(t, err)

	r.Close(s.ID)

	_, err = r.Get(s.ID)
	require.ErrorIs(t, err, ErrNotFound)

	// Closing again is a no-op.
	r.Close(s.ID)
}

func TestEvictIdle(t *testing.T) {
	r := newTestRegistry(time.Minute)

	fresh, err := r.Open(context.Background())
	require.NoError(t, err)
	stale, err := r.Open(context.Background())
	require.NoError(t, err)

	stale.mu.Lock()
	stale.lastSeen = time.Now().Add(-2 * time.Minute)
	stale.mu.Unlock()

	evicted := r.EvictIdle(time.Now())

	assert.Equal(t, 1, evicted)
	_, err = r.Get(stale.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Get(fresh.ID)
	assert.NoError(t, err)
}

func TestDo_TouchesSession(t *testing.T) {
	r := newTestRegistry(time.Minute)
	s, err := r.Open(context.Background())
	require.NoError(t, err)

	s.mu.Lock()
	s.lastSeen = time.Now().Add(-2 * time.Minute)
	s.mu.Unlock()

	require.NoError(t, s.Do(func(*cart.Cart) error { return nil }))

	assert.Equal(t, 0, r.EvictIdle(time.Now()))
}
