package cache

import (
	"context"
	"sync"
	"testing"

	"github.com/storefront/backend/internal/domain/cart"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCartStoreConformance exercises the behavior every AuthenticatedStore
// implementation must share. newStore must return an empty store.
func runCartStoreConformance(t *testing.T, newStore func(t *testing.T) cart.AuthenticatedStore) {
	t.Helper()
	ctx := context.Background()
	const uid cart.UserID = 1001

	t.Run("read empty", func(t *testing.T) {
		s := newStore(t)
		c, err := s.Read(ctx, uid)
		require.NoError(t, err)
		assert.True(t, c.IsEmpty())
	})

	t.Run("add accumulates", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Add(ctx, uid, 100, 2))
		require.NoError(t, s.Add(ctx, uid, 100, 3))
		require.NoError(t, s.Add(ctx, uid, 200, 1))

		c, err := s.Read(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, cart.Line{ItemID: 100, Quantity: 5}, c[100])
		assert.Equal(t, cart.Line{ItemID: 200, Quantity: 1}, c[200])
	})

	t.Run("add rejects invalid input", func(t *testing.T) {
		s := newStore(t)
		assert.ErrorIs(t, s.Add(ctx, uid, 0, 1), cart.ErrInvalidItemID)
		assert.ErrorIs(t, s.Add(ctx, uid, -4, 1), cart.ErrInvalidItemID)
		assert.ErrorIs(t, s.Add(ctx, uid, 100, 0), cart.ErrInvalidQuantity)
		assert.ErrorIs(t, s.Add(ctx, uid, 100, -2), cart.ErrInvalidQuantity)

		c, err := s.Read(ctx, uid)
		require.NoError(t, err)
		assert.True(t, c.IsEmpty())
	})

	t.Run("set overwrites existing line", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Add(ctx, uid, 100, 2))
		require.NoError(t, s.Set(ctx, uid, 100, 7))

		c, err := s.Read(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, int64(7), c[100].Quantity)
	})

	t.Run("set on absent line", func(t *testing.T) {
		s := newStore(t)
		assert.ErrorIs(t, s.Set(ctx, uid, 100, 3), cart.ErrLineNotFound)

		c, err := s.Read(ctx, uid)
		require.NoError(t, err)
		assert.True(t, c.IsEmpty())
	})

	t.Run("set rejects invalid quantity", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Add(ctx, uid, 100, 2))
		assert.ErrorIs(t, s.Set(ctx, uid, 100, 0), cart.ErrInvalidQuantity)

		c, err := s.Read(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, int64(2), c[100].Quantity)
	})

	t.Run("set keeps selection", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Add(ctx, uid, 100, 2))
		require.NoError(t, s.SetSelected(ctx, uid, 100, true))
		require.NoError(t, s.Set(ctx, uid, 100, 5))

		c, err := s.Read(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, cart.Line{ItemID: 100, Quantity: 5, Selected: true}, c[100])
	})

	t.Run("update writes quantity and selection together", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Add(ctx, uid, 100, 2))

		require.NoError(t, s.Update(ctx, uid, 100, 6, true))
		c, err := s.Read(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, cart.Line{ItemID: 100, Quantity: 6, Selected: true}, c[100])

		require.NoError(t, s.Update(ctx, uid, 100, 1, false))
		c, err = s.Read(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, cart.Line{ItemID: 100, Quantity: 1, Selected: false}, c[100])
	})

	t.Run("update on absent line writes nothing", func(t *testing.T) {
		s := newStore(t)
		assert.ErrorIs(t, s.Update(ctx, uid, 100, 3, true), cart.ErrLineNotFound)

		c, err := s.Read(ctx, uid)
		require.NoError(t, err)
		assert.True(t, c.IsEmpty())
	})

	t.Run("update rejects invalid input", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Add(ctx, uid, 100, 2))
		assert.ErrorIs(t, s.Update(ctx, uid, 100, 0, true), cart.ErrInvalidQuantity)
		assert.ErrorIs(t, s.Update(ctx, uid, 0, 1, true), cart.ErrInvalidItemID)

		c, err := s.Read(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, cart.Line{ItemID: 100, Quantity: 2}, c[100])
	})

	t.Run("remove deletes quantity and selection", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Add(ctx, uid, 100, 2))
		require.NoError(t, s.SetSelected(ctx, uid, 100, true))
		require.NoError(t, s.Remove(ctx, uid, 100))

		c, err := s.Read(ctx, uid)
		require.NoError(t, err)
		assert.True(t, c.IsEmpty())

		// Re-adding must not resurrect the old selection.
		require.NoError(t, s.Add(ctx, uid, 100, 1))
		c, err = s.Read(ctx, uid)
		require.NoError(t, err)
		assert.False(t, c[100].Selected)
	})

	t.Run("remove absent line", func(t *testing.T) {
		s := newStore(t)
		assert.ErrorIs(t, s.Remove(ctx, uid, 100), cart.ErrLineNotFound)
		assert.ErrorIs(t, s.Remove(ctx, uid, 0), cart.ErrInvalidItemID)
	})

	t.Run("set selected toggles", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Add(ctx, uid, 100, 1))
		require.NoError(t, s.Add(ctx, uid, 200, 1))

		require.NoError(t, s.SetSelected(ctx, uid, 100, true))
		c, err := s.Read(ctx, uid)
		require.NoError(t, err)
		assert.True(t, c[100].Selected)
		assert.False(t, c[200].Selected)

		// Selecting twice is idempotent.
		require.NoError(t, s.SetSelected(ctx, uid, 100, true))
		require.NoError(t, s.SetSelected(ctx, uid, 100, false))
		c, err = s.Read(ctx, uid)
		require.NoError(t, err)
		assert.False(t, c[100].Selected)
	})

	t.Run("set selected on absent line", func(t *testing.T) {
		s := newStore(t)
		assert.ErrorIs(t, s.SetSelected(ctx, uid, 100, true), cart.ErrLineNotFound)

		c, err := s.Read(ctx, uid)
		require.NoError(t, err)
		assert.True(t, c.IsEmpty())
	})

	// SelectAll only covers lines present when it reads the quantity keys;
	// see TestRedisCartStore_SelectAllMissesConcurrentAdd for the race.
	t.Run("select all and clear", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.SelectAll(ctx, uid, true))

		require.NoError(t, s.Add(ctx, uid, 100, 1))
		require.NoError(t, s.Add(ctx, uid, 200, 4))
		require.NoError(t, s.SelectAll(ctx, uid, true))

		c, err := s.Read(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, 2, c.Selected().Len())

		require.NoError(t, s.SelectAll(ctx, uid, false))
		c, err = s.Read(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, 0, c.Selected().Len())
		assert.Equal(t, 2, c.Len())
	})

	t.Run("users are isolated", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Add(ctx, 1, 100, 1))
		require.NoError(t, s.Add(ctx, 2, 100, 9))

		c1, err := s.Read(ctx, 1)
		require.NoError(t, err)
		c2, err := s.Read(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(1), c1[100].Quantity)
		assert.Equal(t, int64(9), c2[100].Quantity)
	})

	t.Run("concurrent adds are not lost", func(t *testing.T) {
		s := newStore(t)
		const workers = 20

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.Add(ctx, uid, 100, 1))
			}()
		}
		wg.Wait()

		c, err := s.Read(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, int64(workers), c[100].Quantity)
	})

	t.Run("canceled context", func(t *testing.T) {
		s := newStore(t)
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		err := s.Add(canceled, uid, 100, 1)
		require.Error(t, err)
		assert.True(t, cart.IsTransient(err))

		var be *cart.BackendError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, "add", be.Op)
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(ctx))
	})
}
