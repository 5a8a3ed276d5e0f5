package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		c := NewMemoryCache(10)
		require.NoError(t, c.Set(ctx, "category:tree:m1", []byte("x"), time.Minute))
		val, ok, err := c.Get(ctx, "category:tree:m1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("x"), val)

		_, ok, err = c.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("expires", func(t *testing.T) {
		c := NewMemoryCache(10)
		now := time.Now()
		c.now = func() time.Time { return now }
		require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))
		c.now = func() time.Time { return now.Add(2 * time.Second) }
		_, ok, _ := c.Get(ctx, "k")
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("clear by pattern", func(t *testing.T) {
		c := NewMemoryCache(10)
		for _, k := range []string{
			"category:tree:m1",
			"category:subtree:m1:a",
			"category:ancestors:m1:b",
			"category:tree:m2",
			"category:subtree:m2:a",
		} {
			require.NoError(t, c.Set(ctx, k, []byte("v"), 0))
		}
		require.NoError(t, c.Clear(ctx, "category:*:m1"))
		require.NoError(t, c.Clear(ctx, "category:*:m1:*"))
		assert.Equal(t, 2, c.Len())
		_, ok, _ := c.Get(ctx, "category:tree:m2")
		assert.True(t, ok)
	})

	t.Run("bad pattern", func(t *testing.T) {
		c := NewMemoryCache(10)
		assert.Error(t, c.Clear(ctx, "category:[:m1"))
	})

	t.Run("evicts when full", func(t *testing.T) {
		c := NewMemoryCache(2)
		require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
		require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Hour))
		require.NoError(t, c.Set(ctx, "c", []byte("3"), time.Hour))
		assert.Equal(t, 2, c.Len())
		_, ok, _ := c.Get(ctx, "a")
		assert.False(t, ok)
	})
}
