package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type licence struct {
	ID   int64
	Name string
}

func TestCache(t *testing.T) {
	t.Run("Get Existing Struct", func(t *testing.T) {
		c := New[licence]("licences", DefaultExpiration, DefaultCleanupInterval, nil)
		want := licence{ID: 1, Name: "CC-BY"}
		c.Set("licence:1", want)

		got, ok := c.Get("licence:1")
		require.True(t, ok)
		require.Equal(t, want, got)
	})

	t.Run("Get Missing", func(t *testing.T) {
		c := New[string]("keys", 0, 0, nil)
		got, ok := c.Get("missing")
		require.False(t, ok)
		require.Empty(t, got)
	})

	t.Run("Wrong Type", func(t *testing.T) {
		c := New[string]("keys", 0, 0, nil)
		c.cache.Set("k", 123, DefaultExpiration)

		got, ok := c.Get("k")
		require.False(t, ok)
		require.Empty(t, got)
	})

	t.Run("Delete And Flush", func(t *testing.T) {
		c := New[string]("keys", 0, 0, nil)
		c.Set("a", "1")
		c.Set("b", "2")
		c.Delete("a")
		_, ok := c.Get("a")
		require.False(t, ok)
		require.Equal(t, 1, c.Len())

		c.Flush()
		require.Equal(t, 0, c.Len())
	})

	t.Run("Expiry", func(t *testing.T) {
		c := New[string]("short", 10*time.Millisecond, time.Minute, nil)
		c.Set("a", "1")
		time.Sleep(20 * time.Millisecond)
		_, ok := c.Get("a")
		require.False(t, ok)
	})
}

func TestRemember(t *testing.T) {
	c := New[[]string]("names", 0, 0, nil)
	calls := 0
	load := func() ([]string, error) {
		calls++
		return []string{"foo", "bar"}, nil
	}

	for range 3 {
		got, err := c.Remember("all", load)
		require.NoError(t, err)
		require.Equal(t, []string{"foo", "bar"}, got)
	}
	require.Equal(t, 1, calls)

	boom := errors.New("boom")
	_, err := c.Remember("broken", func() ([]string, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	_, ok := c.Get("broken")
	require.False(t, ok, "failed loads must not be cached")
}
