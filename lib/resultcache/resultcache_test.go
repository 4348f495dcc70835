package resultcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTtlExpiry(t *testing.T) {
	cache, err := New[string](8)
	require.NoError(t, err)

	cache.Set("a", "value", time.Millisecond*50)

	got, ok := cache.Get("a")
	require.True(t, ok)
	require.Equal(t, "value", got)

	time.Sleep(time.Millisecond * 80)

	_, ok = cache.Get("a")
	require.False(t, ok)
	// the expired entry was removed, not just hidden
	require.Equal(t, 0, cache.Stats().Size)
}

func TestIndependentTtls(t *testing.T) {
	cache, err := New[string](8)
	require.NoError(t, err)

	cache.Set("short", "x", time.Millisecond*30)
	cache.Set("long", "y", time.Hour)

	time.Sleep(time.Millisecond * 60)

	_, ok := cache.Get("short")
	require.False(t, ok)
	_, ok = cache.Get("long")
	require.True(t, ok)
}

func TestLruEviction(t *testing.T) {
	cache, err := New[int](2)
	require.NoError(t, err)

	cache.Set("a", 1, time.Hour)
	cache.Set("b", 2, time.Hour)

	// touch "a" so "b" is the least recently used
	_, ok := cache.Get("a")
	require.True(t, ok)

	cache.Set("c", 3, time.Hour)

	_, ok = cache.Get("b")
	require.False(t, ok)
	_, ok = cache.Get("a")
	require.True(t, ok)
	_, ok = cache.Get("c")
	require.True(t, ok)
}

func TestStats(t *testing.T) {
	cache, err := New[int](4)
	require.NoError(t, err)

	cache.Set("a", 1, time.Hour)
	cache.Set("b", 2, time.Hour)

	stats := cache.Stats()
	require.Equal(t, 2, stats.Size)
	require.Equal(t, 4, stats.MaxSize)
	require.InDelta(t, 0.5, stats.Utilization, 0.001)
}

func TestStatsSweepsExpired(t *testing.T) {
	cache, err := New[int](4)
	require.NoError(t, err)

	cache.Set("short-a", 1, time.Millisecond*30)
	cache.Set("short-b", 2, time.Millisecond*30)
	cache.Set("long", 3, time.Hour)

	time.Sleep(time.Millisecond * 60)

	// no reads happened, the expired entries must still not be counted
	stats := cache.Stats()
	require.Equal(t, 1, stats.Size)
	require.InDelta(t, 0.25, stats.Utilization, 0.001)
}
