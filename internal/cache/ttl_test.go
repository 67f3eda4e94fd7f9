package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache_FreshHit(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewTTLCache[int](5*time.Minute, func() time.Time { return clock })

	c.Set("k", 42)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 42, got)
}

func TestTTLCache_ExpiryClock(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewTTLCache[string](5*time.Minute, func() time.Time { return clock })

	c.Set("tok", "v")

	clock = clock.Add(4 * time.Minute)
	_, ok := c.Get("tok")
	assert.True(t, ok, "entry still fresh at T+4m")

	clock = clock.Add(2 * time.Minute)
	_, ok = c.Get("tok")
	assert.False(t, ok, "entry stale at T+6m")
	assert.Equal(t, 0, c.Len(), "stale entry evicted on access")
}

func TestTTLCache_PurgeAndDelete(t *testing.T) {
	c := NewTTLCache[int](time.Minute, nil)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestTTLCache_ConcurrentAccess(t *testing.T) {
	c := NewTTLCache[int](time.Minute, nil)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 200; j++ {
				c.Set("shared", n)
				c.Get("shared")
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	_, ok := c.Get("shared")
	assert.True(t, ok)
}
