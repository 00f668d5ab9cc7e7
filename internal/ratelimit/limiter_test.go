package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func TestNew_InvalidArgsReturnNil(t *testing.T) {
	assert.Nil(t, New(0, 5, 0))
	assert.Nil(t, New(1, 0, 0))

	var l *MapLimiter
	assert.True(t, l.Allow("k", t0))
	assert.Equal(t, 0, l.Len())
	l.Forget("k")
}

func TestAllow_BurstThenRefill(t *testing.T) {
	l := New(2, 3, time.Minute)
	require.NotNil(t, l)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("s1", t0), "request %d", i)
	}
	assert.False(t, l.Allow("s1", t0))

	assert.True(t, l.Allow("s1", t0.Add(500*time.Millisecond)))
	assert.False(t, l.Allow("s1", t0.Add(500*time.Millisecond)))
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	l := New(1, 1, time.Minute)

	assert.True(t, l.Allow("a", t0))
	assert.False(t, l.Allow("a", t0))
	assert.True(t, l.Allow("b", t0))
	assert.True(t, l.Allow("  ", t0))
	assert.Equal(t, 2, l.Len())
}

func TestForget(t *testing.T) {
	l := New(1, 1, time.Minute)
	assert.True(t, l.Allow("a", t0))
	assert.False(t, l.Allow("a", t0))

	l.Forget("a")
	assert.True(t, l.Allow("a", t0))
}

func TestAllow_EvictsIdleKeys(t *testing.T) {
	l := New(100, 100, time.Minute)
	assert.True(t, l.Allow("old", t0))

	later := t0.Add(time.Hour)
	for i := 0; i < 511; i++ {
		l.Allow("fresh", later)
	}
	assert.Equal(t, 1, l.Len())
}

func TestPerMinute(t *testing.T) {
	l := PerMinute(2, time.Minute)
	assert.True(t, l.Allow("k", t0))
	assert.True(t, l.Allow("k", t0))
	assert.False(t, l.Allow("k", t0))
	assert.True(t, l.Allow("k", t0.Add(31*time.Second)))
}
