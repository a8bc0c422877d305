package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "stats", []byte("42"), time.Minute))
	require.NoError(t, m.Set(ctx, "forever", []byte("x"), 0))

	v, ok, err := m.Get(ctx, "stats")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "42", string(v))

	now = now.Add(time.Minute)
	_, ok, _ = m.Get(ctx, "stats")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Sweep())

	_, ok, _ = m.Get(ctx, "forever")
	assert.True(t, ok)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	type stats struct {
		Orders int `json:"orders"`
	}
	require.NoError(t, SetJSON(ctx, m, "dash", stats{Orders: 7}, time.Minute))

	var got stats
	ok, err := GetJSON(ctx, m, "dash", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, got.Orders)

	require.NoError(t, m.Delete(ctx, "dash"))
	ok, err = GetJSON(ctx, m, "dash", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "bad", []byte("{"), 0))
	_, err = GetJSON(ctx, m, "bad", &got)
	assert.Error(t, err)
}

func TestNewRedisRejectsBadURL(t *testing.T) {
	_, err := NewRedis(context.Background(), "http://nope", "artisanat:")
	assert.Error(t, err)
}
