package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClientSetNX(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	m := NewMemoryClient()
	m.Now = func() time.Time { return clock }

	ok, err := m.SetNX(ctx, "console:reminded:citizen:u1:1", 1, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.SetNX(ctx, "console:reminded:citizen:u1:1", 2, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	value, err := m.Get(ctx, "console:reminded:citizen:u1:1")
	require.NoError(t, err)
	assert.Equal(t, "1", value)

	require.NoError(t, m.Del(ctx, "console:reminded:citizen:u1:1"))
	_, err = m.Get(ctx, "console:reminded:citizen:u1:1")
	assert.Equal(t, ErrNil, err)

	ok, err = m.SetNX(ctx, "console:reminded:citizen:u1:1", 3, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	clock = clock.Add(time.Hour)
	ok, err = m.SetNX(ctx, "console:reminded:citizen:u1:1", 4, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}
