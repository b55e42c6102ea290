package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventStore_CheckAndSet_NewEvent(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewEventStore(client)
	ctx := context.Background()

	ok, err := store.CheckAndSet(ctx, "evt_1Abc", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "new event should return true")
}

func TestEventStore_CheckAndSet_DuplicateDelivery(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewEventStore(client)
	ctx := context.Background()

	ok, err := store.CheckAndSet(ctx, "evt_dup", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	// Gateway retries the same delivery
	ok, err = store.CheckAndSet(ctx, "evt_dup", 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "duplicate delivery should return false")
}

func TestEventStore_CheckAndSet_ExpiredEvent(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewEventStore(client)
	ctx := context.Background()

	ok, err := store.CheckAndSet(ctx, "evt_exp", 1*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	s.FastForward(2 * time.Second)

	ok, err = store.CheckAndSet(ctx, "evt_exp", 1*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "expired key should be accepted again")
}
