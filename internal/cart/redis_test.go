package cart

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real server when REDIS_TEST_ADDR is set.
func TestRedisSessionStore(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisSessionStore(client, time.Minute)
	sid := uuid.NewString()
	t.Cleanup(func() { _ = store.Delete(ctx, sid) })

	empty, err := store.Load(ctx, sid)
	require.NoError(t, err)
	assert.Nil(t, empty.TableID)

	tableID := int64(9)
	require.NoError(t, store.Save(ctx, sid, Session{TableID: &tableID, Draft: Draft{}.Apply(2, "Cake", cake, 2)}))

	loaded, err := store.Load(ctx, sid)
	require.NoError(t, err)
	require.NotNil(t, loaded.TableID)
	assert.Equal(t, int64(9), *loaded.TableID)
	assert.Equal(t, 2, loaded.Draft.Quantity(2))
	assert.True(t, loaded.Draft.Total().Equal(decimal.RequireFromString("12.00")))

	ttl, err := client.TTL(ctx, sessionKey(sid)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, client.Set(ctx, sessionKey(sid), "{not json", time.Minute).Err())
	corrupt, err := store.Load(ctx, sid)
	require.NoError(t, err)
	assert.Nil(t, corrupt.TableID)

	require.NoError(t, store.Delete(ctx, sid))
	n, err := client.Exists(ctx, sessionKey(sid)).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}
