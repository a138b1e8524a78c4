package sessionstore_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/rulehub/rulehub-client/authsession/sessionstore"
)

func setupRedisStore(t *testing.T) (*sessionstore.RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return sessionstore.NewRedisStore(client, "rulehub:auth:"), mr
}

func TestRedisStoreSessionRoundTrip(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	loaded, err := store.LoadSession(ctx)
	require.NoError(t, err)
	require.Nil(t, loaded)

	session := testSession("access-1")
	require.NoError(t, store.SaveSession(ctx, session))

	loaded, err = store.LoadSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, session.AccessToken, loaded.AccessToken)
	require.Equal(t, session.UserID, loaded.UserID)
	require.True(t, session.StoredAt.Equal(loaded.StoredAt))

	require.NoError(t, store.ClearSession(ctx))
	loaded, err = store.LoadSession(ctx)
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestRedisStoreUndecodableBlobTreatedAsAbsent(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("rulehub:auth:session", "{not json"))

	loaded, err := store.LoadSession(ctx)
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestRedisStoreUnknownSchemaVersionTreatedAsAbsent(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("rulehub:auth:session", `{"version":99,"access_token":"access-1"}`))

	loaded, err := store.LoadSession(ctx)
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestRedisStorePendingStateExpires(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.SavePendingState(ctx, "nonce-1"))

	nonce, err := store.LoadPendingState(ctx)
	require.NoError(t, err)
	require.Equal(t, "nonce-1", nonce)

	// An abandoned login attempt must not stay redeemable forever
	require.Greater(t, mr.TTL("rulehub:auth:pending_state").Seconds(), 0.0)

	require.NoError(t, store.ClearPendingState(ctx))
	nonce, err = store.LoadPendingState(ctx)
	require.NoError(t, err)
	require.Empty(t, nonce)
}

func TestRedisStoreReadFailureIsReported(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	mr.Close()

	_, err := store.LoadSession(ctx)
	require.Error(t, err)
}
