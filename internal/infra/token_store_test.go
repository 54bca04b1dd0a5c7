package infra_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"helpdesk.com/internal/infra"
	"helpdesk.com/internal/infra/infratest"
)

func TestRedisTokenStore(t *testing.T) {
	rdb, srv := infratest.NewRedis(t)
	store := infra.NewRedisTokenStore(rdb)
	ctx := context.Background()

	revoked, err := store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)

	first, err := store.Revoke(ctx, "jti-1", time.Minute)
	require.NoError(t, err)
	require.True(t, first)

	first, err = store.Revoke(ctx, "jti-1", time.Minute)
	require.NoError(t, err)
	require.False(t, first)

	revoked, err = store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)

	srv.FastForward(2 * time.Minute)

	revoked, err = store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestRedisTokenStoreUnavailable(t *testing.T) {
	rdb, srv := infratest.NewRedis(t)
	store := infra.NewRedisTokenStore(rdb)
	srv.Close()

	_, err := store.IsRevoked(context.Background(), "jti-2")
	require.Error(t, err)
}
