//go:build integration

package jwttoken

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"frost/pkg/testutil/containers"
)

func TestRedisRevocations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	revocations := NewRedisRevocations(rc.Client)

	revoked, err := revocations.IsTokenRevoked(ctx, "j1")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, revocations.Revoke(ctx, "j1", time.Minute))
	revoked, err = revocations.IsTokenRevoked(ctx, "j1")
	require.NoError(t, err)
	require.True(t, revoked)

	revoked, err = revocations.IsTokenRevoked(ctx, "")
	require.NoError(t, err)
	require.True(t, revoked)

	require.Error(t, revocations.Revoke(ctx, "", time.Minute))
}
