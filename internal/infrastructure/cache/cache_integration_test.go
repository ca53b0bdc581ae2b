//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/kyt-auditor/internal/infrastructure/config"
)

func TestRedisCache_Container(t *testing.T) {
	ctx := context.Background()

	redisContainer, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, redisContainer)
	require.NoError(t, err)

	addr, err := redisContainer.Endpoint(ctx, "")
	require.NoError(t, err)

	c, err := NewRedisCache(&config.RedisConfig{
		URL:         addr,
		PoolSize:    5,
		DialTimeout: 10 * time.Second,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer c.Close()

	key := SanctionsPrefix + "acme shell corporation"
	require.NoError(t, c.SetJSON(ctx, key, []string{"SDN-001"}, 2*time.Second))

	var ids []string
	require.NoError(t, c.GetJSON(ctx, key, &ids))
	assert.Equal(t, []string{"SDN-001"}, ids)

	assert.Eventually(t, func() bool {
		exists, err := c.Exists(ctx, key)
		return err == nil && !exists
	}, 5*time.Second, 200*time.Millisecond)
}
