package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/chatify/chatify/internal/domain"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestAllowPermitsRequestsUnderThreshold(t *testing.T) {
	client := startRedis(t)
	limiter := New(client, nil, WithThreshold(3), WithWindow(time.Minute))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.Nil(t, limiter.Allow(ctx, "user-1"))
	}
}

func TestAllowDeniesAtThreshold(t *testing.T) {
	client := startRedis(t)
	limiter := New(client, nil, WithThreshold(2), WithWindow(time.Minute))
	ctx := context.Background()

	require.Nil(t, limiter.Allow(ctx, "user-1"))
	require.Nil(t, limiter.Allow(ctx, "user-1"))

	err := limiter.Allow(ctx, "user-1")
	require.NotNil(t, err)
	assert.Equal(t, domain.KindRateLimitExceeded, err.Kind)
}

func TestAllowTracksUsersIndependently(t *testing.T) {
	client := startRedis(t)
	limiter := New(client, nil, WithThreshold(1), WithWindow(time.Minute))
	ctx := context.Background()

	require.Nil(t, limiter.Allow(ctx, "user-1"))
	require.NotNil(t, limiter.Allow(ctx, "user-1"))

	// A different user has a fresh counter.
	assert.Nil(t, limiter.Allow(ctx, "user-2"))
}

func TestAllowResetsAfterWindowExpires(t *testing.T) {
	client := startRedis(t)
	limiter := New(client, nil, WithThreshold(1), WithWindow(2*time.Second))
	ctx := context.Background()

	require.Nil(t, limiter.Allow(ctx, "user-1"))
	require.NotNil(t, limiter.Allow(ctx, "user-1"))

	time.Sleep(3 * time.Second)

	assert.Nil(t, limiter.Allow(ctx, "user-1"))
}
