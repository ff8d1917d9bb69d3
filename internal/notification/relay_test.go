package notification

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "zimmet/pkg/domain"
	"zimmet/pkg/platform/circuit"
)

func TestRelayWithoutRedisSignalsLocally(t *testing.T) {
	hub := NewHub()
	relay := NewRelay(hub)
	alice := id.NewUserID()
	sub := hub.Subscribe(alice)
	defer hub.Unsubscribe(sub)

	require.NoError(t, relay.Notify(context.Background(), []id.UserID{alice, alice}))
	assert.True(t, received(sub))
	assert.False(t, received(sub))

	require.NoError(t, relay.Notify(context.Background(), nil))
}

func TestRelayFallsBackWhenRedisFails(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	hub := NewHub()
	breaker := circuit.New("test-relay", circuit.WithFailureThreshold(2))
	relay := NewRelay(hub,
		WithRedis(client),
		WithBreaker(breaker),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	alice := id.NewUserID()
	sub := hub.Subscribe(alice)
	defer hub.Unsubscribe(sub)

	for range 2 {
		err := relay.Notify(context.Background(), []id.UserID{alice})
		assert.Error(t, err)
		assert.True(t, received(sub), "local session must still be woken")
	}
	assert.True(t, breaker.IsOpen())
}
