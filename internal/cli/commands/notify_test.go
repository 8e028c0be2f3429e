package commands

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/criteria/internal/orm/contenttype"
)

func TestNotify(t *testing.T) {
	mr := miniredis.RunT(t)
	config := workspace(t, "redis:", "  addr: "+mr.Addr())

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, contenttype.DefaultReloadChannel)
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	res := run(t, "notify", "--config", config)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "✓ reload announced")
	assert.Contains(t, res.stdout, "channel: "+contenttype.DefaultReloadChannel)

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, contenttype.DefaultReloadChannel, msg.Channel)
	assert.Equal(t, "reload", msg.Payload)
}

func TestNotifyCustomChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	config := workspace(t, "redis:", "  addr: "+mr.Addr(), "  channel: cms:types")

	res := run(t, "notify", "--config", config)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "channel: cms:types")
}

func TestNotifyRequiresRedis(t *testing.T) {
	config := workspace(t)

	res := run(t, "notify", "--config", config)
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "redis.addr is required")
}
