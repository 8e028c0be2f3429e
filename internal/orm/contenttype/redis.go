package contenttype

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultReloadChannel is the pub/sub channel schema changes are announced on
const DefaultReloadChannel = "content_types:reload"

// ReloadFunc builds a fresh snapshot from the source of truth
type ReloadFunc func() (*Snapshot, error)

// RedisWatcher swaps in a new snapshot whenever a message arrives on the
// reload channel. Run may be called again after it returns, e.g. to
// resubscribe after a connection loss.
type RedisWatcher struct {
	client   *redis.Client
	channel  string
	registry *Registry
	reload   ReloadFunc
	logger   *zap.Logger

	ready     chan struct{}
	readyOnce sync.Once
}

// NewRedisWatcher creates a watcher; an empty channel uses DefaultReloadChannel
func NewRedisWatcher(client *redis.Client, channel string, registry *Registry, reload ReloadFunc, logger *zap.Logger) *RedisWatcher {
	if channel == "" {
		channel = DefaultReloadChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisWatcher{
		client:   client,
		channel:  channel,
		registry: registry,
		reload:   reload,
		logger:   logger,
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the first subscription is confirmed by the server
func (w *RedisWatcher) Ready() <-chan struct{} {
	return w.ready
}

// Run blocks until ctx is done or the subscription closes
func (w *RedisWatcher) Run(ctx context.Context) error {
	sub := w.client.Subscribe(ctx, w.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", w.channel, err)
	}
	w.readyOnce.Do(func() { close(w.ready) })

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			w.handle(msg)
		}
	}
}

func (w *RedisWatcher) handle(msg *redis.Message) {
	snap, err := w.reload()
	if err != nil {
		w.logger.Error("content type reload failed",
			zap.String("channel", msg.Channel),
			zap.String("payload", msg.Payload),
			zap.Error(err))
		return
	}
	w.registry.Swap(snap)
}

// NotifyReload announces a content-type schema change to every watcher
func NotifyReload(ctx context.Context, client *redis.Client, channel string) error {
	if channel == "" {
		channel = DefaultReloadChannel
	}
	return client.Publish(ctx, channel, "reload").Err()
}
