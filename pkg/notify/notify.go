package notify

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultWakeKey is the Redis list the wake token lives on.
const DefaultWakeKey = "applyn:builds:wake"

// Notifier lets enqueuers nudge idle workers. Wake is fired after new work
// is committed; Await blocks until a wake arrives, the timeout elapses, or
// the context is cancelled. A timeout is not an error: the caller polls the
// database either way.
type Notifier interface {
	Wake(ctx context.Context) error
	Await(ctx context.Context, timeout time.Duration) error
}

// NopNotifier is the no-signal fallback. Await just sleeps out its timeout,
// leaving the worker on plain interval polling.
type NopNotifier struct{}

func (NopNotifier) Wake(context.Context) error { return nil }

func (NopNotifier) Await(ctx context.Context, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RedisNotifier signals through a one-element Redis list. The trim keeps the
// list from growing: many wakes while no worker is listening collapse into a
// single pending token.
type RedisNotifier struct {
	rdb *redis.Client
	key string
}

// NewRedisNotifier creates a notifier on the default wake key.
func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, key: DefaultWakeKey}
}

// Key returns the Redis list key the notifier signals on.
func (n *RedisNotifier) Key() string {
	return n.key
}

func (n *RedisNotifier) Wake(ctx context.Context) error {
	pipe := n.rdb.TxPipeline()
	pipe.LPush(ctx, n.key, "1")
	pipe.LTrim(ctx, n.key, 0, 0)
	_, err := pipe.Exec(ctx)
	return err
}

func (n *RedisNotifier) Await(ctx context.Context, timeout time.Duration) error {
	_, err := n.rdb.BRPop(ctx, timeout, n.key).Result()
	if errors.Is(err, redis.Nil) {
		// Timed out with no wake. The caller polls regardless.
		return nil
	}
	return err
}
