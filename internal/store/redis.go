package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gustavoa6791/k8s-colcap-news/internal/types"
)

// Redis implements Store on a shared Redis instance via go-redis.
// The underlying client pools and transparently re-dials lost connections;
// only the initial Connect applies the bounded retry policy.
type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

// RedisOptions configures the connection and its retry policy.
type RedisOptions struct {
	Host       string
	Port       int
	DB         int
	MaxRetries int           // connect attempts (default 5)
	RetryDelay time.Duration // pause between attempts (default 5s)
}

// ConnectRedis dials the store with bounded retry. Returns
// types.ErrDisconnected once all attempts are exhausted.
func ConnectRedis(ctx context.Context, opts RedisOptions, logger *slog.Logger) (*Redis, error) {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}

	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
	logger = logger.With("component", "store", "addr", addr)

	var lastErr error
	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		client := redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   opts.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()

		if err == nil {
			logger.Info("connected to coordination store")
			return &Redis{client: client, logger: logger}, nil
		}

		lastErr = err
		_ = client.Close()
		logger.Warn("store connect failed",
			"attempt", attempt,
			"max_attempts", opts.MaxRetries,
			"error", err,
		)

		if attempt < opts.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(opts.RetryDelay):
			}
		}
	}

	return nil, fmt.Errorf("%w: %v", types.ErrDisconnected, lastErr)
}

func (r *Redis) PushHead(ctx context.Context, list, value string) error {
	return r.wrap("lpush", list, r.client.LPush(ctx, list, value).Err())
}

func (r *Redis) PopHead(ctx context.Context, list string) (string, error) {
	val, err := r.client.LPop(ctx, list).Result()
	if errors.Is(err, redis.Nil) {
		return "", types.ErrQueueEmpty
	}
	return val, r.wrap("lpop", list, err)
}

func (r *Redis) PopHeadBlocking(ctx context.Context, list string, timeout time.Duration) (string, error) {
	res, err := r.client.BLPop(ctx, timeout, list).Result()
	if errors.Is(err, redis.Nil) {
		return "", types.ErrQueueEmpty
	}
	if err != nil {
		return "", r.wrap("blpop", list, err)
	}
	// BLPOP returns [key, value].
	if len(res) < 2 {
		return "", types.ErrQueueEmpty
	}
	return res[1], nil
}

func (r *Redis) QueueLen(ctx context.Context, list string) (int64, error) {
	n, err := r.client.LLen(ctx, list).Result()
	return n, r.wrap("llen", list, err)
}

func (r *Redis) TrimmedPush(ctx context.Context, list, value string, maxLen int64) error {
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, list, value)
	pipe.LTrim(ctx, list, 0, maxLen-1)
	_, err := pipe.Exec(ctx)
	return r.wrap("lpush+ltrim", list, err)
}

func (r *Redis) Range(ctx context.Context, list string, start, stop int64) ([]string, error) {
	vals, err := r.client.LRange(ctx, list, start, stop).Result()
	return vals, r.wrap("lrange", list, err)
}

func (r *Redis) SetAdd(ctx context.Context, set, member string) error {
	return r.wrap("sadd", set, r.client.SAdd(ctx, set, member).Err())
}

func (r *Redis) SetContains(ctx context.Context, set, member string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, set, member).Result()
	return ok, r.wrap("sismember", set, err)
}

func (r *Redis) SetSize(ctx context.Context, set string) (int64, error) {
	n, err := r.client.SCard(ctx, set).Result()
	return n, r.wrap("scard", set, err)
}

func (r *Redis) HashSet(ctx context.Context, key, field, value string) error {
	return r.wrap("hset", key, r.client.HSet(ctx, key, field, value).Err())
}

func (r *Redis) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := r.client.HGetAll(ctx, key).Result()
	return m, r.wrap("hgetall", key, err)
}

func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.wrap("expire", key, r.client.Expire(ctx, key, ttl).Err())
}

func (r *Redis) Incr(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Incr(ctx, key).Result()
	return n, r.wrap("incr", key, err)
}

func (r *Redis) GetInt(ctx context.Context, key string) (int64, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, r.wrap("get", key, err)
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (r *Redis) SetInt(ctx context.Context, key string, value int64) error {
	return r.Set(ctx, key, strconv.FormatInt(value, 10))
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, r.wrap("get", key, err)
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	return r.wrap("set", key, r.client.Set(ctx, key, value, 0).Err())
}

func (r *Redis) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := r.client.Keys(ctx, pattern).Result()
	return keys, r.wrap("keys", pattern, err)
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.wrap("del", keys[0], r.client.Del(ctx, keys...).Err())
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrDisconnected, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// wrap logs a failed operation and tags it as a store error. Callers on
// telemetry paths ignore the returned error; nothing here is fatal.
func (r *Redis) wrap(op, key string, err error) error {
	if err == nil {
		return nil
	}
	r.logger.Warn("store op failed", "op", op, "key", key, "error", err)
	return &types.StoreError{Op: op, Key: key, Err: err}
}
