package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultRedisPrefix namespaces cache keys in a shared Redis.
const DefaultRedisPrefix = "token-companion"

// Redis is a Cache shared between service instances.
//
// Each value is stored as JSON under <prefix>:entry:<key>. The sorted set
// <prefix>:index holds every key scored by write time and is trimmed to the
// newest Capacity members on Put. Redis errors degrade to a cache miss.
type Redis[T any] struct {
	client *redis.Client
	prefix string
	opts   Options
	log    logrus.FieldLogger
}

// NewRedis creates a Redis-backed cache.
func NewRedis[T any](client *redis.Client, prefix string, opts Options, log logrus.FieldLogger) *Redis[T] {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Redis[T]{
		client: client,
		prefix: prefix,
		opts:   opts.withDefaults(),
		log:    log.WithField("component", "cache.redis"),
	}
}

var _ Cache[int] = (*Redis[int])(nil)

func (r *Redis[T]) entryKey(key string) string {
	return fmt.Sprintf("%s:entry:%s", r.prefix, key)
}

func (r *Redis[T]) indexKey() string {
	return r.prefix + ":index"
}

// Get returns the value for key if it is younger than the TTL.
func (r *Redis[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	e, ok := r.GetStale(ctx, key)
	if !ok || e.Age(r.opts.Now()) >= r.opts.TTL {
		return zero, false
	}
	return e.Value, true
}

// GetStale returns the entry for key regardless of age.
func (r *Redis[T]) GetStale(ctx context.Context, key string) (Entry[T], bool) {
	var e Entry[T]

	data, err := r.client.Get(ctx, r.entryKey(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.log.WithError(err).WithField("key", key).Warn("redis get failed")
		}
		return e, false
	}

	if err := json.Unmarshal(data, &e); err != nil {
		r.log.WithError(err).WithField("key", key).Warn("discarding malformed cache entry")
		return e, false
	}
	return e, true
}

// Put stores value and trims the index to the newest Capacity keys.
func (r *Redis[T]) Put(ctx context.Context, key string, value T) {
	e := Entry[T]{Value: value, StoredAt: r.opts.Now()}
	data, err := json.Marshal(e)
	if err != nil {
		r.log.WithError(err).WithField("key", key).Warn("marshal cache entry")
		return
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.entryKey(key), data, 0)
	pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: float64(e.StoredAt.UnixNano()), Member: key})
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.WithError(err).WithField("key", key).Warn("redis put failed")
		return
	}

	r.evict(ctx)
}

// evict removes the oldest-written keys beyond capacity.
func (r *Redis[T]) evict(ctx context.Context) {
	count, err := r.client.ZCard(ctx, r.indexKey()).Result()
	if err != nil {
		r.log.WithError(err).Warn("redis zcard failed")
		return
	}

	overflow := count - int64(r.opts.Capacity)
	if overflow <= 0 {
		return
	}

	victims, err := r.client.ZRange(ctx, r.indexKey(), 0, overflow-1).Result()
	if err != nil {
		r.log.WithError(err).Warn("redis zrange failed")
		return
	}
	if len(victims) == 0 {
		return
	}

	entryKeys := make([]string, len(victims))
	members := make([]interface{}, len(victims))
	for i, v := range victims {
		entryKeys[i] = r.entryKey(v)
		members[i] = v
	}

	pipe := r.client.TxPipeline()
	pipe.ZRem(ctx, r.indexKey(), members...)
	pipe.Del(ctx, entryKeys...)
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.WithError(err).Warn("redis evict failed")
	}
}

// Len returns the number of indexed entries, 0 on error.
func (r *Redis[T]) Len(ctx context.Context) int {
	n, err := r.client.ZCard(ctx, r.indexKey()).Result()
	if err != nil {
		r.log.WithError(err).Warn("redis zcard failed")
		return 0
	}
	return int(n)
}
