package cache

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/wahook/pkg/config"
)

// ErrMiss is returned by Get when the key is not cached.
var ErrMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, value any) error
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}

// New returns a redis backed cache, or a no-op cache when no host is
// configured or the server cannot be reached.
func New(cc config.Cache, log zerolog.Logger) Cache {
	if cc.Host == "" {
		return Noop{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cc.Host, cc.Port),
		Password: cc.Password,
		DB:       cc.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", client.Options().Addr).Msg("cache unreachable, aggregates will not be cached")
		client.Close()
		return Noop{}
	}
	log.Info().Str("addr", client.Options().Addr).Msg("connected to cache")
	return NewRedis(client, cc.TTL)
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) Cache {
	return &redisCache{client: client, ttl: ttl}
}

func (r *redisCache) Get(ctx context.Context, key string, dst any) error {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func (r *redisCache) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, raw, r.ttl).Err()
}

func (r *redisCache) DeletePrefix(ctx context.Context, prefix string) error {
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *redisCache) Close() error {
	return r.client.Close()
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string, any) error { return ErrMiss }
func (Noop) Set(context.Context, string, any) error { return nil }
func (Noop) DeletePrefix(context.Context, string) error { return nil }
func (Noop) Close() error { return nil }
