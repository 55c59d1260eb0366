package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// BookCacheKeyPrefix namespaces cached books in redis.
const BookCacheKeyPrefix string = "books"

var _ BookCache = (*redisBookCache)(nil) // ensure redisBookCache implements BookCache.

// redisBookCache keeps the wire representation of recently read books.
type redisBookCache struct {
	logger *zap.Logger
	client *redis.Client
	ttl    time.Duration
}

// NewRedisBookCache provides an instance of redis-based book cache.
func NewRedisBookCache(logger *zap.Logger, client *redis.Client, ttl time.Duration) BookCache {
	return &redisBookCache{
		logger: logger,
		client: client,
		ttl:    ttl,
	}
}

// GetRedisClient provides a ready to use redis client.
func GetRedisClient(config *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", config.Redis.Host, config.Redis.Port),
		DialTimeout:  config.Redis.DialTimeout,
		ReadTimeout:  config.Redis.ReadTimeout,
		WriteTimeout: config.Redis.WriteTimeout,
		PoolSize:     config.Redis.PoolSize,
		PoolTimeout:  config.Redis.PoolTimeout,
		Password:     config.Redis.Password,
		Username:     config.Redis.Username,
		DB:           config.Redis.DatabaseIndex,
	})

	// test connection.
	if pong, err := client.Ping(context.Background()).Result(); pong != "PONG" || err != nil {
		return client, fmt.Errorf("test connection failed: %v", err)
	}
	return client, nil
}

func bookCacheKey(uid uuid.UUID) string {
	return BookCacheKeyPrefix + ":" + uid.String()
}

// Each cached book is a hash holding its wire representation under "data"
// and its updated_at in microseconds under "version". A deleted book keeps
// a "gone" marker until expiration so that a late read cannot bring it back.
var setBookScript = redis.NewScript(`
local cur = redis.call('HMGET', KEYS[1], 'version', 'gone')
if cur[2] then
	return 0
end
if cur[1] and tonumber(cur[1]) > tonumber(ARGV[2]) then
	return 0
end
redis.call('HSET', KEYS[1], 'data', ARGV[1], 'version', ARGV[2])
if tonumber(ARGV[3]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

// Get returns the cached book or ErrCacheMiss.
func (rc *redisBookCache) Get(ctx context.Context, uid uuid.UUID) (BookEntity, error) {
	data, err := rc.client.HGet(ctx, bookCacheKey(uid), "data").Bytes()
	if errors.Is(err, redis.Nil) {
		return BookEntity{}, ErrCacheMiss
	}
	if err != nil {
		return BookEntity{}, err
	}

	var resp ReadResponse
	if err = json.Unmarshal(data, &resp); err != nil {
		return BookEntity{}, fmt.Errorf("redis: decode cached book %s: %w", uid, err)
	}
	return FromReadModel(resp)
}

// Set stores the book wire representation with the configured expiration.
// It keeps any cached version which is more recent than book.
func (rc *redisBookCache) Set(ctx context.Context, book BookEntity) error {
	resp, err := ToReadModel(book)
	if err != nil {
		return err
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	stored, err := setBookScript.Run(ctx, rc.client, []string{bookCacheKey(book.UID)},
		data, book.UpdatedAt.UnixMicro(), rc.ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if stored == 0 {
		rc.logger.Debug("redis: kept newer cached book", zap.String("book.uid", book.UID.String()))
	}
	return nil
}

// Evict drops the cached book and marks it as gone. Without expiration
// there is no marker since it would never be cleaned up.
func (rc *redisBookCache) Evict(ctx context.Context, uid uuid.UUID) error {
	key := bookCacheKey(uid)
	if rc.ttl <= 0 {
		return rc.client.Del(ctx, key).Err()
	}
	_, err := rc.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "gone", 1)
		pipe.PExpire(ctx, key, rc.ttl)
		return nil
	})
	return err
}
