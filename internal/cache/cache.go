// cache — реализация реестра отзыва поверх Redis.
//
// Каждая запись — отдельный ключ prefix+jti со сроком жизни до истечения
// самого токена, поэтому очистку выполняет Redis, а Purge ничего не делает.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/pribylovaa/books-auth/internal/revocation"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "auth:revoked:"

type redisRegistry struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

var _ revocation.Registry = (*redisRegistry)(nil)

// RedisRegistry — реестр отзыва в Redis с закрытием клиента.
type RedisRegistry interface {
	revocation.Registry
	// Close закрывает клиент Redis.
	Close() error
}

// NewRedisRegistry создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "auth:revoked:".
func NewRedisRegistry(ctx context.Context, redisURL, prefix string) (RedisRegistry, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return NewRedisRegistryFromClient(rdb, prefix), nil
}

// NewRedisRegistryFromClient оборачивает готовый клиент.
func NewRedisRegistryFromClient(rdb *redis.Client, prefix string) RedisRegistry {
	if prefix == "" {
		prefix = defaultPrefix
	}

	return &redisRegistry{rdb: rdb, prefix: prefix, now: time.Now}
}

func (c *redisRegistry) key(jti string) string { return c.prefix + jti }

// Revoke — SET NX EXAT: существующая запись не перезаписывается.
// Уже истёкший токен не требует записи.
func (c *redisRegistry) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if !expiresAt.After(c.now()) {
		return nil
	}

	err := c.rdb.SetArgs(ctx, c.key(jti), "1", redis.SetArgs{
		Mode:     "NX",
		ExpireAt: expiresAt,
	}).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}

	return err
}

func (c *redisRegistry) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.key(jti)).Result()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// Purge ничего не удаляет: истечение записей выполняет Redis.
func (c *redisRegistry) Purge(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (c *redisRegistry) Len(ctx context.Context) (int, error) {
	n := 0
	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}

	return n, nil
}

func (c *redisRegistry) Close() error { return c.rdb.Close() }
