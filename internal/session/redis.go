package session

import (
	"context"
	"errors"
	"time"

	"github.com/koustreak/gardien/internal/errs"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces session hashes.
const DefaultRedisPrefix = "gardien:session:"

// RedisStore keeps each client's session in one redis hash. With a
// positive TTL the hash expiry slides forward on every write.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a store on rdb. An empty prefix uses
// DefaultRedisPrefix; ttl <= 0 keeps hashes until cleared.
func NewRedisStore(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(clientID string) string {
	return s.prefix + clientID
}

func (s *RedisStore) Get(ctx context.Context, clientID, key string, dst any) (bool, error) {
	raw, err := s.rdb.HGet(ctx, s.key(clientID), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, mapError(err, "session get")
	}
	return true, decode(key, raw, dst)
}

func (s *RedisStore) Set(ctx context.Context, clientID, key string, value any) error {
	raw, err := encode(key, value)
	if err != nil {
		return err
	}

	k := s.key(clientID)
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, k, key, raw)
		if s.ttl > 0 {
			p.Expire(ctx, k, s.ttl)
		}
		return nil
	})
	return mapError(err, "session set")
}

func (s *RedisStore) Delete(ctx context.Context, clientID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return mapError(s.rdb.HDel(ctx, s.key(clientID), keys...).Err(), "session delete")
}

func (s *RedisStore) Clear(ctx context.Context, clientID string) error {
	return mapError(s.rdb.Del(ctx, s.key(clientID)).Err(), "session clear")
}

// Ping checks that redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return mapError(s.rdb.Ping(ctx).Err(), "session ping")
}

func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}
	return errs.Wrap(errs.ErrKindConnectionFailed, msg+": redis unavailable", err)
}
