package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "hlsrelay:token:"

func redisKey(tok string) string { return redisKeyPrefix + tok }

// RedisStore keeps each token as a JSON value that Redis expires at the
// token's expiry instant. PurgeExpired also scans for records the server has
// not expired yet.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore returns a store using client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Save implements Store.Save.
func (s *RedisStore) Save(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	key := redisKey(rec.Token)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, payload, 0)
		pipe.PExpireAt(ctx, key, rec.ExpiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Get implements Store.Get.
func (s *RedisStore) Get(ctx context.Context, tok string) (Record, bool, error) {
	key := redisKey(tok)
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get %s: %w", key, err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return rec, true, nil
}

// Delete implements Store.Delete.
func (s *RedisStore) Delete(ctx context.Context, tok string) error {
	if err := s.client.Del(ctx, redisKey(tok)).Err(); err != nil {
		return fmt.Errorf("del %s: %w", redisKey(tok), err)
	}
	return nil
}

// PurgeExpired implements Store.PurgeExpired.
func (s *RedisStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, redisKeyPrefix+"*", 512).Result()
		if err != nil {
			return removed, fmt.Errorf("scan: %w", err)
		}
		for _, key := range keys {
			raw, err := s.client.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return removed, fmt.Errorf("get %s: %w", key, err)
			}
			var rec Record
			if err := json.Unmarshal(raw, &rec); err != nil || rec.ExpiresAt.Before(now) {
				if err := s.client.Del(ctx, key).Err(); err != nil {
					return removed, fmt.Errorf("del %s: %w", key, err)
				}
				removed++
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return removed, nil
}

// Ping reports whether the Redis server is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
