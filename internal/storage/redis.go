package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"uptimeledger/internal/config"
)

const (
	redisBodyField    = "body"
	redisVersionField = "version"
)

// RedisStore keeps the ledger in a hash with a body and a version counter.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis store: %w: REDIS_ADDR is required", ErrNotConfigured)
	}
	client := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		DisableIdentity: true,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	key := cfg.Key
	if key == "" {
		key = "uptimeledger:ledger"
	}
	return &RedisStore{client: client, key: key}, nil
}

// Read returns the stored hash, or nil when the key does not exist.
func (s *RedisStore) Read(ctx context.Context) (*Document, error) {
	vals, err := s.client.HMGet(ctx, s.key, redisBodyField, redisVersionField).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HMGET failed: %w", err)
	}
	if len(vals) < 2 || vals[0] == nil {
		return nil, nil
	}
	body, _ := vals[0].(string)
	version, _ := vals[1].(string)
	return &Document{Data: []byte(body), Version: version}, nil
}

// Write stores the body and bumps the version. Conditional writes WATCH the key so
// a concurrent change aborts the transaction.
func (s *RedisStore) Write(ctx context.Context, data []byte, pre Precondition) (string, error) {
	if !pre.Enabled {
		var incr *redis.IntCmd
		_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.key, redisBodyField, data)
			incr = pipe.HIncrBy(ctx, s.key, redisVersionField, 1)
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("redis write failed: %w", err)
		}
		return strconv.FormatInt(incr.Val(), 10), nil
	}

	var incr *redis.IntCmd
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, s.key, redisVersionField).Result()
		if errors.Is(err, redis.Nil) {
			current = ""
		} else if err != nil {
			return err
		}
		if current != pre.Version {
			return ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.key, redisBodyField, data)
			incr = pipe.HIncrBy(ctx, s.key, redisVersionField, 1)
			return nil
		})
		return err
	}, s.key)
	switch {
	case errors.Is(err, ErrVersionConflict), errors.Is(err, redis.TxFailedErr):
		return "", ErrVersionConflict
	case err != nil:
		return "", fmt.Errorf("redis write failed: %w", err)
	}
	return strconv.FormatInt(incr.Val(), 10), nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
