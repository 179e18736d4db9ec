package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "sess:"

// SessionStorage is a fiber.Storage implementation backed by Redis so login
// sessions survive restarts and are shared across instances.
type SessionStorage struct {
	rdb *redis.Client
}

// NewSessionStorage returns a Redis-backed session store, or nil when no
// Redis client is available (the session middleware then falls back to its
// in-process memory store).
func NewSessionStorage() *SessionStorage {
	if client == nil {
		return nil
	}
	return &SessionStorage{rdb: client}
}

// NewSessionStorageWithClient builds a session store on an explicit client.
func NewSessionStorageWithClient(rdb *redis.Client) *SessionStorage {
	return &SessionStorage{rdb: rdb}
}

func (s *SessionStorage) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	val, err := s.rdb.Get(context.Background(), sessionKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

func (s *SessionStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	return s.rdb.Set(context.Background(), sessionKeyPrefix+key, val, exp).Err()
}

func (s *SessionStorage) Delete(key string) error {
	if key == "" {
		return nil
	}
	return s.rdb.Del(context.Background(), sessionKeyPrefix+key).Err()
}

// Reset drops every stored session.
func (s *SessionStorage) Reset() error {
	ctx := context.Background()
	iter := s.rdb.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
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
	return s.rdb.Del(ctx, keys...).Err()
}

func (s *SessionStorage) Close() error {
	return nil
}
