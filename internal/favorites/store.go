package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKey is where the favorites list lives in redis.
const redisKey = "weather-dashboard:favorites"

// storeTimeout bounds a single load/save call.
const storeTimeout = 3 * time.Second

// RedisStore persists the favorites list as a JSON array in redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore for the given address.
func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (s *RedisStore) Load() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	raw, err := s.client.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (s *RedisStore) Save(names []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	raw, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKey, raw, 0).Err()
}

// FileStore persists the favorites list as a JSON file. Used when no redis
// address is configured.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() ([]string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (s *FileStore) Save(names []string) error {
	raw, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o644)
}
