package blob

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore はRedisの文字列値としてブロブを保存するStore実装。
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStore はRedisStoreを生成する。
// keyPrefixは他用途のキーとの衝突を避けるための名前空間（例: "assigndesk:"）。
func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// NewRedisClient はredis://形式のURLからクライアントを生成する。
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Read はキーに対応するブロブを取得する。
func (s *RedisStore) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %q: %w", key, err)
	}
	return data, nil
}

// Write はキーにブロブを書き込む。上書き禁止の場合はSETNXを使う。
func (s *RedisStore) Write(ctx context.Context, key string, data []byte, overwrite bool) error {
	if overwrite {
		if err := s.client.Set(ctx, s.keyPrefix+key, data, 0).Err(); err != nil {
			return fmt.Errorf("failed to write blob %q: %w", key, err)
		}
		return nil
	}

	created, err := s.client.SetNX(ctx, s.keyPrefix+key, data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create blob %q: %w", key, err)
	}
	if !created {
		return ErrAlreadyExists
	}
	return nil
}

// Ping はRedisへの接続を確認する。
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
