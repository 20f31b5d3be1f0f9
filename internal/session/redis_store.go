package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares one token pair between the console and the worker
// through a single JSON value.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, key string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, key: key, ttl: ttl}
}

func (r *RedisStore) Load(ctx context.Context) (Tokens, error) {
	return r.load(ctx, r.client)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *RedisStore) load(ctx context.Context, cmd getter) (Tokens, error) {
	raw, err := cmd.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Tokens{}, nil
	}
	if err != nil {
		return Tokens{}, fmt.Errorf("load session: %w", err)
	}
	var tokens Tokens
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return Tokens{}, fmt.Errorf("decode session: %w", err)
	}
	return tokens, nil
}

func (r *RedisStore) Save(ctx context.Context, tokens Tokens) error {
	raw, err := json.Marshal(tokens)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteIf watches the key so a rotation by another process between the read
// and the delete aborts the delete.
func (r *RedisStore) DeleteIf(ctx context.Context, refreshToken string) (bool, error) {
	deleted := false
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		tokens, err := r.load(ctx, tx)
		if err != nil {
			return err
		}
		if tokens.Empty() || tokens.RefreshToken != refreshToken {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, r.key)
			return nil
		})
		if err != nil {
			return err
		}
		deleted = true
		return nil
	}, r.key)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return deleted, nil
}
