package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// RedisTokens хранит сессии в Redis, переживает рестарт процесса
type RedisTokens struct {
	client *redis.Client
}

func NewRedisTokens(client *redis.Client) *RedisTokens {
	return &RedisTokens{client: client}
}

var _ TokenStore = (*RedisTokens)(nil)

func (r *RedisTokens) Issue(ctx context.Context, role Role) (string, error) {
	token := uuid.NewString()
	if err := r.client.Set(ctx, sessionKeyPrefix+token, string(role), TokenTTL).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (r *RedisTokens) Resolve(ctx context.Context, token string) (Role, error) {
	val, err := r.client.Get(ctx, sessionKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", err
	}
	return Role(val), nil
}

func (r *RedisTokens) Revoke(ctx context.Context, token string) error {
	return r.client.Del(ctx, sessionKeyPrefix+token).Err()
}
