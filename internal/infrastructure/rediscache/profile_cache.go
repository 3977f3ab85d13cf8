package rediscache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/kios-auth/internal/domain/entity"
	"github.com/oksasatya/kios-auth/pkg/helpers"
)

func profileKey(userID string) string {
	return "user:profile:" + userID
}

// ProfileCache stores sanitized profiles as JSON strings with a TTL.
type ProfileCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewProfileCache(rdb *redis.Client, ttl time.Duration) *ProfileCache {
	return &ProfileCache{rdb: rdb, ttl: ttl}
}

func (c *ProfileCache) Get(ctx context.Context, userID string) (*entity.Profile, bool, error) {
	var p entity.Profile
	ok, err := helpers.RedisGetJSON(ctx, c.rdb, profileKey(userID), &p)
	if err != nil || !ok {
		return nil, false, err
	}
	return &p, true, nil
}

func (c *ProfileCache) Set(ctx context.Context, p entity.Profile) error {
	return helpers.RedisSetJSON(ctx, c.rdb, profileKey(p.ID), p, c.ttl)
}

func (c *ProfileCache) Delete(ctx context.Context, userID string) error {
	return helpers.RedisDel(ctx, c.rdb, profileKey(userID))
}
