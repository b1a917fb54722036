package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"atenea/backend/internal/domain"
)

type RedisDraftStore struct {
	client *redis.Client
}

func NewRedisDraftStore(addr string, password string, db int) *RedisDraftStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisDraftStore{client: client}
}

func (c *RedisDraftStore) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisDraftStore) Close() error {
	return c.client.Close()
}

func (c *RedisDraftStore) Get(ctx context.Context, owner, form string) (*domain.Draft, bool, error) {
	val, err := c.client.Get(ctx, draftKey(owner, form)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var draft domain.Draft
	if err := json.Unmarshal(val, &draft); err != nil {
		return nil, false, err
	}
	return &draft, true, nil
}

func (c *RedisDraftStore) Set(ctx context.Context, draft domain.Draft, ttl time.Duration) error {
	payload, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, draftKey(draft.Owner, draft.Form), payload, ttl).Err()
}

func (c *RedisDraftStore) Delete(ctx context.Context, owner, form string) error {
	return c.client.Del(ctx, draftKey(owner, form)).Err()
}
