package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idKeyPrefix    = "user:"
	emailKeyPrefix = "email:"
)

// Cache keeps two Redis keys per user, one by id and one by email, both
// holding the same JSON snapshot under a shared TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func idKey(id int64) string {
	return idKeyPrefix + strconv.FormatInt(id, 10)
}

func emailKey(email string) string {
	return emailKeyPrefix + email
}

// GetByID loads the snapshot behind the id key. The boolean reports a hit.
func (c *Cache) GetByID(ctx context.Context, id int64) (User, bool, error) {
	return c.get(ctx, idKey(id))
}

// GetByEmail loads the snapshot behind the email key.
func (c *Cache) GetByEmail(ctx context.Context, email string) (User, bool, error) {
	return c.get(ctx, emailKey(email))
}

func (c *Cache) get(ctx context.Context, key string) (User, bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, fmt.Errorf("users: cache get %s: %w", key, err)
	}
	var u User
	if err := json.Unmarshal(payload, &u); err != nil {
		// A corrupt entry behaves like a miss; the next write overrides it.
		return User{}, false, nil
	}
	return u, true, nil
}

// Put refreshes both keys from the same record so readers can never
// observe the id-keyed and email-keyed entries disagreeing.
func (c *Cache) Put(ctx context.Context, u User) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("users: cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, idKey(u.ID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("users: cache set id key: %w", err)
	}
	if err := c.client.Set(ctx, emailKey(u.Email), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("users: cache set email key: %w", err)
	}
	return nil
}

// Evict removes both keys for a user.
func (c *Cache) Evict(ctx context.Context, u User) error {
	if err := c.client.Del(ctx, idKey(u.ID), emailKey(u.Email)).Err(); err != nil {
		return fmt.Errorf("users: cache evict: %w", err)
	}
	return nil
}
