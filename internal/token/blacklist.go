package token

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// blacklistPrefix namespaces revocation keys; the raw token string is
// appended directly, so revoke/is-revoked on the same bytes always agree.
const blacklistPrefix = "blacklist:token"

// Blacklist records revoked tokens in Redis until their natural expiry.
type Blacklist struct {
	client *redis.Client
}

// NewBlacklist constructs a Blacklist over the given Redis client.
func NewBlacklist(client *redis.Client) *Blacklist {
	return &Blacklist{client: client}
}

// Revoke writes a revocation entry that lives for the token's remaining
// lifetime. A non-positive ttl means the token already expired and there
// is nothing left to protect.
func (b *Blacklist) Revoke(ctx context.Context, raw string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := b.client.Set(ctx, blacklistPrefix+raw, "true", ttl).Err(); err != nil {
		return fmt.Errorf("token: revoke: %w", err)
	}
	return nil
}

// IsRevoked reports whether a revocation entry exists for the token.
func (b *Blacklist) IsRevoked(ctx context.Context, raw string) (bool, error) {
	n, err := b.client.Exists(ctx, blacklistPrefix+raw).Result()
	if err != nil {
		return false, fmt.Errorf("token: is revoked: %w", err)
	}
	return n > 0, nil
}
