// Package revocation tracks which issued tokens are currently live, so a
// logout takes effect across every service instance before the token's
// natural expiry. The record is shared state in Redis: a set of live token
// strings per user, with a TTL on the whole set so abandoned sessions lapse
// on their own.
package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the liveness capability consumed by the session service and the
// request authenticator. Implementations are selected once at startup; the
// rest of the system never branches on whether revocation is enabled.
type Store interface {
	// RecordLive adds the token to the user's live set and refreshes the
	// set's TTL.
	RecordLive(ctx context.Context, userID, token string, ttl time.Duration) error
	// IsLive reports whether the token is in the user's live set.
	IsLive(ctx context.Context, userID, token string) (bool, error)
	// Revoke removes the token from the user's live set. Removing an
	// absent token is a no-op, which makes logout idempotent.
	Revoke(ctx context.Context, userID, token string) error
}

const keyPrefix = "active_tokens:"

func liveKey(userID string) string {
	return fmt.Sprintf("%s%s", keyPrefix, userID)
}

type redisStore struct {
	client *redis.Client
}

// NewRedisStore returns the active, Redis-backed liveness store.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) RecordLive(ctx context.Context, userID, token string, ttl time.Duration) error {
	key := liveKey(userID)
	if err := s.client.SAdd(ctx, key, token).Err(); err != nil {
		return err
	}
	return s.client.Expire(ctx, key, ttl).Err()
}

func (s *redisStore) IsLive(ctx context.Context, userID, token string) (bool, error) {
	return s.client.SIsMember(ctx, liveKey(userID), token).Result()
}

func (s *redisStore) Revoke(ctx context.Context, userID, token string) error {
	return s.client.SRem(ctx, liveKey(userID), token).Err()
}

type noopStore struct{}

// NewNoopStore returns the disabled variant: nothing is recorded and every
// token reads as live, so the authenticator never rejects on revocation
// grounds.
func NewNoopStore() Store {
	return noopStore{}
}

func (noopStore) RecordLive(context.Context, string, string, time.Duration) error {
	return nil
}

func (noopStore) IsLive(context.Context, string, string) (bool, error) {
	return true, nil
}

func (noopStore) Revoke(context.Context, string, string) error {
	return nil
}
