package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	claimKeyPrefix  = "dispatch:claim:"
	defaultClaimTTL = 2 * time.Minute
	minimumClaimTTL = time.Second
)

// ClaimLock grants at most one worker the right to process a notification
// at a time. The TTL bounds how long a crashed worker can hold a claim.
type ClaimLock struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewClaimLock(client *goredis.Client, ttl time.Duration) (*ClaimLock, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl < minimumClaimTTL {
		ttl = defaultClaimTTL
	}

	return &ClaimLock{client: client, ttl: ttl}, nil
}

// Acquire reports whether this worker now owns the claim. A false return is
// not an error: another worker is processing the notification.
func (l *ClaimLock) Acquire(ctx context.Context, notificationID string) (bool, error) {
	if l == nil || l.client == nil {
		return false, fmt.Errorf("claim lock is not initialized")
	}

	id := strings.TrimSpace(notificationID)
	if id == "" {
		return false, fmt.Errorf("notification id is required")
	}

	acquired, err := l.client.SetNX(ctx, claimKeyPrefix+id, 1, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire claim: %w", err)
	}

	return acquired, nil
}

// Release drops the claim early. Best effort: an expired claim is already
// gone and that is fine.
func (l *ClaimLock) Release(ctx context.Context, notificationID string) error {
	if l == nil || l.client == nil {
		return fmt.Errorf("claim lock is not initialized")
	}

	id := strings.TrimSpace(notificationID)
	if id == "" {
		return fmt.Errorf("notification id is required")
	}

	if err := l.client.Del(ctx, claimKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to release claim: %w", err)
	}
	return nil
}
