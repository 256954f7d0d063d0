package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/insider-one/notifications-go-client/internal/domain"
)

// StatusCache implements domain.StatusCache using Redis
type StatusCache struct {
	client *Client
	ttl    time.Duration
}

// NewStatusCache creates a new StatusCache
func NewStatusCache(client *Client, ttl time.Duration) *StatusCache {
	return &StatusCache{client: client, ttl: ttl}
}

func (c *StatusCache) statusKey(id uuid.UUID) string {
	return c.client.key("status", id.String())
}

// Get returns a cached status or domain.ErrNotFound
func (c *StatusCache) Get(ctx context.Context, id uuid.UUID) (*domain.DeliveryStatus, error) {
	data, err := c.client.rdb.Get(ctx, c.statusKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cached status: %w", err)
	}

	var s domain.DeliveryStatus
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached status: %w", err)
	}
	return &s, nil
}

// Set caches a status. Final statuses never change, so they are kept for
// four times the configured TTL.
func (c *StatusCache) Set(ctx context.Context, s *domain.DeliveryStatus) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	if err := c.client.rdb.Set(ctx, c.statusKey(s.ID), data, c.ttlFor(s.Status)).Err(); err != nil {
		return fmt.Errorf("failed to cache status: %w", err)
	}
	return nil
}

// Delete removes a cached status
func (c *StatusCache) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.client.rdb.Del(ctx, c.statusKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete cached status: %w", err)
	}
	return nil
}

func (c *StatusCache) ttlFor(status domain.Status) time.Duration {
	if status.IsFinal() {
		return 4 * c.ttl
	}
	return c.ttl
}
