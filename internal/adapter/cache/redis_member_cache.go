// Package cache provides the Redis-backed member listing cache.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/loopchat/chatd/internal/domain"
	"github.com/loopchat/chatd/internal/service"
)

// RedisMemberCache implements service.MemberCache backed by Redis. Entries
// expire after the configured TTL and are invalidated on signup, so a
// listing is never stale for longer than one TTL window.
type RedisMemberCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ service.MemberCache = (*RedisMemberCache)(nil)

// NewRedisMemberCache constructs a Redis-backed member cache.
func NewRedisMemberCache(client redis.UniversalClient, ttl time.Duration) *RedisMemberCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisMemberCache{client: client, ttl: ttl}
}

func memberKey(workspaceID int64) string {
	return fmt.Sprintf("chatd:ws:%d:members", workspaceID)
}

// GetMembers loads and decodes the cached member listing. A miss is
// reported through the bool, not an error.
func (c *RedisMemberCache) GetMembers(ctx context.Context, workspaceID int64) ([]domain.Member, bool, error) {
	bytes, err := c.client.Get(ctx, memberKey(workspaceID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load members: %w", err)
	}
	var members []domain.Member
	if err := json.Unmarshal(bytes, &members); err != nil {
		return nil, false, fmt.Errorf("decode members: %w", err)
	}
	return members, true, nil
}

// SetMembers stores the member listing with TTL.
func (c *RedisMemberCache) SetMembers(ctx context.Context, workspaceID int64, members []domain.Member) error {
	payload, err := json.Marshal(members)
	if err != nil {
		return fmt.Errorf("marshal members: %w", err)
	}
	if err := c.client.Set(ctx, memberKey(workspaceID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("persist members: %w", err)
	}
	return nil
}

// Invalidate removes the cached listing for the workspace.
func (c *RedisMemberCache) Invalidate(ctx context.Context, workspaceID int64) error {
	if err := c.client.Del(ctx, memberKey(workspaceID)).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("invalidate members: %w", err)
	}
	return nil
}
