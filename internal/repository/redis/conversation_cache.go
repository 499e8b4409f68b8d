package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"agora/internal/domain/conversation"
	"agora/pkg/logger"
)

// Compile-time check
var _ conversation.Repository = (*ConversationCache)(nil)

const DefaultHistoryTTL = 30 * time.Minute

// ConversationCache caches recent session history in front of another
// conversation.Repository. Writes go to the backing store first and then
// invalidate the session key. Redis errors never fail a call; the backing
// store answers instead.
type ConversationCache struct {
	next   conversation.Repository
	client redis.UniversalClient
	ttl    time.Duration
	log    *logger.Logger
}

// NewConversationCache wraps next with a redis cache.
func NewConversationCache(next conversation.Repository, client redis.UniversalClient, ttl time.Duration) *ConversationCache {
	if ttl <= 0 {
		ttl = DefaultHistoryTTL
	}
	return &ConversationCache{
		next:   next,
		client: client,
		ttl:    ttl,
		log:    logger.Get().With("component", "conversation_cache"),
	}
}

// Create stores the turn and drops the cached history of its session.
func (c *ConversationCache) Create(ctx context.Context, turn *conversation.Turn) error {
	if err := c.next.Create(ctx, turn); err != nil {
		return err
	}
	if err := c.client.Del(ctx, c.key(turn.SessionID)).Err(); err != nil {
		c.log.Warnw("Failed to invalidate history cache", "session", turn.SessionID, "error", err)
	}
	return nil
}

// Recent serves history from redis when cached, loading it from the backing store otherwise.
func (c *ConversationCache) Recent(ctx context.Context, sessionID string, limit int) ([]*conversation.Turn, error) {
	key := c.key(sessionID)
	field := strconv.Itoa(limit)

	data, err := c.client.HGet(ctx, key, field).Bytes()
	switch {
	case err == nil:
		var turns []*conversation.Turn
		if jerr := json.Unmarshal(data, &turns); jerr == nil {
			return turns, nil
		}
		c.log.Debugw("Dropping undecodable history cache entry", "session", sessionID)
	case err != redis.Nil:
		c.log.Debugw("History cache read failed", "session", sessionID, "error", err)
	}

	turns, err := c.next.Recent(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(turns); err == nil {
		pipe := c.client.TxPipeline()
		pipe.HSet(ctx, key, field, data)
		pipe.Expire(ctx, key, c.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			c.log.Debugw("History cache write failed", "session", sessionID, "error", err)
		}
	}
	return turns, nil
}

// Sessions is not cached.
func (c *ConversationCache) Sessions(ctx context.Context, userID string) ([]*conversation.SessionSummary, error) {
	return c.next.Sessions(ctx, userID)
}

func (c *ConversationCache) key(sessionID string) string {
	return fmt.Sprintf("agora:history:%s", sessionID)
}
