package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"agora/pkg/errors"
)

// KEYS[1] = bucket key
// ARGV[1] = rate (tokens per second)
// ARGV[2] = burst (max tokens)
// ARGV[3] = current timestamp (seconds, fractional)
// Returns 1 if a token was taken, 0 otherwise.
const luaTokenBucketScript = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call('HMGET', key, 'tokens', 'last_update')
local tokens = tonumber(data[1])
local last_update = tonumber(data[2])

if not tokens then
    tokens = burst
    last_update = now
end

tokens = math.min(burst, tokens + math.max(0, now - last_update) * rate)

local allowed = 0
if tokens >= 1.0 then
    tokens = tokens - 1.0
    allowed = 1
end

redis.call('HSET', key, 'tokens', tokens, 'last_update', now)
redis.call('EXPIRE', key, 3600)

return allowed
`

var tokenBucketScript = redis.NewScript(luaTokenBucketScript)

// Redis is a token bucket shared by every replica.
// As a Limiter it uses one bucket; as a KeyedLimiter one bucket per key.
type Redis struct {
	client    redis.Scripter
	name      string
	rate      float64
	burst     int
	keyPrefix string
}

// NewRedis creates a distributed limiter. name namespaces the bucket keys.
func NewRedis(client redis.Scripter, name string, reqPerMinute float64, burst int) *Redis {
	return &Redis{
		client:    client,
		name:      name,
		rate:      reqPerMinute / 60.0,
		burst:     defaultBurst(reqPerMinute, burst),
		keyPrefix: "agora:rate_limit:" + name,
	}
}

func (l *Redis) Wait(ctx context.Context) error {
	for {
		allowed, err := l.take(ctx, l.keyPrefix)
		if err != nil {
			return errors.Wrapf(err, "redis rate limiter %s", l.name)
		}
		if allowed {
			return nil
		}

		select {
		case <-ctx.Done():
			return &Error{Name: l.name, Limit: l.Limit(), Err: ctx.Err()}
		case <-time.After(time.Duration(float64(time.Second) / l.rate)):
		}
	}
}

// Allow denies on redis errors.
func (l *Redis) Allow() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	allowed, err := l.take(ctx, l.keyPrefix)
	return err == nil && allowed
}

func (l *Redis) Limit() float64 {
	return l.rate * 60.0
}

func (l *Redis) AllowKey(ctx context.Context, key string) (bool, error) {
	return l.take(ctx, l.keyPrefix+":"+key)
}

func (l *Redis) take(ctx context.Context, key string) (bool, error) {
	now := float64(time.Now().UnixNano()) / float64(time.Second)

	result, err := tokenBucketScript.Run(ctx, l.client, []string{key}, l.rate, l.burst, now).Int()
	if err != nil {
		return false, errors.Wrap(err, "token bucket script")
	}
	return result == 1, nil
}
