package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// replaceScript performs the compare-and-swap server-side so that two
// concurrent rotations for the same identity cannot both succeed.
// Returns 1 on swap, 0 on mismatch, -1 when the slot is missing.
var replaceScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
  return -1
end
if cur ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// RedisRepository stores the refresh slot under key "<prefix><sub>" with
// TTL equal to the refresh-token TTL.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository creates a Redis-backed refresh-slot repository. Prefix may be empty.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "refresh:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(sub string) string {
	return r.prefix + sub
}

func (r *RedisRepository) Bind(ctx context.Context, sub, token string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := r.client.Set(ctx, r.key(sub), token, ttl).Err(); err != nil {
		return fmt.Errorf("bind refresh slot: %w", err)
	}
	return nil
}

func (r *RedisRepository) Get(ctx context.Context, sub string) (string, error) {
	v, err := r.client.Get(ctx, r.key(sub)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrIdentityNotFound
		}
		return "", fmt.Errorf("get refresh slot: %w", err)
	}
	return v, nil
}

func (r *RedisRepository) Replace(ctx context.Context, sub, old, new string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Second
	}
	res, err := replaceScript.Run(ctx, r.client, []string{r.key(sub)}, old, new, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("replace refresh slot: %w", err)
	}
	switch res {
	case 1:
		return nil
	case 0:
		return ErrRefreshStale
	default:
		return ErrIdentityNotFound
	}
}

func (r *RedisRepository) Delete(ctx context.Context, sub string) error {
	if err := r.client.Del(ctx, r.key(sub)).Err(); err != nil {
		return fmt.Errorf("delete refresh slot: %w", err)
	}
	return nil
}
