package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/LJTian/NewsLens/internal/collector"
)

// RunGuard hands out at most one run token per source at a time.
type RunGuard interface {
	Acquire(ctx context.Context, source collector.SourceID) (string, error)
	Release(ctx context.Context, source collector.SourceID, token string) error
}

// LocalRunGuard guards runs within one process.
type LocalRunGuard struct {
	mu   sync.Mutex
	held map[collector.SourceID]string
}

func NewLocalRunGuard() *LocalRunGuard {
	return &LocalRunGuard{held: make(map[collector.SourceID]string)}
}

func (g *LocalRunGuard) Acquire(_ context.Context, source collector.SourceID) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.held[source]; busy {
		return "", fmt.Errorf("%s: %w", source, ErrSourceBusy)
	}
	token := uuid.NewString()
	g.held[source] = token
	return token, nil
}

func (g *LocalRunGuard) Release(_ context.Context, source collector.SourceID, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held[source] == token {
		delete(g.held, source)
	}
	return nil
}

// only the holder of the token may delete the key
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunGuard guards runs across processes sharing one Redis.
// The key expires after ttl so a crashed holder cannot block a source forever.
type RedisRunGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRunGuard(client *redis.Client, ttl time.Duration) *RedisRunGuard {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisRunGuard{client: client, ttl: ttl}
}

func runKey(source collector.SourceID) string {
	return "newslens:run:" + string(source)
}

func (g *RedisRunGuard) Acquire(ctx context.Context, source collector.SourceID) (string, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, runKey(source), token, g.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire run token for %s: %w", source, err)
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", source, ErrSourceBusy)
	}
	return token, nil
}

func (g *RedisRunGuard) Release(ctx context.Context, source collector.SourceID, token string) error {
	return releaseScript.Run(ctx, g.client, []string{runKey(source)}, token).Err()
}
