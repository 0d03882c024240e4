package redis

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"syntra-floor/internal/logger"
)

const (
	DefaultLockTTL = 10 * time.Second
	lockPrefix     = "floor:lock:"
	retryInterval  = 20 * time.Millisecond
)

// release deletes the key only while it still holds our token.
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker serialises floor transitions across service replicas. Keys are
// taken in sorted order so two callers locking overlapping sets cannot
// deadlock. A key left behind by a crashed holder expires after the TTL.
type Locker struct {
	client redis.UniversalClient
	ttl    time.Duration
	log    *logger.Logger
}

func NewLocker(client redis.UniversalClient, ttl time.Duration, log *logger.Logger) *Locker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &Locker{client: client, ttl: ttl, log: log}
}

func (l *Locker) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)
	token := uuid.NewString()

	held := make([]string, 0, len(keys))
	for _, key := range keys {
		if err := l.acquire(ctx, lockPrefix+key, token); err != nil {
			l.unlock(held, token)
			return nil, err
		}
		held = append(held, lockPrefix+key)
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.unlock(held, token) })
	}, nil
}

func (l *Locker) acquire(ctx context.Context, key, token string) error {
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("lock %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *Locker) unlock(keys []string, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for i := len(keys) - 1; i >= 0; i-- {
		if err := release.Run(ctx, l.client, []string{keys[i]}, token).Err(); err != nil && err != redis.Nil {
			l.log.Warn("LOCK", "release failed", "key", keys[i], "error", err)
		}
	}
}

func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
