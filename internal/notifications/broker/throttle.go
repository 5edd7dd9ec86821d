package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/ToFood/tofood-zip/internal/external"
	"github.com/ToFood/tofood-zip/internal/types"
)

// Gate blocks until the caller may send through cfg's broker. It enforces
// MinMillisecondsBetweenSends across every dispatcher sharing the gate,
// whereas the post-send sleep only spaces sends within one call chain.
type Gate interface {
	Wait(ctx context.Context, cfg types.BrokerServiceConfig) error
}

// ProcessGate spaces sends per broker config across goroutines of one
// process using a token bucket of burst 1.
type ProcessGate struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
}

// NewProcessGate returns an empty ProcessGate.
func NewProcessGate() *ProcessGate {
	return &ProcessGate{limiters: make(map[int64]*rate.Limiter)}
}

// Wait reserves the next send slot for cfg. Configs without a minimum
// interval pass straight through.
func (g *ProcessGate) Wait(ctx context.Context, cfg types.BrokerServiceConfig) error {
	interval := cfg.MinInterval()
	if interval <= 0 {
		return nil
	}
	return g.limiter(cfg.ID, interval).Wait(ctx)
}

func (g *ProcessGate) limiter(id int64, interval time.Duration) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	limit := rate.Every(interval)
	l, ok := g.limiters[id]
	if !ok {
		l = rate.NewLimiter(limit, 1)
		g.limiters[id] = l
	} else if l.Limit() != limit {
		l.SetLimit(limit)
	}
	return l
}

// RedisClient is the subset of *redis.Client used by RedisGate.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	PTTL(ctx context.Context, key string) *redis.DurationCmd
}

// RedisGate spaces sends per broker config across processes. A send slot is
// a key set with NX and a PX expiry equal to the minimum interval; whoever
// creates the key owns the slot, everyone else waits out its TTL.
type RedisGate struct {
	client    RedisClient
	keyPrefix string
	owner     string
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewRedisGate creates a RedisGate. owner is stored as the key value to aid
// debugging and should identify the worker instance.
func NewRedisGate(client RedisClient, owner string) *RedisGate {
	return &RedisGate{
		client:    client,
		keyPrefix: "notifications:throttle:",
		owner:     owner,
		sleep:     external.SleepContext,
	}
}

// Wait blocks until this caller owns cfg's next send slot or ctx ends.
func (g *RedisGate) Wait(ctx context.Context, cfg types.BrokerServiceConfig) error {
	interval := cfg.MinInterval()
	if interval <= 0 {
		return nil
	}
	key := fmt.Sprintf("%s%d", g.keyPrefix, cfg.ID)

	for {
		acquired, err := g.client.SetNX(ctx, key, g.owner, interval).Result()
		if err != nil {
			return fmt.Errorf("throttle slot %s: %w", key, err)
		}
		if acquired {
			return nil
		}

		ttl, err := g.client.PTTL(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("throttle ttl %s: %w", key, err)
		}
		// -2: key vanished between the two calls. -1 (no expiry) cannot
		// happen for keys written here; treat it like a full interval.
		switch {
		case ttl == -2*time.Nanosecond || ttl == 0:
			continue
		case ttl < 0 || ttl > interval:
			ttl = interval
		}
		if err := g.sleep(ctx, ttl); err != nil {
			return err
		}
	}
}
