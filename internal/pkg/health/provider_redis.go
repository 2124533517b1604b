package health

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisProvider pings Redis and reports pool statistics
type RedisProvider struct {
	name     string
	client   redis.UniversalClient
	degraded time.Duration
}

// RedisProviderConfig configures the Redis health provider
type RedisProviderConfig struct {
	Name   string
	Client redis.UniversalClient
	// Degraded is the ping latency above which Redis reports DEGRADED (default 100ms)
	Degraded time.Duration
}

// NewRedisProvider creates a Redis health provider
func NewRedisProvider(cfg RedisProviderConfig) *RedisProvider {
	if cfg.Name == "" {
		cfg.Name = "redis"
	}
	if cfg.Degraded <= 0 {
		cfg.Degraded = 100 * time.Millisecond
	}
	return &RedisProvider{name: cfg.Name, client: cfg.Client, degraded: cfg.Degraded}
}

func (p *RedisProvider) Name() string {
	return p.name
}

func (p *RedisProvider) Check(ctx context.Context) CheckResult {
	res := CheckResult{
		Name:      p.name,
		CheckedAt: time.Now(),
		Details:   make(map[string]any),
	}

	start := time.Now()
	pong, err := p.client.Ping(ctx).Result()
	latency := time.Since(start)
	res.Details["latency_ms"] = latency.Milliseconds()

	if err != nil {
		res.Status = StatusDown
		res.Error = fmt.Sprintf("failed to ping redis: %v", err)
		return res
	}
	res.Details["response"] = pong

	if c, ok := p.client.(*redis.Client); ok {
		stats := c.PoolStats()
		res.Details["pool_hits"] = stats.Hits
		res.Details["pool_misses"] = stats.Misses
		res.Details["pool_timeouts"] = stats.Timeouts
		res.Details["total_conns"] = stats.TotalConns
		res.Details["idle_conns"] = stats.IdleConns
	}

	if latency > p.degraded {
		res.Status = StatusDegraded
		res.Details["message"] = "high latency detected"
		return res
	}
	res.Status = StatusUp
	return res
}
