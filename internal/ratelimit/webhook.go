package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/orderlake/internal/config"
)

const keyWebhookOrders = "webhook:orders:%s"

// WebhookLimiter throttles webhook deliveries per sender. Disabled
// limiters allow everything, so the nil return from the constructor is
// a valid wiring.
type WebhookLimiter struct {
	enabled bool

	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewWebhookLimiter(cfg config.Config) (*WebhookLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.Rate <= 0 || limitCfg.Burst <= 0 {
		return nil, errors.New("webhook rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &WebhookLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    limitCfg.Rate,
		burst:   limitCfg.Burst,
	}, nil
}

func (l *WebhookLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow checks the sender's bucket. sender is the shop domain header
// when present, otherwise the client IP.
func (l *WebhookLimiter) Allow(ctx context.Context, sender string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyWebhookOrders, strings.TrimSpace(sender)), l.rate, l.burst)
}
