// Package health reports readiness of the service's backing dependencies.
package health

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Pinger checks a backing store (e.g. *pgxpool.Pool).
type Pinger interface {
	Ping(ctx context.Context) error
}

// PolicyChecker checks the policy engine (e.g. the OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// RedisPinger returns a Pinger for a Redis client.
func RedisPinger(c redis.UniversalClient) Pinger {
	return PingFunc(func(ctx context.Context) error { return c.Ping(ctx).Err() })
}

// Checker runs every configured dependency check. Nil dependencies are skipped.
type Checker struct {
	db     Pinger
	redis  Pinger
	policy PolicyChecker
}

// NewChecker returns a Checker. Any argument may be nil.
func NewChecker(db, redis Pinger, policy PolicyChecker) *Checker {
	return &Checker{db: db, redis: redis, policy: policy}
}

// Check returns the first failing dependency, or nil when all are ready.
func (c *Checker) Check(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.db != nil {
		if err := c.db.Ping(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if c.redis != nil {
		if err := c.redis.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if c.policy != nil {
		if err := c.policy.HealthCheck(ctx); err != nil {
			return fmt.Errorf("policy: %w", err)
		}
	}
	return nil
}
