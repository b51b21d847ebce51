package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// LoginThrottle tracks failed login attempts in Redis and locks an
// identifier out with exponential backoff once it crosses the limit.
type LoginThrottle struct {
	redis       *redis.Client
	logger      *zap.Logger
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// NewLoginThrottle creates a login throttle with default thresholds
func NewLoginThrottle(redis *redis.Client, logger *zap.Logger) *LoginThrottle {
	return &LoginThrottle{
		redis:       redis,
		logger:      logger,
		maxAttempts: 10,
		baseBackoff: 5 * time.Second,
		maxBackoff:  time.Hour,
	}
}

// AttemptStatus describes the throttle state for an identifier
type AttemptStatus struct {
	Allowed        bool
	FailedAttempts int
	RetryAfter     time.Duration
}

// Allowed reports whether the identifier may attempt a login
func (t *LoginThrottle) Allowed(ctx context.Context, identifier string) (*AttemptStatus, error) {
	lockTTL, err := t.redis.TTL(ctx, lockKey(identifier)).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("check lock status: %w", err)
	}
	if lockTTL > 0 {
		return &AttemptStatus{Allowed: false, RetryAfter: lockTTL}, nil
	}

	attempts, err := t.redis.Get(ctx, attemptsKey(identifier)).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get attempts: %w", err)
	}

	return &AttemptStatus{Allowed: true, FailedAttempts: attempts}, nil
}

// RecordFailure counts a failed attempt and locks the identifier once the
// limit is exceeded. The lockout doubles with each further failure up to the cap.
func (t *LoginThrottle) RecordFailure(ctx context.Context, identifier string) (*AttemptStatus, error) {
	attempts, err := t.redis.Incr(ctx, attemptsKey(identifier)).Result()
	if err != nil {
		return nil, fmt.Errorf("increment attempts: %w", err)
	}
	t.redis.Expire(ctx, attemptsKey(identifier), time.Hour)

	status := &AttemptStatus{Allowed: true, FailedAttempts: int(attempts)}

	if int(attempts) >= t.maxAttempts {
		exponent := int(attempts) - t.maxAttempts
		backoff := time.Duration(float64(t.baseBackoff) * math.Pow(2, float64(exponent)))
		if backoff > t.maxBackoff {
			backoff = t.maxBackoff
		}

		t.redis.Set(ctx, lockKey(identifier), "1", backoff)
		status.Allowed = false
		status.RetryAfter = backoff

		t.logger.Warn("Login identifier locked",
			zap.String("identifier", identifier),
			zap.Int64("attempts", attempts),
			zap.Duration("lockout", backoff))
	}

	return status, nil
}

// RecordSuccess clears the failure counter and any lock
func (t *LoginThrottle) RecordSuccess(ctx context.Context, identifier string) error {
	pipe := t.redis.Pipeline()
	pipe.Del(ctx, attemptsKey(identifier))
	pipe.Del(ctx, lockKey(identifier))
	_, err := pipe.Exec(ctx)
	return err
}

func attemptsKey(identifier string) string {
	return "login:attempts:" + identifier
}

func lockKey(identifier string) string {
	return "login:locked:" + identifier
}
