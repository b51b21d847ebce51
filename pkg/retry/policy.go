package retry

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ErrMaxRetriesExceeded wraps the last error once all attempts are spent
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// Policy configures retry behavior
type Policy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         float64          // 0.0 to 1.0, fraction of backoff randomized
	RetryableFunc  func(error) bool // nil retries every error
}

// DefaultPolicy returns a policy suitable for transient network failures
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.2,
	}
}

// Validate checks the policy for usable values
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative, got %d", p.MaxRetries)
	}
	if p.InitialBackoff <= 0 {
		return fmt.Errorf("initial backoff must be positive, got %s", p.InitialBackoff)
	}
	if p.Multiplier < 1.0 {
		return fmt.Errorf("multiplier must be at least 1.0, got %f", p.Multiplier)
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		return fmt.Errorf("jitter must be between 0 and 1, got %f", p.Jitter)
	}
	return nil
}

// Backoff computes exponential delays between attempts
type Backoff struct {
	policy Policy
}

// NewBackoff creates a backoff calculator for the policy
func NewBackoff(policy Policy) *Backoff {
	return &Backoff{policy: policy}
}

// Calculate returns the delay before the given attempt number (1-based)
func (b *Backoff) Calculate(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	backoff := float64(b.policy.InitialBackoff) * math.Pow(b.policy.Multiplier, float64(attempt-1))
	if max := float64(b.policy.MaxBackoff); b.policy.MaxBackoff > 0 && backoff > max {
		backoff = max
	}

	if b.policy.Jitter > 0 {
		delta := backoff * b.policy.Jitter
		backoff = backoff - delta + rand.Float64()*2*delta
	}

	return time.Duration(backoff)
}
