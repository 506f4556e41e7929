package fleet

import (
	"math"
	"math/rand"
	"time"
)

// BackoffConfig shapes the delay between reconnect attempts.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	// Jitter spreads each delay uniformly over ±Jitter of its value,
	// e.g. 0.2 yields 80%..120%.
	Jitter float64
}

// DefaultBackoff is used by links without a BackoffConfig.
var DefaultBackoff = BackoffConfig{
	InitialDelay: 250 * time.Millisecond,
	Multiplier:   2,
	MaxDelay:     5 * time.Second,
	Jitter:       0.2,
}

// Delay returns the wait before reconnect attempt N (1-based).
// Jitter is only applied when rng is provided.
func (c BackoffConfig) Delay(attempt int, rng *rand.Rand) time.Duration {
	if c.InitialDelay <= 0 {
		return 0
	}
	delay := float64(c.InitialDelay)
	if attempt > 1 && c.Multiplier > 1 {
		delay *= math.Pow(c.Multiplier, float64(attempt-1))
	}
	if c.MaxDelay > 0 && delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	if c.Jitter > 0 && rng != nil {
		delay *= 1 + c.Jitter*(2*rng.Float64()-1)
	}
	return time.Duration(delay)
}
