// Package backoff computes retry delays for polling the daemon.
package backoff

import (
	"context"
	"math"
	"time"
)

type Config struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
}

// Delay returns the wait before the given attempt, counting from 1:
// Base * Factor^(attempt-1), capped at Max when Max is set.
func (c Config) Delay(attempt int) time.Duration {
	if attempt <= 0 || c.Base <= 0 {
		return 0
	}
	factor := c.Factor
	if factor <= 0 {
		factor = 2
	}
	delay := float64(c.Base) * math.Pow(factor, float64(attempt-1))
	switch {
	case c.Max > 0 && delay > float64(c.Max):
		return c.Max
	case delay >= float64(math.MaxInt64):
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// Poll calls check up to attempts times, sleeping Delay(n) after the n-th
// failure, and returns nil on the first success. It gives up early when ctx
// is done.
func Poll(ctx context.Context, cfg Config, attempts int, check func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = check(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		timer := time.NewTimer(cfg.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
