// Package pacing throttles sequential sends. A Pacer blocks before each item
// of a batch delivery or broadcast; implementations run on an injectable
// Clock so tests never sleep.
package pacing

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/hik1komori/life-dorama-bot/internal/config"
)

// Pacer blocks until the next item may be sent.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Clock abstracts time for pacers.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// Interval waits a fixed duration before every item.
type Interval struct {
	clock    Clock
	interval time.Duration
}

// NewInterval builds a fixed-interval pacer. A nil clock uses the wall clock.
func NewInterval(interval time.Duration, clock Clock) *Interval {
	if clock == nil {
		clock = RealClock()
	}
	return &Interval{clock: clock, interval: interval}
}

// Wait sleeps for the interval or returns early when ctx is cancelled.
func (p *Interval) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.interval <= 0 {
		return nil
	}
	select {
	case <-p.clock.After(p.interval):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TokenBucket admits bursts up to a capacity and refills at a steady rate.
type TokenBucket struct {
	clock   Clock
	limiter *rate.Limiter
}

// NewTokenBucket builds a pacer that refills one token per interval.
func NewTokenBucket(interval time.Duration, burst int, clock Clock) *TokenBucket {
	if clock == nil {
		clock = RealClock()
	}
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &TokenBucket{clock: clock, limiter: rate.NewLimiter(limit, burst)}
}

// Wait reserves a token and sleeps until it becomes available.
func (p *TokenBucket) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := p.clock.Now()
	reservation := p.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return fmt.Errorf("token bucket cannot admit a single item")
	}
	delay := reservation.DelayFrom(now)
	if delay <= 0 {
		return nil
	}
	select {
	case <-p.clock.After(delay):
		return nil
	case <-ctx.Done():
		reservation.CancelAt(p.clock.Now())
		return ctx.Err()
	}
}

// Factory builds a fresh Pacer for one run. Runs that may overlap each take
// their own pacer so they never share a token bucket.
type Factory func() Pacer

// Episodes returns the pacer factory for batch episode delivery. Each batch
// is paced on its own; concurrent batches to different users do not slow
// each other down.
func Episodes(cfg *config.Config, clock Clock) Factory {
	mode, interval := cfg.Pacing.Mode, cfg.EpisodeInterval()
	return func() Pacer {
		return build(mode, interval, 1, clock)
	}
}

// Broadcasts builds the pacer for broadcast fan-out. Broadcasts are single
// flight, so one pacer serves every run.
func Broadcasts(cfg *config.Config, clock Clock) Pacer {
	return build(cfg.Pacing.Mode, cfg.BroadcastInterval(), cfg.Pacing.BroadcastBurst, clock)
}

func build(mode string, interval time.Duration, burst int, clock Clock) Pacer {
	if mode == config.PacingModeTokenBucket {
		return NewTokenBucket(interval, burst, clock)
	}
	return NewInterval(interval, clock)
}
